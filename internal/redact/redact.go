package redact

import (
	"fmt"
	"regexp"
)

type Applied struct {
	Names []string
}

type rule struct {
	name string
	re   *regexp.Regexp
	repl string
}

// R echoes the failing call into its error text, so credentials passed as
// arguments (dbConnect(password = "...")) end up on stderr.
var builtin = []rule{
	{name: "private_key", re: regexp.MustCompile(`(?s)-----BEGIN [A-Z ]*PRIVATE KEY-----.*?-----END [A-Z ]*PRIVATE KEY-----`), repl: "[REDACTED:PRIVATE_KEY]"},
	{name: "github_token", re: regexp.MustCompile(`\b(?:gh[pousr]_[A-Za-z0-9]{10,}|github_pat_[A-Za-z0-9_]{20,})\b`), repl: "[REDACTED:GITHUB_TOKEN]"},
	{name: "openai_key", re: regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{10,}\b`), repl: "[REDACTED:OPENAI_KEY]"},
	{name: "aws_access_key_id", re: regexp.MustCompile(`\b(?:AKIA|ASIA)[A-Z0-9]{16}\b`), repl: "[REDACTED:AWS_ACCESS_KEY_ID]"},
	{name: "bearer_token", re: regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._~+/=-]{16,}`), repl: "${1}[REDACTED:BEARER_TOKEN]"},
	{name: "r_credential_arg", re: regexp.MustCompile(`(?i)\b((?:password|passwd|pwd|secret|token|api_?key)\s*=\s*)("[^"]*"|'[^']*')`), repl: `${1}"[REDACTED]"`},
}

// Rule is an extra pattern supplied by configuration. Replacement may use
// regexp expansion syntax; it defaults to "[REDACTED:<name>]".
type Rule struct {
	Name        string
	Pattern     string
	Replacement string
}

// Set is an ordered rule list: the built-in rules followed by any extras.
type Set struct {
	rules []rule
}

// Default holds only the built-in rules.
var Default = &Set{rules: builtin}

// With returns a new Set with extra appended after s's rules.
func (s *Set) With(extra []Rule) (*Set, error) {
	out := &Set{rules: append([]rule(nil), s.rules...)}
	for _, r := range extra {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("redaction rule %q: %w", r.Name, err)
		}
		repl := r.Replacement
		if repl == "" {
			repl = "[REDACTED:" + r.Name + "]"
		}
		out.rules = append(out.rules, rule{name: r.Name, re: re, repl: repl})
	}
	return out, nil
}

// Text scrubs known secret shapes from in and reports which rules fired.
func (s *Set) Text(in string) (string, Applied) {
	applied := Applied{}
	out := in
	for _, r := range s.rules {
		if !r.re.MatchString(out) {
			continue
		}
		out = r.re.ReplaceAllString(out, r.repl)
		applied.Names = append(applied.Names, r.name)
	}
	return out, applied
}

func (s *Set) Bytes(b []byte) string {
	out, _ := s.Text(string(b))
	return out
}

// Text applies the built-in rules.
func Text(s string) (string, Applied) {
	return Default.Text(s)
}

// Bytes is Text for captured process output.
func Bytes(b []byte) string {
	return Default.Bytes(b)
}
