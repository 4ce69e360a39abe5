package envpolicy

import (
	"slices"
	"sort"
	"strings"
)

// Policy decides which environment variables an interpreter process may see.
type Policy struct {
	AllowedExact    map[string]bool
	AllowedPrefixes []string
	BlockedExact    map[string]bool
	BlockedPrefixes []string
	// RedactNameHints match whole name tokens split on '_', '-' and '.'.
	RedactNameHints []string
}

// Default keeps what R needs to start (PATH, locale, home, temp dirs and the
// R_* family) and drops well-known credentials.
func Default() Policy {
	allowed := []string{
		"HOME",
		"LANG",
		"LANGUAGE",
		"LC_ALL",
		"LC_CTYPE",
		"LC_MESSAGES",
		"LC_NUMERIC",
		"LOGNAME",
		"PATH",
		"PWD",
		"SHELL",
		"TERM",
		"TMP",
		"TMPDIR",
		"TEMP",
		"TZ",
		"USER",
	}
	blocked := []string{
		"AWS_ACCESS_KEY_ID",
		"AWS_SECRET_ACCESS_KEY",
		"AWS_SESSION_TOKEN",
		"OPENAI_API_KEY",
		"ANTHROPIC_API_KEY",
		"GOOGLE_API_KEY",
		"GITHUB_TOKEN",
		"GITHUB_PAT",
		"SSH_AUTH_SOCK",
		"SSH_AGENT_PID",
	}
	p := Policy{
		AllowedExact:    map[string]bool{},
		AllowedPrefixes: []string{"R_", "RFN_"},
		BlockedExact:    map[string]bool{},
		BlockedPrefixes: []string{"SECRET_", "TOKEN_", "PASSWORD_", "CREDENTIAL_"},
		RedactNameHints: []string{"SECRET", "TOKEN", "KEY", "APIKEY", "PASSWORD", "PASSWD", "CREDENTIAL", "AUTH", "PAT"},
	}
	for _, key := range allowed {
		p.AllowedExact[key] = true
	}
	for _, key := range blocked {
		p.BlockedExact[key] = true
	}
	return p
}

// BlockedError reports explicitly requested variables the policy refused.
type BlockedError struct {
	Names []string
}

func (e *BlockedError) Error() string {
	return "env policy blocked explicitly configured variables: " + strings.Join(e.Names, ",")
}

func (p Policy) Filter(in map[string]string) (allowed map[string]string, blocked []string) {
	if len(in) == 0 {
		return nil, nil
	}
	allowed = map[string]string{}
	for k, v := range in {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		norm := strings.ToUpper(key)
		if p.isBlocked(norm) || !p.isAllowed(norm) {
			blocked = append(blocked, norm)
			continue
		}
		allowed[key] = v
	}
	if len(allowed) == 0 {
		allowed = nil
	}
	return allowed, dedupeSorted(blocked)
}

// RedactForLog masks values whose names look like credentials.
func (p Policy) RedactForLog(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		if p.shouldRedactName(k) {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = v
	}
	return out
}

// Build assembles the child environment. base is the inherited environment
// in os.Environ form (ignored unless inherit), overlay wins over base. With a
// nil policy nothing is filtered.
func Build(policy *Policy, inherit bool, base []string, overlay map[string]string) ([]string, error) {
	merged := map[string]string{}
	if inherit {
		for k, v := range ParseEnviron(base) {
			merged[k] = v
		}
	}
	for k, v := range overlay {
		merged[k] = v
	}
	if policy != nil {
		allowed, blocked := policy.Filter(merged)
		if names := explicitlyBlocked(blocked, overlay); len(names) > 0 {
			return nil, &BlockedError{Names: names}
		}
		merged = allowed
	}
	return ToEnviron(merged), nil
}

func ParseEnviron(environ []string) map[string]string {
	out := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// ToEnviron renders m as sorted KEY=value pairs. The result is never nil so
// exec.Cmd does not fall back to the parent environment.
func ToEnviron(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		if strings.TrimSpace(k) == "" {
			continue
		}
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

func explicitlyBlocked(blocked []string, overlay map[string]string) []string {
	if len(blocked) == 0 || len(overlay) == 0 {
		return nil
	}
	explicit := map[string]bool{}
	for k := range overlay {
		if k = strings.ToUpper(strings.TrimSpace(k)); k != "" {
			explicit[k] = true
		}
	}
	var out []string
	for _, b := range blocked {
		if explicit[b] {
			out = append(out, b)
		}
	}
	return out
}

func (p Policy) isAllowed(key string) bool {
	if p.AllowedExact[key] {
		return true
	}
	for _, pref := range p.AllowedPrefixes {
		if strings.HasPrefix(key, strings.ToUpper(strings.TrimSpace(pref))) {
			return true
		}
	}
	return false
}

func (p Policy) isBlocked(key string) bool {
	if p.BlockedExact[key] {
		return true
	}
	for _, pref := range p.BlockedPrefixes {
		if strings.HasPrefix(key, strings.ToUpper(strings.TrimSpace(pref))) {
			return true
		}
	}
	return false
}

func (p Policy) shouldRedactName(key string) bool {
	norm := strings.ToUpper(strings.TrimSpace(key))
	if norm == "" {
		return false
	}
	tokens := strings.FieldsFunc(norm, func(r rune) bool { return r == '_' || r == '-' || r == '.' })
	for _, hint := range p.RedactNameHints {
		h := strings.ToUpper(strings.TrimSpace(hint))
		if h != "" && slices.Contains(tokens, h) {
			return true
		}
	}
	return false
}

func dedupeSorted(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	sort.Strings(in)
	out := make([]string, 0, len(in))
	for _, v := range in {
		if len(out) > 0 && out[len(out)-1] == v {
			continue
		}
		out = append(out, v)
	}
	return out
}
