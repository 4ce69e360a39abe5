package config

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/marcohefti/rfunctions/internal/redact"
)

type RedactionRuleV1 struct {
	ID          string `json:"id" yaml:"id"`
	Regex       string `json:"regex" yaml:"regex"`
	Replacement string `json:"replacement,omitempty" yaml:"replacement,omitempty"`
}

type RedactionConfigV1 struct {
	ExtraRules []RedactionRuleV1 `json:"extraRules,omitempty" yaml:"extraRules,omitempty"`
}

var ruleIDPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// LoadRedaction merges extra redaction rules from the global config and the
// project config at projectPath (may be empty). Project rules override
// global rules when IDs collide.
func LoadRedaction(projectPath string) (*redact.Set, error) {
	merged := map[string]RedactionRuleV1{}

	if p, err := DefaultGlobalConfigPath(); err == nil {
		g, ok, err := loadGlobal(p)
		if err != nil {
			return nil, fmt.Errorf("global config: %w", err)
		}
		if ok && g.Redaction != nil {
			for _, r := range g.Redaction.ExtraRules {
				merged[strings.TrimSpace(r.ID)] = r
			}
		}
	}

	if projectPath != "" {
		p, err := LoadProject(projectPath)
		if err != nil {
			return nil, err
		}
		if p.Redaction != nil {
			for _, r := range p.Redaction.ExtraRules {
				merged[strings.TrimSpace(r.ID)] = r
			}
		}
	}

	var rules []RedactionRuleV1
	for _, r := range merged {
		rules = append(rules, r)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })

	if err := ValidateRedactionRules(rules); err != nil {
		return nil, err
	}
	extra := make([]redact.Rule, 0, len(rules))
	for _, r := range rules {
		extra = append(extra, redact.Rule{Name: r.ID, Pattern: r.Regex, Replacement: r.Replacement})
	}
	return redact.Default.With(extra)
}

func ValidateRedactionRules(rules []RedactionRuleV1) error {
	if len(rules) == 0 {
		return nil
	}
	if len(rules) > 128 {
		return fmt.Errorf("too many redaction rules (max 128)")
	}
	seen := map[string]bool{}
	for _, r := range rules {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			return fmt.Errorf("redaction rule id is missing")
		}
		if !ruleIDPattern.MatchString(id) {
			return fmt.Errorf("redaction rule id %q is not canonical (use lowercase kebab-case)", id)
		}
		if seen[id] {
			return fmt.Errorf("duplicate redaction rule id %q", id)
		}
		seen[id] = true

		re := strings.TrimSpace(r.Regex)
		if re == "" {
			return fmt.Errorf("redaction rule %q regex is missing", id)
		}
		if len(re) > 4096 {
			return fmt.Errorf("redaction rule %q regex too long", id)
		}
		if _, err := regexp.Compile(re); err != nil {
			return fmt.Errorf("redaction rule %q regex invalid: %v", id, err)
		}
		if len(r.Replacement) > 256 {
			return fmt.Errorf("redaction rule %q replacement too long", id)
		}
	}
	return nil
}
