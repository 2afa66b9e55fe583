package analysis

import (
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/protocolzero/codepolice/models"
)

// Rule is a project-specific check the analyzer asks the model to enforce.
type Rule struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
	Severity    string `yaml:"severity"`
}

// RuleSet is the parsed rules file.
type RuleSet struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRuleSet reads a YAML rules file. An empty path yields an empty set.
//
//	rules:
//	  - id: no-console-log
//	    description: Do not leave console.log calls in production code
//	    severity: low
func LoadRuleSet(path string) (*RuleSet, error) {
	if path == "" {
		return &RuleSet{}, nil
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from local config
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parsing rules file %s: %w", path, err)
	}
	for i, r := range rs.Rules {
		if strings.TrimSpace(r.ID) == "" {
			return nil, fmt.Errorf("rule %d in %s has no id", i+1, path)
		}
		if r.Severity != "" && !models.Severity(strings.ToLower(r.Severity)).Valid() {
			return nil, fmt.Errorf("rule %q has unknown severity %q", r.ID, r.Severity)
		}
	}
	return &rs, nil
}

// Strings renders each rule as "id: description" for prompts and cache keys.
func (rs *RuleSet) Strings() []string {
	if rs == nil {
		return nil
	}
	out := make([]string, 0, len(rs.Rules))
	for _, r := range rs.Rules {
		s := r.ID + ": " + strings.TrimSpace(r.Description)
		if r.Severity != "" {
			s += " (" + strings.ToLower(r.Severity) + ")"
		}
		out = append(out, s)
	}
	return out
}
