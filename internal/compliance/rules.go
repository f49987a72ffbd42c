// Package compliance holds the institution's conversational policy
// rules. Rules are loaded once per process and referenced by ordinal
// when a decision cites a violation.
package compliance

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule is one compliance rule. Ordinals are 1-based and stable for the
// process lifetime; decision records cite them.
type Rule struct {
	Ordinal int    `yaml:"ordinal" json:"ordinal"`
	Text    string `yaml:"text"    json:"text"`
}

// RuleSet is an immutable, ordinal-indexed collection of rules.
type RuleSet struct {
	rules []Rule
}

// rulesFile is the YAML shape on disk: a plain list of rule texts, in
// order. Ordinals are assigned by position.
type rulesFile struct {
	Rules []string `yaml:"rules"`
}

// DefaultRules are the built-in banking compliance rules used when no
// rules file is configured.
var DefaultRules = []string{
	"Do not discuss, compare, or mention competing banks or their products.",
	"Do not provide investment, tax, or legal advice; direct the customer to a licensed professional.",
	"Never reveal another customer's account data, balances, or transactions.",
	"Do not speculate about unreleased products, rates, or internal policy.",
}

// Load reads a rule set from a YAML file. An empty path or missing file
// yields the built-in defaults; invalid YAML is an error.
func Load(path string) (*RuleSet, error) {
	if path == "" {
		return NewRuleSet(DefaultRules), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewRuleSet(DefaultRules), nil
		}
		return nil, fmt.Errorf("compliance: read rules: %w", err)
	}

	var rf rulesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("compliance: parse rules: %w", err)
	}
	return NewRuleSet(rf.Rules), nil
}

// NewRuleSet builds a rule set from raw rule texts, assigning ordinals
// by position (1-based). Blank entries are skipped.
func NewRuleSet(texts []string) *RuleSet {
	rs := &RuleSet{}
	for _, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		rs.rules = append(rs.rules, Rule{Ordinal: len(rs.rules) + 1, Text: text})
	}
	return rs
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// Rules returns a snapshot of all rules in ordinal order.
func (rs *RuleSet) Rules() []Rule {
	out := make([]Rule, len(rs.rules))
	copy(out, rs.rules)
	return out
}

// ByOrdinal looks up a rule by its 1-based ordinal.
func (rs *RuleSet) ByOrdinal(ordinal int) (Rule, bool) {
	if ordinal < 1 || ordinal > len(rs.rules) {
		return Rule{}, false
	}
	return rs.rules[ordinal-1], true
}

// Transform converts human-readable rules to agent principles. The
// formatting is deliberately mechanical; the judgment collaborator is
// responsible for interpreting nuance.
func (rs *RuleSet) Transform() []string {
	out := make([]string, 0, len(rs.rules))
	for _, r := range rs.rules {
		out = append(out, "PRINCIPLE: "+r.Text)
	}
	return out
}

// FormatSection renders the rules as a prompt section for the judgment
// collaborator. Returns "" when there are no rules.
func (rs *RuleSet) FormatSection() string {
	if len(rs.rules) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("COMPLIANCE PRINCIPLES:\n")
	for i, principle := range rs.Transform() {
		fmt.Fprintf(&b, "%d. %s\n", i+1, principle)
	}
	b.WriteString("\nIf input violates any principle, REFUSE and cite the rule number in your response.\n")
	return b.String()
}
