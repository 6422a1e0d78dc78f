package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"tutor/pkg/classify"
	"tutor/pkg/router"
)

// RuleOverride adjusts one routing rule by ID. A zero Priority leaves the
// built-in priority in place.
type RuleOverride struct {
	ID       string `yaml:"id"`
	Priority int    `yaml:"priority,omitempty"`
	Disabled bool   `yaml:"disabled,omitempty"`
}

// RulePack is a YAML document that tunes the decision core without code
// changes. It can reprioritize or disable built-in routing rules and extend
// the classifier's level word tiers; it cannot add new rules, because the
// condition language stays in code where it is validated.
type RulePack struct {
	Name      string              `yaml:"name,omitempty"`
	Overrides []RuleOverride      `yaml:"overrides,omitempty"`
	Tiers     map[string][]string `yaml:"tiers,omitempty"`
}

// LoadRulePack parses a rule-pack YAML file.
func LoadRulePack(path string) (*RulePack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule pack: %w", err)
	}

	var pack RulePack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("failed to parse rule pack YAML: %w", err)
	}
	return &pack, nil
}

// Apply returns a copy of the rule table with the pack's overrides applied.
// Every override must name an existing rule; a typo in an ID would otherwise
// silently do nothing.
func (p *RulePack) Apply(rules []router.Rule) ([]router.Rule, error) {
	byID := make(map[string]int, len(rules))
	for i := range rules {
		byID[rules[i].ID] = i
	}

	adjusted := append([]router.Rule(nil), rules...)
	disabled := make(map[string]bool)

	for i := range p.Overrides {
		o := &p.Overrides[i]
		idx, ok := byID[o.ID]
		if !ok {
			return nil, fmt.Errorf("rule pack override references unknown rule %q", o.ID)
		}
		if o.Disabled {
			disabled[o.ID] = true
			continue
		}
		if o.Priority != 0 {
			adjusted[idx].Priority = o.Priority
		}
	}

	if len(disabled) == 0 {
		return adjusted, nil
	}
	kept := adjusted[:0]
	for i := range adjusted {
		if !disabled[adjusted[i].ID] {
			kept = append(kept, adjusted[i])
		}
	}
	return kept, nil
}

// ApplyTiers extends the classifier's word tiers with the pack's vocabulary.
// Call once at startup, before any classification.
func (p *RulePack) ApplyTiers() error {
	for tier, words := range p.Tiers {
		if err := classify.ExtendTier(tier, words...); err != nil {
			return fmt.Errorf("rule pack tier %q: %w", tier, err)
		}
	}
	return nil
}

// BuildRouter constructs the routing engine for this config, applying the
// rule pack when one is configured. Tier vocabulary from the pack is applied
// as a side effect.
func (c *Config) BuildRouter() (*router.Engine, error) {
	if c.RulePackPath == "" {
		return router.New(), nil
	}

	pack, err := LoadRulePack(c.RulePackPath)
	if err != nil {
		return nil, err
	}
	if err := pack.ApplyTiers(); err != nil {
		return nil, err
	}
	rules, err := pack.Apply(router.New().Rules())
	if err != nil {
		return nil, err
	}
	engine, err := router.NewWithRules(rules)
	if err != nil {
		return nil, fmt.Errorf("rule pack produced an invalid table: %w", err)
	}
	return engine, nil
}
