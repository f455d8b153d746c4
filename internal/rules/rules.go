// Package rules defines the keyword and pattern rule sets the classifier evaluates,
// together with the label and category priority rules built on top of them.
package rules

import (
	"errors"
	"fmt"

	"github.com/Veraticus/unclutter/internal/model"
	"github.com/Veraticus/unclutter/internal/pattern"
)

// Validation errors.
var (
	ErrNoRuleSets      = errors.New("no rule sets configured")
	ErrInvalidRuleSet  = errors.New("invalid rule set")
	ErrInvalidLabel    = errors.New("invalid label rule")
	ErrInvalidCategory = errors.New("invalid category rule")
	ErrInvalidFallback = errors.New("invalid fallback")
	ErrUnknownPreset   = errors.New("unknown rules preset")
)

// RuleSet is an ordered collection of terms and patterns feeding one signal.
// Several rule sets may feed the same signal; the signal fires if any of them matches.
type RuleSet struct {
	Name     string       `mapstructure:"name" yaml:"name" json:"name"`
	Signal   model.Signal `mapstructure:"signal" yaml:"signal" json:"signal"`
	Terms    []string     `mapstructure:"terms" yaml:"terms,omitempty" json:"terms,omitempty"`
	Patterns []string     `mapstructure:"patterns" yaml:"patterns,omitempty" json:"patterns,omitempty"`
}

// LabelRule adds Label when every signal in Requires fired.
type LabelRule struct {
	Label    model.Label    `mapstructure:"label" yaml:"label" json:"label"`
	Requires []model.Signal `mapstructure:"requires" yaml:"requires" json:"requires"`
}

// CategoryRule maps a label to a category. Category rules are evaluated in order
// and the first one whose label is present wins.
type CategoryRule struct {
	Label    model.Label    `mapstructure:"label" yaml:"label" json:"label"`
	Category model.Category `mapstructure:"category" yaml:"category" json:"category"`
}

// Fallback is used when no category rule applies. Label replaces an empty label set.
type Fallback struct {
	Category model.Category `mapstructure:"category" yaml:"category" json:"category"`
	Label    model.Label    `mapstructure:"label" yaml:"label" json:"label"`
}

// Config is the complete rule configuration of a classifier.
type Config struct {
	Fallback   Fallback       `mapstructure:"fallback" yaml:"fallback" json:"fallback"`
	RuleSets   []RuleSet      `mapstructure:"rule_sets" yaml:"rule_sets" json:"rule_sets"`
	Labels     []LabelRule    `mapstructure:"labels" yaml:"labels" json:"labels"`
	Categories []CategoryRule `mapstructure:"categories" yaml:"categories" json:"categories"`
}

// Signals returns the distinct signals fed by the rule sets, in rule set order.
func (c Config) Signals() []model.Signal {
	seen := make(map[model.Signal]bool, len(c.RuleSets))
	var signals []model.Signal
	for _, rs := range c.RuleSets {
		if !seen[rs.Signal] {
			seen[rs.Signal] = true
			signals = append(signals, rs.Signal)
		}
	}
	return signals
}

// CategoryOrder returns every category the configuration can produce, in priority order,
// followed by the fallback.
func (c Config) CategoryOrder() []model.Category {
	order := make([]model.Category, 0, len(c.Categories)+1)
	seen := make(map[model.Category]bool, len(c.Categories)+1)
	for _, rule := range c.Categories {
		if !seen[rule.Category] {
			seen[rule.Category] = true
			order = append(order, rule.Category)
		}
	}
	if !seen[c.Fallback.Category] {
		order = append(order, c.Fallback.Category)
	}
	return order
}

// Validate checks that the configuration is internally consistent and that every
// pattern compiles.
func (c Config) Validate() error {
	if len(c.RuleSets) == 0 {
		return ErrNoRuleSets
	}

	names := make(map[string]bool, len(c.RuleSets))
	signals := make(map[model.Signal]bool, len(c.RuleSets))
	for i, rs := range c.RuleSets {
		if rs.Name == "" {
			return fmt.Errorf("%w: rule set at index %d has no name", ErrInvalidRuleSet, i)
		}
		if names[rs.Name] {
			return fmt.Errorf("%w: duplicate rule set name %q", ErrInvalidRuleSet, rs.Name)
		}
		names[rs.Name] = true

		if rs.Signal == "" {
			return fmt.Errorf("%w: rule set %q has no signal", ErrInvalidRuleSet, rs.Name)
		}
		signals[rs.Signal] = true

		if len(rs.Terms) == 0 && len(rs.Patterns) == 0 {
			return fmt.Errorf("%w: rule set %q has neither terms nor patterns", ErrInvalidRuleSet, rs.Name)
		}
		for _, term := range rs.Terms {
			if term == "" {
				return fmt.Errorf("%w: rule set %q contains an empty term", ErrInvalidRuleSet, rs.Name)
			}
		}
		if _, err := pattern.CompilePatterns(rs.Patterns); err != nil {
			return fmt.Errorf("%w: rule set %q: %w", ErrInvalidRuleSet, rs.Name, err)
		}
	}

	produced := make(map[model.Label]bool, len(c.Labels))
	for i, rule := range c.Labels {
		if rule.Label == "" {
			return fmt.Errorf("%w: label rule at index %d has no label", ErrInvalidLabel, i)
		}
		if len(rule.Requires) == 0 {
			return fmt.Errorf("%w: label %q requires no signals", ErrInvalidLabel, rule.Label)
		}
		for _, sig := range rule.Requires {
			if !signals[sig] {
				return fmt.Errorf("%w: label %q requires unknown signal %q", ErrInvalidLabel, rule.Label, sig)
			}
		}
		produced[rule.Label] = true
	}

	for i, rule := range c.Categories {
		if rule.Category == "" {
			return fmt.Errorf("%w: category rule at index %d has no category", ErrInvalidCategory, i)
		}
		if !produced[rule.Label] {
			return fmt.Errorf("%w: category %q refers to label %q which no rule produces", ErrInvalidCategory, rule.Category, rule.Label)
		}
	}

	if c.Fallback.Category == "" || c.Fallback.Label == "" {
		return fmt.Errorf("%w: fallback needs both a category and a label", ErrInvalidFallback)
	}

	return nil
}
