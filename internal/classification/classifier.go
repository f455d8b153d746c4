// Package classification maps message text to a category and a set of labels using the
// keyword and pattern rules from package rules.
package classification

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/Veraticus/unclutter/internal/model"
	"github.com/Veraticus/unclutter/internal/pattern"
	"github.com/Veraticus/unclutter/internal/rules"
)

// compiledRuleSet pairs a rule set's matcher with the signal it feeds.
type compiledRuleSet struct {
	matcher *pattern.Matcher
	name    string
	signal  model.Signal
}

// Classifier evaluates a rules.Config against message text. It holds no mutable state,
// so a single instance may be shared by any number of goroutines.
type Classifier struct {
	fallback   rules.Fallback
	config     rules.Config
	ruleSets   []compiledRuleSet
	labels     []rules.LabelRule
	categories []rules.CategoryRule
}

// New validates cfg and compiles its rule sets.
func New(cfg rules.Config) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}

	compiled := make([]compiledRuleSet, 0, len(cfg.RuleSets))
	for _, rs := range cfg.RuleSets {
		m, err := pattern.NewMatcher(rs.Terms, rs.Patterns)
		if err != nil {
			return nil, fmt.Errorf("rule set %s: %w", rs.Name, err)
		}
		compiled = append(compiled, compiledRuleSet{
			name:    rs.Name,
			signal:  rs.Signal,
			matcher: m,
		})
	}

	return &Classifier{
		config:     cfg,
		ruleSets:   compiled,
		labels:     slices.Clone(cfg.Labels),
		categories: slices.Clone(cfg.Categories),
		fallback:   cfg.Fallback,
	}, nil
}

// Default returns a classifier over rules.Default. The built-in rules are covered by
// tests, so a failure here is a programming error.
func Default() *Classifier {
	c, err := New(rules.Default())
	if err != nil {
		panic(fmt.Sprintf("built-in rules are invalid: %v", err))
	}
	return c
}

// Rules returns the configuration the classifier was built from.
func (c *Classifier) Rules() rules.Config {
	return c.config
}

// Classify returns the category and labels for one message. It never fails: empty
// fields are treated as empty text and an empty label set becomes the fallback label.
func (c *Classifier) Classify(subject, sender, snippet string) model.Classification {
	text := strings.ToLower(subject + " " + sender + " " + snippet)

	fired := make(map[model.Signal]bool, len(c.ruleSets))
	var signals []model.Signal
	for _, rs := range c.ruleSets {
		if fired[rs.signal] {
			continue
		}
		if rs.matcher.MatchFolded(text) {
			fired[rs.signal] = true
			signals = append(signals, rs.signal)
		}
	}

	var labels []model.Label
	for _, rule := range c.labels {
		if allFired(fired, rule.Requires) && !slices.Contains(labels, rule.Label) {
			labels = append(labels, rule.Label)
		}
	}

	category := c.fallback.Category
	for _, rule := range c.categories {
		if slices.Contains(labels, rule.Label) {
			category = rule.Category
			break
		}
	}

	if len(labels) == 0 {
		labels = []model.Label{c.fallback.Label}
	}

	return model.Classification{
		Category: category,
		Labels:   labels,
		Signals:  signals,
	}
}

// ClassifyText is Classify for a model.MessageText.
func (c *Classifier) ClassifyText(text model.MessageText) model.Classification {
	return c.Classify(text.Subject, text.Sender, text.Snippet)
}

// ClassifyBatch classifies texts in order, stopping early if ctx is cancelled.
func (c *Classifier) ClassifyBatch(ctx context.Context, texts []model.MessageText) ([]model.Classification, error) {
	results := make([]model.Classification, 0, len(texts))

	for _, text := range texts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
			results = append(results, c.ClassifyText(text))
		}
	}

	return results, nil
}

func allFired(fired map[model.Signal]bool, required []model.Signal) bool {
	for _, sig := range required {
		if !fired[sig] {
			return false
		}
	}
	return len(required) > 0
}
