package rules

import (
	"fmt"

	"github.com/Veraticus/unclutter/internal/model"
)

// Preset names accepted by Preset.
const (
	PresetDefault  = "default"
	PresetExtended = "extended"
)

// Default returns the built-in academic/action/promotion rules.
//
// "exam" is a pattern rather than a term so that example.com and "examine" do not read as
// academic. Only a following letter disqualifies it: "reexam", "final_exam.pdf" and "exam2"
// still match.
func Default() Config {
	return Config{
		RuleSets: []RuleSet{
			{
				Name:   "academic",
				Signal: model.SignalAcademic,
				Terms: []string{
					"avenue to learn", "mosaic", "macid", "mcmaster", "msu",
					"registrar", "syllabus", "midterm",
				},
				Patterns: []string{
					`exam(s|ination|inations)?([^a-z]|$)`,
				},
			},
			{
				Name:   "action",
				Signal: model.SignalAction,
				Terms:  []string{"due", "deadline", "submission", "submit by"},
			},
			{
				Name:   "date",
				Signal: model.SignalAction,
				Patterns: []string{
					`\b\d{1,2}/\d{1,2}`,
					`\b\d{1,2}-\d{1,2}`,
					`\b(by|due|before)\s+[\w\d\s,.-]+`,
					`\b(january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2}`,
				},
			},
			{
				Name:   "promotion",
				Signal: model.SignalPromotion,
				Terms: []string{
					"sale", "discount", "offer", "limited time", "promo",
					"clearance", "deal", "save", "% off",
				},
			},
		},
		Labels: []LabelRule{
			{Label: model.LabelUniversity, Requires: []model.Signal{model.SignalAcademic}},
			{Label: model.LabelActionItems, Requires: []model.Signal{model.SignalAcademic, model.SignalAction}},
			{Label: model.LabelPromotions, Requires: []model.Signal{model.SignalPromotion}},
		},
		Categories: []CategoryRule{
			{Label: model.LabelActionItems, Category: model.CategoryAction},
			{Label: model.LabelUniversity, Category: model.CategoryUniversity},
			{Label: model.LabelPromotions, Category: model.CategoryPromotions},
		},
		Fallback: Fallback{
			Category: model.CategoryUnsorted,
			Label:    model.LabelUnsorted,
		},
	}
}

// Extended returns Default plus social and updates rules. Their categories rank below
// promotions, so every message Default files somewhere other than unsorted keeps its category.
func Extended() Config {
	cfg := Default()

	cfg.RuleSets = append(cfg.RuleSets,
		RuleSet{
			Name:   "social",
			Signal: model.SignalSocial,
			Terms: []string{
				"facebook", "twitter", "instagram", "linkedin", "reddit",
				"commented", "liked your", "mentioned you", "tagged you",
				"friend request", "new follower",
				"facebookmail.com", "linkedin.com", "twitter.com", "reddit.com",
			},
		},
		RuleSet{
			Name:   "updates",
			Signal: model.SignalUpdates,
			Terms: []string{
				"receipt", "confirmation", "your order", "shipped", "delivered",
				"tracking", "invoice", "payment", "statement", "your account",
				"security alert", "verify", "password", "signed in",
			},
		},
	)
	cfg.Labels = append(cfg.Labels,
		LabelRule{Label: model.LabelSocial, Requires: []model.Signal{model.SignalSocial}},
		LabelRule{Label: model.LabelUpdates, Requires: []model.Signal{model.SignalUpdates}},
	)
	cfg.Categories = append(cfg.Categories,
		CategoryRule{Label: model.LabelSocial, Category: model.CategorySocial},
		CategoryRule{Label: model.LabelUpdates, Category: model.CategoryUpdates},
	)

	return cfg
}

// Preset returns the named built-in configuration.
func Preset(name string) (Config, error) {
	switch name {
	case "", PresetDefault:
		return Default(), nil
	case PresetExtended:
		return Extended(), nil
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
}
