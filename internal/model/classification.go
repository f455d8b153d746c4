// Package model defines the core domain models used throughout the application.
package model

import "slices"

// Classification is the outcome of running the rule engine over one message.
type Classification struct {
	Category Category `json:"category"`
	Labels   []Label  `json:"labels"`
	// Signals lists the signals that fired, in rule order. Diagnostic only.
	Signals []Signal `json:"signals,omitempty"`
}

// HasLabel reports whether the classification carries the given label.
func (c Classification) HasLabel(label Label) bool {
	return slices.Contains(c.Labels, label)
}

// HasSignal reports whether the given signal fired.
func (c Classification) HasSignal(signal Signal) bool {
	return slices.Contains(c.Signals, signal)
}

// LabelStrings returns the labels as plain strings, for wire formats.
func (c Classification) LabelStrings() []string {
	out := make([]string, len(c.Labels))
	for i, l := range c.Labels {
		out[i] = string(l)
	}
	return out
}
