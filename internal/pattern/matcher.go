// Package pattern provides the case-insensitive text matching primitives rule sets are
// evaluated with.
package pattern

import (
	"fmt"
	"regexp"
	"strings"
)

// ContainsAny reports whether text contains any of the terms, ignoring case.
// Empty text and empty terms never match.
func ContainsAny(text string, terms []string) bool {
	if text == "" {
		return false
	}
	return containsFolded(strings.ToLower(text), terms)
}

// MatchesAnyPattern reports whether any pattern matches anywhere in text.
// Case-insensitivity comes from the patterns themselves; see CompilePattern.
func MatchesAnyPattern(text string, patterns []*regexp.Regexp) bool {
	if text == "" {
		return false
	}
	for _, re := range patterns {
		if re != nil && re.MatchString(text) {
			return true
		}
	}
	return false
}

// CompilePattern compiles expr as a case-insensitive, unanchored regular expression.
func CompilePattern(expr string) (*regexp.Regexp, error) {
	if !strings.HasPrefix(expr, "(?i)") {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to compile pattern %q: %w", expr, err)
	}
	return re, nil
}

// CompilePatterns compiles every expression with CompilePattern.
func CompilePatterns(exprs []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		re, err := CompilePattern(expr)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// Matcher is a compiled set of terms and patterns. It is immutable and safe for
// concurrent use.
type Matcher struct {
	terms    []string
	patterns []*regexp.Regexp
}

// NewMatcher lower-cases the terms and compiles the patterns once.
func NewMatcher(terms, patterns []string) (*Matcher, error) {
	compiled, err := CompilePatterns(patterns)
	if err != nil {
		return nil, err
	}

	folded := make([]string, 0, len(terms))
	for _, term := range terms {
		if term == "" {
			continue
		}
		folded = append(folded, strings.ToLower(term))
	}

	return &Matcher{
		terms:    folded,
		patterns: compiled,
	}, nil
}

// Match reports whether text contains any term or matches any pattern.
func (m *Matcher) Match(text string) bool {
	return m.MatchFolded(strings.ToLower(text))
}

// MatchFolded is Match for text that has already been lower-cased.
func (m *Matcher) MatchFolded(folded string) bool {
	if folded == "" {
		return false
	}
	return containsFolded(folded, m.terms) || MatchesAnyPattern(folded, m.patterns)
}

func containsFolded(folded string, terms []string) bool {
	for _, term := range terms {
		if term == "" {
			continue
		}
		if strings.Contains(folded, strings.ToLower(term)) {
			return true
		}
	}
	return false
}
