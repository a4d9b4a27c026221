// Package rules turns free-text diagram critique into quality rule sets.
//
// A RuleSet is an unordered set of normalised rule names. Two Extractor
// strategies produce them: ModelExtractor asks a text model for a fixed JSON
// shape, KeywordExtractor matches fixed phrases. Both are total: any failure
// yields an empty set, which callers treat exactly like "no rules found".
package rules

import (
	"sort"
	"strings"
)

// Rule names understood by the diagram renderers. Any other name is kept in
// the knowledge base but has no rendering effect.
const (
	LeftToRightOrder    = "left_to_right_order"
	NoDuplicateElements = "no_duplicate_elements"
	IncreaseSpacing     = "increase_spacing"
	ImproveAlignment    = "improve_alignment"
	NumberMessages      = "number_messages"
)

// RuleSet is a set of rule names. The nil set is empty and safe to read.
type RuleSet map[string]struct{}

// NewRuleSet builds a set from names, normalising each and dropping blanks.
func NewRuleSet(names ...string) RuleSet {
	set := make(RuleSet, len(names))
	for _, name := range names {
		set.Add(name)
	}
	return set
}

// Normalize lower-cases a rule name and folds spaces and hyphens to underscores.
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.NewReplacer(" ", "_", "-", "_").Replace(name)
	return name
}

// Add inserts a normalised name. Blank names are ignored.
func (s RuleSet) Add(name string) {
	if n := Normalize(name); n != "" {
		s[n] = struct{}{}
	}
}

// Has reports whether the set contains name.
func (s RuleSet) Has(name string) bool {
	_, ok := s[Normalize(name)]
	return ok
}

// Len returns the number of rules.
func (s RuleSet) Len() int {
	return len(s)
}

// Names returns the rule names in sorted order.
func (s RuleSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Union returns a new set holding the rules of s and other.
func (s RuleSet) Union(other RuleSet) RuleSet {
	out := make(RuleSet, len(s)+len(other))
	for name := range s {
		out[name] = struct{}{}
	}
	for name := range other {
		out[name] = struct{}{}
	}
	return out
}

// String renders the set as a comma-separated sorted list.
func (s RuleSet) String() string {
	return strings.Join(s.Names(), ",")
}
