package matching

import (
	"sort"

	"github.com/Ramsey-B/fern/pkg/models"
)

// RuleSet accumulates the rules a single candidate fired. Each rule counts once.
type RuleSet struct {
	rules map[models.MatchRule]struct{}
}

// NewRuleSet creates an empty rule set
func NewRuleSet() *RuleSet {
	return &RuleSet{rules: make(map[models.MatchRule]struct{})}
}

// Add adds rules to the set
func (s *RuleSet) Add(rules ...models.MatchRule) {
	for _, rule := range rules {
		s.rules[rule] = struct{}{}
	}
}

// Len returns the number of distinct rules
func (s *RuleSet) Len() int {
	return len(s.rules)
}

// Contains reports whether rule has fired
func (s *RuleSet) Contains(rule models.MatchRule) bool {
	_, ok := s.rules[rule]
	return ok
}

// Rules returns the fired rules in declaration order
func (s *RuleSet) Rules() []models.MatchRule {
	rules := make([]models.MatchRule, 0, len(s.rules))
	for rule := range s.rules {
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool {
		return rules[i].Order() < rules[j].Order()
	})
	return rules
}

// Score sums the weights of the fired rules
func (s *RuleSet) Score() int {
	score := 0
	for rule := range s.rules {
		score += rule.Weight()
	}
	return score
}

// IsMatch reports whether a score reaches the confidence threshold
func IsMatch(score int) bool {
	return score >= models.LowThreshold
}

// IsHighConfidence reports whether a score reaches the informational high threshold
func IsHighConfidence(score int) bool {
	return score >= models.HighThreshold
}
