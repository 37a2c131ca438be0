package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchRule_EveryRuleHasPositiveWeight(t *testing.T) {
	for _, rule := range AllMatchRules {
		assert.Greater(t, rule.Weight(), 0, "rule %s", rule)
		assert.True(t, rule.IsValid())
	}
}

func TestMatchRule_Weights(t *testing.T) {
	expected := map[MatchRule]int{
		MatchRuleExactName:                     10,
		MatchRuleExactNameWithoutMiddleInitial: 9,
		MatchRuleExactSex:                      1,
		MatchRuleExactDOB:                      7,
		MatchRuleDOBOneDigitDifference:         4,
		MatchRuleExactNationalID:               5,
		MatchRuleNationalIDLast4:               4,
		MatchRuleNationalIDOneDigitDifference:  3,
		MatchRuleExactAddress:                  3,
		MatchRuleSimilarAddress:                2,
		MatchRuleExactPhoneNumber:              2,
		MatchRuleSimilarPhoneNumber:            1,
		MatchRuleExactEmail:                    2,
	}

	assert.Len(t, AllMatchRules, len(expected))
	for rule, weight := range expected {
		assert.Equal(t, weight, rule.Weight(), "rule %s", rule)
	}
}

func TestMatchRule_Unknown(t *testing.T) {
	unknown := MatchRule("FAVORITE_COLOR")
	assert.Equal(t, 0, unknown.Weight())
	assert.Equal(t, -1, unknown.Order())
	assert.False(t, unknown.IsValid())
}

func TestMatchRule_Order(t *testing.T) {
	assert.Equal(t, 0, MatchRuleExactName.Order())
	assert.Equal(t, len(AllMatchRules)-1, MatchRuleExactEmail.Order())
}
