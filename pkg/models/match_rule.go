package models

// MatchRule is a named, fixed-weight signal that fires when a request and a
// candidate agree on one demographic dimension
type MatchRule string

const (
	MatchRuleExactName                     MatchRule = "EXACT_NAME"
	MatchRuleExactNameWithoutMiddleInitial MatchRule = "EXACT_NAME_WITHOUT_MIDDLE_INITIAL"
	MatchRuleExactSex                      MatchRule = "EXACT_SEX"
	MatchRuleExactDOB                      MatchRule = "EXACT_DOB"
	MatchRuleDOBOneDigitDifference         MatchRule = "DOB_ONE_DIGIT_DIFFERENCE"
	MatchRuleExactNationalID               MatchRule = "EXACT_NATIONAL_ID"
	MatchRuleNationalIDLast4               MatchRule = "NATIONAL_ID_LAST_4"
	MatchRuleNationalIDOneDigitDifference  MatchRule = "NATIONAL_ID_ONE_DIGIT_DIFFERENCE"
	MatchRuleExactAddress                  MatchRule = "EXACT_ADDRESS"
	MatchRuleSimilarAddress                MatchRule = "SIMILAR_ADDRESS"
	MatchRuleExactPhoneNumber              MatchRule = "EXACT_PHONE_NUMBER"
	MatchRuleSimilarPhoneNumber            MatchRule = "SIMILAR_PHONE_NUMBER"
	MatchRuleExactEmail                    MatchRule = "EXACT_EMAIL"
)

// Confidence thresholds. A result is a match at LowThreshold; HighThreshold is
// reported alongside for callers that want a stricter tier and never filters.
const (
	LowThreshold  = 22
	HighThreshold = 40
)

// AllMatchRules lists every rule in declaration order
var AllMatchRules = []MatchRule{
	MatchRuleExactName,
	MatchRuleExactNameWithoutMiddleInitial,
	MatchRuleExactSex,
	MatchRuleExactDOB,
	MatchRuleDOBOneDigitDifference,
	MatchRuleExactNationalID,
	MatchRuleNationalIDLast4,
	MatchRuleNationalIDOneDigitDifference,
	MatchRuleExactAddress,
	MatchRuleSimilarAddress,
	MatchRuleExactPhoneNumber,
	MatchRuleSimilarPhoneNumber,
	MatchRuleExactEmail,
}

// Weight returns the rule's score contribution. Unknown rules weigh nothing.
func (r MatchRule) Weight() int {
	switch r {
	case MatchRuleExactName:
		return 10
	case MatchRuleExactNameWithoutMiddleInitial:
		return 9
	case MatchRuleExactSex:
		return 1
	case MatchRuleExactDOB:
		return 7
	case MatchRuleDOBOneDigitDifference:
		return 4
	case MatchRuleExactNationalID:
		return 5
	case MatchRuleNationalIDLast4:
		return 4
	case MatchRuleNationalIDOneDigitDifference:
		return 3
	case MatchRuleExactAddress:
		return 3
	case MatchRuleSimilarAddress:
		return 2
	case MatchRuleExactPhoneNumber:
		return 2
	case MatchRuleSimilarPhoneNumber:
		return 1
	case MatchRuleExactEmail:
		return 2
	default:
		return 0
	}
}

// Order returns the rule's position in AllMatchRules, or -1 if unknown
func (r MatchRule) Order() int {
	for i, rule := range AllMatchRules {
		if rule == r {
			return i
		}
	}
	return -1
}

// IsValid reports whether r is one of the declared rules
func (r MatchRule) IsValid() bool {
	return r.Order() >= 0
}
