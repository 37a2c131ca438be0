package matching

import (
	"context"
	"fmt"
	"strings"

	"github.com/Ramsey-B/fern/pkg/directory"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
	"github.com/Ramsey-B/fern/pkg/similarity"
)

// Evaluator compares one demographic category of a request against a candidate
// and returns the rules it fired, at most one per category.
type Evaluator func(ctx context.Context, request *models.MatchRequest, candidate *models.CandidateRecord) ([]models.MatchRule, error)

// addressLine1Tolerance is the edit distance below which street lines are similar
const addressLine1Tolerance = 6

func fired(rule models.MatchRule) []models.MatchRule {
	return []models.MatchRule{rule}
}

// EvaluateName matches first, last and middle initial against every name the
// candidate carries.
func EvaluateName(_ context.Context, request *models.MatchRequest, candidate *models.CandidateRecord) ([]models.MatchRule, error) {
	firstName := normalizers.NormalizeName(request.FirstName)
	lastName := normalizers.NormalizeName(request.LastName)
	if firstName == "" || lastName == "" {
		return nil, nil
	}

	given := make(map[string]struct{})
	family := make(map[string]struct{})
	for _, name := range candidate.Names {
		addNameTokens(given, name.Given)
		addNameTokens(family, name.Family)
	}

	_, firstMatched := given[firstName]
	_, lastMatched := family[lastName]
	if !firstMatched || !lastMatched {
		return nil, nil
	}

	middleInitial := normalizers.NormalizeName(request.MiddleInitial)
	if middleInitial == "" {
		return fired(models.MatchRuleExactName), nil
	}
	if _, ok := given[middleInitial]; ok {
		return fired(models.MatchRuleExactName), nil
	}
	return fired(models.MatchRuleExactNameWithoutMiddleInitial), nil
}

// addNameTokens adds each normalized token, its space-separated parts, and the
// concatenation of all multi-character parts. The concatenation catches a
// compound name split across tokens, e.g. XIAO ZHONG for XIAOZHONG.
func addNameTokens(set map[string]struct{}, tokens []string) {
	var compound strings.Builder
	for _, token := range tokens {
		normalized := normalizers.NormalizeName(token)
		if normalized == "" {
			continue
		}
		set[normalized] = struct{}{}

		for _, part := range strings.Fields(normalized) {
			set[part] = struct{}{}
			if len([]rune(part)) > 1 {
				compound.WriteString(part)
			}
		}
	}
	if compound.Len() > 0 {
		set[compound.String()] = struct{}{}
	}
}

// EvaluateSex fires on equal normalized gender
func EvaluateSex(_ context.Context, request *models.MatchRequest, candidate *models.CandidateRecord) ([]models.MatchRule, error) {
	gender := normalizers.Normalize(request.Gender)
	if gender == "" {
		return nil, nil
	}
	if gender == normalizers.Normalize(candidate.Gender) {
		return fired(models.MatchRuleExactSex), nil
	}
	return nil, nil
}

// EvaluateBirthDate compares birth dates in canonical form. A one-character
// difference or a shared year and month both count as a near miss.
func EvaluateBirthDate(_ context.Context, request *models.MatchRequest, candidate *models.CandidateRecord) ([]models.MatchRule, error) {
	if strings.TrimSpace(request.BirthDate) == "" || strings.TrimSpace(candidate.BirthDate) == "" {
		return nil, nil
	}

	requestDate, err := directory.ParseDateCanonical(request.BirthDate)
	if err != nil {
		return nil, err
	}
	candidateDate, err := directory.ParseDateCanonical(candidate.BirthDate)
	if err != nil {
		return nil, fmt.Errorf("candidate %s birth date: %w", candidate.ResourceID, err)
	}

	requestValue := directory.FormatDateCanonical(requestDate)
	candidateValue := directory.FormatDateCanonical(candidateDate)
	if requestValue == candidateValue {
		return fired(models.MatchRuleExactDOB), nil
	}

	if similarity.WithinOne(requestValue, candidateValue) {
		return fired(models.MatchRuleDOBOneDigitDifference), nil
	}
	if requestDate.Year() == candidateDate.Year() && requestDate.Month() == candidateDate.Month() {
		return fired(models.MatchRuleDOBOneDigitDifference), nil
	}
	return nil, nil
}

// EvaluateAddress ORs each field across all candidate addresses and fires when
// all four fields agree exactly, or failing that, approximately.
func EvaluateAddress(_ context.Context, request *models.MatchRequest, candidate *models.CandidateRecord) ([]models.MatchRule, error) {
	if request.Address.IsEmpty() || len(candidate.Addresses) == 0 {
		return nil, nil
	}

	line1 := newFieldMatch(normalizers.NormalizeAddressLine(request.Address.Line1), addressLine1Tolerance)
	city := newFieldMatch(normalizers.NormalizeCity(request.Address.City), 2)
	state := newFieldMatch(normalizers.NormalizeState(request.Address.State), 2)
	postalCode := newFieldMatch(normalizers.Normalize(request.Address.PostalCode), 2)

	for _, address := range candidate.Addresses {
		line1.compare(normalizers.NormalizeAddressLine(address.Line1()))
		city.compare(normalizers.NormalizeCity(address.City))
		state.compare(normalizers.NormalizeState(address.State))
		postalCode.compare(normalizers.Normalize(address.PostalCode))
	}

	fields := []*fieldMatch{line1, city, state, postalCode}
	if allFields(fields, func(f *fieldMatch) bool { return f.exact }) {
		return fired(models.MatchRuleExactAddress), nil
	}
	if allFields(fields, func(f *fieldMatch) bool { return f.exact || f.similar }) {
		return fired(models.MatchRuleSimilarAddress), nil
	}
	return nil, nil
}

// fieldMatch tracks whether any candidate value equals or nearly equals a
// request value. Values are similar when their distance is below tolerance.
type fieldMatch struct {
	value     string
	tolerance int
	exact     bool
	similar   bool
}

func newFieldMatch(value string, tolerance int) *fieldMatch {
	return &fieldMatch{value: value, tolerance: tolerance}
}

func (f *fieldMatch) compare(other string) {
	if f.value == "" || other == "" {
		return
	}
	if f.value == other {
		f.exact = true
		return
	}
	if similarity.Levenshtein(f.value, other) < f.tolerance {
		f.similar = true
	}
}

func allFields(fields []*fieldMatch, pred func(*fieldMatch) bool) bool {
	for _, f := range fields {
		if !pred(f) {
			return false
		}
	}
	return true
}

// EvaluatePhone compares canonically formatted phone numbers. An exact hit on
// any candidate phone wins over a one-digit difference on another.
func EvaluatePhone(_ context.Context, request *models.MatchRequest, candidate *models.CandidateRecord) ([]models.MatchRule, error) {
	phone := directory.FormatPhoneCanonical(request.Phone)
	if phone == "" {
		return nil, nil
	}

	similar := false
	for _, value := range candidate.TelecomValues(models.TelecomSystemPhone) {
		candidatePhone := directory.FormatPhoneCanonical(value)
		if candidatePhone == "" {
			continue
		}
		if candidatePhone == phone {
			return fired(models.MatchRuleExactPhoneNumber), nil
		}
		if similarity.WithinOne(phone, candidatePhone) {
			similar = true
		}
	}

	if similar {
		return fired(models.MatchRuleSimilarPhoneNumber), nil
	}
	return nil, nil
}

// EvaluateEmail fires on equal normalized email addresses
func EvaluateEmail(_ context.Context, request *models.MatchRequest, candidate *models.CandidateRecord) ([]models.MatchRule, error) {
	email := normalizers.NormalizeEmail(request.Email)
	if email == "" {
		return nil, nil
	}

	for _, value := range candidate.TelecomValues(models.TelecomSystemEmail) {
		if normalizers.NormalizeEmail(value) == email {
			return fired(models.MatchRuleExactEmail), nil
		}
	}
	return nil, nil
}
