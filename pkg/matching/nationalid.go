package matching

import (
	"context"
	"fmt"

	"github.com/Ramsey-B/fern/pkg/directory"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
	"github.com/Ramsey-B/fern/pkg/similarity"
)

// Accepted national identifier forms: the last four digits, or the full
// identifier with separators (123-45-6789).
const (
	nationalIDLastFourLength = 4
	nationalIDFullLength     = 11
)

// NationalIDLookup fetches a candidate's full national identifier by external id
type NationalIDLookup func(ctx context.Context, externalID string) (string, error)

// DirectoryNationalIDLookup resolves national identifiers from directory demographics
func DirectoryNationalIDLookup(client directory.Client) NationalIDLookup {
	return func(ctx context.Context, externalID string) (string, error) {
		demographics, err := client.FetchDemographics(ctx, externalID)
		if err != nil {
			return "", err
		}
		if demographics == nil {
			return "", nil
		}
		return demographics.NationalIdentifier, nil
	}
}

// NewNationalIDEvaluator compares national identifiers. A last-four request is
// compared locally. A full request looks up the candidate's full identifier,
// but only when the last four digits agree or are one edit apart.
func NewNationalIDEvaluator(lookup NationalIDLookup) Evaluator {
	return func(ctx context.Context, request *models.MatchRequest, candidate *models.CandidateRecord) ([]models.MatchRule, error) {
		nationalID := normalizers.Normalize(request.NationalIdentifier)

		switch len(nationalID) {
		case nationalIDLastFourLength:
			lastFour, ok := directory.ExtractNationalIDLastFour(*candidate)
			if ok && lastFour == nationalID {
				return fired(models.MatchRuleNationalIDLast4), nil
			}
			return nil, nil
		case nationalIDFullLength:
			return evaluateFullNationalID(ctx, lookup, nationalID, candidate)
		default:
			return nil, nil
		}
	}
}

func evaluateFullNationalID(ctx context.Context, lookup NationalIDLookup, nationalID string, candidate *models.CandidateRecord) ([]models.MatchRule, error) {
	candidateLastFour, ok := directory.ExtractNationalIDLastFour(*candidate)
	if !ok {
		return nil, nil
	}

	lastFour := nationalID[len(nationalID)-nationalIDLastFourLength:]
	lastFourMatched := lastFour == candidateLastFour
	if !lastFourMatched && !similarity.WithinOne(lastFour, candidateLastFour) {
		return nil, nil
	}

	externalID, ok := directory.ExtractExternalID(*candidate)
	if !ok || lookup == nil {
		return nil, nil
	}

	candidateNationalID, err := lookup(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up national identifier for %s: %w", externalID, err)
	}

	requestDigits := normalizers.DigitsOnly(nationalID)
	candidateDigits := normalizers.DigitsOnly(candidateNationalID)

	switch {
	case candidateDigits != "" && requestDigits == candidateDigits:
		return fired(models.MatchRuleExactNationalID), nil
	case lastFourMatched:
		return fired(models.MatchRuleNationalIDLast4), nil
	case candidateDigits != "" && similarity.WithinOne(requestDigits, candidateDigits):
		return fired(models.MatchRuleNationalIDOneDigitDifference), nil
	default:
		return nil, nil
	}
}
