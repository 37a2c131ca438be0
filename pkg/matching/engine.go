// Package matching reconciles a local patient identity against directory
// candidates with a fixed, weighted rule set.
package matching

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectolinq"

	"github.com/Ramsey-B/fern/pkg/directory"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Engine searches the directory for candidates and scores them against a request.
// It holds no per-call state and is safe for concurrent use.
type Engine struct {
	logger     ectologger.Logger
	directory  directory.Client
	evaluators []Evaluator
	config     Config
}

// Config contains configuration for the match engine
type Config struct {
	// PhoneSearchCapacity bounds the phone-only search to roughly two directory pages
	PhoneSearchCapacity int
}

// DefaultConfig returns default engine configuration
func DefaultConfig() Config {
	return Config{
		PhoneSearchCapacity: 200,
	}
}

// NewEngine creates a new match engine
func NewEngine(logger ectologger.Logger, client directory.Client, config Config) *Engine {
	if config.PhoneSearchCapacity <= 0 {
		config.PhoneSearchCapacity = DefaultConfig().PhoneSearchCapacity
	}

	return &Engine{
		logger:    logger,
		directory: client,
		evaluators: []Evaluator{
			EvaluateName,
			EvaluateSex,
			EvaluateBirthDate,
			NewNationalIDEvaluator(DirectoryNationalIDLookup(client)),
			EvaluateAddress,
			EvaluatePhone,
			EvaluateEmail,
		},
		config: config,
	}
}

// candidate is a directory record paired with its resolved external id
type candidate struct {
	externalID string
	record     models.CandidateRecord
}

// Match returns the directory candidates that fired at least one rule, ordered
// by score descending. Equal scores keep discovery order.
func (e *Engine) Match(ctx context.Context, request *models.MatchRequest) ([]models.MatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Engine.Match")
	defer span.End()

	start := time.Now()
	log := e.logger.WithContext(ctx)

	candidates, err := e.gatherCandidates(ctx, request)
	if err != nil {
		metrics.RecordMatch("error", 0, time.Since(start).Seconds())
		return nil, err
	}

	results := make([]models.MatchResult, 0)
	for _, c := range candidates {
		result, ok, err := e.evaluate(ctx, request, c)
		if err != nil {
			metrics.RecordMatch("error", len(candidates), time.Since(start).Seconds())
			return nil, err
		}
		if ok {
			results = append(results, result)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	for _, result := range results {
		metrics.RecordMatchResult(confidenceTier(result), ectolinq.Map(result.Rules, func(rule models.MatchRule) string {
			return string(rule)
		}))
	}
	metrics.RecordMatch("success", len(candidates), time.Since(start).Seconds())

	log.WithFields(map[string]any{
		"candidate_count": len(candidates),
		"result_count":    len(results),
		"match_count":     len(ectolinq.Filter(results, func(r models.MatchResult) bool { return r.IsMatch })),
	}).Debug("Matched request against directory candidates")

	return results, nil
}

// gatherCandidates runs the phone-only search and then the full-criteria search,
// merging by external id with the first occurrence kept. Searching on every
// field at once can push the right patient past the pages the directory will
// return, so the phone search runs first and is capped at its capacity.
func (e *Engine) gatherCandidates(ctx context.Context, request *models.MatchRequest) ([]candidate, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Engine.gatherCandidates")
	defer span.End()

	log := e.logger.WithContext(ctx)

	seen := make(map[string]struct{})
	candidates := make([]candidate, 0)
	add := func(records []models.CandidateRecord, limit int) int {
		added := 0
		for _, record := range records {
			if limit > 0 && added >= limit {
				break
			}
			externalID, ok := directory.ExtractExternalID(record)
			if !ok {
				continue
			}
			if _, exists := seen[externalID]; exists {
				continue
			}
			seen[externalID] = struct{}{}
			candidates = append(candidates, candidate{externalID: externalID, record: record})
			added++
		}
		return added
	}

	phone := directory.FormatPhoneCanonical(request.Phone)
	if phone != "" {
		records, err := e.directory.SearchByCriteria(ctx, directory.SearchCriteria{Phone: phone})
		if err != nil {
			return nil, fmt.Errorf("failed to search directory by phone: %w", err)
		}
		added := add(records, e.config.PhoneSearchCapacity)
		log.WithFields(map[string]any{"returned": len(records), "added": added}).Debug("Phone search complete")
	}

	criteria := directory.SearchCriteria{
		BirthDate:  strings.TrimSpace(request.BirthDate),
		FamilyName: strings.TrimSpace(request.LastName),
		Phone:      phone,
		GivenName:  strings.TrimSpace(request.FirstName),
		Gender:     strings.TrimSpace(request.Gender),
	}
	records, err := e.directory.SearchByCriteria(ctx, criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search directory by criteria: %w", err)
	}
	added := add(records, 0)
	log.WithFields(map[string]any{"returned": len(records), "added": added}).Debug("Criteria search complete")

	return candidates, nil
}

// evaluate runs every evaluator against one candidate with a fresh rule set
func (e *Engine) evaluate(ctx context.Context, request *models.MatchRequest, c candidate) (models.MatchResult, bool, error) {
	ruleSet := NewRuleSet()
	for _, evaluator := range e.evaluators {
		rules, err := evaluator(ctx, request, &c.record)
		if err != nil {
			return models.MatchResult{}, false, fmt.Errorf("failed to evaluate candidate %s: %w", c.externalID, err)
		}
		ruleSet.Add(rules...)
	}

	if ruleSet.Len() == 0 {
		return models.MatchResult{}, false, nil
	}

	score := ruleSet.Score()
	if score <= 0 {
		return models.MatchResult{}, false, nil
	}

	return models.MatchResult{
		ExternalID:       c.externalID,
		Candidate:        c.record,
		Rules:            ruleSet.Rules(),
		Score:            score,
		IsMatch:          IsMatch(score),
		IsHighConfidence: IsHighConfidence(score),
	}, true, nil
}

func confidenceTier(result models.MatchResult) string {
	switch {
	case result.IsHighConfidence:
		return metrics.ConfidenceHigh
	case result.IsMatch:
		return metrics.ConfidenceMatch
	default:
		return metrics.ConfidenceCandidate
	}
}
