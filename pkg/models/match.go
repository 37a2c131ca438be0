package models

import "strings"

// PostalAddress is the address of a match request
type PostalAddress struct {
	Line1      string `json:"line1,omitempty" validate:"omitempty,max=200"`
	Line2      string `json:"line2,omitempty" validate:"omitempty,max=200"`
	City       string `json:"city,omitempty" validate:"omitempty,max=100"`
	State      string `json:"state,omitempty" validate:"omitempty,max=50"`
	PostalCode string `json:"postal_code,omitempty" validate:"omitempty,max=10"`
}

// IsEmpty reports whether no address field is set
func (a PostalAddress) IsEmpty() bool {
	return strings.TrimSpace(a.Line1) == "" &&
		strings.TrimSpace(a.Line2) == "" &&
		strings.TrimSpace(a.City) == "" &&
		strings.TrimSpace(a.State) == "" &&
		strings.TrimSpace(a.PostalCode) == ""
}

// MatchRequest is the local identity to reconcile against the directory.
// Every field is optional; a missing field skips the rule that reads it.
type MatchRequest struct {
	FirstName          string        `json:"first_name,omitempty" validate:"omitempty,max=100"`
	LastName           string        `json:"last_name,omitempty" validate:"omitempty,max=100"`
	MiddleInitial      string        `json:"middle_initial,omitempty" validate:"omitempty,max=1"`
	BirthDate          string        `json:"birth_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Address            PostalAddress `json:"address"`
	Email              string        `json:"email,omitempty" validate:"omitempty,email"`
	Phone              string        `json:"phone,omitempty" validate:"omitempty,max=32"`
	NationalIdentifier string        `json:"national_identifier,omitempty" validate:"omitempty,national_id"`
	Gender             string        `json:"gender,omitempty" validate:"omitempty,max=32"`

	// RoutingHint is carried for the caller's workflow and is not a matching signal
	RoutingHint string `json:"routing_hint,omitempty"`
}

// MatchResult pairs a candidate with the rules it fired and its score
type MatchResult struct {
	ExternalID       string          `json:"external_id"`
	Candidate        CandidateRecord `json:"candidate"`
	Rules            []MatchRule     `json:"rules"`
	Score            int             `json:"score"`
	IsMatch          bool            `json:"is_match"`
	IsHighConfidence bool            `json:"is_high_confidence"`
}
