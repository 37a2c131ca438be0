package fhir

import (
	"fmt"
	"strings"
)

// Bundle is a FHIR searchset bundle of Patient resources
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	Type         string        `json:"type,omitempty"`
	Total        int           `json:"total,omitempty"`
	Link         []BundleLink  `json:"link,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
}

// BundleLink is a paging link in a Bundle
type BundleLink struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

// BundleEntry is one search hit. Entries with search mode "outcome" carry an
// OperationOutcome instead of a Patient.
type BundleEntry struct {
	FullURL  string             `json:"fullUrl,omitempty"`
	Resource Patient            `json:"resource"`
	Search   *BundleEntrySearch `json:"search,omitempty"`
}

// BundleEntrySearch describes why an entry is in the bundle
type BundleEntrySearch struct {
	Mode  string  `json:"mode,omitempty"`
	Score float64 `json:"score,omitempty"`
}

// Patient is the subset of the FHIR R4 Patient resource read for matching
type Patient struct {
	ResourceType string         `json:"resourceType"`
	ID           string         `json:"id,omitempty"`
	Identifier   []Identifier   `json:"identifier,omitempty"`
	Name         []HumanName    `json:"name,omitempty"`
	Telecom      []ContactPoint `json:"telecom,omitempty"`
	Gender       string         `json:"gender,omitempty"`
	BirthDate    string         `json:"birthDate,omitempty"`
	Address      []Address      `json:"address,omitempty"`
}

// Identifier is a FHIR Identifier
type Identifier struct {
	Use    string           `json:"use,omitempty"`
	Type   *CodeableConcept `json:"type,omitempty"`
	System string           `json:"system,omitempty"`
	Value  string           `json:"value,omitempty"`
}

// CodeableConcept is a FHIR CodeableConcept
type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// Coding is a FHIR Coding
type Coding struct {
	System string `json:"system,omitempty"`
	Code   string `json:"code,omitempty"`
}

// Label returns the concept text, falling back to the first code
func (c *CodeableConcept) Label() string {
	if c == nil {
		return ""
	}
	if c.Text != "" {
		return c.Text
	}
	for _, coding := range c.Coding {
		if coding.Code != "" {
			return coding.Code
		}
	}
	return ""
}

// HumanName is a FHIR HumanName. Family is a single string in R4.
type HumanName struct {
	Use    string   `json:"use,omitempty"`
	Text   string   `json:"text,omitempty"`
	Family string   `json:"family,omitempty"`
	Given  []string `json:"given,omitempty"`
}

// ContactPoint is a FHIR ContactPoint
type ContactPoint struct {
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
	Use    string `json:"use,omitempty"`
}

// Address is a FHIR Address
type Address struct {
	Use        string   `json:"use,omitempty"`
	Line       []string `json:"line,omitempty"`
	City       string   `json:"city,omitempty"`
	State      string   `json:"state,omitempty"`
	PostalCode string   `json:"postalCode,omitempty"`
}

// OperationOutcome is a FHIR OperationOutcome
type OperationOutcome struct {
	ResourceType string                  `json:"resourceType"`
	Issue        []OperationOutcomeIssue `json:"issue"`
}

// OperationOutcomeIssue is one issue in an OperationOutcome
type OperationOutcomeIssue struct {
	Severity    string `json:"severity"`
	Code        string `json:"code"`
	Diagnostics string `json:"diagnostics,omitempty"`
}

// Message summarizes the outcome's issues
func (o *OperationOutcome) Message() string {
	messages := make([]string, 0, len(o.Issue))
	for _, issue := range o.Issue {
		if issue.Diagnostics != "" {
			messages = append(messages, fmt.Sprintf("%s: %s", issue.Code, issue.Diagnostics))
		} else if issue.Code != "" {
			messages = append(messages, issue.Code)
		}
	}
	return strings.Join(messages, "; ")
}

// demographicsResponse is the body of the Patient $demographics operation
type demographicsResponse struct {
	NationalIdentifier string `json:"nationalIdentifier"`
}
