// Package directory defines the external patient directory the matcher searches
// and the deterministic helpers for reading its records.
package directory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
)

const (
	// IdentifierTypeExternal marks the directory's own stable patient identifier
	IdentifierTypeExternal = "EXTERNAL"

	// IdentifierTypeNationalID marks a (usually masked) national identifier
	IdentifierTypeNationalID = "SSN"

	// NationalIDSystem is the US social security number identifier system
	NationalIDSystem = "urn:oid:2.16.840.1.113883.4.1"

	// DateLayout is the canonical hyphenated date form
	DateLayout = "2006-01-02"
)

// ErrInvalidDate is returned for dates that are not full YYYY-MM-DD values,
// including the partial dates ("1980", "1980-05") FHIR permits
var ErrInvalidDate = errors.New("invalid date")

// SearchCriteria are the patient search parameters the directory accepts.
// Empty fields are not sent.
type SearchCriteria struct {
	Phone      string `json:"phone,omitempty"`
	BirthDate  string `json:"birth_date,omitempty"`
	FamilyName string `json:"family_name,omitempty"`
	GivenName  string `json:"given_name,omitempty"`
	Gender     string `json:"gender,omitempty"`
}

// IsEmpty reports whether no criteria are set
func (c SearchCriteria) IsEmpty() bool {
	return c.Phone == "" && c.BirthDate == "" && c.FamilyName == "" && c.GivenName == "" && c.Gender == ""
}

// Client is the directory collaborator. Implementations own retries, timeouts
// and authentication.
type Client interface {
	SearchByCriteria(ctx context.Context, criteria SearchCriteria) ([]models.CandidateRecord, error)
	FetchDemographics(ctx context.Context, externalID string) (*models.Demographics, error)
}

// StatusError is returned when the directory answers with a non-success status
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("directory returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("directory returned %d: %s", e.StatusCode, e.Message)
}

// ExtractExternalID returns the directory's external identifier for a record
func ExtractExternalID(record models.CandidateRecord) (string, bool) {
	for _, identifier := range record.Identifiers {
		if normalizers.Normalize(identifier.Type) != IdentifierTypeExternal {
			continue
		}
		if value := strings.TrimSpace(identifier.Value); value != "" {
			return value, true
		}
	}
	return "", false
}

// ExtractNationalIDLastFour returns the last four digits of the record's
// national identifier. Directories usually mask the rest.
func ExtractNationalIDLastFour(record models.CandidateRecord) (string, bool) {
	for _, identifier := range record.Identifiers {
		if identifier.System != NationalIDSystem && normalizers.Normalize(identifier.Type) != IdentifierTypeNationalID {
			continue
		}
		digits := normalizers.DigitsOnly(identifier.Value)
		if len(digits) >= 4 {
			return digits[len(digits)-4:], true
		}
	}
	return "", false
}

// FormatDateCanonical formats a date in the canonical hyphenated form
func FormatDateCanonical(date time.Time) string {
	return date.Format(DateLayout)
}

// ParseDateCanonical parses a date in the canonical hyphenated form
func ParseDateCanonical(value string) (time.Time, error) {
	date, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: %v", ErrInvalidDate, value, err)
	}
	return date, nil
}

// FormatPhoneCanonical formats a phone number as NNN-NNN-NNNN. A leading US
// country code is dropped; numbers that are not ten digits keep their digits only.
func FormatPhoneCanonical(value string) string {
	digits := normalizers.DigitsOnly(value)
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return digits
	}
	return digits[0:3] + "-" + digits[3:6] + "-" + digits[6:]
}
