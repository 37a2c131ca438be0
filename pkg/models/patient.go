package models

// Telecom systems as reported by the directory
const (
	TelecomSystemPhone = "phone"
	TelecomSystemEmail = "email"
)

// HumanName is one name representation of a directory patient. Directories
// may return several (usual, official, maiden) for the same person.
type HumanName struct {
	Use    string   `json:"use,omitempty"`
	Given  []string `json:"given,omitempty"`
	Family []string `json:"family,omitempty"`
}

// Address is a directory address
type Address struct {
	Use        string   `json:"use,omitempty"`
	Lines      []string `json:"lines,omitempty"`
	City       string   `json:"city,omitempty"`
	State      string   `json:"state,omitempty"`
	PostalCode string   `json:"postal_code,omitempty"`
}

// Line1 returns the first street line, or an empty string
func (a Address) Line1() string {
	if len(a.Lines) == 0 {
		return ""
	}
	return a.Lines[0]
}

// Telecom is a phone number or email address tagged by system
type Telecom struct {
	System string `json:"system"`
	Use    string `json:"use,omitempty"`
	Value  string `json:"value"`
}

// Identifier is an identifier the directory holds for a patient
type Identifier struct {
	System string `json:"system,omitempty"`
	Type   string `json:"type,omitempty"`
	Value  string `json:"value"`
}

// CandidateRecord is one patient returned by a directory search
type CandidateRecord struct {
	ResourceID  string       `json:"resource_id,omitempty"`
	Names       []HumanName  `json:"names,omitempty"`
	Addresses   []Address    `json:"addresses,omitempty"`
	Telecoms    []Telecom    `json:"telecoms,omitempty"`
	BirthDate   string       `json:"birth_date,omitempty"`
	Gender      string       `json:"gender,omitempty"`
	Identifiers []Identifier `json:"identifiers,omitempty"`
}

// TelecomValues returns the values of all telecom entries of the given system
func (c CandidateRecord) TelecomValues(system string) []string {
	values := make([]string, 0, len(c.Telecoms))
	for _, telecom := range c.Telecoms {
		if telecom.System == system && telecom.Value != "" {
			values = append(values, telecom.Value)
		}
	}
	return values
}

// Demographics is the extended demographic record fetched per patient
type Demographics struct {
	ExternalID         string `json:"external_id"`
	NationalIdentifier string `json:"national_identifier,omitempty"`
}
