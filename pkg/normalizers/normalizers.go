// Package normalizers provides the string cleanup applied to demographic fields before comparison
package normalizers

import (
	"strings"
	"unicode"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

var nameSuffixes = []string{" SR", " JR", " III"}

var addressTokens = map[string]string{
	"NORTH":     "N",
	"SOUTH":     "S",
	"EAST":      "E",
	"WEST":      "W",
	"ROAD":      "RD",
	"STREET":    "ST",
	"AVENUE":    "AVE",
	"BOULEVARD": "BLVD",
	"LANE":      "LN",
}

var cityAliases = map[string]string{
	"PHILA": "PHILADELPHIA",
}

var stateNames = map[string]string{
	"AL": "ALABAMA",
	"AK": "ALASKA",
	"AZ": "ARIZONA",
	"AR": "ARKANSAS",
	"CA": "CALIFORNIA",
	"CO": "COLORADO",
	"CT": "CONNECTICUT",
	"DE": "DELAWARE",
	"DC": "DISTRICT OF COLUMBIA",
	"FL": "FLORIDA",
	"GA": "GEORGIA",
	"HI": "HAWAII",
	"ID": "IDAHO",
	"IL": "ILLINOIS",
	"IN": "INDIANA",
	"IA": "IOWA",
	"KS": "KANSAS",
	"KY": "KENTUCKY",
	"LA": "LOUISIANA",
	"ME": "MAINE",
	"MD": "MARYLAND",
	"MA": "MASSACHUSETTS",
	"MI": "MICHIGAN",
	"MN": "MINNESOTA",
	"MS": "MISSISSIPPI",
	"MO": "MISSOURI",
	"MT": "MONTANA",
	"NE": "NEBRASKA",
	"NV": "NEVADA",
	"NH": "NEW HAMPSHIRE",
	"NJ": "NEW JERSEY",
	"NM": "NEW MEXICO",
	"NY": "NEW YORK",
	"NC": "NORTH CAROLINA",
	"ND": "NORTH DAKOTA",
	"OH": "OHIO",
	"OK": "OKLAHOMA",
	"OR": "OREGON",
	"PA": "PENNSYLVANIA",
	"RI": "RHODE ISLAND",
	"SC": "SOUTH CAROLINA",
	"SD": "SOUTH DAKOTA",
	"TN": "TENNESSEE",
	"TX": "TEXAS",
	"UT": "UTAH",
	"VT": "VERMONT",
	"VA": "VIRGINIA",
	"WA": "WASHINGTON",
	"WV": "WEST VIRGINIA",
	"WI": "WISCONSIN",
	"WY": "WYOMING",
	"AS": "AMERICAN SAMOA",
	"GU": "GUAM",
	"MP": "NORTHERN MARIANA ISLANDS",
	"PR": "PUERTO RICO",
	"VI": "VIRGIN ISLANDS",
}

// Normalize trims, collapses internal whitespace to single spaces and uppercases
func Normalize(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// NormalizeEmail normalizes an email address for equality checks
func NormalizeEmail(s string) string {
	return Normalize(s)
}

// NormalizeName normalizes a person's name for matching
// - Normalize
// - Remove punctuation
// - Remove trailing SR, JR and III suffixes
func NormalizeName(s string) string {
	s = withoutPunctuation(s)

	for {
		trimmed := false
		for _, suffix := range nameSuffixes {
			if strings.HasSuffix(s, suffix) {
				s = strings.TrimSpace(s[:len(s)-len(suffix)])
				trimmed = true
			}
		}
		if !trimmed {
			return s
		}
	}
}

// NormalizeAddressLine normalizes a street address line and abbreviates
// directional and street-type words token by token
func NormalizeAddressLine(s string) string {
	tokens := strings.Fields(withoutPunctuation(s))
	for i, token := range tokens {
		if abbr, ok := addressTokens[token]; ok {
			tokens[i] = abbr
		}
	}
	return strings.Join(tokens, " ")
}

// NormalizeCity normalizes a city name, expanding known local abbreviations
func NormalizeCity(s string) string {
	s = withoutPunctuation(s)
	if full, ok := cityAliases[s]; ok {
		return full
	}
	return s
}

// NormalizeState normalizes a US state. Two-letter abbreviations are expanded
// to the full state name; anything else is returned as normalized.
func NormalizeState(s string) string {
	s = withoutPunctuation(s)
	if len(s) != 2 {
		return s
	}
	if full, ok := stateNames[s]; ok {
		return full
	}
	return s
}

// RemovePunctuation removes all punctuation characters
func RemovePunctuation(s string) string {
	var result strings.Builder
	for _, r := range s {
		if !unicode.IsPunct(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// DigitsOnly keeps only digit characters
func DigitsOnly(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// withoutPunctuation normalizes, drops punctuation and normalizes again so the
// gaps punctuation leaves behind collapse into single spaces.
func withoutPunctuation(s string) string {
	return Normalize(RemovePunctuation(Normalize(s)))
}
