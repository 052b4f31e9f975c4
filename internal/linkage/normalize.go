package linkage

import (
	"regexp"
	"strings"
)

// honorificRe matches honorific and generational tokens, with an optional
// trailing period, as whole words.
var honorificRe = regexp.MustCompile(`(?i)\b(dr|prof|phd|md|jr|sr|iii|ii)\b\.?`)

// orcidPrefixRe matches the identifier-scheme prefix an ORCID may carry.
var orcidPrefixRe = regexp.MustCompile(`(?i)^(https?://)?(www\.)?orcid\.org/`)

// NormalizeEmail lowercases and trims an email. Absent or blank input yields "".
func NormalizeEmail(email *string) string {
	if email == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(*email))
}

// NormalizeORCID strips any leading orcid.org URL prefix and whitespace.
// The trailing check character is uppercased so "x" and "X" compare equal.
func NormalizeORCID(orcid *string) string {
	if orcid == nil {
		return ""
	}
	id := strings.TrimSpace(*orcid)
	id = orcidPrefixRe.ReplaceAllString(id, "")
	return strings.ToUpper(strings.TrimSpace(id))
}

// NormalizeName standardizes a person name for indexing by:
//  1. Removing honorifics (Dr, Prof, PhD, MD, Jr, Sr, II, III)
//  2. Lowercasing
//  3. Collapsing runs of whitespace into single spaces
func NormalizeName(name string) string {
	if name == "" {
		return ""
	}
	name = honorificRe.ReplaceAllString(name, "")
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// normalizeInstitution lowercases an institution for fuzzy comparison.
func normalizeInstitution(inst string) string {
	return strings.ToLower(strings.TrimSpace(inst))
}
