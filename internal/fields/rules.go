// Package fields extracts placeholder values from assembled OCR text of
// Vietnamese land-title documents (Giấy chứng nhận quyền sử dụng đất).
//
// Field codes are a fixed external vocabulary naming slots in the target
// document template; this package only knows how to locate their values.
package fields

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Field codes filled by the default rule table.
const (
	FieldFullName    = "04"
	FieldDateOfBirth = "05"
	FieldCertificate = "20.1"
	FieldArea        = "20.5"
	FieldTitleOrigin = "41.9"
)

// Rule locates one field's value in document text. Rules are evaluated in
// table order; within one field code the first rule to match wins.
type Rule struct {
	Field     string
	Pattern   *regexp.Regexp
	Group     int // submatch index holding the value; 0 stores the whole match
	Transform func(string) string
}

// CategoryRule maps a contained phrase to a fixed label. All rules sharing a
// field code are mutually exclusive: the first phrase found, in table order,
// determines the stored label and the rest are skipped.
type CategoryRule struct {
	Field  string
	Phrase string // matched case-insensitively as a substring
	Label  string
}

// DefaultRules is the extraction table for land-title documents.
var DefaultRules = []Rule{
	// Full name: label synonym followed by a run of uppercase letters with
	// Vietnamese diacritics and spaces, ending at the line. Only the label
	// is case-insensitive.
	{
		Field:     FieldFullName,
		Pattern:   regexp.MustCompile(`(?i:Họ\s*tên)\s*[:\-]?\s*([A-ZÀ-ỸĐ][A-ZÀ-ỸĐ ]+)`),
		Group:     1,
		Transform: TitleCase,
	},
	// Date of birth: first D/M/YYYY-shaped token, separators / or - mixed
	// freely. Stored exactly as matched.
	{
		Field:   FieldDateOfBirth,
		Pattern: regexp.MustCompile(`\d{1,2}[/\-]\d{1,2}[/\-]\d{4}`),
	},
	// Certificate number: two-letter series code plus at least three digits.
	{
		Field:     FieldCertificate,
		Pattern:   regexp.MustCompile(`\b(?:CN|CV|CS)\s*\d{3,}\b`),
		Transform: stripSpaces,
	},
	// Area: labeled quantity ending in an "m" unit token. Decimal commas are
	// normalized and the stored value always carries the m² suffix.
	{
		Field:     FieldArea,
		Pattern:   regexp.MustCompile(`Diện\s*tích[^:]*[:\-]?\s*([\d.,]+)\s*m`),
		Group:     1,
		Transform: areaValue,
	},
}

// DefaultCategories classifies the title's origin. Priority order matters: a
// document mentioning both transfer and gift is stored as a transfer.
var DefaultCategories = []CategoryRule{
	{Field: FieldTitleOrigin, Phrase: "chuyển nhượng", Label: "Nhận chuyển nhượng"},
	{Field: FieldTitleOrigin, Phrase: "tặng cho", Label: "Tặng cho"},
	{Field: FieldTitleOrigin, Phrase: "thừa kế", Label: "Thừa kế"},
}

// TitleCase trims and title-cases a name using Vietnamese casing rules.
func TitleCase(s string) string {
	return cases.Title(language.Vietnamese).String(strings.TrimSpace(s))
}

func stripSpaces(s string) string {
	return strings.ReplaceAll(s, " ", "")
}

func areaValue(s string) string {
	return strings.ReplaceAll(s, ",", ".") + " m²"
}
