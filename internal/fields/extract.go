package fields

import "strings"

// Result maps field codes to extracted values. A code is present only when
// its rule matched; no field is ever stored as an empty string. Count is the
// number of fields populated.
type Result struct {
	Placeholders map[string]string `json:"placeholders"`
	Count        int               `json:"count_fields"`
}

// Extractor evaluates an ordered rule table against assembled document text.
// Non-matches are silent omissions, never errors.
type Extractor struct {
	rules      []Rule
	categories []CategoryRule
}

// NewExtractor returns an extractor with the default land-title rule table.
func NewExtractor() *Extractor {
	return &Extractor{rules: DefaultRules, categories: DefaultCategories}
}

// NewExtractorWith returns an extractor over a custom rule table.
func NewExtractorWith(rules []Rule, categories []CategoryRule) *Extractor {
	return &Extractor{rules: rules, categories: categories}
}

// Extract evaluates every rule once over the full text and returns the
// populated mapping. Deterministic for a given input.
func (e *Extractor) Extract(text string) Result {
	out := make(map[string]string)

	for _, r := range e.rules {
		if _, done := out[r.Field]; done {
			continue
		}
		var val string
		if r.Group > 0 {
			m := r.Pattern.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			val = m[r.Group]
		} else {
			val = r.Pattern.FindString(text)
			if val == "" {
				continue
			}
		}
		val = strings.TrimSpace(val)
		if r.Transform != nil {
			val = r.Transform(val)
		}
		if val == "" {
			continue
		}
		out[r.Field] = val
	}

	lower := strings.ToLower(text)
	for _, c := range e.categories {
		if _, done := out[c.Field]; done {
			continue
		}
		if strings.Contains(lower, c.Phrase) {
			out[c.Field] = c.Label
		}
	}

	return Result{Placeholders: out, Count: len(out)}
}
