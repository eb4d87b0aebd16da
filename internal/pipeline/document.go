// Package pipeline runs the document-to-structured-field extraction chain:
// normalize uploads, merge images into one PDF, rasterize pages, recognize
// text per page, assemble the document text, and extract placeholder fields.
// Everything is request-scoped; no state survives between submissions.
package pipeline

// Upload is one submitted file. Slice order is submission order, which
// governs both merge order and text-assembly order.
type Upload struct {
	Filename string
	Data     []byte
}

// Mode selects the response shape of Process.
type Mode string

const (
	// ModeText returns the assembled OCR text only.
	ModeText Mode = "text"
	// ModeFields additionally runs placeholder extraction.
	ModeFields Mode = "fields"
)

// ParseMode maps the wire-level mode value. The original form values
// "ocrText" and "placeholders" are accepted alongside the canonical names;
// anything unrecognized falls back to fields, matching the service this
// replaced.
func ParseMode(s string) Mode {
	switch s {
	case "text", "ocrText":
		return ModeText
	default:
		return ModeFields
	}
}

// Result is the outcome of one processed submission.
type Result struct {
	Text         string
	Placeholders map[string]string
	CountFields  int
	Pages        int
}
