package pipeline

import (
	"sort"
	"strings"
)

// PageSeparator delimits page texts in the assembled document string. The
// multi-character token cannot occur naturally inside OCR output.
const PageSeparator = "\n\n----\n\n"

// PageText pairs a page position with its recognized text. Text may be empty
// for pages where nothing was detected.
type PageText struct {
	Index int
	Text  string
}

// AssembleText joins per-page text in page order, trimming each page's
// leading and trailing whitespace. Input order does not matter; results are
// reordered by index, so OCR completion order never affects the output.
func AssembleText(pages []PageText) string {
	sorted := make([]PageText, len(pages))
	copy(sorted, pages)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	parts := make([]string, len(sorted))
	for i, p := range sorted {
		parts[i] = strings.TrimSpace(p.Text)
	}
	return strings.Join(parts, PageSeparator)
}
