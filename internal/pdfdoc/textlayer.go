package pdfdoc

import (
	"bytes"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// TextLayer extracts the embedded text of each page, in page order. It
// reports ok=false when any page lacks extractable text, which is the normal
// case for scanned documents; the caller then falls back to rasterization
// and OCR. ledongthuc/pdf panics on some malformed files, so failures of any
// shape are mapped to ok=false.
func TextLayer(pdfBytes []byte) (pages []string, ok bool) {
	defer func() {
		if recover() != nil {
			pages, ok = nil, false
		}
	}()

	reader, err := pdflib.NewReader(bytes.NewReader(pdfBytes), int64(len(pdfBytes)))
	if err != nil {
		return nil, false
	}

	numPages := reader.NumPage()
	if numPages == 0 {
		return nil, false
	}

	pages = make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			return nil, false
		}
		text, err := page.GetPlainText(nil)
		if err != nil || strings.TrimSpace(text) == "" {
			return nil, false
		}
		pages = append(pages, strings.TrimSpace(text))
	}
	return pages, true
}
