// Package pdfdoc owns the PDF side of the pipeline: building a multi-page
// PDF from page images, counting pages, rendering pages to raster images,
// and reading an embedded text layer when one exists.
package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrEmptyInput indicates a merge was requested with zero images.
var ErrEmptyInput = errors.New("no images to merge")

func relaxedConf() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// MergeImages builds one PDF with one page per input image, in input order,
// each page sized to its source image's pixel dimensions. The merge is
// all-or-nothing: if any image cannot be placed the whole operation fails
// and no partial document is produced.
func MergeImages(images [][]byte) ([]byte, error) {
	if len(images) == 0 {
		return nil, ErrEmptyInput
	}

	readers := make([]io.Reader, 0, len(images))
	for _, img := range images {
		readers = append(readers, bytes.NewReader(img))
	}

	// The default import config creates one page per image, sized to match
	// the image. No page size is forced.
	var buf bytes.Buffer
	if err := api.ImportImages(nil, &buf, readers, pdfcpu.DefaultImportConfig(), relaxedConf()); err != nil {
		return nil, fmt.Errorf("import images: %w", err)
	}
	return buf.Bytes(), nil
}

// PageCount returns the number of pages in a PDF.
func PageCount(pdfBytes []byte) (int, error) {
	return api.PageCount(bytes.NewReader(pdfBytes), relaxedConf())
}
