package pdfdoc

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Page is one rasterized page of a document.
type Page struct {
	Index int // zero-based position within the document
	PNG   []byte
}

// Rasterizer renders PDF pages to PNG images via pdftoppm (poppler-utils).
// pdfcpu can only extract embedded image objects, whose numbering may not
// match page order; pdftoppm renders the page itself.
type Rasterizer struct {
	DPI          int    // defaults to 300
	PdftoppmPath string // defaults to "pdftoppm" on PATH
}

// Rasterize renders every page of the PDF, in page order, at the configured
// density. Any page that fails to render aborts the whole document; there is
// no skip-and-continue mode. The temp directory used for rendering is
// removed on all exit paths.
func (r *Rasterizer) Rasterize(ctx context.Context, pdfBytes []byte) ([]Page, error) {
	count, err := PageCount(pdfBytes)
	if err != nil {
		return nil, fmt.Errorf("page count: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("document has no pages")
	}

	tmpDir, err := os.MkdirTemp("", "subiocr-raster-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	pdfPath := filepath.Join(tmpDir, "doc.pdf")
	if err := os.WriteFile(pdfPath, pdfBytes, 0o600); err != nil {
		return nil, fmt.Errorf("write temp pdf: %w", err)
	}

	pages := make([]Page, 0, count)
	for n := 1; n <= count; n++ {
		data, err := r.renderPage(ctx, pdfPath, tmpDir, n)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", n, err)
		}
		pages = append(pages, Page{Index: n - 1, PNG: data})
	}
	return pages, nil
}

func (r *Rasterizer) renderPage(ctx context.Context, pdfPath, tmpDir string, pageNum int) ([]byte, error) {
	dpi := r.DPI
	if dpi <= 0 {
		dpi = 300
	}
	bin := r.PdftoppmPath
	if bin == "" {
		bin = "pdftoppm"
	}

	outputPrefix := filepath.Join(tmpDir, fmt.Sprintf("page-%d", pageNum))
	pageStr := fmt.Sprintf("%d", pageNum)

	// -singlefile suppresses the page number suffix; we name outputs ourselves.
	cmd := exec.CommandContext(ctx, bin,
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", fmt.Sprintf("%d", dpi),
		"-singlefile",
		pdfPath,
		outputPrefix,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: %w (output: %s)", err, string(output))
	}

	data, err := os.ReadFile(outputPrefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("read rendered page: %w", err)
	}
	return data, nil
}
