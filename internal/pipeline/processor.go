package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/subi-vn/subiocr/internal/fields"
	"github.com/subi-vn/subiocr/internal/imaging"
	"github.com/subi-vn/subiocr/internal/ocr"
	"github.com/subi-vn/subiocr/internal/pdfdoc"
)

// Forwarder delegates a whole merged document to a remote processor instead
// of running per-page OCR locally.
type Forwarder interface {
	Forward(ctx context.Context, pdf []byte) (*ocr.ForwardResult, error)
}

// Options configure a Processor.
type Options struct {
	Language         string        // OCR language hint, default "vie"
	RasterDPI        int           // default 300
	PdftoppmPath     string        // default "pdftoppm"
	OCRTimeout       time.Duration // per-page deadline, default 60s
	MaxConcurrentOCR int           // default 4
	UseTextLayer     bool          // use a PDF's embedded text when every page has it
}

// Request is one processing invocation. OnPhase, when set, receives stage
// transitions and OnProgress receives counter updates; the job worker uses
// both to surface progress.
type Request struct {
	Files      []Upload
	Mode       Mode
	OnPhase    func(phase string)
	OnProgress func(p Progress)
}

// Processor runs the extraction pipeline. Safe for concurrent use; each
// Process call owns its intermediate buffers exclusively and releases them
// on all exit paths.
type Processor struct {
	engine    ocr.Engine
	forwarder Forwarder // nil unless running in document-delegation mode
	extractor *fields.Extractor
	log       *slog.Logger
	opts      Options
}

func NewProcessor(engine ocr.Engine, forwarder Forwarder, log *slog.Logger, opts Options) *Processor {
	if opts.Language == "" {
		opts.Language = "vie"
	}
	if opts.RasterDPI <= 0 {
		opts.RasterDPI = 300
	}
	if opts.OCRTimeout <= 0 {
		opts.OCRTimeout = 60 * time.Second
	}
	if opts.MaxConcurrentOCR <= 0 {
		opts.MaxConcurrentOCR = 4
	}
	return &Processor{
		engine:    engine,
		forwarder: forwarder,
		extractor: fields.NewExtractor(),
		log:       log,
		opts:      opts,
	}
}

// Process runs the full pipeline for one submission. All stage failures
// abort the request with a *Error; field-extraction non-matches never fail.
func (p *Processor) Process(ctx context.Context, req Request) (*Result, error) {
	phase := req.OnPhase
	if phase == nil {
		phase = func(string) {}
	}
	emit := req.OnProgress
	if emit == nil {
		emit = func(Progress) {}
	}
	var prog Progress

	if len(req.Files) == 0 {
		return nil, failed(KindEmptyInput, errors.New("no files submitted"))
	}

	phase("normalizing")
	normalized := make([]*imaging.Normalized, len(req.Files))
	for i, f := range req.Files {
		n, err := imaging.Normalize(f.Data, f.Filename)
		if err != nil {
			return nil, failed(KindUnsupportedFormat, fmt.Errorf("%s: %w", f.Filename, err))
		}
		normalized[i] = n
	}

	pdfBytes, err := p.buildPDF(req.Files, normalized, phase)
	if err != nil {
		return nil, err
	}

	if p.forwarder != nil {
		return p.delegate(ctx, pdfBytes, req.Mode, phase, &prog, emit)
	}

	pageTexts, err := p.readPages(ctx, pdfBytes, phase, &prog, emit)
	if err != nil {
		return nil, err
	}

	text := AssembleText(pageTexts)
	res := &Result{Text: text, Pages: len(pageTexts)}
	if req.Mode == ModeText {
		return res, nil
	}

	phase("extracting")
	fr := p.extractor.Extract(text)
	res.Placeholders = fr.Placeholders
	res.CountFields = fr.Count
	prog.FieldsFound = fr.Count
	emit(prog)
	return res, nil
}

// buildPDF reduces the normalized uploads to a single working PDF. A single
// PDF upload passes through; images are merged, one page each, in
// submission order.
func (p *Processor) buildPDF(files []Upload, normalized []*imaging.Normalized, phase func(string)) ([]byte, error) {
	if len(normalized) == 1 && normalized[0].PDF {
		return normalized[0].Data, nil
	}

	images := make([][]byte, len(normalized))
	for i, n := range normalized {
		if n.PDF {
			return nil, failed(KindUnsupportedFormat,
				fmt.Errorf("cannot merge %s: a PDF must be submitted alone", files[i].Filename))
		}
		images[i] = n.Data
	}

	phase("merging")
	pdfBytes, err := pdfdoc.MergeImages(images)
	if err != nil {
		return nil, failed(KindMergeFailure, err)
	}
	return pdfBytes, nil
}

// readPages produces per-page text for the document, via the embedded text
// layer when allowed and present, otherwise by rasterizing and recognizing.
func (p *Processor) readPages(ctx context.Context, pdfBytes []byte, phase func(string), prog *Progress, emit func(Progress)) ([]PageText, error) {
	if p.opts.UseTextLayer {
		if texts, ok := pdfdoc.TextLayer(pdfBytes); ok {
			p.log.Debug("using embedded text layer", "pages", len(texts))
			pageTexts := make([]PageText, len(texts))
			for i, t := range texts {
				pageTexts[i] = PageText{Index: i, Text: t}
			}
			prog.TotalPages = len(texts)
			prog.PagesRecognized = len(texts)
			emit(*prog)
			return pageTexts, nil
		}
	}

	phase("rasterizing")
	r := &pdfdoc.Rasterizer{DPI: p.opts.RasterDPI, PdftoppmPath: p.opts.PdftoppmPath}
	pages, err := r.Rasterize(ctx, pdfBytes)
	if err != nil {
		return nil, failed(KindRenderFailure, err)
	}
	prog.TotalPages = len(pages)
	emit(*prog)

	phase("recognizing")
	return p.recognizePages(ctx, pages, func(recognized int) {
		prog.PagesRecognized = recognized
		emit(*prog)
	})
}

// recognizePages fans page recognition out across a bounded worker set. Pages
// are independent; completion order is irrelevant because the assembler
// reorders by index. Any page failure aborts the whole document. onPage, when
// set, receives the running count of recognized pages.
func (p *Processor) recognizePages(ctx context.Context, pages []pdfdoc.Page, onPage func(recognized int)) ([]PageText, error) {
	type pageResult struct {
		idx  int
		text string
		err  error
	}
	results := make(chan pageResult, len(pages))
	sem := make(chan struct{}, p.opts.MaxConcurrentOCR)

	for _, pg := range pages {
		sem <- struct{}{}
		go func(pg pdfdoc.Page) {
			defer func() { <-sem }()
			octx, cancel := context.WithTimeout(ctx, p.opts.OCRTimeout)
			defer cancel()
			text, err := p.engine.Recognize(octx, pg.PNG, p.opts.Language)
			results <- pageResult{idx: pg.Index, text: text, err: err}
		}(pg)
	}

	texts := make([]PageText, 0, len(pages))
	var firstErr error
	firstErrPage := -1
	for range pages {
		r := <-results
		if r.err != nil {
			if firstErr == nil || r.idx < firstErrPage {
				firstErr = r.err
				firstErrPage = r.idx
			}
			continue
		}
		texts = append(texts, PageText{Index: r.idx, Text: r.text})
		if onPage != nil {
			onPage(len(texts))
		}
	}

	if firstErr != nil {
		kind := KindOCRFailure
		if errors.Is(firstErr, ocr.ErrRemote) {
			kind = KindRemoteFailure
		}
		return nil, failed(kind, fmt.Errorf("page %d: %w", firstErrPage+1, firstErr))
	}
	return texts, nil
}

// delegate hands the merged document to the remote processor and adapts its
// structured response.
func (p *Processor) delegate(ctx context.Context, pdfBytes []byte, mode Mode, phase func(string), prog *Progress, emit func(Progress)) (*Result, error) {
	phase("delegating")
	fr, err := p.forwarder.Forward(ctx, pdfBytes)
	if err != nil {
		return nil, failed(KindRemoteFailure, err)
	}

	res := &Result{Text: fr.OCRText}
	if mode == ModeFields {
		res.Placeholders = fr.Placeholders
		res.CountFields = fr.CountFields
		prog.FieldsFound = fr.CountFields
		emit(*prog)
	}
	return res, nil
}
