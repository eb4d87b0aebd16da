package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os/exec"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/subi-vn/subiocr/internal/ocr"
	"github.com/subi-vn/subiocr/internal/pdfdoc"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeEngine returns canned text keyed by the page image bytes, optionally
// failing or delaying specific pages. Concurrency-safe by construction.
type fakeEngine struct {
	texts  map[string]string
	failOn map[string]error
	delays map[string]time.Duration
	calls  atomic.Int32
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(ctx context.Context, image []byte, lang string) (string, error) {
	f.calls.Add(1)
	key := string(image)
	if d, ok := f.delays[key]; ok {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err, ok := f.failOn[key]; ok {
		return "", err
	}
	return f.texts[key], nil
}

func testPNGBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestProcess_EmptyInput(t *testing.T) {
	p := NewProcessor(&fakeEngine{}, nil, testLogger(), Options{})
	_, err := p.Process(context.Background(), Request{Mode: ModeFields})
	if KindOf(err) != KindEmptyInput {
		t.Errorf("expected KindEmptyInput, got %v", err)
	}
}

func TestProcess_UndecodableUpload(t *testing.T) {
	p := NewProcessor(&fakeEngine{}, nil, testLogger(), Options{})
	_, err := p.Process(context.Background(), Request{
		Files: []Upload{{Filename: "junk.bin", Data: []byte{1, 2, 3}}},
		Mode:  ModeFields,
	})
	if KindOf(err) != KindUnsupportedFormat {
		t.Errorf("expected KindUnsupportedFormat, got %v", err)
	}
}

func TestProcess_MixedUploadRejected(t *testing.T) {
	p := NewProcessor(&fakeEngine{}, nil, testLogger(), Options{})
	_, err := p.Process(context.Background(), Request{
		Files: []Upload{
			{Filename: "a.png", Data: testPNGBytes(t, 10, 10)},
			{Filename: "b.pdf", Data: []byte("%PDF-1.4 fake")},
		},
		Mode: ModeFields,
	})
	if KindOf(err) != KindUnsupportedFormat {
		t.Errorf("expected KindUnsupportedFormat for mixed upload, got %v", err)
	}
}

func TestRecognizePages_ReassemblesOutOfOrderCompletion(t *testing.T) {
	// Page 0 is the slowest; later pages finish first. Assembly order must
	// still be A, B, C.
	engine := &fakeEngine{
		texts:  map[string]string{"p0": "A", "p1": "B", "p2": "C"},
		delays: map[string]time.Duration{"p0": 50 * time.Millisecond, "p1": 20 * time.Millisecond},
	}
	p := NewProcessor(engine, nil, testLogger(), Options{MaxConcurrentOCR: 3})

	pages := []pdfdoc.Page{
		{Index: 0, PNG: []byte("p0")},
		{Index: 1, PNG: []byte("p1")},
		{Index: 2, PNG: []byte("p2")},
	}
	texts, err := p.recognizePages(context.Background(), pages, nil)
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}

	got := AssembleText(texts)
	want := "A" + PageSeparator + "B" + PageSeparator + "C"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRecognizePages_PageFailureAbortsDocument(t *testing.T) {
	engine := &fakeEngine{
		texts:  map[string]string{"p0": "A", "p2": "C"},
		failOn: map[string]error{"p1": errors.New("engine crashed")},
	}
	p := NewProcessor(engine, nil, testLogger(), Options{MaxConcurrentOCR: 1})

	pages := []pdfdoc.Page{
		{Index: 0, PNG: []byte("p0")},
		{Index: 1, PNG: []byte("p1")},
		{Index: 2, PNG: []byte("p2")},
	}
	_, err := p.recognizePages(context.Background(), pages, nil)
	if KindOf(err) != KindOCRFailure {
		t.Fatalf("expected KindOCRFailure, got %v", err)
	}
	if !strings.Contains(err.Error(), "page 2") {
		t.Errorf("expected failing page number in error, got %v", err)
	}
}

func TestRecognizePages_RemoteFailureKind(t *testing.T) {
	engine := &fakeEngine{
		failOn: map[string]error{"p0": fmt.Errorf("%w: status 502", ocr.ErrRemote)},
	}
	p := NewProcessor(engine, nil, testLogger(), Options{MaxConcurrentOCR: 1})

	_, err := p.recognizePages(context.Background(), []pdfdoc.Page{{Index: 0, PNG: []byte("p0")}}, nil)
	if KindOf(err) != KindRemoteFailure {
		t.Errorf("expected KindRemoteFailure, got %v", err)
	}
}

func TestRecognizePages_DeadlineBecomesFailure(t *testing.T) {
	engine := &fakeEngine{
		delays: map[string]time.Duration{"p0": 200 * time.Millisecond},
		texts:  map[string]string{"p0": "never"},
	}
	p := NewProcessor(engine, nil, testLogger(), Options{
		MaxConcurrentOCR: 1,
		OCRTimeout:       20 * time.Millisecond,
	})

	start := time.Now()
	_, err := p.recognizePages(context.Background(), []pdfdoc.Page{{Index: 0, PNG: []byte("p0")}}, nil)
	if KindOf(err) != KindOCRFailure {
		t.Fatalf("expected KindOCRFailure on deadline, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Errorf("deadline not enforced, took %v", elapsed)
	}
}

type fakeForwarder struct {
	result *ocr.ForwardResult
	err    error
	gotPDF []byte
}

func (f *fakeForwarder) Forward(ctx context.Context, pdf []byte) (*ocr.ForwardResult, error) {
	f.gotPDF = pdf
	return f.result, f.err
}

func TestProcess_DocumentDelegation(t *testing.T) {
	fwd := &fakeForwarder{
		result: &ocr.ForwardResult{
			OCRText:      "delegated text",
			Placeholders: map[string]string{"04": "Nguyen Van A"},
			CountFields:  1,
		},
	}
	p := NewProcessor(&fakeEngine{}, fwd, testLogger(), Options{})

	res, err := p.Process(context.Background(), Request{
		Files: []Upload{{Filename: "doc.pdf", Data: []byte("%PDF-1.4 fake")}},
		Mode:  ModeFields,
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Text != "delegated text" || res.CountFields != 1 {
		t.Errorf("unexpected result %+v", res)
	}
	if !bytes.HasPrefix(fwd.gotPDF, []byte("%PDF-")) {
		t.Error("forwarder did not receive the PDF bytes")
	}
}

func TestProcess_DelegationFailure(t *testing.T) {
	fwd := &fakeForwarder{err: fmt.Errorf("%w: unreachable", ocr.ErrRemote)}
	p := NewProcessor(&fakeEngine{}, fwd, testLogger(), Options{})

	_, err := p.Process(context.Background(), Request{
		Files: []Upload{{Filename: "doc.pdf", Data: []byte("%PDF-1.4 fake")}},
		Mode:  ModeFields,
	})
	if KindOf(err) != KindRemoteFailure {
		t.Errorf("expected KindRemoteFailure, got %v", err)
	}
}

func TestProcess_PhasesReported(t *testing.T) {
	fwd := &fakeForwarder{result: &ocr.ForwardResult{OCRText: "x"}}
	p := NewProcessor(&fakeEngine{}, fwd, testLogger(), Options{})

	var phases []string
	_, err := p.Process(context.Background(), Request{
		Files:   []Upload{{Filename: "doc.pdf", Data: []byte("%PDF-1.4 fake")}},
		Mode:    ModeText,
		OnPhase: func(ph string) { phases = append(phases, ph) },
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	want := []string{"normalizing", "delegating"}
	if len(phases) != len(want) {
		t.Fatalf("expected phases %v, got %v", want, phases)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Errorf("phase %d: expected %q, got %q", i, want[i], phases[i])
		}
	}
}

func TestRecognizePages_ReportsProgress(t *testing.T) {
	engine := &fakeEngine{texts: map[string]string{"p0": "a", "p1": "b", "p2": "c"}}
	p := NewProcessor(engine, nil, testLogger(), Options{MaxConcurrentOCR: 1})
	pages := []pdfdoc.Page{
		{Index: 0, PNG: []byte("p0")},
		{Index: 1, PNG: []byte("p1")},
		{Index: 2, PNG: []byte("p2")},
	}

	var counts []int
	_, err := p.recognizePages(context.Background(), pages, func(recognized int) {
		counts = append(counts, recognized)
	})
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if len(counts) != 3 {
		t.Fatalf("expected 3 progress updates, got %d", len(counts))
	}
	for i, c := range counts {
		if c != i+1 {
			t.Errorf("update %d: expected count %d, got %d", i, i+1, c)
		}
	}
}

func TestProcess_DelegationReportsFieldsFound(t *testing.T) {
	fwd := &fakeForwarder{
		result: &ocr.ForwardResult{
			OCRText:      "t",
			Placeholders: map[string]string{"04": "Nguyen Van A", "20.5": "100 m²"},
			CountFields:  2,
		},
	}
	p := NewProcessor(&fakeEngine{}, fwd, testLogger(), Options{})

	var last Progress
	_, err := p.Process(context.Background(), Request{
		Files:      []Upload{{Filename: "doc.pdf", Data: []byte("%PDF-1.4 fake")}},
		Mode:       ModeFields,
		OnProgress: func(pr Progress) { last = pr },
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if last.FieldsFound != 2 {
		t.Errorf("expected 2 fields reported, got %+v", last)
	}
}

func TestProcess_FieldsModeDeterministic(t *testing.T) {
	fwd := &fakeForwarder{
		result: &ocr.ForwardResult{
			OCRText:      "Họ tên: NGUYEN VAN A",
			Placeholders: map[string]string{"04": "Nguyen Van A"},
			CountFields:  1,
		},
	}
	p := NewProcessor(&fakeEngine{}, fwd, testLogger(), Options{})
	req := Request{
		Files: []Upload{{Filename: "doc.pdf", Data: []byte("%PDF-1.4 fake")}},
		Mode:  ModeFields,
	}

	first, err := p.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := p.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("results differ between runs:\n%+v\n%+v", first, second)
	}
}

// constEngine returns the same text for every page, making full-pipeline
// runs comparable.
type constEngine struct{ text string }

func (c constEngine) Name() string { return "const" }

func (c constEngine) Recognize(ctx context.Context, image []byte, lang string) (string, error) {
	return c.text, nil
}

func TestProcess_FullPipelineDeterministic(t *testing.T) {
	if _, err := exec.LookPath("pdftoppm"); err != nil {
		t.Skip("pdftoppm not installed")
	}

	engine := constEngine{text: "Họ tên: NGUYEN VAN A\nDiện tích: 100,5 m2\nNhận chuyển nhượng"}
	p := NewProcessor(engine, nil, testLogger(), Options{RasterDPI: 72})
	req := Request{
		Files: []Upload{{Filename: "page.png", Data: testPNGBytes(t, 60, 90)}},
		Mode:  ModeFields,
	}

	first, err := p.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := p.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("results differ between runs:\n%+v\n%+v", first, second)
	}
	if first.Placeholders["04"] == "" {
		t.Errorf("expected name field extracted, got %v", first.Placeholders)
	}
}
