package ocr

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract recognizes text with a local Tesseract install via gosseract.
// Requires the tesseract binary and the language's traineddata (e.g. "vie")
// to be present on the host.
type Tesseract struct {
	dpi int
}

// NewTesseract creates the local engine. dpi is passed to Tesseract as
// user_defined_dpi so rendered pages without density metadata are not
// misjudged; zero leaves Tesseract's autodetection in place.
func NewTesseract(dpi int) *Tesseract {
	return &Tesseract{dpi: dpi}
}

func (t *Tesseract) Name() string { return "tesseract" }

// Recognize runs OCR on one page image. A fresh gosseract client is used per
// call: the underlying API is not safe for concurrent use and pages are
// recognized in parallel.
func (t *Tesseract) Recognize(ctx context.Context, image []byte, lang string) (string, error) {
	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		client := gosseract.NewClient()
		defer client.Close()

		if lang != "" {
			if err := client.SetLanguage(lang); err != nil {
				ch <- result{err: fmt.Errorf("set language %q: %w", lang, err)}
				return
			}
		}
		if t.dpi > 0 {
			if err := client.SetVariable(gosseract.SettableVariable("user_defined_dpi"), strconv.Itoa(t.dpi)); err != nil {
				ch <- result{err: fmt.Errorf("set dpi: %w", err)}
				return
			}
		}
		if err := client.SetImageFromBytes(image); err != nil {
			ch <- result{err: fmt.Errorf("set image: %w", err)}
			return
		}

		text, err := client.Text()
		if err != nil {
			ch <- result{err: fmt.Errorf("recognize: %w", err)}
			return
		}
		ch <- result{text: strings.TrimSpace(text)}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		return r.text, r.err
	}
}
