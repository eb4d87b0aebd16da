// Package ocr abstracts text recognition behind a single interface with two
// interchangeable implementations: a local Tesseract engine and a remote
// delegation endpoint. Swapping engines changes no other component.
package ocr

import (
	"context"
	"errors"
)

// ErrRemote marks failures of the remote delegation endpoint. Callers use it
// to distinguish remote transport failures from recognition failures.
var ErrRemote = errors.New("remote ocr endpoint")

// Engine recognizes text in one raster page image. Implementations must be
// safe for concurrent use and must honor the context deadline: a call that
// would exceed it returns an error rather than hanging.
type Engine interface {
	// Recognize returns the text found in the image, trimmed. An empty
	// string is a valid result for a page with no detectable text.
	Recognize(ctx context.Context, image []byte, lang string) (string, error)
	Name() string
}
