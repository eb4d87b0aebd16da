package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures for the caller-facing error response.
type Kind string

const (
	KindUnsupportedFormat Kind = "unsupported_format"
	KindEmptyInput        Kind = "empty_input"
	KindPayloadTooLarge   Kind = "payload_too_large"
	KindMergeFailure      Kind = "merge_failure"
	KindRenderFailure     Kind = "render_failure"
	KindOCRFailure        Kind = "ocr_failure"
	KindRemoteFailure     Kind = "remote_failure"
)

// Error is a pipeline-stage failure. Any stage failure aborts the whole
// request; there is no partial-result mode. Only the kind and message are
// exposed to callers.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func failed(kind Kind, err error) error {
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the failure kind, or empty string for non-pipeline errors.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
