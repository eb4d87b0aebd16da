package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/subi-vn/subiocr/internal/pipeline"
)

// errUploadTooLarge marks submissions whose cumulative size exceeds the
// configured budget.
var errUploadTooLarge = errors.New("uploads exceed max size")

// ocrTextLimit caps the raw text echoed alongside extracted fields. The
// full text is only returned when the caller asked for text mode.
const ocrTextLimit = 5000

func (s *Server) handleOCRAndFill(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonFailure(w, pipeline.KindEmptyInput, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	uploads, err := readUploads(r, s.cfg.MaxUploadBytes)
	if err != nil {
		if errors.Is(err, errUploadTooLarge) {
			jsonFailure(w, pipeline.KindPayloadTooLarge, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		jsonFailure(w, pipeline.KindUnsupportedFormat, err.Error(), http.StatusBadRequest)
		return
	}
	if len(uploads) == 0 {
		jsonFailure(w, pipeline.KindEmptyInput, "at least one file is required", http.StatusBadRequest)
		return
	}

	mode := pipeline.ParseMode(r.FormValue("mode"))

	result, err := s.processor.Process(r.Context(), pipeline.Request{
		Files: uploads,
		Mode:  mode,
	})
	if err != nil {
		kind := pipeline.KindOf(err)
		s.log.Error("processing failed", "kind", string(kind), "error", err)
		jsonFailure(w, kind, err.Error(), statusForKind(kind))
		return
	}

	writeResult(w, result, mode)
}

// readUploads collects the "file" parts in submission order, enforcing the
// cumulative upload budget.
func readUploads(r *http.Request, maxBytes int64) ([]pipeline.Upload, error) {
	headers := r.MultipartForm.File["file"]
	uploads := make([]pipeline.Upload, 0, len(headers))
	var total int64
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %q", sanitizeFilename(fh.Filename))
		}
		data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %q", sanitizeFilename(fh.Filename))
		}
		total += int64(len(data))
		if total > maxBytes {
			return nil, fmt.Errorf("%w (%d bytes)", errUploadTooLarge, maxBytes)
		}
		uploads = append(uploads, pipeline.Upload{
			Filename: sanitizeFilename(fh.Filename),
			Data:     data,
		})
	}
	return uploads, nil
}

// writeResult encodes the success envelope. Text mode returns the full
// assembled text; fields mode truncates it and attaches the placeholders.
func writeResult(w http.ResponseWriter, result *pipeline.Result, mode pipeline.Mode) {
	body := map[string]any{"ocrText": result.Text}
	if mode == pipeline.ModeFields {
		body["ocrText"] = truncateRunes(result.Text, ocrTextLimit)
		body["placeholders"] = result.Placeholders
		body["count_fields"] = result.CountFields
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"ok":     true,
		"result": body,
	})
}

func statusForKind(kind pipeline.Kind) int {
	switch kind {
	case pipeline.KindEmptyInput, pipeline.KindUnsupportedFormat:
		return http.StatusBadRequest
	case pipeline.KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case pipeline.KindRemoteFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func jsonFailure(w http.ResponseWriter, kind pipeline.Kind, msg string, code int) {
	if kind == "" {
		kind = "internal"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"ok": false,
		"error": map[string]string{
			"kind":    string(kind),
			"message": msg,
		},
	})
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
