package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/subi-vn/subiocr/internal/pipeline"
)

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	uploads, err := readUploads(r, s.cfg.MaxUploadBytes)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errUploadTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		jsonError(w, err.Error(), status)
		return
	}
	if len(uploads) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	// Doc ID derives from content so resubmissions are recognizable.
	var combined []byte
	filenames := make([]string, 0, len(uploads))
	for _, u := range uploads {
		combined = append(combined, u.Data...)
		filenames = append(filenames, u.Filename)
	}

	now := time.Now()
	job := &pipeline.Job{
		ID:        uuid.New().String(),
		DocID:     pipeline.ContentHashHex(combined)[:16],
		Status:    pipeline.StatusQueued,
		Phase:     "queued",
		Filenames: filenames,
		Mode:      pipeline.ParseMode(r.FormValue("mode")),
		CreatedAt: now,
		UpdatedAt: now,
	}
	job.SetUploads(uploads)

	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":   job.ID,
		"doc_id":   job.DocID,
		"status":   job.Status,
		"poll_url": fmt.Sprintf("/api/ocr/jobs/%s", job.ID),
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()

	body := map[string]any{
		"job_id":    snap.ID,
		"doc_id":    snap.DocID,
		"status":    snap.Status,
		"phase":     snap.Phase,
		"filenames": snap.Filenames,
		"mode":      snap.Mode,
		"progress":  snap.Progress,
		"errors":    snap.Errors,
	}
	if snap.Status == pipeline.StatusCompleted && snap.Result != nil {
		result := map[string]any{"ocrText": snap.Result.Text, "pages": snap.Result.Pages}
		if snap.Mode == pipeline.ModeFields {
			result["ocrText"] = truncateRunes(snap.Result.Text, ocrTextLimit)
			result["placeholders"] = snap.Result.Placeholders
			result["count_fields"] = snap.Result.CountFields
		}
		body["result"] = result
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}
