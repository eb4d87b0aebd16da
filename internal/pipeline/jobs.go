package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"
)

// JobStatus represents the state of an asynchronous processing job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Job tracks the state of one asynchronous document submission. The phase
// string carries the pipeline stage (normalizing, merging, rasterizing,
// recognizing, extracting) while the status stays "processing".
type Job struct {
	mu sync.Mutex

	ID    string `json:"job_id"`
	DocID string `json:"doc_id"`

	Status    JobStatus `json:"status"`
	Phase     string    `json:"phase"`
	Filenames []string  `json:"filenames"`
	Mode      Mode      `json:"mode"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	uploads []Upload
	result  *Result
	errors  []string
}

// Progress tracks processing progress.
type Progress struct {
	TotalPages      int `json:"total_pages"`
	PagesRecognized int `json:"pages_recognized"`
	FieldsFound     int `json:"fields_found"`
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.UpdatedAt) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// SetPhase updates the pipeline stage while processing.
func (j *Job) SetPhase(phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// SetProgress replaces the progress counters.
func (j *Job) SetProgress(p Progress) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress = p
	j.UpdatedAt = time.Now()
}

// AddError records an error message.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.UpdatedAt = time.Now()
}

// SetUploads sets the raw files for processing.
func (j *Job) SetUploads(uploads []Upload) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.uploads = uploads
}

// Uploads returns the raw files.
func (j *Job) Uploads() []Upload {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.uploads
}

// SetResult stores the pipeline outcome and releases the upload bytes; they
// are no longer needed once processing finished.
func (j *Job) SetResult(res *Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = res
	j.uploads = nil
	j.UpdatedAt = time.Now()
}

// JobSnapshot is a read-only, JSON-safe copy of job state. Result is set
// only for completed jobs.
type JobSnapshot struct {
	ID        string    `json:"job_id"`
	DocID     string    `json:"doc_id"`
	Status    JobStatus `json:"status"`
	Phase     string    `json:"phase"`
	Filenames []string  `json:"filenames"`
	Mode      Mode      `json:"mode"`
	Progress  Progress  `json:"progress"`
	Errors    []string  `json:"errors"`
	Result    *Result   `json:"result,omitempty"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := j.errors
	if errs == nil {
		errs = []string{}
	}
	return JobSnapshot{
		ID:        j.ID,
		DocID:     j.DocID,
		Status:    j.Status,
		Phase:     j.Phase,
		Filenames: append([]string(nil), j.Filenames...),
		Mode:      j.Mode,
		Progress:  j.Progress,
		Errors:    errs,
		Result:    j.result,
	}
}

// ContentHashHex computes SHA-256 of content and returns the hex string.
// Doc IDs derive from it, so identical submissions map to the same ID.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
