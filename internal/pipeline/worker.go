package pipeline

import (
	"context"
	"log/slog"
)

// Worker processes one queued job at a time.
type Worker struct {
	proc *Processor
	log  *slog.Logger
}

func NewWorker(proc *Processor, log *slog.Logger) *Worker {
	return &Worker{proc: proc, log: log}
}

// Process runs the full pipeline for a job and records the outcome.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID)

	job.SetStatus(StatusProcessing, "starting")

	res, err := w.proc.Process(ctx, Request{
		Files:      job.Uploads(),
		Mode:       job.Mode,
		OnPhase:    job.SetPhase,
		OnProgress: job.SetProgress,
	})
	if err != nil {
		log.Error("processing failed", "kind", KindOf(err), "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "failed")
		return
	}

	job.SetResult(res)
	job.SetStatus(StatusCompleted, "done")
	log.Info("processing complete", "pages", res.Pages, "fields", res.CountFields)
}
