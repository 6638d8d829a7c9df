package pipeline

import (
	"context"
	"log/slog"
	"os"
)

// Worker processes one session job at a time.
type Worker struct {
	pipe *Pipeline
	rec  Recorder
	log  *slog.Logger
}

func NewWorker(pipe *Pipeline, rec Recorder, log *slog.Logger) *Worker {
	return &Worker{pipe: pipe, rec: rec, log: log}
}

// Process runs the job's batch, persists the session and settles the status.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "user_id", job.UserID)
	defer job.cleanup()

	docs := job.Documents()
	if len(docs) == 0 {
		job.AddError("no files to process")
		job.SetStatus(StatusFailed, "processing")
		return
	}

	job.SetStatus(StatusProcessing, "processing")
	sess := w.pipe.ProcessBatch(ctx, job.UserID, docs, job.RecordDone)
	job.SetSession(sess)

	if w.rec != nil {
		job.SetStatus(StatusStoring, "storing")
		if err := w.rec.SaveSession(ctx, sess); err != nil {
			log.Error("save session failed", "session_id", sess.ID, "error", err)
			job.AddError("store: " + err.Error())
			job.SetStatus(StatusPartial, "done")
			return
		}
	}

	failed := 0
	for _, f := range sess.Files {
		if f.Status == RecordFailed {
			failed++
		}
	}
	switch {
	case failed == len(sess.Files):
		job.SetStatus(StatusFailed, "done")
	case failed > 0:
		job.SetStatus(StatusPartial, "done")
	default:
		job.SetStatus(StatusCompleted, "done")
	}
	log.Info("job finished", "session_id", sess.ID, "files", len(sess.Files), "failed", failed)
}

// cleanup removes the job's staging directory.
func (j *Job) cleanup() {
	j.mu.Lock()
	dir := j.dir
	j.dir = ""
	j.mu.Unlock()
	if dir != "" {
		os.RemoveAll(dir)
	}
}
