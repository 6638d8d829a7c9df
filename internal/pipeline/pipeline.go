// Package pipeline runs documents through extraction, detection and
// replacement and assembles the resulting records into sessions.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/NarendraPati1/deIdentifier/internal/detect"
	"github.com/NarendraPati1/deIdentifier/internal/labels"
	"github.com/NarendraPati1/deIdentifier/internal/parser"
	"github.com/NarendraPati1/deIdentifier/internal/replace"
)

// Extractor turns a file on disk into text.
type Extractor interface {
	Extract(ctx context.Context, path string) parser.Result
}

// Detector finds labelled entities in text.
type Detector interface {
	Detect(ctx context.Context, text string, set labels.Set, threshold float64) detect.Result
	Available() bool
}

// Document is a file on disk awaiting processing. Filename is the display
// name; Path is where the bytes live.
type Document struct {
	ID       string
	Path     string
	Filename string
	Size     int64
}

type Config struct {
	Threshold   float64
	Concurrency int

	// SharedCache gives every document of a batch one replacement context.
	SharedCache bool
}

type Pipeline struct {
	ex  Extractor
	det Detector
	log *slog.Logger
	cfg Config
	now func() time.Time

	// newContext builds replacement contexts; tests swap in seeded ones.
	newContext func() *replace.Context
}

func New(ex Extractor, det Detector, log *slog.Logger, cfg Config) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Pipeline{
		ex:         ex,
		det:        det,
		log:        log,
		cfg:        cfg,
		now:        time.Now,
		newContext: func() *replace.Context { return replace.NewContext() },
	}
}

// DetectionAvailable reports whether a real oracle backs detection.
func (p *Pipeline) DetectionAvailable() bool { return p.det.Available() }

// Process runs one document end to end. It always returns a record; stage
// failures are recorded on it rather than returned.
func (p *Pipeline) Process(ctx context.Context, doc Document, rc *replace.Context) Record {
	if rc == nil {
		rc = p.newContext()
	}
	log := p.log.With("filename", doc.Filename, "doc_id", doc.ID)

	rec := Record{
		ID:            doc.ID,
		Filename:      doc.Filename,
		Size:          doc.Size,
		Status:        RecordCompleted,
		DemoDetection: !p.det.Available(),
	}

	res := p.ex.Extract(ctx, doc.Path)
	rec.Extraction = ExtractionInfo{
		Status:    res.Status,
		Format:    res.Format,
		Truncated: res.Truncated,
		Skipped:   res.Skipped,
	}
	if res.Failed() {
		log.Warn("extraction failed", "status", res.Status, "error", res.Err)
		rec.Status = RecordFailed
		rec.Error = res.Message()
		return rec
	}
	if res.Truncated {
		log.Info("archive truncated", "skipped", res.Skipped)
	}
	if !res.OK() {
		log.Info("no text extracted", "format", res.Format)
		return rec
	}

	pii := p.det.Detect(ctx, res.Text, labels.PII, p.cfg.Threshold)
	if pii.Failed() {
		rec.PIIError = pii.ErrorMessage()
	} else {
		rec.Original = pii.Entities
		rec.PII = rc.ReplaceAll(pii.Entities)
	}

	phi := p.det.Detect(ctx, res.Text, labels.PHI, p.cfg.Threshold)
	if phi.Failed() {
		rec.PHIError = phi.ErrorMessage()
	} else {
		rec.PHI = phi.Entities
	}

	log.Info("document processed",
		"pii_labels", rec.PII.Len(),
		"phi_labels", rec.PHI.Len(),
		"demo", rec.DemoDetection,
	)
	return rec
}

// Session is the outcome of one batch submission.
type Session struct {
	ID             string        `json:"id"`
	Name           string        `json:"session_name"`
	UserID         string        `json:"user_id,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	FilesProcessed int           `json:"files_processed"`
	PIIItems       int           `json:"pii_items"`
	PHIItems       int           `json:"phi_items"`
	ProcessingTime float64       `json:"processing_time"`
	Files          []FileOutcome `json:"files"`
	Records        []Record      `json:"records"`
}

// SessionName formats the display name for a session started at t.
func SessionName(t time.Time) string {
	return "Session_" + t.Format("20060102_150405")
}

// ProcessBatch processes docs with bounded parallelism and returns the
// session. Records keep the order of docs. onDone, if set, is called once per
// finished document from the worker goroutine.
func (p *Pipeline) ProcessBatch(ctx context.Context, userID string, docs []Document, onDone func(Record)) Session {
	start := p.now()
	sess := Session{
		ID:        uuid.NewString(),
		Name:      SessionName(start),
		UserID:    userID,
		CreatedAt: start,
		Records:   make([]Record, len(docs)),
	}
	log := p.log.With("session_id", sess.ID, "user_id", userID)

	var shared *replace.Context
	if p.cfg.SharedCache {
		shared = p.newContext()
	}

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)
	for i, doc := range docs {
		if doc.ID == "" {
			doc.ID = uuid.NewString()
		}
		g.Go(func() error {
			rc := shared
			if rc == nil {
				rc = p.newContext()
			}
			rec := p.safeProcess(ctx, doc, rc, log)
			sess.Records[i] = rec
			if onDone != nil {
				onDone(rec)
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, rec := range sess.Records {
		sess.Files = append(sess.Files, rec.Outcome())
		sess.PIIItems += rec.PIIItems()
		sess.PHIItems += rec.PHIItems()
	}
	sess.FilesProcessed = len(sess.Records)
	sess.ProcessingTime = p.now().Sub(start).Seconds()

	log.Info("session complete",
		"files", sess.FilesProcessed,
		"pii_items", sess.PIIItems,
		"phi_items", sess.PHIItems,
		"seconds", sess.ProcessingTime,
	)
	return sess
}

// safeProcess isolates a panicking document to its own failed record.
func (p *Pipeline) safeProcess(ctx context.Context, doc Document, rc *replace.Context, log *slog.Logger) (rec Record) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("document panicked", "filename", doc.Filename, "panic", r)
			rec = Record{
				ID:       doc.ID,
				Filename: doc.Filename,
				Size:     doc.Size,
				Status:   RecordFailed,
				Error:    fmt.Sprintf("Error: %v", r),
			}
		}
	}()
	return p.Process(ctx, doc, rc)
}
