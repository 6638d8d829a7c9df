// Package detect wraps the entity-recognition oracle and collapses its
// output into label -> value mappings.
package detect

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/NarendraPati1/deIdentifier/internal/labels"
)

const DefaultThreshold = 0.5

// Oracle finds labelled spans in text.
type Oracle interface {
	Predict(ctx context.Context, text string, labels []string, threshold float64) ([]Entity, error)
}

// Result is the outcome of one detection pass over one label set.
type Result struct {
	Set      string
	Entities Mapping
	Demo     bool
	Err      error
}

// Failed reports whether the oracle faulted.
func (r Result) Failed() bool { return r.Err != nil }

// ErrorMessage renders the failure as "<set> Detection failed: ...".
func (r Result) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return fmt.Sprintf("%s Detection failed: %v", r.Set, r.Err)
}

// Mapping returns the detected entities, or a single "error" entry carrying
// ErrorMessage when detection failed.
func (r Result) Mapping() Mapping {
	if r.Err != nil {
		var m Mapping
		m.Set("error", Scalar(r.ErrorMessage()))
		return m
	}
	return r.Entities
}

type Options struct {
	Oracle    Oracle
	Threshold float64 // default 0.5
	MaxChars  int     // 0 sends the whole text in one call

	// Backoff overrides the retry delay; nil uses Backoff.
	Backoff func(attempt int) time.Duration
	Logger  *slog.Logger
}

// Adapter runs detection through an Oracle. With no oracle configured it
// returns fixed demonstration mappings.
type Adapter struct {
	oracle    Oracle
	threshold float64
	maxChars  int
	backoff   func(int) time.Duration
	log       *slog.Logger
}

func NewAdapter(opts Options) *Adapter {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Backoff == nil {
		opts.Backoff = Backoff
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Adapter{
		oracle:    opts.Oracle,
		threshold: opts.Threshold,
		maxChars:  opts.MaxChars,
		backoff:   opts.Backoff,
		log:       opts.Logger,
	}
}

// Available reports whether a real oracle is configured.
func (a *Adapter) Available() bool { return a.oracle != nil }

// Detect finds entities of set in text. threshold <= 0 uses the adapter
// default. It never panics: oracle faults come back in Result.Err.
func (a *Adapter) Detect(ctx context.Context, text string, set labels.Set, threshold float64) (res Result) {
	res.Set = set.Name
	if threshold <= 0 {
		threshold = a.threshold
	}

	if a.oracle == nil {
		res.Demo = true
		res.Entities = demoMapping(set.Name)
		return res
	}
	if strings.TrimSpace(text) == "" {
		return res
	}

	defer func() {
		if r := recover(); r != nil {
			a.log.Error("oracle panicked", "set", set.Name, "panic", r)
			res = Result{Set: set.Name, Err: fmt.Errorf("oracle panic: %v", r)}
		}
	}()

	windows := splitWindows(text, a.maxChars)
	for i, w := range windows {
		entities, err := a.predict(ctx, w, set, threshold)
		if err != nil {
			a.log.Error("detection failed", "set", set.Name, "window", i, "windows", len(windows), "error", err)
			return Result{Set: set.Name, Err: err}
		}
		for j := range entities {
			if ValidateEntity(&entities[j], set, threshold) {
				res.Entities.Add(entities[j].Label, entities[j].Text)
			}
		}
	}
	a.log.Debug("detection complete", "set", set.Name, "labels", res.Entities.Len(), "windows", len(windows))
	return res
}

func (a *Adapter) predict(ctx context.Context, text string, set labels.Set, threshold float64) ([]Entity, error) {
	var entities []Entity
	var lastErr error
	for attempt := range MaxRetries {
		entities, lastErr = a.oracle.Predict(ctx, text, set.Labels, threshold)
		if lastErr == nil || !IsRetryable(lastErr) {
			break
		}
		if attempt == MaxRetries-1 {
			break
		}
		a.log.Warn("retryable detection error", "set", set.Name, "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(a.backoff(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return entities, lastErr
}

// demoMapping is returned when no oracle is configured.
func demoMapping(set string) Mapping {
	var m Mapping
	switch set {
	case labels.PII.Name:
		m.Set("Patient Name", Scalar("John Doe"))
		m.Set("phone number", Scalar("+91-9876543210"))
		m.Set("email", Scalar("john.doe@example.com"))
	case labels.PHI.Name:
		m.Set("medical condition", Scalar("Hypertension"))
		m.Set("medication", Scalar("Lisinopril 10mg"))
		m.Set("Age", Scalar("45"))
	}
	return m
}
