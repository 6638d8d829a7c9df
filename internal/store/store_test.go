package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/NarendraPati1/deIdentifier/internal/detect"
	"github.com/NarendraPati1/deIdentifier/internal/pipeline"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testSession(id, user string, at time.Time) pipeline.Session {
	var ok pipeline.Record
	ok.Filename = "scan.png"
	ok.Status = pipeline.RecordCompleted
	ok.PII.Set("Patient Name", detect.Scalar("Arjun Sharma"))
	ok.PHI.Set("symptom", detect.List("cough", "fever"))

	bad := pipeline.Record{Filename: "broken.pdf", Status: pipeline.RecordFailed, Error: "Error: boom"}

	return pipeline.Session{
		ID:             id,
		Name:           pipeline.SessionName(at),
		UserID:         user,
		CreatedAt:      at,
		FilesProcessed: 2,
		PIIItems:       1,
		PHIItems:       1,
		ProcessingTime: 1.5,
		Records:        []pipeline.Record{ok, bad},
	}
}

func TestSaveSessionAndHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	if err := s.SaveSession(ctx, testSession("s1", "u1", at)); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	hist, err := s.History(ctx, "u1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 1 {
		t.Fatalf("expected 1 redaction (failed files skipped), got %d", len(hist))
	}
	r := hist[0]
	if r.Filename != "scan.png" {
		t.Errorf("expected %q, got %q", "scan.png", r.Filename)
	}
	if r.SessionID != "s1" {
		t.Errorf("expected session s1, got %q", r.SessionID)
	}
	if r.Fields["Patient_Name"] != "Arjun Sharma" {
		t.Errorf("expected patient name, got %q", r.Fields["Patient_Name"])
	}
	if r.Fields["symptom"] != "cough; fever" {
		t.Errorf("expected joined symptoms, got %q", r.Fields["symptom"])
	}
	if r.Fields["email"] != "" {
		t.Errorf("expected empty email, got %q", r.Fields["email"])
	}
	if !r.ProcessedAt.Equal(at) {
		t.Errorf("expected processed_at %v, got %v", at, r.ProcessedAt)
	}

	other, err := s.History(ctx, "u2")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("expected no history for u2, got %d", len(other))
	}
}

func TestSessionsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"s1", "s2"} {
		if err := s.SaveSession(ctx, testSession(id, "u1", t0.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("SaveSession %s: %v", id, err)
		}
	}

	rows, err := s.Sessions(ctx, "u1")
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(rows))
	}
	if rows[0].ID != "s2" {
		t.Errorf("expected newest first, got %q", rows[0].ID)
	}
	if rows[1].Name != "Session_20240501_100000" {
		t.Errorf("expected %q, got %q", "Session_20240501_100000", rows[1].Name)
	}
	if rows[0].Status != "completed" || rows[0].FilesProcessed != 2 {
		t.Errorf("unexpected session row %+v", rows[0])
	}
	if rows[0].Notes != "Processed 2 files with redactions log" {
		t.Errorf("unexpected notes %q", rows[0].Notes)
	}
}

func TestSaveSessionDuplicateID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	sess := testSession("dup", "u1", time.Now())
	if err := s.SaveSession(ctx, sess); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := s.SaveSession(ctx, sess); err == nil {
		t.Fatal("expected error on duplicate session id")
	}
	hist, err := s.History(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 1 {
		t.Errorf("expected rollback to keep 1 redaction, got %d", len(hist))
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
	s.Close()

	// Reopen runs migrations idempotently.
	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	s.Close()
}
