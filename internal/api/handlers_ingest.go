package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/NarendraPati1/deIdentifier/internal/pipeline"
	"github.com/NarendraPati1/deIdentifier/internal/replace"
)

var errTooLarge = errors.New("file exceeds max size")

// handleProcessFiles runs a whole submission synchronously and returns the
// session with its records.
func (s *Server) handleProcessFiles(w http.ResponseWriter, r *http.Request) {
	userID, files, ok := s.parseUpload(w, r)
	if !ok {
		return
	}
	defer r.MultipartForm.RemoveAll()

	dir, docs, err := s.stageUploads(files)
	if err != nil {
		s.stageError(w, err)
		return
	}
	defer os.RemoveAll(dir)

	sess := s.orchestrator.Pipeline().ProcessBatch(r.Context(), userID, docs, nil)

	stored := false
	if s.store != nil {
		if err := s.store.SaveSession(r.Context(), sess); err != nil {
			s.log.Error("save session failed", "session_id", sess.ID, "error", err)
		} else {
			stored = true
		}
	}

	type comparison struct {
		Filename string         `json:"filename"`
		Pairs    []replace.Pair `json:"pairs"`
	}
	comparisons := make([]comparison, 0, len(sess.Records))
	for _, rec := range sess.Records {
		pairs := replace.Compare(rec.Original, rec.PII)
		if pairs == nil {
			pairs = []replace.Pair{}
		}
		comparisons = append(comparisons, comparison{Filename: rec.Filename, Pairs: pairs})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"sessionId":      sess.ID,
		"sessionName":    sess.Name,
		"filesProcessed": sess.FilesProcessed,
		"piiItems":       sess.PIIItems,
		"phiItems":       sess.PHIItems,
		"processingTime": sess.ProcessingTime,
		"files":          sess.Files,
		"piiPhiData":     sess.Records,
		"comparisons":    comparisons,
		"stored":         stored,
	})
}

// handleSubmitSession stages the upload and queues it as an async job.
func (s *Server) handleSubmitSession(w http.ResponseWriter, r *http.Request) {
	userID, files, ok := s.parseUpload(w, r)
	if !ok {
		return
	}
	defer r.MultipartForm.RemoveAll()

	dir, docs, err := s.stageUploads(files)
	if err != nil {
		s.stageError(w, err)
		return
	}

	job := pipeline.NewJob(uuid.NewString(), userID, docs, dir)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	snap := job.Snapshot()
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   snap.ID,
		"status":   snap.Status,
		"files":    snap.Progress.TotalFiles,
		"poll_url": fmt.Sprintf("/api/sessions/%s", snap.ID),
	})
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

// parseUpload reads the multipart form. It writes the error response itself
// and reports false when the request cannot proceed.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) (string, []*multipart.FileHeader, bool) {
	// Extra 10MB for form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+10<<20)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return "", nil, false
		}
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return "", nil, false
	}

	userID := r.FormValue("userId")
	if userID == "" {
		userID = r.FormValue("user_id")
	}
	if userID == "" {
		userID = "anonymous"
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		r.MultipartForm.RemoveAll()
		jsonError(w, "No files uploaded", http.StatusBadRequest)
		return "", nil, false
	}
	return userID, files, true
}

// stageUploads copies each uploaded file into a fresh temp directory. The
// caller owns the directory.
func (s *Server) stageUploads(files []*multipart.FileHeader) (string, []pipeline.Document, error) {
	dir, err := os.MkdirTemp("", "deid-upload-*")
	if err != nil {
		return "", nil, fmt.Errorf("create staging dir: %w", err)
	}

	docs := make([]pipeline.Document, 0, len(files))
	for i, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		// Index prefix keeps same-named uploads apart.
		path := filepath.Join(dir, fmt.Sprintf("%03d_%s", i, filename))
		n, err := saveUpload(fh, path, s.cfg.MaxUploadBytes)
		if err != nil {
			os.RemoveAll(dir)
			return "", nil, fmt.Errorf("%s: %w", filename, err)
		}
		docs = append(docs, pipeline.Document{
			ID:       uuid.NewString(),
			Path:     path,
			Filename: filename,
			Size:     n,
		})
	}
	return dir, docs, nil
}

func saveUpload(fh *multipart.FileHeader, path string, limit int64) (int64, error) {
	src, err := fh.Open()
	if err != nil {
		return 0, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create staged file: %w", err)
	}
	n, err := io.Copy(dst, io.LimitReader(src, limit+1))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("write staged file: %w", err)
	}
	if n > limit {
		return 0, errTooLarge
	}
	return n, nil
}

func (s *Server) stageError(w http.ResponseWriter, err error) {
	if errors.Is(err, errTooLarge) {
		jsonError(w, fmt.Sprintf("%s (%d bytes)", err, s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}
	s.log.Error("staging upload failed", "error", err)
	jsonError(w, "failed to stage upload", http.StatusInternalServerError)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "error": msg})
}

func sanitizeFilename(name string) string {
	// Browsers on Windows may send full paths.
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
