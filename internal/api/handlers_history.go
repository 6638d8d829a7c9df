package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/NarendraPati1/deIdentifier/internal/export"
	"github.com/NarendraPati1/deIdentifier/internal/pipeline"
	"github.com/NarendraPati1/deIdentifier/internal/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// handleDownloadResults renders posted records as an XLSX workbook.
func (s *Server) handleDownloadResults(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	var req struct {
		PIIPHIData []map[string]any `json:"piiPhiData"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.PIIPHIData) == 0 {
		jsonError(w, "No data to download", http.StatusBadRequest)
		return
	}

	rows := make([][]string, 0, len(req.PIIPHIData))
	for _, fields := range req.PIIPHIData {
		rows = append(rows, pipeline.RowFromFields(fields))
	}

	now := s.now()
	data, err := export.Workbook(rows, now, s.log)
	if err != nil {
		s.log.Error("export failed", "error", err)
		jsonError(w, "failed to build workbook", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(now)+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleRedactionsHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		jsonError(w, "redaction log disabled", http.StatusServiceUnavailable)
		return
	}
	userID := chi.URLParam(r, "userID")
	history, err := s.store.History(r.Context(), userID)
	if err != nil {
		s.log.Error("load redaction history failed", "user_id", userID, "error", err)
		jsonError(w, "Failed to load history", http.StatusInternalServerError)
		return
	}
	if history == nil {
		history = []store.Redaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "history": history})
}

func (s *Server) handleSessionsHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		jsonError(w, "redaction log disabled", http.StatusServiceUnavailable)
		return
	}
	userID := chi.URLParam(r, "userID")
	sessions, err := s.store.Sessions(r.Context(), userID)
	if err != nil {
		s.log.Error("load sessions failed", "user_id", userID, "error", err)
		jsonError(w, "Failed to load sessions", http.StatusInternalServerError)
		return
	}
	if sessions == nil {
		sessions = []store.SessionRow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "sessions": sessions})
}
