package api

import (
	"net/http"
)

func (s *Server) handleOracleStats(w http.ResponseWriter, r *http.Request) {
	if s.oracleStats == nil {
		jsonError(w, "oracle stats unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"model": s.cfg.OracleModel,
		"stats": s.oracleStats.Snapshot(),
	})
}
