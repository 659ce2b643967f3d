package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/danielpatrickdp/progression-engine/internal/api"
	"github.com/danielpatrickdp/progression-engine/internal/orchestrator"
	"github.com/danielpatrickdp/progression-engine/internal/state"
)

const maxBody = 1 << 20

func (s *Server) handleAward(w http.ResponseWriter, r *http.Request) {
	var req api.AwardRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: "invalid json: " + err.Error()})
		return
	}
	res, err := s.engine.Award(r.Context(), req.ToEngine())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromAward(res))
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.State(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromSnapshot(snap))
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	entries, err := s.engine.Ledger(r.Context(), userID, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromEntries(userID, entries))
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	rec, err := s.engine.Reconcile(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	code := http.StatusOK
	if !rec.Consistent() {
		code = http.StatusConflict
	}
	writeJSON(w, code, api.FromReconciliation(rec))
}

// writeError maps engine errors onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, orchestrator.ErrInvalidInput):
		code = http.StatusBadRequest
	case errors.Is(err, state.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, orchestrator.ErrTransient):
		code = http.StatusServiceUnavailable
		w.Header().Set("Retry-After", "1")
	}
	if code >= 500 {
		s.logger.Warn("request failed", "path", r.URL.Path, "status", code, "err", err)
	}
	writeJSON(w, code, api.ErrorResponse{Error: err.Error()})
}
