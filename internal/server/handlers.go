package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	runs, err := s.store.ListRuns(r.Context())
	if err != nil {
		s.logger.Error("list runs", "error", err, "request_id", reqID)
		respondError(w, reqID, http.StatusInternalServerError, "list runs failed")
		return
	}
	respondOK(w, reqID, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		s.logger.Error("get run", "run_id", id, "error", err, "request_id", reqID)
		respondError(w, reqID, http.StatusInternalServerError, "get run failed")
		return
	}
	if run == nil {
		respondError(w, reqID, http.StatusNotFound, "run '"+id+"' not found")
		return
	}
	respondOK(w, reqID, run)
}

func (s *Server) handleListSteps(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	recs, err := s.store.ListStepRecords(r.Context(), id)
	if err != nil {
		s.logger.Error("list step records", "run_id", id, "error", err, "request_id", reqID)
		respondError(w, reqID, http.StatusInternalServerError, "list steps failed")
		return
	}
	respondOK(w, reqID, recs)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	recs, err := s.store.ListTaskRecords(r.Context(), id)
	if err != nil {
		s.logger.Error("list task records", "run_id", id, "error", err, "request_id", reqID)
		respondError(w, reqID, http.StatusInternalServerError, "list tasks failed")
		return
	}
	respondOK(w, reqID, recs)
}
