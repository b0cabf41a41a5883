package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridianlabs/dealdesk/analytics"
	"github.com/meridianlabs/dealdesk/api/reports"
)

// savedReportRequest is the create/update payload. The spec is validated by
// compiling it against the registry before it is persisted, so a saved report
// can never hold a spec that references undeclared sources or fields.
type savedReportRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Spec        json.RawMessage `json:"spec"`
}

func (s *Server) decodeSavedReportRequest(w http.ResponseWriter, r *http.Request) (savedReportRequest, bool) {
	var req savedReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return req, false
	}
	if req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return req, false
	}
	var spec analytics.QuerySpec
	if err := json.Unmarshal(req.Spec, &spec); err != nil {
		s.writeError(w, http.StatusBadRequest, "spec is not a valid report definition")
		return req, false
	}
	if _, err := analytics.Compile(s.registry, spec, analytics.DefaultMaxLimit); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	return req, true
}

func (s *Server) savedReportID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid report id")
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) handleListSaved(w http.ResponseWriter, r *http.Request) {
	list, err := s.reports.List(r.Context())
	if err != nil {
		s.log.Error("failed to list saved reports", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list saved reports")
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateSaved(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeSavedReportRequest(w, r)
	if !ok {
		return
	}
	created, err := s.reports.Create(r.Context(), req.Name, req.Description, req.Spec)
	if err != nil {
		s.log.Error("failed to create saved report", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to create saved report")
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetSaved(w http.ResponseWriter, r *http.Request) {
	id, ok := s.savedReportID(w, r)
	if !ok {
		return
	}
	report, err := s.reports.Get(r.Context(), id)
	if errors.Is(err, reports.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		s.log.Error("failed to get saved report", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get saved report")
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleUpdateSaved(w http.ResponseWriter, r *http.Request) {
	id, ok := s.savedReportID(w, r)
	if !ok {
		return
	}
	req, ok := s.decodeSavedReportRequest(w, r)
	if !ok {
		return
	}
	updated, err := s.reports.Update(r.Context(), id, req.Name, req.Description, req.Spec)
	if errors.Is(err, reports.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		s.log.Error("failed to update saved report", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to update saved report")
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteSaved(w http.ResponseWriter, r *http.Request) {
	id, ok := s.savedReportID(w, r)
	if !ok {
		return
	}
	err := s.reports.Delete(r.Context(), id)
	if errors.Is(err, reports.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		s.log.Error("failed to delete saved report", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to delete saved report")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleDuplicateSaved(w http.ResponseWriter, r *http.Request) {
	id, ok := s.savedReportID(w, r)
	if !ok {
		return
	}
	copied, err := s.reports.Duplicate(r.Context(), id)
	if errors.Is(err, reports.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		s.log.Error("failed to duplicate saved report", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to duplicate saved report")
		return
	}
	s.writeJSON(w, http.StatusCreated, copied)
}

// handleRunSaved loads a saved report's spec and executes it through the same
// path as an ad-hoc run.
func (s *Server) handleRunSaved(w http.ResponseWriter, r *http.Request) {
	id, ok := s.savedReportID(w, r)
	if !ok {
		return
	}
	report, err := s.reports.Get(r.Context(), id)
	if errors.Is(err, reports.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		s.log.Error("failed to load saved report", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load saved report")
		return
	}

	var spec analytics.QuerySpec
	if err := json.Unmarshal(report.Spec, &spec); err != nil {
		s.writeError(w, http.StatusInternalServerError, "stored spec is not a valid report definition")
		return
	}

	s.runReport(r.Context(), w, spec)
}
