package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/meridianlabs/dealdesk/analytics"
	"github.com/meridianlabs/dealdesk/api/metrics"
)

// handleRunReport executes an ad-hoc report spec and returns the envelope
// described by the analytics package: rows, row count, elapsed time and a
// redacted echo of the compiled SQL.
func (s *Server) handleRunReport(w http.ResponseWriter, r *http.Request) {
	var spec analytics.QuerySpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.runReport(r.Context(), w, spec)
}

// handleCatalog returns the source registry's introspection view: sources,
// fields grouped by category, legal aggregations per type and legal date
// transforms. Schema metadata only, no data.
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.registry.Catalog())
}

// runReport is shared by the ad-hoc and saved-report run paths.
func (s *Server) runReport(ctx context.Context, w http.ResponseWriter, spec analytics.QuerySpec) {
	start := time.Now()
	result := s.executor.Execute(ctx, spec)
	elapsed := time.Since(start)

	switch {
	case result.Success:
		metrics.RecordReportQuery(result.Query.Source, s.storeFor(spec.Source), elapsed, true)
		s.writeJSON(w, http.StatusOK, result)
	case result.Query.SQL == "":
		// Rejected before compilation finished; no store was touched.
		metrics.RecordValidationFailure()
		s.writeJSON(w, http.StatusBadRequest, result)
	case result.TimedOut:
		metrics.RecordReportQuery(result.Query.Source, s.storeFor(spec.Source), elapsed, false)
		s.writeJSON(w, http.StatusGatewayTimeout, result)
	default:
		metrics.RecordReportQuery(result.Query.Source, s.storeFor(spec.Source), elapsed, false)
		s.writeJSON(w, http.StatusInternalServerError, result)
	}
}

// storeFor resolves a source's store key for metric labels.
func (s *Server) storeFor(sourceKey string) string {
	src, err := s.registry.Source(sourceKey)
	if err != nil {
		return "unknown"
	}
	return src.Store
}
