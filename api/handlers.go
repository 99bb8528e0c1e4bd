/*
handlers.go - HTTP handlers

ERROR MAPPING:
  ValidationError, malformed input  -> 400
  unknown document                  -> 404
  StateError, ConflictError,
  duplicate document number         -> 409
  StorageError, anything else       -> 500

Handlers stay thin: decode, call the engine or a store query, encode.
All posting semantics live in the posting package.
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sitebook/posting-engine/posting"
	"github.com/sitebook/posting-engine/register"
	"github.com/sitebook/posting-engine/store/sqlite"
)

// =============================================================================
// DOCUMENT CREATION
// =============================================================================

func (s *Server) handleCreateEstimate(w http.ResponseWriter, r *http.Request) {
	var req createEstimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, "invalid request body")
		return
	}
	est, err := req.toDocument()
	if err != nil {
		s.writeBadRequest(w, err.Error())
		return
	}
	if err := s.store.CreateEstimate(r.Context(), est); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toEstimateResponse(est))
}

func (s *Server) handleCreateDailyReport(w http.ResponseWriter, r *http.Request) {
	var req createDailyReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, "invalid request body")
		return
	}
	rep, err := req.toDocument()
	if err != nil {
		s.writeBadRequest(w, err.Error())
		return
	}
	if err := s.store.CreateDailyReport(r.Context(), rep); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toDailyReportResponse(rep))
}

func (s *Server) handleCreateTimesheet(w http.ResponseWriter, r *http.Request) {
	var req createTimesheetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, "invalid request body")
		return
	}
	ts, err := req.toDocument()
	if err != nil {
		s.writeBadRequest(w, err.Error())
		return
	}
	if err := s.store.CreateTimesheet(r.Context(), ts); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toTimesheetResponse(ts))
}

func (s *Server) handleListDocuments(docType register.RecorderType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := s.store.ListDocuments(r.Context(), docType)
		if err != nil {
			s.writeError(w, err)
			return
		}
		resp := make([]documentSummaryResponse, 0, len(docs))
		for _, d := range docs {
			resp = append(resp, toSummaryResponse(d))
		}
		s.writeJSON(w, http.StatusOK, resp)
	}
}

// =============================================================================
// DOCUMENT LIFECYCLE
// =============================================================================

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.refFromPath(w, r)
	if !ok {
		return
	}
	doc, err := s.store.LoadDocument(r.Context(), ref)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.refFromPath(w, r)
	if !ok {
		return
	}
	if err := s.store.SoftDelete(r.Context(), ref); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.refFromPath(w, r)
	if !ok {
		return
	}
	summary, err := s.engine.Post(r.Context(), ref)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, postedResponse{
		Type:              string(summary.Ref.Type),
		ID:                summary.Ref.ID,
		PostedAt:          summary.PostedAt.Format(time.RFC3339),
		WorkExecutionRows: summary.WorkExecutionRows,
		PayrollRows:       summary.PayrollRows,
	})
}

func (s *Server) handleUnpost(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.refFromPath(w, r)
	if !ok {
		return
	}
	if err := s.engine.Unpost(r.Context(), ref); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// BALANCES
// =============================================================================

func (s *Server) handleWorkBalance(w http.ResponseWriter, r *http.Request) {
	estimateID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeBadRequest(w, "invalid estimate id")
		return
	}
	balances, err := s.balances.WorkBalance(r.Context(), estimateID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := make([]workBalanceResponse, 0, len(balances))
	for _, b := range balances {
		resp = append(resp, toWorkBalanceResponse(b))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePayrollSummary(w http.ResponseWriter, r *http.Request) {
	period, err := register.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		s.writeBadRequest(w, err.Error())
		return
	}
	summaries, err := s.balances.PayrollSummary(r.Context(), period)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := make([]payrollSummaryResponse, 0, len(summaries))
	for _, ps := range summaries {
		resp = append(resp, payrollSummaryResponse{
			EmployeeID:  ps.EmployeeID,
			TotalHours:  ps.TotalHours,
			TotalAmount: ps.TotalAmount,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// REGISTER INSPECTION
// =============================================================================

func (s *Server) handleWorkExecutionRows(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.refFromQuery(w, r)
	if !ok {
		return
	}
	rows, err := s.store.WorkExecutionByRecorder(r.Context(), rec)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := make([]workExecutionRowResponse, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, toWorkExecutionRowResponse(row))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePayrollRows(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.refFromQuery(w, r)
	if !ok {
		return
	}
	rows, err := s.store.PayrollByRecorder(r.Context(), rec)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := make([]payrollRowResponse, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, toPayrollRowResponse(row))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// CATALOGS
// =============================================================================

func (s *Server) handleCreateWork(w http.ResponseWriter, r *http.Request) {
	var req catalogEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		s.writeBadRequest(w, "name is required")
		return
	}
	work := &sqlite.Work{Name: req.Name, Unit: req.Unit}
	if err := s.store.CreateWork(r.Context(), work); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, work)
}

func (s *Server) handleListWorks(w http.ResponseWriter, r *http.Request) {
	works, err := s.store.ListWorks(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, works)
}

func (s *Server) handleCreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req catalogEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		s.writeBadRequest(w, "name is required")
		return
	}
	employee := &sqlite.Employee{Name: req.Name, Position: req.Position}
	if err := s.store.CreateEmployee(r.Context(), employee); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, employee)
}

func (s *Server) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := s.store.ListEmployees(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, employees)
}

func (s *Server) handleCreateObject(w http.ResponseWriter, r *http.Request) {
	var req catalogEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		s.writeBadRequest(w, "name is required")
		return
	}
	object := &sqlite.Object{Name: req.Name, Address: req.Address}
	if err := s.store.CreateObject(r.Context(), object); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, object)
}

func (s *Server) handleListObjects(w http.ResponseWriter, r *http.Request) {
	objects, err := s.store.ListObjects(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, objects)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *Server) writeBadRequest(w http.ResponseWriter, msg string) {
	s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg, Kind: "validation"})
}

// writeError maps the posting error taxonomy onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case posting.IsNotFound(err):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), Kind: "not_found"})
	case errors.Is(err, posting.ErrValidation):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "validation"})
	case errors.Is(err, posting.ErrState):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Kind: "state"})
	case errors.Is(err, posting.ErrConflict):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Kind: "conflict"})
	case errors.Is(err, sqlite.ErrDuplicateNumber):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Kind: "conflict"})
	default:
		s.logger.Error("request failed", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Kind: "storage"})
	}
}

// refFromPath builds a recorder ref from the {type}/{id} path segments.
func (s *Server) refFromPath(w http.ResponseWriter, r *http.Request) (register.RecorderRef, bool) {
	docType := register.RecorderType(chi.URLParam(r, "type"))
	if !docType.Valid() {
		s.writeBadRequest(w, "unknown document type")
		return register.RecorderRef{}, false
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeBadRequest(w, "invalid document id")
		return register.RecorderRef{}, false
	}
	return register.RecorderRef{Type: docType, ID: id}, true
}

// refFromQuery builds a recorder ref from recorder_type/recorder_id
// query parameters.
func (s *Server) refFromQuery(w http.ResponseWriter, r *http.Request) (register.RecorderRef, bool) {
	docType := register.RecorderType(r.URL.Query().Get("recorder_type"))
	if !docType.Valid() {
		s.writeBadRequest(w, "unknown recorder_type")
		return register.RecorderRef{}, false
	}
	id, err := strconv.ParseInt(r.URL.Query().Get("recorder_id"), 10, 64)
	if err != nil {
		s.writeBadRequest(w, "invalid recorder_id")
		return register.RecorderRef{}, false
	}
	return register.RecorderRef{Type: docType, ID: id}, true
}
