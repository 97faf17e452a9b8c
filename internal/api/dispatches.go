package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/soochol/txsched/internal/repository"
	"github.com/soochol/txsched/internal/txsched"
)

// listDispatches returns dispatch attempts with pagination.
// GET /api/dispatches?transaction_id=&status=&limit=50&offset=0
func (s *Server) listDispatches(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusOK, map[string]any{"dispatches": []any{}, "total": 0})
		return
	}

	q := r.URL.Query()
	status := txsched.DispatchStatus(q.Get("status"))
	if status != "" && status != txsched.DispatchSuccess && status != txsched.DispatchFailed {
		writeError(w, http.StatusBadRequest, "status must be one of success, failed")
		return
	}
	limit, offset := parsePagination(r)

	recs, total, err := s.history.List(r.Context(), txsched.DispatchFilter{
		TransactionID: q.Get("transaction_id"),
		Status:        status,
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if recs == nil {
		recs = []*txsched.DispatchRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"dispatches": recs,
		"total":      total,
	})
}

// getDispatch returns a single dispatch attempt.
// GET /api/dispatches/{id}
func (s *Server) getDispatch(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "dispatch history not available")
		return
	}

	rec, err := s.history.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "dispatch not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// parsePagination extracts limit and offset query parameters. Missing or
// malformed values are left at zero for the history service to default.
func parsePagination(r *http.Request) (int, int) {
	limit, offset := 0, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
