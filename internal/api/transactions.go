package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/soochol/txsched/internal/txsched"
)

// createTransaction schedules a one-time or recurring transaction.
// POST /api/transactions
func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	req, err := txsched.DecodeScheduleRequest(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ev := log.Info().Int64("user", req.UserID).Str("type", string(req.Type)).Str("schedule_at", req.ScheduleAt)
	if sub, ok := Subject(r.Context()); ok {
		ev = ev.Str("subject", sub)
	}
	ev.Msg("api: schedule request received")

	receipt, err := s.scheduler.ScheduleTransaction(r.Context(), req)
	if err != nil {
		if txsched.IsRequestError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Msg("api: schedule transaction failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

// listJobs returns every registered job.
// GET /api/jobs
func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.scheduler.ListJobs()
	if jobs == nil {
		jobs = []txsched.JobInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

// getJob returns a single registered job.
// GET /api/jobs/{id}
func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.scheduler.GetJob(chi.URLParam(r, "id"))
	if errors.Is(err, txsched.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}
