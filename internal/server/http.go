// Package server exposes the sync and drift operations over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"driftline/internal/bootstrap/logging"
	domaindrift "driftline/internal/domain/drift"
	"driftline/internal/errs"
	"driftline/internal/ports"
	usecasedrift "driftline/internal/usecase/drift"
	"driftline/internal/usecase/sync"
)

const maxBodyBytes = 4 << 20

type Server struct {
	sync  *sync.Service
	drift *usecasedrift.Service
	jobs  ports.JobRepository
}

func NewServer(syncService *sync.Service, driftService *usecasedrift.Service, jobs ports.JobRepository) *Server {
	return &Server{sync: syncService, drift: driftService, jobs: jobs}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/sync/jobs", s.requestSync)
		api.Get("/sync/jobs", s.listJobs)
		api.Get("/sync/jobs/{job_id}", s.getJob)
		api.Post("/sync/jobs/{job_id}/cancel", s.cancelJob)

		api.Post("/environments", s.registerEnvironment)
		api.Get("/environments", s.listEnvironments)
		api.Get("/environments/{environment_id}/diff-states", s.diffStates)
		api.Get("/environments/{environment_id}/workflows/{canonical_id}/sync-status", s.workflowSyncStatus)
		api.Post("/environments/{environment_id}/drift-check", s.checkDrift)

		api.Post("/link-suggestions/{suggestion_id}/accept", s.acceptSuggestion)
		api.Post("/link-suggestions/{suggestion_id}/reject", s.rejectSuggestion)

		api.Get("/incidents", s.listIncidents)
		api.Get("/incidents/{incident_id}", s.getIncident)
		api.Get("/incidents/{incident_id}/transitions", s.listTransitions)
		api.Post("/incidents/{incident_id}/acknowledge", s.acknowledgeIncident)
		api.Post("/incidents/{incident_id}/stabilize", s.stabilizeIncident)
		api.Post("/incidents/{incident_id}/reconciled", s.markReconciled)
		api.Post("/incidents/{incident_id}/close", s.closeIncident)
		api.Post("/incidents/{incident_id}/extend-ttl", s.extendTTL)

		api.Get("/incidents/{incident_id}/approvals", s.listApprovals)
		api.Post("/incidents/{incident_id}/approvals", s.requestApproval)
		api.Post("/approvals/{approval_id}/approve", s.approveApproval)
		api.Post("/approvals/{approval_id}/reject", s.rejectApproval)
	})
	return r
}

func (s *Server) requestSync(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TenantID      string `json:"tenant_id"`
		EnvironmentID string `json:"environment_id"`
		Kind          string `json:"kind"`
		RequestedBy   string `json:"requested_by"`
		Run           bool   `json:"run"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	job, isNew, err := s.sync.RequestSync(r.Context(), req.TenantID, req.EnvironmentID, ports.JobKind(req.Kind), req.RequestedBy)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if isNew && req.Run {
		go s.runJobDetached(r.Context(), job)
	}
	status := http.StatusOK
	if isNew {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{"job": jobBody(job), "created": isNew})
}

// runJobDetached executes an admitted job after the HTTP request returns.
// The request context carries the logger but dies with the response, so the
// job runs under a fresh context holding the same logger.
func (s *Server) runJobDetached(requestCtx context.Context, job ports.SyncJob) {
	ctx := logging.WithLogger(context.Background(), logging.Logger(requestCtx))
	if err := s.sync.RunJob(ctx, job); err != nil {
		logging.Warn(ctx, "background sync job failed",
			slog.String("job_id", job.ID),
			slog.Any("err", errs.Loggable(err)))
	}
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFrom(r)
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = parsed
	}
	jobs, err := s.jobs.ListRecent(r.Context(), tenantID, limit)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	bodies := make([]map[string]any, 0, len(jobs))
	for _, job := range jobs {
		bodies = append(bodies, jobBody(job))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": bodies})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(r.Context(), chi.URLParam(r, "job_id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": jobBody(job)})
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	if err := s.sync.CancelJob(r.Context(), chi.URLParam(r, "job_id")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": true})
}

func (s *Server) registerEnvironment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID                  string `json:"id"`
		Name                string `json:"name"`
		Ordinal             int    `json:"ordinal"`
		RuntimeBaseURL      string `json:"runtime_base_url"`
		RepoFolder          string `json:"repo_folder"`
		RepoBranch          string `json:"repo_branch"`
		SyncIntervalSeconds int    `json:"sync_interval_seconds"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	env, err := s.sync.RegisterEnvironment(r.Context(), ports.Environment{
		ID:                  req.ID,
		TenantID:            tenantFrom(r),
		Name:                req.Name,
		Ordinal:             req.Ordinal,
		RuntimeBaseURL:      req.RuntimeBaseURL,
		RepoFolder:          req.RepoFolder,
		RepoBranch:          req.RepoBranch,
		SyncIntervalSeconds: req.SyncIntervalSeconds,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"environment": env})
}

func (s *Server) listEnvironments(w http.ResponseWriter, r *http.Request) {
	envs, err := s.sync.Environments(r.Context(), tenantFrom(r))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"environments": envs})
}

func (s *Server) diffStates(w http.ResponseWriter, r *http.Request) {
	states, err := s.sync.DiffStatesFor(r.Context(),
		tenantFrom(r),
		r.URL.Query().Get("source"),
		chi.URLParam(r, "environment_id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"diff_states": states})
}

func (s *Server) workflowSyncStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.sync.WorkflowSyncStatus(r.Context(),
		tenantFrom(r),
		chi.URLParam(r, "environment_id"),
		chi.URLParam(r, "canonical_id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sync_status": status})
}

func (s *Server) checkDrift(w http.ResponseWriter, r *http.Request) {
	incident, err := s.drift.CheckEnvironmentDrift(r.Context(), tenantFrom(r), chi.URLParam(r, "environment_id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if incident == nil {
		writeJSON(w, http.StatusOK, map[string]any{"drift": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"drift": true, "incident": incident})
}

func (s *Server) acceptSuggestion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Actor string `json:"actor"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.sync.AcceptLinkSuggestion(r.Context(), tenantFrom(r), chi.URLParam(r, "suggestion_id"), req.Actor); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": true})
}

func (s *Server) rejectSuggestion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Actor string `json:"actor"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.sync.RejectLinkSuggestion(r.Context(), tenantFrom(r), chi.URLParam(r, "suggestion_id"), req.Actor); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rejected": true})
}

func (s *Server) listIncidents(w http.ResponseWriter, r *http.Request) {
	filter := ports.IncidentFilter{EnvironmentID: r.URL.Query().Get("environment_id")}
	for _, status := range r.URL.Query()["status"] {
		filter.Statuses = append(filter.Statuses, domaindrift.IncidentStatus(status))
	}
	incidents, err := s.drift.ListIncidents(r.Context(), tenantFrom(r), filter)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"incidents": incidents})
}

func (s *Server) getIncident(w http.ResponseWriter, r *http.Request) {
	incident, err := s.drift.GetIncident(r.Context(), tenantFrom(r), chi.URLParam(r, "incident_id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"incident": incident})
}

func (s *Server) listTransitions(w http.ResponseWriter, r *http.Request) {
	transitions, err := s.drift.Transitions(r.Context(), tenantFrom(r), chi.URLParam(r, "incident_id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transitions": transitions})
}

type transitionRequest struct {
	Actor         string     `json:"actor"`
	Reason        string     `json:"reason"`
	OwnerUserID   string     `json:"owner_user_id"`
	TicketRef     string     `json:"ticket_ref"`
	ExpiresAt     *time.Time `json:"expires_at"`
	AdminOverride bool       `json:"admin_override"`
}

func (req transitionRequest) input(incidentID string) usecasedrift.TransitionInput {
	return usecasedrift.TransitionInput{
		IncidentID:    incidentID,
		Actor:         req.Actor,
		Reason:        req.Reason,
		OwnerUserID:   req.OwnerUserID,
		TicketRef:     req.TicketRef,
		ExpiresAt:     req.ExpiresAt,
		AdminOverride: req.AdminOverride,
	}
}

func (s *Server) acknowledgeIncident(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.drift.Acknowledge)
}

func (s *Server) stabilizeIncident(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.drift.Stabilize)
}

func (s *Server) markReconciled(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.drift.MarkReconciled)
}

func (s *Server) extendTTL(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.drift.ExtendTTL)
}

func (s *Server) transition(
	w http.ResponseWriter,
	r *http.Request,
	apply func(context.Context, string, usecasedrift.TransitionInput) (usecasedrift.IncidentView, error),
) {
	var req transitionRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	incident, err := apply(r.Context(), tenantFrom(r), req.input(chi.URLParam(r, "incident_id")))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"incident": incident})
}

func (s *Server) closeIncident(w http.ResponseWriter, r *http.Request) {
	var req struct {
		transitionRequest
		ResolutionType string `json:"resolution_type"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	incident, err := s.drift.Close(r.Context(), tenantFrom(r), usecasedrift.CloseInput{
		TransitionInput: req.input(chi.URLParam(r, "incident_id")),
		ResolutionType:  req.ResolutionType,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"incident": incident})
}

func (s *Server) listApprovals(w http.ResponseWriter, r *http.Request) {
	approvals, err := s.drift.ListApprovals(r.Context(), tenantFrom(r), chi.URLParam(r, "incident_id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"approvals": approvals})
}

func (s *Server) requestApproval(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ApprovalType string         `json:"approval_type"`
		RequestedBy  string         `json:"requested_by"`
		Payload      map[string]any `json:"payload"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	approval, err := s.drift.RequestApproval(r.Context(),
		tenantFrom(r),
		chi.URLParam(r, "incident_id"),
		domaindrift.ApprovalType(req.ApprovalType),
		req.RequestedBy,
		req.Payload)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"approval": approval})
}

func (s *Server) approveApproval(w http.ResponseWriter, r *http.Request) {
	s.decideApproval(w, r, s.drift.Approve)
}

func (s *Server) rejectApproval(w http.ResponseWriter, r *http.Request) {
	s.decideApproval(w, r, s.drift.Reject)
}

func (s *Server) decideApproval(
	w http.ResponseWriter,
	r *http.Request,
	decide func(context.Context, string, string, string) (ports.DriftApproval, error),
) {
	var req struct {
		DecidedBy string `json:"decided_by"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	approval, err := decide(r.Context(), tenantFrom(r), chi.URLParam(r, "approval_id"), req.DecidedBy)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"approval": approval})
}

func jobBody(job ports.SyncJob) map[string]any {
	body := map[string]any{
		"id":             job.ID,
		"tenant_id":      job.TenantID,
		"environment_id": job.EnvironmentID,
		"kind":           job.Kind,
		"status":         job.Status,
		"requested_by":   job.RequestedBy,
		"created_at":     job.CreatedAt,
	}
	if job.Error != "" {
		body["error"] = job.Error
	}
	if job.StartedAt != nil {
		body["started_at"] = job.StartedAt
	}
	if job.FinishedAt != nil {
		body["finished_at"] = job.FinishedAt
	}
	return body
}

func tenantFrom(r *http.Request) string {
	if tenantID := r.Header.Get("X-Tenant-ID"); tenantID != "" {
		return tenantID
	}
	return r.URL.Query().Get("tenant_id")
}

func readJSON(r *http.Request, target any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, target)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ports.ErrEnvironmentNotFound),
		errors.Is(err, ports.ErrWorkflowNotFound),
		errors.Is(err, ports.ErrEnvMapNotFound),
		errors.Is(err, ports.ErrGitStateNotFound),
		errors.Is(err, ports.ErrSuggestionNotFound),
		errors.Is(err, ports.ErrJobNotFound),
		errors.Is(err, ports.ErrIncidentNotFound),
		errors.Is(err, ports.ErrApprovalNotFound),
		errors.Is(err, ports.ErrRuntimeNotFound):
		return http.StatusNotFound
	case errors.Is(err, domaindrift.ErrIllegalTransition),
		errors.Is(err, domaindrift.ErrIncidentClosed),
		errors.Is(err, domaindrift.ErrApprovalDecided),
		errors.Is(err, ports.ErrDuplicateActiveJob):
		return http.StatusConflict
	case errors.Is(err, domaindrift.ErrResolutionTypeRequired),
		errors.Is(err, domaindrift.ErrReasonRequired),
		errors.Is(err, domaindrift.ErrSelfApproval),
		errors.Is(err, domaindrift.ErrApproverMissing),
		errors.Is(err, domaindrift.ErrUnknownApprovalType):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ports.ErrRuntimeUnavailable),
		errors.Is(err, ports.ErrRepositoryUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
