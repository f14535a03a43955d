// Package api exposes job intake and status over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Veraticus/cardwise/internal/common"
	"github.com/Veraticus/cardwise/internal/importer"
	"github.com/Veraticus/cardwise/internal/jobs"
	"github.com/Veraticus/cardwise/internal/model"
)

// JobService queues jobs and reports on them.
type JobService interface {
	Enqueue(ctx context.Context, sessionID string, kind model.JobKind, priority int, input *model.JobInput) (string, error)
	Status(ctx context.Context, jobID string) (jobs.JobStatusView, error)
}

// Importer stores uploaded statements as sessions.
type Importer interface {
	Import(ctx context.Context, source string, txns []model.Transaction, opts importer.Options) (importer.Result, error)
}

// SessionReader reads sessions and their recommendations.
type SessionReader interface {
	GetSession(ctx context.Context, id string) (*model.Session, error)
	GetRecommendations(ctx context.Context, sessionID string) ([]model.Recommendation, error)
}

// Handler provides HTTP handlers for the API.
type Handler struct {
	jobs        JobService
	importer    Importer
	sessions    SessionReader
	logger      *slog.Logger
	maxBodySize int64
}

// HandlerOptions holds options for creating a handler.
type HandlerOptions struct {
	Logger      *slog.Logger
	MaxBodySize int64
}

// DefaultHandlerOptions returns default handler options.
func DefaultHandlerOptions() HandlerOptions {
	return HandlerOptions{
		MaxBodySize: 10 << 20,
	}
}

// NewHandler creates a handler. imp may be nil, in which case statement
// uploads are rejected.
func NewHandler(jobSvc JobService, imp Importer, sessions SessionReader, opts HandlerOptions) *Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = DefaultHandlerOptions().MaxBodySize
	}
	return &Handler{
		jobs:        jobSvc,
		importer:    imp,
		sessions:    sessions,
		logger:      opts.Logger,
		maxBodySize: opts.MaxBodySize,
	}
}

// CreateJobRequest is the body of POST /v1/jobs.
type CreateJobRequest struct {
	Input     *model.JobInput `json:"input,omitempty"`
	SessionID string          `json:"sessionId"`
	Kind      model.JobKind   `json:"kind"`
	Priority  int             `json:"priority"`
}

// CreateJobResponse acknowledges a queued job.
type CreateJobResponse struct {
	JobID  string          `json:"jobId"`
	Status model.JobStatus `json:"status"`
}

// CreateSessionRequest is the body of POST /v1/sessions.
type CreateSessionRequest struct {
	Profile      *model.UserProfile `json:"profile,omitempty"`
	Source       string             `json:"source"`
	Transactions []importer.Record  `json:"transactions"`
	Priority     int                `json:"priority"`
}

// RecommendationsResponse is the body of GET /v1/sessions/{id}/recommendations.
type RecommendationsResponse struct {
	SessionID       string                 `json:"sessionId"`
	Status          model.SessionStatus    `json:"status"`
	Recommendations []model.Recommendation `json:"recommendations"`
}

// CreateJob handles POST /v1/jobs.
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if !h.decode(w, r, &req) {
		return
	}

	req.SessionID = strings.TrimSpace(req.SessionID)
	if req.SessionID == "" {
		h.respondError(w, http.StatusBadRequest, "sessionId is required")
		return
	}
	if req.Kind == "" {
		req.Kind = model.KindProcessSession
	}
	if !req.Kind.Valid() {
		h.respondError(w, http.StatusBadRequest, "unknown job kind "+string(req.Kind))
		return
	}

	id, err := h.jobs.Enqueue(r.Context(), req.SessionID, req.Kind, req.Priority, req.Input)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.logger.Info("job queued", "job_id", id, "session_id", req.SessionID, "kind", req.Kind)
	h.respondJSON(w, http.StatusAccepted, CreateJobResponse{JobID: id, Status: model.JobQueued})
}

// GetJob handles GET /v1/jobs/{id}.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	view, err := h.jobs.Status(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, view)
}

// CreateSession handles POST /v1/sessions: it stores extractor records as a
// new session and queues it for processing.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	if h.importer == nil {
		h.respondError(w, http.StatusNotImplemented, "statement upload is not enabled")
		return
	}

	var req CreateSessionRequest
	if !h.decode(w, r, &req) {
		return
	}

	txns := make([]model.Transaction, 0, len(req.Transactions))
	for i, rec := range req.Transactions {
		txn, err := rec.Transaction("")
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "transaction "+strconv.Itoa(i)+": "+err.Error())
			return
		}
		txns = append(txns, txn)
	}

	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = "api"
	}
	result, err := h.importer.Import(r.Context(), source, txns, importer.Options{
		Profile:  req.Profile,
		Priority: req.Priority,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, result)
}

// GetRecommendations handles GET /v1/sessions/{id}/recommendations.
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	session, err := h.sessions.GetSession(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	recs, err := h.sessions.GetRecommendations(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	if recs == nil {
		recs = []model.Recommendation{}
	}

	h.respondJSON(w, http.StatusOK, RecommendationsResponse{
		SessionID:       session.ID,
		Status:          session.Status,
		Recommendations: recs,
	})
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			h.respondError(w, http.StatusBadRequest, "request body is required")
		case errors.As(err, &tooLarge):
			h.respondError(w, http.StatusRequestEntityTooLarge, "request body is too large")
		default:
			h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		}
		return false
	}
	return true
}

// respondErr maps a service error onto a status code.
func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		h.respondError(w, http.StatusNotFound, common.UserMessage(err))
	case errors.Is(err, common.ErrNoTransactions), errors.Is(err, importer.ErrMalformedRecords):
		h.respondError(w, http.StatusBadRequest, common.UserMessage(err))
	default:
		h.logger.Error("request failed", "error", err)
		h.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// respondJSON sends a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to write response", "error", err)
	}
}

// respondError sends an error response with the given status code and message.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
