// Package http provides the HTTP API for the metering service.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/printforge/genmeter/app"
)

// Handler exposes the metering service to its external callers: the
// design-generation workflow, the session workflow, and UI stats badges.
type Handler struct {
	meter   *app.MeterService
	logger  zerolog.Logger
	version string
}

// NewHandler creates a new HTTP handler.
func NewHandler(meter *app.MeterService, logger zerolog.Logger, version string) *Handler {
	return &Handler{meter: meter, logger: logger, version: version}
}

// Routes builds the router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	r.Get("/version", h.handleVersion)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/quota/check", h.handleCheck)
		r.Post("/usage", h.handleRecord)
		r.Get("/stats/{userID}", h.handleStats)
		r.Get("/events/{userID}", h.handleEvents)
		r.Post("/sweep", h.handleSweepAll)
		r.Post("/sweep/{userID}", h.handleSweep)
	})

	return r
}

// -----------------------------------------------------------------------------
// Request/response shapes
// -----------------------------------------------------------------------------

type checkRequest struct {
	UserID string `json:"user_id"`
}

type checkResponse struct {
	Allowed    bool   `json:"allowed"`
	Reason     string `json:"reason,omitempty"`
	HourlyUsed int64  `json:"hourly_used"`
	DailyUsed  int64  `json:"daily_used"`
}

type recordRequest struct {
	UserID string `json:"user_id"`
	Source string `json:"source,omitempty"`
}

type eventResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// handleCheck decides whether the caller may perform one more generation.
// Deny responses still use HTTP 200; the decision is the payload.
func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !h.decode(w, r, &req) {
		return
	}

	d, err := h.meter.CheckQuota(r.Context(), req.UserID)
	if err != nil {
		h.writeMeterError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, checkResponse{
		Allowed:    d.Allowed,
		Reason:     d.Reason,
		HourlyUsed: d.HourlyUsed,
		DailyUsed:  d.DailyUsed,
	})
}

// handleRecord charges one generation. Storage trouble is not the caller's
// problem, so anything past input validation responds 202.
func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.meter.RecordUsage(r.Context(), req.UserID, req.Source); err != nil {
		h.writeMeterError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.meter.GetStats(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeMeterError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	events, err := h.meter.RecentEvents(r.Context(), chi.URLParam(r, "userID"), limit)
	if err != nil {
		h.writeMeterError(w, err)
		return
	}
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, eventResponse{ID: e.ID, UserID: e.UserID, Source: e.Source, CreatedAt: e.CreatedAt})
	}
	writeJSON(w, http.StatusOK, map[string][]eventResponse{"events": out})
}

// handleSweep runs the per-user retention sweep; the session workflow
// calls this after a successful login.
func (h *Handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	res, err := h.meter.SweepIfStale(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeMeterError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleSweepAll(w http.ResponseWriter, r *http.Request) {
	res, err := h.meter.SweepAll(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("global sweep failed")
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "Usage store is unreachable")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"service": "genmeter", "version": h.version})
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid JSON body")
		return false
	}
	return true
}

func (h *Handler) writeMeterError(w http.ResponseWriter, err error) {
	if errors.Is(err, app.ErrInvalidUserID) {
		writeError(w, http.StatusBadRequest, "invalid_user_id", "A non-empty user_id is required")
		return
	}
	h.logger.Error().Err(err).Msg("metering request failed")
	writeError(w, http.StatusInternalServerError, "internal_error", "Internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}
