/*
handlers.go - HTTP API handlers for the vacation workflow

PURPOSE:
  Exposes the workflow engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  GET    /api/me/summary               Caller's balance view
  GET    /api/dashboard                Caller's requests (+ queue for managers)
  POST   /api/requests                 Submit a new request
  PUT    /api/requests/{id}            Edit an open request's dates
  POST   /api/requests/{id}/cancel     Cancel an open request
  POST   /api/requests/{id}/decision   Manager decision
  GET    /health                       Liveness probe (unauthenticated)

ERROR HANDLING:
  Domain errors map to HTTP status by sentinel:
  - 400: validation
  - 401: unauthenticated
  - 403: unauthorized
  - 404: not found
  - 409: conflict, invalid transition
  - 422: insufficient balance
  - 429: rate limited
  - 503: engine busy (lock timeout)

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - vacation/engine.go: Domain logic
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/vacation-engine/vacation"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *vacation.Engine
	Ident  vacation.IdentityProvider
	Log    *zap.Logger
}

// NewHandler creates a new handler backed by the given engine. The
// identity provider is normally the Authenticator whose Middleware
// guards the routes.
func NewHandler(engine *vacation.Engine, ident vacation.IdentityProvider, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Engine: engine, Ident: ident, Log: log}
}

// identity resolves the verified caller, writing a 401 on failure.
func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (string, bool) {
	email, err := h.Ident.CurrentUser(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return "", false
	}
	return email, true
}

// =============================================================================
// READ ENDPOINTS
// =============================================================================

// GetSummary handles GET /api/me/summary.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}
	summary, err := h.Engine.GetEmployeeSummary(r.Context(), caller)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SummaryDTO{
		Name:    summary.Name,
		Email:   summary.Email,
		Team:    summary.Team,
		Balance: toBalanceDTO(summary.Balance),
	})
}

// GetDashboard handles GET /api/dashboard.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}
	dash, err := h.Engine.GetDashboard(r.Context(), caller)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DashboardDTO{
		Requests:         toRequestDTOs(dash.Requests),
		Balance:          toBalanceDTO(dash.Balance),
		IsManager:        dash.IsManager,
		AwaitingDecision: toRequestDTOs(dash.AwaitingDecision),
	})
}

// =============================================================================
// MUTATION ENDPOINTS
// =============================================================================

// CreateRequest handles POST /api/requests.
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var body SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	start, end, ok := h.parseDates(w, body)
	if !ok {
		return
	}
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}

	result, err := h.Engine.CreateRequest(r.Context(), caller, start, end)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMutationDTO(result))
}

// EditRequest handles PUT /api/requests/{id}.
func (h *Handler) EditRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var body SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	start, end, okDates := h.parseDates(w, body)
	if !okDates {
		return
	}
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}

	result, err := h.Engine.EditRequest(r.Context(), caller, id, start, end)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMutationDTO(result))
}

// CancelRequest handles POST /api/requests/{id}/cancel.
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	caller, ok := h.identity(w, r)
	if !ok {
		return
	}

	result, err := h.Engine.CancelRequest(r.Context(), caller, id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMutationDTO(result))
}

// DecideRequest handles POST /api/requests/{id}/decision.
func (h *Handler) DecideRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var body DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	caller, ok := h.identity(w, r)
	if !ok {
		return
	}

	result, err := h.Engine.DecideRequest(r.Context(), caller, id, vacation.Status(body.Decision))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMutationDTO(result))
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func toMutationDTO(result *vacation.Result) MutationDTO {
	return MutationDTO{
		Request:  toRequestDTO(result.Request),
		Warnings: result.Warnings,
	}
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (vacation.RequestID, bool) {
	raw := chi.URLParam(r, "id")
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		writeError(w, http.StatusBadRequest, "invalid request id")
		return 0, false
	}
	return vacation.RequestID(n), true
}

func (h *Handler) parseDates(w http.ResponseWriter, body SubmitRequest) (start, end vacation.Day, ok bool) {
	start, err := vacation.ParseDay(body.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
		return start, end, false
	}
	end, err = vacation.ParseDay(body.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD")
		return start, end, false
	}
	return start, end, true
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, vacation.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, vacation.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, vacation.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, vacation.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, vacation.ErrConflict), errors.Is(err, vacation.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, vacation.ErrInsufficientBalance):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, vacation.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, vacation.ErrBusy):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		h.Log.Error("internal error", zap.Error(err))
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorDTO{Error: msg})
}
