package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/vacation-engine/api"
	"github.com/warp/vacation-engine/store/memory"
	"github.com/warp/vacation-engine/vacation"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type apiFixture struct {
	srv  *httptest.Server
	auth *api.Authenticator
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	store := memory.New()
	store.AddEmployee(vacation.Employee{
		ID: "e1", Name: "Alice Archer", Email: "alice@example.com", Team: "Platform",
		AllowanceTotal: decimal.NewFromInt(25),
	})
	store.AddEmployee(vacation.Employee{
		ID: "e2", Name: "Bob Breeze", Email: "bob@example.com", Team: "Platform",
		AllowanceTotal: decimal.NewFromInt(25),
	})
	store.SetManagers("boss@example.com")

	engine := vacation.NewEngine(vacation.Config{
		EnforceBalance: true,
		LockTimeout:    time.Second,
	}, vacation.Deps{
		Store:     store,
		Directory: store,
		Roster:    store,
	})

	auth := api.NewAuthenticator("test-secret", time.Hour)
	router := api.NewRouter(api.NewHandler(engine, auth, nil), auth)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &apiFixture{srv: srv, auth: auth}
}

func (f *apiFixture) do(t *testing.T, method, path, identity string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	require.NoError(t, err)
	if identity != "" {
		token, err := f.auth.IssueToken(identity)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// futureMonday mirrors the engine tests: a Monday far enough out that
// date validation passes under the real clock.
func futureMonday(weeks int) vacation.Day {
	d := vacation.Today().AddDays(7 * weeks)
	for d.Weekday() != time.Monday {
		d = d.AddDays(1)
	}
	return d
}

func submitBody(start, end vacation.Day) api.SubmitRequest {
	return api.SubmitRequest{StartDate: start.String(), EndDate: end.String()}
}

// =============================================================================
// AUTH
// =============================================================================

func TestAPI_HealthNeedsNoAuth(t *testing.T) {
	f := newAPIFixture(t)
	resp := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_MissingTokenRejected(t *testing.T) {
	f := newAPIFixture(t)
	resp := f.do(t, http.MethodGet, "/api/dashboard", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_GarbageTokenRejected(t *testing.T) {
	f := newAPIFixture(t)
	req, err := http.NewRequest(http.MethodGet, f.srv.URL+"/api/dashboard", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer not-a-token")

	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthenticator_CurrentUserWithoutIdentity(t *testing.T) {
	auth := api.NewAuthenticator("secret", 0)
	_, err := auth.CurrentUser(context.Background())
	assert.ErrorIs(t, err, vacation.ErrUnauthenticated)
}

// =============================================================================
// WORKFLOW ROUND TRIP
// =============================================================================

func TestAPI_CreateApproveFlow(t *testing.T) {
	// GIVEN: Alice submits a week via the API
	// WHEN: The manager approves it through the decision endpoint
	// THEN: Statuses and balance flow through the JSON layer intact
	f := newAPIFixture(t)
	mon := futureMonday(2)

	resp := f.do(t, http.MethodPost, "/api/requests", "alice@example.com",
		submitBody(mon, mon.AddDays(4)))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[api.MutationDTO](t, resp)
	assert.Equal(t, "Pending", created.Request.Status)
	assert.Equal(t, 5, created.Request.BusinessDays)

	path := fmt.Sprintf("/api/requests/%d/decision", created.Request.ID)
	resp = f.do(t, http.MethodPost, path, "boss@example.com",
		api.DecisionRequest{Decision: "Approved"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decided := decode[api.MutationDTO](t, resp)
	assert.Equal(t, "Approved", decided.Request.Status)

	resp = f.do(t, http.MethodGet, "/api/me/summary", "alice@example.com", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := decode[api.SummaryDTO](t, resp)
	assert.Equal(t, "Alice Archer", summary.Name)
	assert.Equal(t, "5", summary.Balance.Used)
	assert.Equal(t, "20", summary.Balance.Remaining)
}

func TestAPI_DashboardViews(t *testing.T) {
	f := newAPIFixture(t)
	mon := futureMonday(2)
	resp := f.do(t, http.MethodPost, "/api/requests", "alice@example.com",
		submitBody(mon, mon.AddDays(4)))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/dashboard", "boss@example.com", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	dash := decode[api.DashboardDTO](t, resp)
	assert.True(t, dash.IsManager)
	assert.Len(t, dash.AwaitingDecision, 1)

	resp = f.do(t, http.MethodGet, "/api/dashboard", "alice@example.com", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	dash = decode[api.DashboardDTO](t, resp)
	assert.False(t, dash.IsManager)
	assert.Len(t, dash.Requests, 1)
}

func TestAPI_EditAndCancel(t *testing.T) {
	f := newAPIFixture(t)
	mon := futureMonday(2)
	resp := f.do(t, http.MethodPost, "/api/requests", "alice@example.com",
		submitBody(mon, mon.AddDays(4)))
	created := decode[api.MutationDTO](t, resp)

	moved := futureMonday(5)
	resp = f.do(t, http.MethodPut, fmt.Sprintf("/api/requests/%d", created.Request.ID),
		"alice@example.com", submitBody(moved, moved.AddDays(1)))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	edited := decode[api.MutationDTO](t, resp)
	assert.Equal(t, moved.String(), edited.Request.StartDate)

	resp = f.do(t, http.MethodPost, fmt.Sprintf("/api/requests/%d/cancel", created.Request.ID),
		"alice@example.com", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cancelled := decode[api.MutationDTO](t, resp)
	assert.Equal(t, "Cancelled", cancelled.Request.Status)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestAPI_ErrorStatusMapping(t *testing.T) {
	f := newAPIFixture(t)
	mon := futureMonday(2)

	// 400: malformed date.
	resp := f.do(t, http.MethodPost, "/api/requests", "alice@example.com",
		api.SubmitRequest{StartDate: "next tuesday", EndDate: mon.String()})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// 400: domain validation (end before start).
	resp = f.do(t, http.MethodPost, "/api/requests", "alice@example.com",
		submitBody(mon.AddDays(4), mon))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Seed one good request.
	resp = f.do(t, http.MethodPost, "/api/requests", "alice@example.com",
		submitBody(mon, mon.AddDays(4)))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[api.MutationDTO](t, resp)

	// 409: overlapping duplicate.
	resp = f.do(t, http.MethodPost, "/api/requests", "alice@example.com",
		submitBody(mon.AddDays(1), mon.AddDays(2)))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	errBody := decode[api.ErrorDTO](t, resp)
	assert.NotEmpty(t, errBody.Error)

	// 403: non-manager deciding.
	path := fmt.Sprintf("/api/requests/%d/decision", created.Request.ID)
	resp = f.do(t, http.MethodPost, path, "bob@example.com",
		api.DecisionRequest{Decision: "Approved"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// 404: unknown id.
	resp = f.do(t, http.MethodPost, "/api/requests/99999/cancel", "alice@example.com", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// 400: non-numeric id.
	resp = f.do(t, http.MethodPost, "/api/requests/abc/cancel", "alice@example.com", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_InsufficientBalanceIs422(t *testing.T) {
	// GIVEN: Alice's allowance is 25 and she asks for 6 full weeks
	// WHEN: The manager plainly approves
	// THEN: 422, and the exception decision then succeeds
	f := newAPIFixture(t)
	mon := futureMonday(2)
	resp := f.do(t, http.MethodPost, "/api/requests", "alice@example.com",
		submitBody(mon, mon.AddDays(39)))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[api.MutationDTO](t, resp)
	require.Greater(t, created.Request.BusinessDays, 25)

	path := fmt.Sprintf("/api/requests/%d/decision", created.Request.ID)
	resp = f.do(t, http.MethodPost, path, "boss@example.com",
		api.DecisionRequest{Decision: "Approved"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = f.do(t, http.MethodPost, path, "boss@example.com",
		api.DecisionRequest{Decision: "ApprovedException"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_InvalidTransitionIs409(t *testing.T) {
	f := newAPIFixture(t)
	mon := futureMonday(2)
	resp := f.do(t, http.MethodPost, "/api/requests", "alice@example.com",
		submitBody(mon, mon.AddDays(4)))
	created := decode[api.MutationDTO](t, resp)

	path := fmt.Sprintf("/api/requests/%d/decision", created.Request.ID)
	resp = f.do(t, http.MethodPost, path, "boss@example.com",
		api.DecisionRequest{Decision: "Approved"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodPost, fmt.Sprintf("/api/requests/%d/cancel", created.Request.ID),
		"alice@example.com", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}
