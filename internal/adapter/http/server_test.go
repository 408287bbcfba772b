package httpadapter_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/thermasense/telemetry-engine/internal/adapter/http"
	"github.com/thermasense/telemetry-engine/internal/domain"
	"github.com/thermasense/telemetry-engine/internal/engine"
	"github.com/thermasense/telemetry-engine/internal/identity"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubEngine struct {
	accepted  []domain.TelemetryReading
	acceptErr error
	current   engine.Current
	buckets   []domain.Bucket
	lastQuery domain.Granularity
}

func (s *stubEngine) Accept(temp, humidity float64, source domain.Source) error {
	if s.acceptErr != nil {
		return s.acceptErr
	}
	s.accepted = append(s.accepted, domain.TelemetryReading{Temp: temp, Humidity: humidity})
	return nil
}

func (s *stubEngine) Current() engine.Current { return s.current }

func (s *stubEngine) Analytics(g domain.Granularity) []domain.Bucket {
	s.lastQuery = g
	return s.buckets
}

type stubUsers struct {
	signUpUser identity.User
	signUpErr  error
	authUser   identity.User
	authErr    error
	users      []identity.User
	approveErr error
	deleteErr  error
	approved   []int64
	deleted    []int64
}

func (s *stubUsers) SignUp(ctx context.Context, name, email, password string) (identity.User, error) {
	return s.signUpUser, s.signUpErr
}

func (s *stubUsers) Authenticate(ctx context.Context, email, password string) (identity.User, error) {
	return s.authUser, s.authErr
}

func (s *stubUsers) List(ctx context.Context) ([]identity.User, error) { return s.users, nil }

func (s *stubUsers) Approve(ctx context.Context, id int64) error {
	s.approved = append(s.approved, id)
	return s.approveErr
}

func (s *stubUsers) Delete(ctx context.Context, id int64) error {
	s.deleted = append(s.deleted, id)
	return s.deleteErr
}

type stubReadiness struct{ err error }

func (s *stubReadiness) CheckReadiness(ctx context.Context) error { return s.err }

func newTestServer(eng *stubEngine, users *stubUsers, ready *stubReadiness) *httpadapter.Server {
	if eng == nil {
		eng = &stubEngine{}
	}
	if users == nil {
		users = &stubUsers{}
	}
	if ready == nil {
		ready = &stubReadiness{}
	}
	wsStub := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusSwitchingProtocols)
	})
	return httpadapter.NewServer(":0", eng, users, wsStub, ready, discardLogger())
}

func doJSON(t *testing.T, srv *httpadapter.Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestIngestAcceptsReading(t *testing.T) {
	eng := &stubEngine{}
	srv := newTestServer(eng, nil, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/telemetry", `{"temp": 32.0, "humidity": 70.0}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success": true, "message": "Data received"}`, rec.Body.String())
	require.Len(t, eng.accepted, 1)
	assert.InDelta(t, 32.0, eng.accepted[0].Temp, 1e-9)
	assert.InDelta(t, 70.0, eng.accepted[0].Humidity, 1e-9)
}

func TestIngestRejectsMissingFields(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{name: "missing humidity", body: `{"temp": 32.0}`},
		{name: "missing temp", body: `{"humidity": 70.0}`},
		{name: "empty object", body: `{}`},
		{name: "malformed json", body: `{"temp": `},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			eng := &stubEngine{}
			srv := newTestServer(eng, nil, nil)

			rec := doJSON(t, srv, http.MethodPost, "/api/telemetry", tc.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"success": false, "message": "Missing temp or humidity"}`, rec.Body.String())
			assert.Empty(t, eng.accepted)
		})
	}
}

func TestIngestRejectsNonFiniteValues(t *testing.T) {
	eng := &stubEngine{acceptErr: domain.ErrNotFinite}
	srv := newTestServer(eng, nil, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/telemetry", `{"temp": 32.0, "humidity": 70.0}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestAcceptsZeroValues(t *testing.T) {
	eng := &stubEngine{}
	srv := newTestServer(eng, nil, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/telemetry", `{"temp": 0, "humidity": 0}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, eng.accepted, 1)
}

func TestCurrentReportsState(t *testing.T) {
	ts := time.Date(2026, 8, 2, 14, 30, 0, 0, time.UTC)
	eng := &stubEngine{current: engine.Current{Temp: 31.5, Humidity: 62, Timestamp: ts, IsFresh: true}}
	srv := newTestServer(eng, nil, nil)

	rec := doJSON(t, srv, http.MethodGet, "/api/telemetry/current", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Temp        float64   `json:"temp"`
		Humidity    float64   `json:"humidity"`
		Timestamp   time.Time `json:"timestamp"`
		IsConnected bool      `json:"isConnected"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.InDelta(t, 31.5, got.Temp, 1e-9)
	assert.InDelta(t, 62.0, got.Humidity, 1e-9)
	assert.True(t, ts.Equal(got.Timestamp))
	assert.True(t, got.IsConnected)
}

func TestCurrentStaleReportsDisconnected(t *testing.T) {
	eng := &stubEngine{current: engine.Current{Temp: 31.5, Humidity: 62, IsFresh: false}}
	srv := newTestServer(eng, nil, nil)

	rec := doJSON(t, srv, http.MethodGet, "/api/telemetry/current", "")

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, false, got["isConnected"])
}

func TestAnalyticsReturnsBuckets(t *testing.T) {
	start := time.Date(2026, 8, 2, 14, 30, 0, 0, time.UTC)
	eng := &stubEngine{buckets: []domain.Bucket{{
		Start:         start,
		Label:         "14:30",
		MeanTemp:      25,
		MeanHumidity:  50,
		MeanHeatIndex: 25.5,
	}}}
	srv := newTestServer(eng, nil, nil)

	rec := doJSON(t, srv, http.MethodGet, "/api/telemetry/analytics?interval=minute", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.GranularityMinute, eng.lastQuery)

	var got []struct {
		Time      string    `json:"time"`
		Temp      float64   `json:"temp"`
		Humidity  float64   `json:"humidity"`
		HeatIndex float64   `json:"heatIndex"`
		Timestamp time.Time `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "14:30", got[0].Time)
	assert.InDelta(t, 25.0, got[0].Temp, 1e-9)
	assert.InDelta(t, 25.5, got[0].HeatIndex, 1e-9)
	assert.True(t, start.Equal(got[0].Timestamp))
}

func TestAnalyticsEmptyHistoryReturnsEmptyArray(t *testing.T) {
	srv := newTestServer(&stubEngine{}, nil, nil)

	rec := doJSON(t, srv, http.MethodGet, "/api/telemetry/analytics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestAnalyticsUnknownIntervalDefaultsToHour(t *testing.T) {
	eng := &stubEngine{}
	srv := newTestServer(eng, nil, nil)

	doJSON(t, srv, http.MethodGet, "/api/telemetry/analytics?interval=fortnight", "")

	assert.Equal(t, domain.GranularityHour, eng.lastQuery)
}

func TestSignUpSuccess(t *testing.T) {
	users := &stubUsers{signUpUser: identity.User{
		ID: 1, Name: "Ada", Email: "ada@example.com",
		Role: identity.RoleAdmin, Status: identity.StatusApproved,
	}}
	srv := newTestServer(nil, users, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/auth/signup",
		`{"name": "Ada", "email": "ada@example.com", "password": "secret"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Success bool          `json:"success"`
		User    identity.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Success)
	assert.Equal(t, identity.RoleAdmin, got.User.Role)
}

func TestSignUpDuplicateEmail(t *testing.T) {
	users := &stubUsers{signUpErr: identity.ErrEmailTaken}
	srv := newTestServer(nil, users, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/auth/signup",
		`{"name": "Ada", "email": "ada@example.com", "password": "secret"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"success": false, "message": "Email already exists."}`, rec.Body.String())
}

func TestLoginInvalidCredentials(t *testing.T) {
	users := &stubUsers{authErr: identity.ErrInvalidCredentials}
	srv := newTestServer(nil, users, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/auth/login",
		`{"email": "ada@example.com", "password": "wrong"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"success": false, "message": "Invalid credentials."}`, rec.Body.String())
}

func TestLoginPendingApproval(t *testing.T) {
	users := &stubUsers{authErr: identity.ErrPendingApproval}
	srv := newTestServer(nil, users, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/auth/login",
		`{"email": "bob@example.com", "password": "secret"}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"success": false, "message": "Your account is pending Admin approval. Please wait."}`, rec.Body.String())
}

func TestLoginSuccess(t *testing.T) {
	users := &stubUsers{authUser: identity.User{
		ID: 2, Name: "Bob", Email: "bob@example.com",
		Role: identity.RoleAuthority, Status: identity.StatusApproved,
	}}
	srv := newTestServer(nil, users, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/auth/login",
		`{"email": "bob@example.com", "password": "secret"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Success bool          `json:"success"`
		User    identity.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Success)
	assert.Equal(t, "bob@example.com", got.User.Email)
}

func TestApproveUser(t *testing.T) {
	users := &stubUsers{}
	srv := newTestServer(nil, users, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/users/7/approve", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{7}, users.approved)
}

func TestApproveUnknownUser(t *testing.T) {
	users := &stubUsers{approveErr: identity.ErrNotFound}
	srv := newTestServer(nil, users, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/users/99/approve", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteUser(t *testing.T) {
	users := &stubUsers{}
	srv := newTestServer(nil, users, nil)

	rec := doJSON(t, srv, http.MethodDelete, "/api/users/3", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{3}, users.deleted)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(nil, nil, nil)

	rec := doJSON(t, srv, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzUnavailableWhenStoreDown(t *testing.T) {
	srv := newTestServer(nil, nil, &stubReadiness{err: errors.New("db closed")})

	rec := doJSON(t, srv, http.MethodGet, "/readyz", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
