// Package httpadapter exposes the engine over HTTP: telemetry ingestion and
// queries, account management, the websocket subscription endpoint, and
// operational probes.
package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thermasense/telemetry-engine/internal/domain"
	"github.com/thermasense/telemetry-engine/internal/engine"
	"github.com/thermasense/telemetry-engine/internal/identity"
)

// Engine is the ingestion and query surface the server fronts.
type Engine interface {
	Accept(temp, humidity float64, source domain.Source) error
	Current() engine.Current
	Analytics(g domain.Granularity) []domain.Bucket
}

// UserStore is the account surface the server fronts.
type UserStore interface {
	SignUp(ctx context.Context, name, email, password string) (identity.User, error)
	Authenticate(ctx context.Context, email, password string) (identity.User, error)
	List(ctx context.Context) ([]identity.User, error)
	Approve(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}

// ReadinessChecker reports whether backing dependencies are reachable.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server wires the HTTP routes to the engine and account store.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer builds the route table. The websocket handler is passed in as a
// plain http.Handler so the hub package stays unaware of routing.
func NewServer(addr string, eng Engine, users UserStore, wsHandler http.Handler, ready ReadinessChecker, logger *slog.Logger) *Server {
	s := &Server{logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/telemetry", s.handleIngest(eng))
	mux.HandleFunc("GET /api/telemetry/current", s.handleCurrent(eng))
	mux.HandleFunc("GET /api/telemetry/analytics", s.handleAnalytics(eng))
	mux.Handle("GET /api/ws", wsHandler)
	mux.HandleFunc("POST /api/auth/signup", s.handleSignUp(users))
	mux.HandleFunc("POST /api/auth/login", s.handleLogin(users))
	mux.HandleFunc("GET /api/users", s.handleListUsers(users))
	mux.HandleFunc("POST /api/users/{id}/approve", s.handleApproveUser(users))
	mux.HandleFunc("DELETE /api/users/{id}", s.handleDeleteUser(users))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start blocks serving requests until Shutdown is called or the listener
// fails.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// ServeHTTP makes the server usable directly in handler tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.srv.Handler.ServeHTTP(w, r)
}

type statusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type telemetryRequest struct {
	Temp     *float64 `json:"temp"`
	Humidity *float64 `json:"humidity"`
}

func (s *Server) handleIngest(eng Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req telemetryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Temp == nil || req.Humidity == nil {
			s.writeJSON(w, http.StatusBadRequest, statusResponse{Success: false, Message: "Missing temp or humidity"})
			return
		}
		if err := eng.Accept(*req.Temp, *req.Humidity, domain.SourcePush); err != nil {
			s.writeJSON(w, http.StatusBadRequest, statusResponse{Success: false, Message: "Missing temp or humidity"})
			return
		}
		s.writeJSON(w, http.StatusOK, statusResponse{Success: true, Message: "Data received"})
	}
}

type currentResponse struct {
	Temp        float64   `json:"temp"`
	Humidity    float64   `json:"humidity"`
	Timestamp   time.Time `json:"timestamp"`
	IsConnected bool      `json:"isConnected"`
}

func (s *Server) handleCurrent(eng Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cur := eng.Current()
		s.writeJSON(w, http.StatusOK, currentResponse{
			Temp:        cur.Temp,
			Humidity:    cur.Humidity,
			Timestamp:   cur.Timestamp,
			IsConnected: cur.IsFresh,
		})
	}
}

type analyticsPoint struct {
	Time      string    `json:"time"`
	Temp      float64   `json:"temp"`
	Humidity  float64   `json:"humidity"`
	HeatIndex float64   `json:"heatIndex"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleAnalytics(eng Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g := domain.ParseGranularity(r.URL.Query().Get("interval"))
		buckets := eng.Analytics(g)

		points := make([]analyticsPoint, 0, len(buckets))
		for _, b := range buckets {
			points = append(points, analyticsPoint{
				Time:      b.Label,
				Temp:      b.MeanTemp,
				Humidity:  b.MeanHumidity,
				HeatIndex: b.MeanHeatIndex,
				Timestamp: b.Start,
			})
		}
		s.writeJSON(w, http.StatusOK, points)
	}
}

type signUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message,omitempty"`
	User    identity.User `json:"user"`
}

func (s *Server) handleSignUp(users UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signUpRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
			s.writeJSON(w, http.StatusBadRequest, statusResponse{Success: false, Message: "Missing signup fields"})
			return
		}
		user, err := users.SignUp(r.Context(), req.Name, req.Email, req.Password)
		switch {
		case errors.Is(err, identity.ErrEmailTaken):
			s.writeJSON(w, http.StatusBadRequest, statusResponse{Success: false, Message: "Email already exists."})
			return
		case err != nil:
			s.logger.Error("signup failed", "error", err)
			s.writeJSON(w, http.StatusInternalServerError, statusResponse{Success: false, Message: "Server error."})
			return
		}

		msg := "Signup successful. Await Admin approval."
		if user.Status == identity.StatusApproved {
			msg = "Signup successful."
		}
		s.writeJSON(w, http.StatusOK, userResponse{Success: true, Message: msg, User: user})
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(users UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeJSON(w, http.StatusBadRequest, statusResponse{Success: false, Message: "Missing login fields"})
			return
		}
		user, err := users.Authenticate(r.Context(), req.Email, req.Password)
		switch {
		case errors.Is(err, identity.ErrInvalidCredentials):
			s.writeJSON(w, http.StatusUnauthorized, statusResponse{Success: false, Message: "Invalid credentials."})
			return
		case errors.Is(err, identity.ErrPendingApproval):
			s.writeJSON(w, http.StatusForbidden, statusResponse{Success: false, Message: "Your account is pending Admin approval. Please wait."})
			return
		case err != nil:
			s.logger.Error("login failed", "error", err)
			s.writeJSON(w, http.StatusInternalServerError, statusResponse{Success: false, Message: "Server error."})
			return
		}
		s.writeJSON(w, http.StatusOK, userResponse{Success: true, User: user})
	}
}

func (s *Server) handleListUsers(users UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := users.List(r.Context())
		if err != nil {
			s.logger.Error("list users failed", "error", err)
			s.writeJSON(w, http.StatusInternalServerError, statusResponse{Success: false, Message: "Server error."})
			return
		}
		s.writeJSON(w, http.StatusOK, list)
	}
}

func (s *Server) handleApproveUser(users UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, statusResponse{Success: false, Message: "Invalid user id"})
			return
		}
		switch err := users.Approve(r.Context(), id); {
		case errors.Is(err, identity.ErrNotFound):
			s.writeJSON(w, http.StatusNotFound, statusResponse{Success: false, Message: "User not found"})
		case err != nil:
			s.logger.Error("approve user failed", "error", err, "id", id)
			s.writeJSON(w, http.StatusInternalServerError, statusResponse{Success: false, Message: "Server error."})
		default:
			s.writeJSON(w, http.StatusOK, statusResponse{Success: true, Message: "User approved"})
		}
	}
}

func (s *Server) handleDeleteUser(users UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, statusResponse{Success: false, Message: "Invalid user id"})
			return
		}
		switch err := users.Delete(r.Context(), id); {
		case errors.Is(err, identity.ErrNotFound):
			s.writeJSON(w, http.StatusNotFound, statusResponse{Success: false, Message: "User not found"})
		case err != nil:
			s.logger.Error("delete user failed", "error", err, "id", id)
			s.writeJSON(w, http.StatusInternalServerError, statusResponse{Success: false, Message: "Server error."})
		default:
			s.writeJSON(w, http.StatusOK, statusResponse{Success: true, Message: "User deleted"})
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(ready ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := ready.CheckReadiness(ctx); err != nil {
			s.logger.Warn("readiness check failed", "error", err)
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response", "error", err)
	}
}
