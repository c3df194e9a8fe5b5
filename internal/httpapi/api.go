package httpapi

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"taskhive/internal/auth"
	"taskhive/internal/obs"
	"taskhive/internal/todo"
)

// ReadyProbe checks downstream readiness, typically a database ping.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options tunes the HTTP layer.
type Options struct {
	Version      string
	MaxBodyBytes int64
	RateBurst    int
	RatePerSec   float64
}

// API is the HTTP layer over the identity and task services.
type API struct {
	mux        *http.ServeMux
	logger     *slog.Logger
	auth       *auth.Service
	todos      *todo.Service
	readyProbe ReadyProbe
	limiter    *ipLimiter
	version    string
	maxBody    int64
}

func New(logger *slog.Logger, authSvc *auth.Service, todoSvc *todo.Service, rp ReadyProbe, opts Options) *API {
	if opts.RateBurst <= 0 {
		opts.RateBurst = 20
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 10
	}
	a := &API{
		mux:        http.NewServeMux(),
		logger:     logger,
		auth:       authSvc,
		todos:      todoSvc,
		readyProbe: rp,
		limiter:    newIPLimiter(opts.RatePerSec, opts.RateBurst),
		version:    opts.Version,
		maxBody:    opts.MaxBodyBytes,
	}

	// health/ready/info
	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.HandleFunc("GET /v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("GET /metrics", obs.Handler())

	// account
	a.mux.HandleFunc("POST /v1/account/authenticate", a.Authenticate)
	a.mux.HandleFunc("POST /v1/account/refresh-token", a.RefreshToken)
	a.mux.HandleFunc("POST /v1/account/logout", a.authenticated(a.Logout))
	a.mux.HandleFunc("POST /v1/account/register", a.Register)
	a.mux.HandleFunc("GET /v1/account/confirm-email", a.ConfirmEmail)
	a.mux.HandleFunc("POST /v1/account/forgot-password", a.ForgotPassword)
	a.mux.HandleFunc("POST /v1/account/reset-password", a.ResetPassword)

	// user directory
	a.mux.HandleFunc("GET /v1/users", a.protected(auth.PermUserView, a.ListUsers))
	a.mux.HandleFunc("POST /v1/users", a.protected(auth.PermUserCreate, a.CreateUser))
	a.mux.HandleFunc("GET /v1/users/{id}", a.protected(auth.PermUserView, a.GetUser))
	a.mux.HandleFunc("PUT /v1/users/{id}", a.protected(auth.PermUserUpdate, a.UpdateUserInfo))
	a.mux.HandleFunc("DELETE /v1/users/{id}", a.protected(auth.PermUserDelete, a.DeleteUser))
	a.mux.HandleFunc("GET /v1/users/{id}/roles", a.protected(auth.PermUserView, a.UserRoles))
	a.mux.HandleFunc("PUT /v1/users/{id}/roles", a.protected(auth.PermUserUpdate, a.ChangeRole))
	a.mux.HandleFunc("GET /v1/users/{id}/permissions", a.protected(auth.PermUserView, a.UserPermissions))
	a.mux.HandleFunc("POST /v1/users/{id}/permissions", a.protected(auth.PermUserUpdate, a.GrantPermission))
	a.mux.HandleFunc("DELETE /v1/users/{id}/permissions", a.protected(auth.PermUserUpdate, a.RevokePermission))

	// tasks
	a.mux.HandleFunc("GET /v1/todos", a.protected(auth.PermTodoView, a.ListTodos))
	a.mux.HandleFunc("POST /v1/todos", a.protected(auth.PermTodoCreate, a.CreateTodo))
	a.mux.HandleFunc("GET /v1/todos/{id}", a.protected(auth.PermTodoView, a.GetTodo))
	a.mux.HandleFunc("PUT /v1/todos/{id}", a.protected(auth.PermTodoUpdate, a.UpdateTodo))
	a.mux.HandleFunc("DELETE /v1/todos/{id}", a.protected(auth.PermTodoDelete, a.DeleteTodo))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "not found")
	})

	return a
}

// Handler assembles the middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = maxBodyBytes(a.maxBody, h)
	h = rateLimit(a.limiter, h)
	h = securityHeaders(h)
	h = requestLogger(a.logger, h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "taskhive-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "taskhive-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
