package httpx

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mkashifaslam/go-api-template/internal/service/auth"
	"github.com/mkashifaslam/go-api-template/internal/service/profile"
	"github.com/mkashifaslam/go-api-template/internal/session"
	"github.com/mkashifaslam/go-api-template/internal/validate"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux       *http.ServeMux
	logger    *slog.Logger
	prefix    string
	auth      auth.Service
	profiles  profile.Service
	validator *validate.Validator
	cookies   session.Transport
	dbHealth  func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	authFailures       *prometheus.CounterVec
}

const healthCheckTimeout = 2 * time.Second

// NewRouter assembles routes with dependencies. All API routes live under
// prefix; /metrics is served at the root.
func NewRouter(logger *slog.Logger, prefix string, authSvc auth.Service, profileSvc profile.Service, validator *validate.Validator, cookies session.Transport, dbHealth func(context.Context) error) *Router {
	if validator == nil {
		validator = validate.New()
	}
	r := &Router{
		mux:       http.NewServeMux(),
		logger:    logger,
		prefix:    strings.TrimRight(strings.TrimSpace(prefix), "/"),
		auth:      authSvc,
		profiles:  profileSvc,
		validator: validator,
		cookies:   cookies,
		dbHealth:  dbHealth,
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) register() {
	r.mux.Handle("GET /metrics", promhttp.Handler())
	r.handle(http.MethodGet, "/health", r.handleHealth)
	r.handle(http.MethodPost, "/register", r.handleRegister)
	r.handle(http.MethodPost, "/login", r.handleLogin)
	r.handle(http.MethodPost, "/logout", r.handleLogout)
	r.handleAuth(http.MethodGet, "/user-profiles", r.handleListProfiles)
	r.handleAuth(http.MethodGet, "/user-profiles/{id}", r.handleGetProfile)
	r.handleAuth(http.MethodPatch, "/user-profiles/{id}", r.handleUpdateProfile)
	r.handleAuth(http.MethodDelete, "/user-profiles/{id}", r.handleDeleteProfile)
}

func (r *Router) handle(method, path string, h http.HandlerFunc) {
	route := r.prefix + path
	r.mux.HandleFunc(method+" "+route, r.audit(route, h))
}

func (r *Router) handleAuth(method, path string, h http.HandlerFunc) {
	route := r.prefix + path
	r.mux.HandleFunc(method+" "+route, r.audit(route, r.requireAuth(route, h)))
}

type credentialsBody struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type registerBody struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,maxbytes=72"`
	Name     string `json:"name" validate:"max=100"`
}

type profileParams struct {
	ID string `json:"id" validate:"required,max=64"`
}

type listProfilesQuery struct {
	Limit  int `json:"limit" validate:"gt=0,max=100" default:"20"`
	Offset int `json:"offset" validate:"gte=0" default:"0"`
}

type updateProfileBody struct {
	ID       *string `json:"id" schema:"absent"`
	Email    *string `json:"email" validate:"omitnil,email"`
	Name     *string `json:"name" validate:"omitnil,max=100"`
	Password *string `json:"password" validate:"omitnil,min=8,maxbytes=72"`
}

func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) {
	var body registerBody
	if !r.bindBody(w, req, &body) {
		return
	}
	_, token, err := r.auth.Register(req.Context(), auth.Registration{
		Email:    body.Email,
		Password: body.Password,
		Name:     body.Name,
	})
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	r.cookies.Set(w, token)
	writeJSON(w, http.StatusCreated, map[string]string{"message": "User registered successfully"})
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	var body credentialsBody
	if !r.bindBody(w, req, &body) {
		return
	}
	_, token, err := r.auth.Login(req.Context(), body.Email, body.Password)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	r.cookies.Set(w, token)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Login successful"})
}

// handleLogout always succeeds; the token is not checked.
func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) {
	r.cookies.Clear(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

func (r *Router) handleListProfiles(w http.ResponseWriter, req *http.Request) {
	var query listProfilesQuery
	if !r.bind(w, req, r.validator.Query(req.Context(), req.URL.Query(), &query)) {
		return
	}
	profiles, err := r.profiles.List(req.Context(), query.Limit, query.Offset)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (r *Router) handleGetProfile(w http.ResponseWriter, req *http.Request) {
	var params profileParams
	if !r.bindParams(w, req, &params) {
		return
	}
	p, err := r.profiles.Get(req.Context(), params.ID)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (r *Router) handleUpdateProfile(w http.ResponseWriter, req *http.Request) {
	var params profileParams
	if !r.bindParams(w, req, &params) {
		return
	}
	var body updateProfileBody
	if !r.bindBody(w, req, &body) {
		return
	}
	p, err := r.profiles.Update(req.Context(), params.ID, profile.UpdateInput{
		Email:    body.Email,
		Name:     body.Name,
		Password: body.Password,
	})
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (r *Router) handleDeleteProfile(w http.ResponseWriter, req *http.Request) {
	var params profileParams
	if !r.bindParams(w, req, &params) {
		return
	}
	p, err := r.profiles.Delete(req.Context(), params.ID)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func (r *Router) bindParams(w http.ResponseWriter, req *http.Request, dst any) bool {
	params := map[string]string{"id": req.PathValue("id")}
	return r.bind(w, req, r.validator.Params(req.Context(), params, dst))
}

func (r *Router) bindBody(w http.ResponseWriter, req *http.Request, dst any) bool {
	return r.bind(w, req, r.validator.Body(req.Context(), req.Body, dst))
}

// bind turns a validation result into a response. It reports whether the
// handler may continue.
func (r *Router) bind(w http.ResponseWriter, req *http.Request, err error) bool {
	if err == nil {
		return true
	}
	var verr *validate.Error
	if errors.As(err, &verr) {
		writeValidationError(w, verr)
		return false
	}
	r.logger.Error("request validation failed", "error", err, "path", req.URL.Path)
	writeError(w, http.StatusInternalServerError, "Internal Server Error")
	return false
}

// writeServiceError maps service errors to responses. Anything it does not
// recognise is logged and reported as a 500.
func (r *Router) writeServiceError(w http.ResponseWriter, req *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, auth.ErrUserExists):
		writeError(w, http.StatusConflict, "User already exists")
	case errors.Is(err, profile.ErrNoFields):
		writeError(w, http.StatusBadRequest, "No valid fields to update")
	case errors.Is(err, profile.ErrNotFound):
		writeError(w, http.StatusNotFound, "User profile not found")
	case errors.Is(err, profile.ErrEmailTaken):
		writeError(w, http.StatusConflict, "Email already in use")
	default:
		r.logger.Error("request failed", "error", err, "method", req.Method, "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)

		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if identity, ok := identityFromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "user_id", identity.UserID)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}
