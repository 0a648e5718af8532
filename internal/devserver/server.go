// Package devserver is an in-memory implementation of the vaultguard REST
// API. It backs local runs of the client and its end-to-end tests; nothing
// it stores survives a restart.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/vaultguard/internal/common"
	"github.com/dmitrijs2005/vaultguard/internal/devserver/config"
	"github.com/dmitrijs2005/vaultguard/internal/logging"
	"github.com/google/uuid"
)

// APIPrefix is the path every route is mounted under.
const APIPrefix = "/api"

const maxRequestBody = 1 << 20

type Option func(*Server)

// WithClock replaces the server's time source for OTP, session and refresh
// token expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithMailer sets where verification codes are delivered.
func WithMailer(m Mailer) Option {
	return func(s *Server) { s.mailer = m }
}

// Server serves the API.
type Server struct {
	cfg    *config.Config
	log    logging.Logger
	mailer Mailer
	now    func() time.Time
	svc    *service
	mux    *http.ServeMux
}

func New(cfg *config.Config, log logging.Logger, opts ...Option) *Server {
	s := &Server{cfg: cfg, log: log, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	if s.mailer == nil {
		s.mailer = NewWriterMailer(io.Discard)
	}
	s.svc = newService(cfg, s.mailer, log, s.now)
	s.mux = http.NewServeMux()
	s.routes()
	return s
}

func (s *Server) routes() {
	handle := func(pattern string, h http.HandlerFunc) {
		method, path, _ := strings.Cut(pattern, " ")
		s.mux.HandleFunc(method+" "+APIPrefix+path, h)
	}

	handle("GET /health", s.handleHealth)

	handle("POST /auth", s.handleSignup)
	handle("POST /auth/login", s.handleLogin)
	handle("PATCH /auth/verif/identifier", s.handleSetIdentifier)
	handle("DELETE /auth/logout", s.authed(s.handleLogout))
	handle("POST /auth/refresh", s.handleRefresh)
	handle("POST /auth/report-failed", s.handleReportFailed)
	handle("GET /auth/me", s.authed(s.handleMe))

	handle("POST /user/identifier", s.handleIdentifier)

	handle("GET /session/check", s.handleCheck)
	handle("GET /session/otp/status", s.handleOTPStatus)
	handle("PATCH /session/otp/resend", s.handleResend)
	handle("POST /session/otp/verify", s.handleVerify)

	handle("GET /vault/all", s.authed(s.handleListVault))
	handle("POST /vault", s.authed(s.handleCreateVault))
}

// Handler returns the API with request ids, logging and panic recovery.
func (s *Server) Handler() http.Handler {
	return s.withRequestID(s.withLogging(s.withRecover(s.mux)))
}

type ctxKey int

const (
	requestIDKey ctxKey = iota
	userIDKey
)

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func userIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(common.RequestIDHeaderName)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(common.RequestIDHeaderName, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"request_id", requestID(r.Context()),
		)
	})
}

func (s *Server) withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.log.Error(r.Context(), "handler panic", "panic", v, "request_id", requestID(r.Context()))
				s.writeError(w, r, &apiError{Status: http.StatusInternalServerError, Message: "Internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authed requires a valid access token cookie.
func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var token string
		if c, err := r.Cookie(common.AccessTokenCookieName); err == nil {
			token = c.Value
		}
		id, err := s.svc.userID(token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, id)))
	}
}

type successEnvelope struct {
	Data    any    `json:"data,omitempty"`
	Message string `json:"message"`
}

type errorDetails struct {
	ValidationErrors []fieldError `json:"validation_errors,omitempty"`
	RetryAfter       int          `json:"retry_after,omitempty"`
}

type errorBody struct {
	Message string        `json:"message"`
	Details *errorDetails `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error     errorBody `json:"error"`
	RequestID string    `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeData(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, successEnvelope{Data: data, Message: message})
}

// writeError renders err as the error envelope. Errors that are not
// apiErrors become a 500 without leaking their text.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *apiError
	if !errors.As(err, &ae) {
		s.log.Error(r.Context(), "request failed", "error", err, "request_id", requestID(r.Context()))
		ae = &apiError{Status: http.StatusInternalServerError, Message: "Internal server error"}
	}

	body := errorBody{Message: ae.Message}
	if len(ae.Fields) > 0 || ae.RetryAfter > 0 {
		body.Details = &errorDetails{ValidationErrors: ae.Fields, RetryAfter: ae.RetryAfter}
	}
	if ae.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(ae.RetryAfter))
	}
	writeJSON(w, ae.Status, errorEnvelope{Error: body, RequestID: requestID(r.Context())})
}

// decode reads a JSON body into v.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		return errBadRequest("Invalid request body")
	}
	return nil
}

func (s *Server) setCookie(w http.ResponseWriter, name, value string, ttl time.Duration) {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl > 0 {
		c.MaxAge = int(ttl.Seconds())
	} else {
		c.MaxAge = -1
	}
	http.SetCookie(w, c)
}

func (s *Server) setTokenCookies(w http.ResponseWriter, p *tokenPair) {
	s.setCookie(w, common.AccessTokenCookieName, p.AccessToken, s.cfg.AccessTokenTTL)
	s.setCookie(w, common.RefreshTokenCookieName, p.RefreshToken, s.cfg.RefreshTokenTTL)
}

func (s *Server) clearTokenCookies(w http.ResponseWriter) {
	s.setCookie(w, common.AccessTokenCookieName, "", 0)
	s.setCookie(w, common.RefreshTokenCookieName, "", 0)
}

func sessionID(r *http.Request) string {
	if c, err := r.Cookie(common.SessionCookieName); err == nil {
		return c.Value
	}
	return ""
}
