package handlers

import (
	"context"
	"net/http"
	"time"

	"wordwatch/internal/logger"
	"wordwatch/internal/security"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const SessionContextKey ContextKey = "session"

// Middleware holds dependencies for middleware functions
type Middleware struct {
	tokens *security.SessionTokens
	csrf   *security.CSRFGenerator
	log    *logger.Logger
	now    func() time.Time
}

// NewMiddleware creates a new middleware instance
func NewMiddleware(tokens *security.SessionTokens, csrf *security.CSRFGenerator, log *logger.Logger) *Middleware {
	return &Middleware{
		tokens: tokens,
		csrf:   csrf,
		log:    log,
		now:    time.Now,
	}
}

// RequireSession is middleware that requires a valid session cookie
func (m *Middleware) RequireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(security.SessionCookieName)
		if err != nil {
			respondWithError(m.log, w, http.StatusUnauthorized, ErrUnauthorized, "", nil)
			return
		}

		sessionID, err := m.tokens.Verify(cookie.Value, m.now())
		if err != nil {
			http.SetCookie(w, security.CreateDeleteCookie(r))
			respondWithError(m.log, w, http.StatusUnauthorized, ErrUnauthorized, "rejected session token", err)
			return
		}

		ctx := context.WithValue(r.Context(), SessionContextKey, sessionID)
		next(w, r.WithContext(ctx))
	}
}

// CSRFProtect checks the CSRF header on state-changing requests. It must run
// inside RequireSession.
func (m *Middleware) CSRFProtect(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			next(w, r)
			return
		}
		if !m.csrf.Valid(GetSessionFromContext(r.Context()), r.Header.Get(security.CSRFHeader)) {
			respondWithError(m.log, w, http.StatusForbidden, ErrInvalidCSRF, "", nil)
			return
		}
		next(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Logging middleware logs HTTP requests
func Logging(log *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

// GetSessionFromContext retrieves the session id from the request context
func GetSessionFromContext(ctx context.Context) string {
	id, _ := ctx.Value(SessionContextKey).(string)
	return id
}
