package handlers

import (
	"net/http"

	"wordwatch/internal/security"
)

// RegisterRoutes mounts the experiment API on mux. Session creation is rate
// limited per client IP.
func RegisterRoutes(mux *http.ServeMux, m *Middleware, h *ExperimentHandler, limiter *security.RateLimiter) {
	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /stimuli/{file...}", h.ServeStimulus)

	mux.Handle("POST /api/sessions", limiter.Limit(http.HandlerFunc(h.StartSession)))
	mux.HandleFunc("GET /api/session", m.RequireSession(h.GetSession))
	mux.HandleFunc("POST /api/session/advance", m.RequireSession(m.CSRFProtect(h.Advance)))
	mux.HandleFunc("POST /api/session/guess/edit", m.RequireSession(m.CSRFProtect(h.EditGuess)))
	mux.HandleFunc("POST /api/session/guess", m.RequireSession(m.CSRFProtect(h.SubmitGuess)))
	mux.HandleFunc("POST /api/session/guess/{index}/delete", m.RequireSession(m.CSRFProtect(h.RemoveGuess)))
	mux.HandleFunc("POST /api/session/guesses/clear", m.RequireSession(m.CSRFProtect(h.ClearGuesses)))
	mux.HandleFunc("POST /api/session/comprehension", m.RequireSession(m.CSRFProtect(h.AnswerComprehension)))
	mux.HandleFunc("POST /api/session/exam", m.RequireSession(m.CSRFProtect(h.AnswerExam)))
	mux.HandleFunc("POST /api/session/replay", m.RequireSession(m.CSRFProtect(h.Replay)))
}
