package handlers

import (
	"encoding/json"
	"errors"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strconv"
	"time"

	"wordwatch/internal/experiment"
	"wordwatch/internal/logger"
	"wordwatch/internal/security"
	"wordwatch/internal/service"
)

// ExperimentHandler exposes sessions as a JSON event API
type ExperimentHandler struct {
	sessions *service.SessionService
	images   *service.PreloadService
	tokens   *security.SessionTokens
	csrf     *security.CSRFGenerator
	defaults service.SessionOptions
	log      *logger.Logger
	now      func() time.Time
}

// NewExperimentHandler creates a new experiment handler. defaults apply
// when a session is started without query flags.
func NewExperimentHandler(
	sessions *service.SessionService,
	images *service.PreloadService,
	tokens *security.SessionTokens,
	csrf *security.CSRFGenerator,
	defaults service.SessionOptions,
	log *logger.Logger,
) *ExperimentHandler {
	return &ExperimentHandler{
		sessions: sessions,
		images:   images,
		tokens:   tokens,
		csrf:     csrf,
		defaults: defaults,
		log:      log.With("handler", "ExperimentHandler"),
		now:      time.Now,
	}
}

type textRequest struct {
	Text string `json:"text"`
}

type answerRequest struct {
	Answer string `json:"answer"`
}

// StartSession creates a session and binds it to the browser
func (h *ExperimentHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := service.SessionOptions{
		Local:        queryBool(q.Get("local"), h.defaults.Local),
		TestAll:      queryBool(q.Get("test_all"), h.defaults.TestAll),
		SkipTutorial: queryBool(q.Get("skip_tutorial"), h.defaults.SkipTutorial),
	}

	snap, err := h.sessions.Start(r.Context(), opts)
	if err != nil {
		respondWithError(h.log, w, http.StatusInternalServerError, ErrInternalServerError, "failed to start session", err)
		return
	}

	token, expires, err := h.tokens.Issue(snap.ID, h.now())
	if err != nil {
		h.sessions.Close(snap.ID)
		respondWithError(h.log, w, http.StatusInternalServerError, ErrInternalServerError, "failed to sign session token", err)
		return
	}
	http.SetCookie(w, security.CreateSessionCookie(r, token, expires))

	respondJSON(h.log, w, http.StatusCreated, newSessionView(snap, h.csrf.Token(snap.ID)))
}

// GetSession returns the current view of the caller's session
func (h *ExperimentHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := GetSessionFromContext(r.Context())
	snap, err := h.sessions.Snapshot(id)
	if err != nil {
		h.respondWithSessionError(w, r, err)
		return
	}
	respondJSON(h.log, w, http.StatusOK, newSessionView(snap, h.csrf.Token(id)))
}

func (h *ExperimentHandler) Advance(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, experiment.Advance{})
}

func (h *ExperimentHandler) EditGuess(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.dispatch(w, r, experiment.EditGuess{Text: req.Text})
}

func (h *ExperimentHandler) SubmitGuess(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.dispatch(w, r, experiment.SubmitGuess{Text: req.Text})
}

func (h *ExperimentHandler) RemoveGuess(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		respondWithError(h.log, w, http.StatusBadRequest, ErrInvalidIndex, "", nil)
		return
	}
	h.dispatch(w, r, experiment.RemoveGuess{Index: index})
}

func (h *ExperimentHandler) ClearGuesses(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, experiment.ClearGuesses{})
}

func (h *ExperimentHandler) AnswerComprehension(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.dispatch(w, r, experiment.AnswerComprehension{Answer: req.Answer})
}

func (h *ExperimentHandler) AnswerExam(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.dispatch(w, r, experiment.AnswerExam{Answer: req.Answer})
}

func (h *ExperimentHandler) Replay(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, experiment.ReplayAll{})
}

// ServeStimulus serves a stimulus image from the preload cache
func (h *ExperimentHandler) ServeStimulus(w http.ResponseWriter, r *http.Request) {
	name := "stimuli/" + r.PathValue("file")
	data, err := h.images.Load(name)
	if err != nil {
		if errors.Is(err, service.ErrInvalidImagePath) || errors.Is(err, fs.ErrNotExist) {
			respondWithError(h.log, w, http.StatusNotFound, ErrNotFound, "", nil)
			return
		}
		respondWithError(h.log, w, http.StatusInternalServerError, ErrInternalServerError, "failed to load image", err)
		return
	}

	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		h.log.Debug("failed to write image", "image", name, "error", err)
	}
}

// Health reports liveness and the number of live sessions
func (h *ExperimentHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(h.log, w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": h.sessions.Len(),
	})
}

func (h *ExperimentHandler) dispatch(w http.ResponseWriter, r *http.Request, ev experiment.Event) {
	id := GetSessionFromContext(r.Context())
	snap, err := h.sessions.Dispatch(r.Context(), id, ev)
	if err != nil {
		h.respondWithSessionError(w, r, err)
		return
	}
	respondJSON(h.log, w, http.StatusOK, newSessionView(snap, ""))
}

func (h *ExperimentHandler) respondWithSessionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		http.SetCookie(w, security.CreateDeleteCookie(r))
		respondWithError(h.log, w, http.StatusUnauthorized, ErrSessionExpired, "", nil)
	case errors.Is(err, experiment.ErrNoGuesses):
		respondWithError(h.log, w, http.StatusConflict, ErrNoGuesses, "", nil)
	default:
		respondWithError(h.log, w, http.StatusInternalServerError, ErrInternalServerError, "failed to apply event", err)
	}
}

// decode reads a small JSON body into dst, answering 400 on failure
func (h *ExperimentHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondWithError(h.log, w, http.StatusBadRequest, ErrInvalidBody, "malformed request body", err)
		return false
	}
	return true
}

func queryBool(v string, fallback bool) bool {
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
