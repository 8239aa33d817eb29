package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"studylab/internal/app/apiresp"
	"studylab/internal/auth"
	"studylab/internal/content"
	"studylab/internal/practice"
	"studylab/internal/record"
)

type contentStore interface {
	List(ctx context.Context) ([]content.ExamSummary, error)
	Load(ctx context.Context, examID int64) (*practice.Exam, error)
}

type recordStore interface {
	ListByLearner(ctx context.Context, learnerID, examID int64) ([]record.Summary, error)
}

type eventPublisher interface {
	SessionCompleted(ctx context.Context, rec practice.Record) error
}

// Deps are the collaborators behind the session API.
type Deps struct {
	Content    contentStore
	Records    recordStore
	Sink       practice.RecordSink
	Experience practice.ExperienceStore
	Events     eventPublisher
	Now        func() time.Time
	Log        *slog.Logger
}

type Handler struct {
	reg  *Registry
	deps Deps
}

func NewHandler(reg *Registry, deps Deps) *Handler {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	return &Handler{reg: reg, deps: deps}
}

type response struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type createSessionRequest struct {
	ExamID int64 `json:"exam_id"`
}

type createSessionResponse struct {
	SessionID string            `json:"session_id"`
	Snapshot  practice.Snapshot `json:"snapshot"`
}

type setTabRequest struct {
	Tab string `json:"tab"`
}

type gapPayload struct {
	Token string `json:"token"`
	Text  string `json:"text"`
}

type stepPayload struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// answerRequest carries exactly one field, matching the current question's
// kind.
type answerRequest struct {
	Text   *string      `json:"text,omitempty"`
	Bool   *bool        `json:"bool,omitempty"`
	Choice *int         `json:"choice,omitempty"`
	Toggle *int         `json:"toggle,omitempty"`
	Gap    *gapPayload  `json:"gap,omitempty"`
	Step   *stepPayload `json:"step,omitempty"`
}

type setLevelRequest struct {
	Level int `json:"level"`
}

// ListExams serves the exam library.
func (h *Handler) ListExams(w http.ResponseWriter, r *http.Request) {
	items, err := h.deps.Content.List(r.Context())
	if err != nil {
		h.deps.Log.Error("list exams failed", "error", err)
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: items})
}

// ListResults serves a learner's past session records for one exam.
func (h *Handler) ListResults(w http.ResponseWriter, r *http.Request) {
	learner, ok := auth.CurrentLearner(r.Context())
	if !ok {
		writeJSON(w, r, http.StatusUnauthorized, response{OK: false, Error: "unauthorized"})
		return
	}
	examID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || examID <= 0 {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid exam id"})
		return
	}
	items, err := h.deps.Records.ListByLearner(r.Context(), learner.ID, examID)
	if err != nil {
		h.deps.Log.Error("list results failed", "learner_id", learner.ID, "error", err)
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: items})
}

// Create loads the exam content and opens a new session in the intro state.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	learner, ok := auth.CurrentLearner(r.Context())
	if !ok {
		writeJSON(w, r, http.StatusUnauthorized, response{OK: false, Error: "unauthorized"})
		return
	}
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
		return
	}
	if req.ExamID <= 0 {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "exam_id is required"})
		return
	}

	exam, err := h.deps.Content.Load(r.Context(), req.ExamID)
	if err != nil {
		switch {
		case errors.Is(err, content.ErrExamNotFound):
			writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: "exam not found"})
		default:
			h.deps.Log.Error("load exam failed", "exam_id", req.ExamID, "error", err)
			writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		}
		return
	}

	meta := map[string]string{
		"user_agent":  r.UserAgent(),
		"remote_addr": r.RemoteAddr,
	}
	sess, err := practice.NewSession(exam, learner.ID, meta, practice.Deps{
		Sink:       h.deps.Sink,
		Experience: h.deps.Experience,
		Now:        h.deps.Now,
	})
	if err != nil {
		if errors.Is(err, practice.ErrEmptyExam) {
			writeJSON(w, r, http.StatusUnprocessableEntity, response{OK: false, Error: "exam has no questions"})
			return
		}
		h.deps.Log.Error("create session failed", "exam_id", req.ExamID, "error", err)
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}

	id, err := h.reg.Add(sess)
	if err != nil {
		if errors.Is(err, ErrActiveSession) {
			writeJSON(w, r, http.StatusConflict, response{OK: false, Error: "an active session already exists"})
			return
		}
		h.deps.Log.Error("register session failed", "error", err)
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}

	writeJSON(w, r, http.StatusCreated, response{OK: true, Data: createSessionResponse{
		SessionID: id,
		Snapshot:  sess.Snapshot(),
	}})
}

// Get returns the current session snapshot.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: sess.Snapshot()})
}

func (h *Handler) Begin(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(s *practice.Session) error { return s.Begin() })
}

func (h *Handler) Next(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(s *practice.Session) error { return s.Next() })
}

func (h *Handler) Prev(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(s *practice.Session) error { return s.Prev() })
}

func (h *Handler) Finish(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(s *practice.Session) error { return s.Finish() })
}

func (h *Handler) Reopen(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(s *practice.Session) error { return s.ReopenLast() })
}

// transition runs a navigation action and responds with the fresh snapshot.
func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(*practice.Session) error) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	if err := fn(sess); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: sess.Snapshot()})
}

func (h *Handler) SetTab(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	var req setTabRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
		return
	}
	if err := sess.SetTab(practice.Tab(req.Tab)); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: sess.Snapshot()})
}

// Answer records an answer for the current question. The payload must carry
// exactly one of the kind-specific fields.
func (h *Handler) Answer(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
		return
	}

	var err error
	switch {
	case exactlyOne(req) != 1:
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "exactly one answer field is required"})
		return
	case req.Text != nil:
		err = sess.SetText(*req.Text)
	case req.Bool != nil:
		err = sess.SetBool(*req.Bool)
	case req.Choice != nil:
		err = sess.SelectChoice(*req.Choice)
	case req.Toggle != nil:
		err = sess.ToggleChoice(*req.Toggle)
	case req.Gap != nil:
		err = sess.SetGap(req.Gap.Token, req.Gap.Text)
	case req.Step != nil:
		err = sess.SetStep(req.Step.Index, req.Step.Text)
	}
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: sess.Snapshot()})
}

func exactlyOne(req answerRequest) int {
	n := 0
	if req.Text != nil {
		n++
	}
	if req.Bool != nil {
		n++
	}
	if req.Choice != nil {
		n++
	}
	if req.Toggle != nil {
		n++
	}
	if req.Gap != nil {
		n++
	}
	if req.Step != nil {
		n++
	}
	return n
}

// Review serves the self-assessment view.
func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	view, err := sess.Review()
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: view})
}

// SetLevel records one mastery self-assessment.
func (h *Handler) SetLevel(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	questionID := chi.URLParam(r, "questionID")
	if questionID == "" {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid question id"})
		return
	}
	var req setLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
		return
	}
	if err := sess.SetLevel(questionID, req.Level); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: sess.Scorecard()})
}

// Finalize persists the session record, applies experience and retires the
// session. Partial failure leaves the session alive so the client can retry.
func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	result, err := sess.Finalize(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, practice.ErrSubmitFailed):
			h.deps.Log.Error("finalize submit failed", "session_id", id, "error", err)
			apiresp.WriteErrorCode(w, r, http.StatusBadGateway, "submit_failed", "session record could not be saved, retry finalize")
		case errors.Is(err, practice.ErrExperienceNotApplied):
			h.deps.Log.Error("finalize experience failed", "session_id", id, "error", err)
			apiresp.WriteErrorCode(w, r, http.StatusBadGateway, "xp_not_applied", "session saved, but experience was not applied; retry finalize")
		default:
			writeEngineError(w, r, err)
		}
		return
	}

	if err := h.deps.Events.SessionCompleted(r.Context(), result.Record); err != nil {
		h.deps.Log.Warn("session completed event not published", "session_id", id, "error", err)
	}
	h.reg.Remove(id)

	writeJSON(w, r, http.StatusOK, response{OK: true, Data: result})
}

// ownedSession resolves the {id} route param and enforces that the caller
// owns the session. Foreign sessions read as not found.
func (h *Handler) ownedSession(w http.ResponseWriter, r *http.Request) (*practice.Session, bool) {
	learner, ok := auth.CurrentLearner(r.Context())
	if !ok {
		writeJSON(w, r, http.StatusUnauthorized, response{OK: false, Error: "unauthorized"})
		return nil, false
	}
	id := chi.URLParam(r, "id")
	sess, err := h.reg.Get(id)
	if err != nil || sess.LearnerID() != learner.ID {
		writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: "session not found"})
		return nil, false
	}
	return sess, true
}

// writeEngineError maps engine sentinels onto HTTP statuses. State machine
// violations are conflicts; malformed answers are bad requests.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, practice.ErrAlreadyStarted),
		errors.Is(err, practice.ErrNotInQuestion),
		errors.Is(err, practice.ErrNotLastQuestion),
		errors.Is(err, practice.ErrNotInReview),
		errors.Is(err, practice.ErrFinalized),
		errors.Is(err, practice.ErrFinalizeInFlight):
		writeJSON(w, r, http.StatusConflict, response{OK: false, Error: err.Error()})
	case errors.Is(err, practice.ErrUnknownQuestion):
		writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: err.Error()})
	case errors.Is(err, practice.ErrNotAnswerable),
		errors.Is(err, practice.ErrAnswerShape),
		errors.Is(err, practice.ErrInvalidAnswer),
		errors.Is(err, practice.ErrInvalidTab):
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: err.Error()})
	default:
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, payload response) {
	if payload.OK {
		apiresp.WriteOK(w, r, code, payload.Data)
		return
	}
	apiresp.WriteError(w, r, code, payload.Error)
}
