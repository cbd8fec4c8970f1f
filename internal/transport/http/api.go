package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"quiz-session-engine/internal/app"
	"quiz-session-engine/internal/auth"
	"quiz-session-engine/internal/domain"
)

// API exposes the quiz use cases over REST.
type API struct {
	service *app.QuizService
}

func NewAPI(service *app.QuizService) *API {
	return &API{service: service}
}

type beginRequest struct {
	QuizID string `json:"quizId"`
}

type selectRequest struct {
	OptionID string `json:"optionId"`
}

type jumpRequest struct {
	Index *int `json:"index"`
}

type outcomePayload struct {
	Result    domain.QuizResult `json:"result"`
	Persisted bool              `json:"persisted"`
	Error     string            `json:"error,omitempty"`
}

func newOutcomePayload(o domain.Outcome) outcomePayload {
	p := outcomePayload{Result: o.Result, Persisted: o.Persisted}
	if o.PersistErr != nil {
		p.Error = o.PersistErr.Error()
	}
	return p
}

// Mount registers the REST routes on r. Callers are expected to have applied auth.Middleware.
func (a *API) Mount(r chi.Router) {
	r.Get("/quizzes", a.listQuizzes)

	r.Route("/sessions", func(sr chi.Router) {
		sr.Post("/", a.begin)
		sr.Route("/{sessionID}", func(s chi.Router) {
			s.Get("/", a.view)
			s.Delete("/", a.end)
			s.Post("/select", a.selectOption)
			s.Post("/advance", a.sessionAction((*app.Session).Advance))
			s.Post("/jump", a.jump)
			s.Post("/cancel", a.sessionAction((*app.Session).Cancel))
			s.Post("/confirm", a.confirm)
			s.Post("/expire", a.expire)
		})
	})

	r.Route("/results", func(rr chi.Router) {
		rr.Get("/", a.history)
		rr.Get("/stats", a.stats)
		rr.Get("/{quizID}", a.findResult)
	})
}

func identity(r *http.Request) domain.AuthContext {
	id, _ := auth.FromContext(r.Context())
	return id
}

func (a *API) listQuizzes(w http.ResponseWriter, r *http.Request) {
	items, err := a.service.ListQuizzes(r.Context(), identity(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *API) begin(w http.ResponseWriter, r *http.Request) {
	var req beginRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.QuizID) == "" {
		writeError(w, http.StatusBadRequest, "quizId is required")
		return
	}
	session, err := a.service.Begin(r.Context(), identity(r), req.QuizID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	view, err := session.View()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (a *API) session(w http.ResponseWriter, r *http.Request) (*app.Session, bool) {
	session, err := a.service.Session(identity(r), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeServiceError(w, err)
		return nil, false
	}
	return session, true
}

func (a *API) respondView(w http.ResponseWriter, session *app.Session) {
	view, err := session.View()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) view(w http.ResponseWriter, r *http.Request) {
	if session, ok := a.session(w, r); ok {
		a.respondView(w, session)
	}
}

func (a *API) end(w http.ResponseWriter, r *http.Request) {
	session, ok := a.session(w, r)
	if !ok {
		return
	}
	a.service.End(session.ID())
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) sessionAction(action func(*app.Session) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := a.session(w, r)
		if !ok {
			return
		}
		if err := action(session); err != nil {
			writeServiceError(w, err)
			return
		}
		a.respondView(w, session)
	}
}

func (a *API) selectOption(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeJSON(r, &req); err != nil || req.OptionID == "" {
		writeError(w, http.StatusBadRequest, "optionId is required")
		return
	}
	a.sessionAction(func(s *app.Session) error { return s.Select(req.OptionID) })(w, r)
}

func (a *API) jump(w http.ResponseWriter, r *http.Request) {
	var req jumpRequest
	if err := decodeJSON(r, &req); err != nil || req.Index == nil {
		writeError(w, http.StatusBadRequest, "index is required")
		return
	}
	a.sessionAction(func(s *app.Session) error { return s.JumpTo(*req.Index) })(w, r)
}

func (a *API) confirm(w http.ResponseWriter, r *http.Request) {
	a.finish(w, r, (*app.Session).Confirm)
}

func (a *API) expire(w http.ResponseWriter, r *http.Request) {
	a.finish(w, r, (*app.Session).Expire)
}

func (a *API) finish(w http.ResponseWriter, r *http.Request, fn func(*app.Session, context.Context) (domain.Outcome, error)) {
	session, ok := a.session(w, r)
	if !ok {
		return
	}
	outcome, err := fn(session, context.WithoutCancel(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOutcomePayload(outcome))
}

func (a *API) history(w http.ResponseWriter, r *http.Request) {
	results, err := a.service.History(r.Context(), identity(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.service.Stats(r.Context(), identity(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) findResult(w http.ResponseWriter, r *http.Request) {
	result, err := a.service.FindResult(r.Context(), identity(r), chi.URLParam(r, "quizID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
