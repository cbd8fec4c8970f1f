package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"quiz-session-engine/internal/auth"
	"quiz-session-engine/internal/domain"
)

// SessionRepository abstracts where live sessions are registered (in-memory, Redis-backed, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}

// Option customises a QuizService.
type Option func(*QuizService)

// WithClock overrides the time source used for start stamps and scoring.
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

// WithTicker overrides the countdown tick source and its period.
func WithTicker(ticker TickerFunc, every time.Duration) Option {
	return func(s *QuizService) {
		s.ticker = ticker
		s.tickEvery = every
	}
}

// WithPersistTimeout bounds how long a history write may take after finalization.
func WithPersistTimeout(d time.Duration) Option {
	return func(s *QuizService) { s.persistTimeout = d }
}

// QuizService contains the core quiz use cases.
type QuizService struct {
	sessions SessionRepository
	quizzes  QuizRepository
	history  HistoryStore
	loader   *Loader
	recorder *Recorder

	now            func() time.Time
	ticker         TickerFunc
	tickEvery      time.Duration
	persistTimeout time.Duration
}

func NewQuizService(store SessionRepository, quizzes QuizRepository, history HistoryStore, opts ...Option) *QuizService {
	s := &QuizService{
		sessions:       store,
		quizzes:        quizzes,
		history:        history,
		now:            time.Now,
		ticker:         RealTicker,
		tickEvery:      defaultTickEvery,
		persistTimeout: defaultPersistTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.loader = NewLoader(quizzes, s.now)
	s.recorder = NewRecorder(history)
	return s
}

// ListQuizzes returns the catalog listing for an authenticated user.
func (s *QuizService) ListQuizzes(ctx context.Context, identity domain.AuthContext) ([]domain.QuizSummary, error) {
	if !identity.Valid() {
		return nil, domain.ErrAuthMissing
	}
	return s.quizzes.ListQuizzes(auth.WithAuth(ctx, identity))
}

// Begin opens a session for quizID and loads it. A session that fails to load is discarded.
func (s *QuizService) Begin(ctx context.Context, identity domain.AuthContext, quizID string) (*Session, error) {
	if !identity.Valid() {
		return nil, domain.ErrAuthMissing
	}
	quizID = strings.TrimSpace(quizID)
	if quizID == "" {
		return nil, fmt.Errorf("%w: %w", domain.ErrLoadFailure, domain.ErrQuizNotFound)
	}

	session := newSession(sessionConfig{
		id:             uuid.NewString(),
		quizID:         quizID,
		identity:       identity,
		loader:         s.loader,
		recorder:       s.recorder,
		now:            s.now,
		ticker:         s.ticker,
		tickEvery:      s.tickEvery,
		persistTimeout: s.persistTimeout,
		onFinalized:    s.release,
	})
	s.sessions.Put(session)

	if err := session.Load(auth.WithAuth(ctx, identity)); err != nil {
		log.Printf("session %s: load quiz %s for %s failed: %v", session.ID(), quizID, identity.Username, err)
		s.End(session.ID())
		return nil, err
	}
	log.Printf("session %s: %s began quiz %s", session.ID(), identity.Username, quizID)
	return session, nil
}

// Session looks up a live session owned by identity.
func (s *QuizService) Session(identity domain.AuthContext, sessionID string) (*Session, error) {
	if !identity.Valid() {
		return nil, domain.ErrAuthMissing
	}
	session, ok := s.sessions.Get(sessionID)
	if !ok || session.Username() != identity.Username {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// End tears a session down without scoring it.
func (s *QuizService) End(sessionID string) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	s.sessions.Delete(sessionID)
	session.Close()
}

func (s *QuizService) release(session *Session) {
	s.sessions.Delete(session.ID())
	session.Close()
}

// History returns every recorded result for the user, oldest first.
func (s *QuizService) History(ctx context.Context, identity domain.AuthContext) ([]domain.QuizResult, error) {
	if !identity.Valid() {
		return nil, domain.ErrAuthMissing
	}
	results, err := s.history.ReadHistory(ctx, identity.Username)
	if err != nil {
		return nil, fmt.Errorf("%w: read history: %w", domain.ErrPersistence, err)
	}
	return results, nil
}

// FindResult returns the first recorded attempt at quizID.
func (s *QuizService) FindResult(ctx context.Context, identity domain.AuthContext, quizID string) (domain.QuizResult, error) {
	results, err := s.History(ctx, identity)
	if err != nil {
		return domain.QuizResult{}, err
	}
	for _, r := range results {
		if r.QuizID == quizID {
			return r, nil
		}
	}
	return domain.QuizResult{}, domain.ErrResultNotFound
}

// Stats summarises the user's history.
func (s *QuizService) Stats(ctx context.Context, identity domain.AuthContext) (domain.Stats, error) {
	results, err := s.History(ctx, identity)
	if err != nil {
		return domain.Stats{}, err
	}
	return domain.ComputeStats(results), nil
}
