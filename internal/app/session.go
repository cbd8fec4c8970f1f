package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"quiz-session-engine/internal/domain"
)

const (
	defaultTickEvery      = time.Second
	defaultPersistTimeout = 5 * time.Second
)

type sessionConfig struct {
	id             string
	quizID         string
	identity       domain.AuthContext
	loader         *Loader
	recorder       *Recorder
	now            func() time.Time
	ticker         TickerFunc
	tickEvery      time.Duration
	persistTimeout time.Duration
	onFinalized    func(*Session)
}

// Session is one user's attempt at one quiz. All state transitions, whether they come
// from the user or from the countdown, run serially on the session's own goroutine.
type Session struct {
	id             string
	quizID         string
	identity       domain.AuthContext
	loader         *Loader
	recorder       *Recorder
	now            func() time.Time
	ticker         TickerFunc
	tickEvery      time.Duration
	persistTimeout time.Duration
	onFinalized    func(*Session)

	requests  chan request
	done      chan struct{}
	exited    chan struct{}
	closeOnce sync.Once

	// Fields below are only touched on the loop goroutine.
	phase       domain.Phase
	quiz        domain.QuizDefinition
	index       int
	selected    string
	ledger      *Ledger
	countdown   Countdown
	startedAt   time.Time
	finalized   bool
	result      *domain.QuizResult
	persisted   bool
	lastErr     string
	stopTicker  func()
	subscribers map[chan domain.SessionView]struct{}
}

type request struct {
	fn    func() error
	reply chan error
}

func newSession(cfg sessionConfig) *Session {
	if cfg.now == nil {
		cfg.now = time.Now
	}
	if cfg.ticker == nil {
		cfg.ticker = RealTicker
	}
	if cfg.tickEvery <= 0 {
		cfg.tickEvery = defaultTickEvery
	}
	if cfg.persistTimeout <= 0 {
		cfg.persistTimeout = defaultPersistTimeout
	}
	s := &Session{
		id:             cfg.id,
		quizID:         cfg.quizID,
		identity:       cfg.identity,
		loader:         cfg.loader,
		recorder:       cfg.recorder,
		now:            cfg.now,
		ticker:         cfg.ticker,
		tickEvery:      cfg.tickEvery,
		persistTimeout: cfg.persistTimeout,
		onFinalized:    cfg.onFinalized,
		requests:       make(chan request),
		done:           make(chan struct{}),
		exited:         make(chan struct{}),
		phase:          domain.PhaseLoading,
		ledger:         NewLedger(),
		subscribers:    make(map[chan domain.SessionView]struct{}),
	}
	go s.run()
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) QuizID() string { return s.quizID }

func (s *Session) Username() string { return s.identity.Username }

func (s *Session) run() {
	defer close(s.exited)
	for {
		select {
		case req := <-s.requests:
			select {
			case <-s.done:
				req.reply <- domain.ErrSessionClosed
				continue
			default:
			}
			req.reply <- req.fn()
		case <-s.done:
			s.shutdownLocked()
			return
		}
	}
}

// do runs fn on the session goroutine and waits for its result.
func (s *Session) do(fn func() error) error {
	req := request{fn: fn, reply: make(chan error, 1)}
	select {
	case s.requests <- req:
	case <-s.done:
		return domain.ErrSessionClosed
	}
	return <-req.reply
}

// Close tears the session down: the countdown stops, subscribers are released and
// any in-flight load result is discarded. Close is idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
	<-s.exited
}

// Load fetches the quiz definition and starts the countdown. A failed load moves the
// session to the terminal failed phase.
func (s *Session) Load(ctx context.Context) error {
	if err := s.do(func() error { return s.requirePhaseLocked(domain.PhaseLoading) }); err != nil {
		return err
	}

	// The catalog call runs off the session goroutine.
	loaded, loadErr := s.loader.Load(ctx, s.quizID)

	return s.do(func() error {
		if err := s.requirePhaseLocked(domain.PhaseLoading); err != nil {
			return err
		}
		if loadErr != nil {
			s.phase = domain.PhaseFailed
			s.lastErr = loadErr.Error()
			s.broadcastLocked()
			return loadErr
		}
		s.quiz = loaded.Definition
		s.countdown = NewCountdown(loaded.InitialSeconds)
		s.startedAt = loaded.StartedAt
		s.phase = domain.PhaseInProgress
		s.startTickerLocked()
		s.broadcastLocked()
		return nil
	})
}

// Select sets the in-flight choice for the current question.
func (s *Session) Select(optionID string) error {
	return s.do(func() error {
		if err := s.requirePhaseLocked(domain.PhaseInProgress); err != nil {
			return err
		}
		if _, ok := s.quiz.Questions[s.index].Option(optionID); !ok {
			return fmt.Errorf("%w: %q", domain.ErrOptionNotFound, optionID)
		}
		s.selected = optionID
		s.broadcastLocked()
		return nil
	})
}

// Advance commits the selected option for the current question. On the last question
// the session waits for confirmation instead of scoring.
func (s *Session) Advance() error {
	return s.do(func() error {
		if err := s.requirePhaseLocked(domain.PhaseInProgress); err != nil {
			return err
		}
		if s.selected == "" {
			return domain.ErrNoSelection
		}
		question := s.quiz.Questions[s.index]
		chosen, ok := question.Option(s.selected)
		if !ok {
			return fmt.Errorf("%w: %q", domain.ErrOptionNotFound, s.selected)
		}
		correct, _ := question.CorrectOption()

		s.ledger.Record(domain.AnsweredQuestion{
			QuestionIndex:  s.index,
			QuestionID:     question.ID,
			QuestionTitle:  question.Text,
			CorrectAnswer:  correct.Text,
			SelectedAnswer: chosen.Text,
		})

		if s.index == len(s.quiz.Questions)-1 {
			s.phase = domain.PhasePendingConfirmation
		} else {
			s.index++
			s.selected = ""
		}
		s.broadcastLocked()
		return nil
	})
}

// JumpTo moves to any question. The ledger is untouched; the in-flight selection is dropped.
func (s *Session) JumpTo(index int) error {
	return s.do(func() error {
		if err := s.requirePhaseLocked(domain.PhaseInProgress); err != nil {
			return err
		}
		if index < 0 || index >= len(s.quiz.Questions) {
			return fmt.Errorf("%w: %d", domain.ErrQuestionOutOfRange, index)
		}
		s.index = index
		s.selected = ""
		s.broadcastLocked()
		return nil
	})
}

// Cancel leaves the confirmation step and returns to the last question.
func (s *Session) Cancel() error {
	return s.do(func() error {
		if err := s.requirePhaseLocked(domain.PhasePendingConfirmation); err != nil {
			return err
		}
		s.phase = domain.PhaseInProgress
		s.index = len(s.quiz.Questions) - 1
		s.broadcastLocked()
		return nil
	})
}

// Confirm finalizes a session that is waiting for confirmation.
func (s *Session) Confirm(ctx context.Context) (domain.Outcome, error) {
	var result domain.QuizResult
	err := s.do(func() error {
		if err := s.requirePhaseLocked(domain.PhasePendingConfirmation); err != nil {
			return err
		}
		var err error
		result, err = s.finalizeLocked("confirmed")
		return err
	})
	if err != nil {
		return domain.Outcome{}, err
	}
	return s.complete(ctx, result), nil
}

// Expire is the zero-time signal: it scores the session from either active phase
// using whatever the ledger holds.
func (s *Session) Expire(ctx context.Context) (domain.Outcome, error) {
	var result domain.QuizResult
	err := s.do(func() error {
		if !s.finalized && s.phase.Active() {
			s.countdown.Expire()
		}
		var err error
		result, err = s.finalizeLocked("expired")
		return err
	})
	if err != nil {
		return domain.Outcome{}, err
	}
	return s.complete(ctx, result), nil
}

// View returns the current snapshot.
func (s *Session) View() (domain.SessionView, error) {
	var v domain.SessionView
	err := s.do(func() error {
		v = s.viewLocked()
		return nil
	})
	return v, err
}

// Subscribe returns a channel that receives a snapshot on every change and tick.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan domain.SessionView, func(), error) {
	ch := make(chan domain.SessionView, 8)
	err := s.do(func() error {
		s.subscribers[ch] = struct{}{}
		ch <- s.viewLocked()
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	cancel := func() {
		_ = s.do(func() error {
			if _, ok := s.subscribers[ch]; ok {
				delete(s.subscribers, ch)
				close(ch)
			}
			return nil
		})
	}
	return ch, cancel, nil
}

func (s *Session) requirePhaseLocked(want domain.Phase) error {
	if s.finalized {
		return domain.ErrSessionFinalized
	}
	if s.phase != want {
		return fmt.Errorf("%w: session is %s", domain.ErrInvalidTransition, s.phase)
	}
	return nil
}

// finalizeLocked is the single point where a session becomes scored.
func (s *Session) finalizeLocked(reason string) (domain.QuizResult, error) {
	if s.finalized {
		return domain.QuizResult{}, domain.ErrSessionFinalized
	}
	if !s.phase.Active() {
		return domain.QuizResult{}, fmt.Errorf("%w: session is %s", domain.ErrInvalidTransition, s.phase)
	}
	s.finalized = true
	s.stopTickerLocked()

	result := Score(s.quiz, s.ledger.Entries(), s.startedAt, s.now())
	s.result = &result
	s.phase = domain.PhaseScored
	s.selected = ""
	log.Printf("session %s: quiz %s finalized (%s) user=%s score=%.2f correct=%d/%d",
		s.id, s.quizID, reason, s.identity.Username, result.Score, result.CorrectAnswers, result.TotalQuestions)
	s.broadcastLocked()
	return result, nil
}

// complete persists a freshly finalized result off the session goroutine. A failed write
// is logged and reported but the result is still handed back.
func (s *Session) complete(ctx context.Context, result domain.QuizResult) domain.Outcome {
	ctx, cancel := context.WithTimeout(ctx, s.persistTimeout)
	defer cancel()

	outcome := domain.Outcome{Result: result}
	if err := s.recorder.Record(ctx, s.identity.Username, result); err != nil {
		log.Printf("session %s: record result for %s: %v", s.id, s.identity.Username, err)
		outcome.PersistErr = err
	} else {
		outcome.Persisted = true
	}

	_ = s.do(func() error {
		s.persisted = outcome.Persisted
		if outcome.PersistErr != nil {
			s.lastErr = outcome.PersistErr.Error()
		}
		s.broadcastLocked()
		return nil
	})

	if s.onFinalized != nil {
		s.onFinalized(s)
	}
	return outcome
}

func (s *Session) startTickerLocked() {
	ticks, stop := s.ticker(s.tickEvery)
	quit := make(chan struct{})
	var once sync.Once
	s.stopTicker = func() {
		once.Do(func() {
			stop()
			close(quit)
		})
	}
	go s.pump(ticks, quit)
}

func (s *Session) stopTickerLocked() {
	if s.stopTicker != nil {
		s.stopTicker()
		s.stopTicker = nil
	}
}

// pump forwards clock ticks into the session loop until expiry or teardown.
func (s *Session) pump(ticks <-chan time.Time, quit <-chan struct{}) {
	for {
		select {
		case <-ticks:
			var (
				result  domain.QuizResult
				expired bool
			)
			err := s.do(func() error {
				if s.finalized || !s.phase.Active() {
					return domain.ErrInvalidTransition
				}
				if !s.countdown.Tick() {
					s.broadcastLocked()
					return nil
				}
				var err error
				result, err = s.finalizeLocked("expired")
				expired = err == nil
				return err
			})
			if err != nil {
				return
			}
			if expired {
				s.complete(context.Background(), result)
				return
			}
		case <-quit:
			return
		case <-s.done:
			return
		}
	}
}

func (s *Session) shutdownLocked() {
	s.stopTickerLocked()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
	if !s.finalized && s.phase.Active() {
		log.Printf("session %s: closed before scoring quiz %s", s.id, s.quizID)
	}
}

func (s *Session) broadcastLocked() {
	view := s.viewLocked()
	for ch := range s.subscribers {
		select {
		case ch <- view:
		default:
			// Drop the stale snapshot so a slow reader never blocks the loop.
			select {
			case <-ch:
			default:
			}
			ch <- view
		}
	}
}

func (s *Session) viewLocked() domain.SessionView {
	view := domain.SessionView{
		SessionID:     s.id,
		QuizID:        s.quizID,
		Title:         s.quiz.Title,
		Phase:         s.phase,
		Index:         s.index,
		QuestionCount: len(s.quiz.Questions),
		Selected:      s.selected,
		Answered:      s.ledger.AnsweredIndices(),
		Remaining:     s.countdown.Remaining(),
		Clock:         domain.FormatClock(s.countdown.Remaining()),
		Persisted:     s.persisted,
		Error:         s.lastErr,
	}
	if s.phase.Active() && s.index < len(s.quiz.Questions) {
		view.Question = domain.NewQuestionView(s.index, s.quiz.Questions[s.index])
	}
	if s.result != nil {
		r := *s.result
		r.Response = append([]domain.AnsweredQuestion(nil), s.result.Response...)
		view.Result = &r
	}
	return view
}
