package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-session-engine/internal/app"
	"quiz-session-engine/internal/domain"
	"quiz-session-engine/internal/infra/memory"
)

var alice = domain.AuthContext{Token: "t", Username: "alice"}

func TestTimerExpiryScoresPartialLedger(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	session, err := env.service.Begin(ctx, alice, "quiz-1")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := session.Select("q1-b"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := session.Advance(); err != nil {
		t.Fatalf("advance: %v", err)
	}

	for i := 0; i < 59; i++ {
		env.ticker.tick(t)
	}
	waitFor(t, func() bool {
		v, err := session.View()
		return err == nil && v.Remaining == 1 && v.Clock == "0:01"
	})
	env.ticker.tick(t)

	results := waitForHistory(t, env, 1)
	r := results[0]
	if r.Score != 50 || r.CorrectAnswers != 1 || r.TotalQuestions != 2 {
		t.Fatalf("unexpected result %+v", r)
	}
	if len(r.Response) != 1 || r.Response[0].SelectedAnswer != "4" {
		t.Fatalf("unexpected response %+v", r.Response)
	}
	waitFor(t, func() bool { return env.store.Len() == 0 })
	if !env.ticker.stopped() {
		t.Fatalf("expected ticker stopped after expiry")
	}
}

func TestTimerExpiryWhilePendingConfirmation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	session, err := env.service.Begin(ctx, alice, "quiz-1")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	answer(t, session, "q1-b")
	answer(t, session, "q2-a")
	v, _ := session.View()
	if v.Phase != domain.PhasePendingConfirmation {
		t.Fatalf("expected pending confirmation, got %s", v.Phase)
	}

	for i := 0; i < 60; i++ {
		env.ticker.tick(t)
	}

	results := waitForHistory(t, env, 1)
	r := results[0]
	if r.Score != 50 || r.CorrectAnswers != 1 || len(r.Response) != 2 {
		t.Fatalf("unexpected result %+v", r)
	}
	waitFor(t, func() bool { return env.store.Len() == 0 })
	if _, err := session.Confirm(ctx); !errors.Is(err, domain.ErrSessionClosed) && !errors.Is(err, domain.ErrSessionFinalized) {
		t.Fatalf("expected confirm after expiry to be rejected, got %v", err)
	}
}

func TestLastTickRacingConfirmRecordsOnce(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		env := newTestEnv()
		session, err := env.service.Begin(ctx, alice, "quiz-1")
		if err != nil {
			t.Fatalf("begin: %v", err)
		}
		answer(t, session, "q1-b")
		answer(t, session, "q2-b")
		for j := 0; j < 59; j++ {
			env.ticker.tick(t)
		}

		release := make(chan struct{})
		fired := make(chan struct{})
		go func() {
			defer close(fired)
			select {
			case env.ticker.ch <- time.Now():
			case <-release:
			}
		}()
		_, err = session.Confirm(ctx)
		if err != nil && !errors.Is(err, domain.ErrSessionFinalized) && !errors.Is(err, domain.ErrSessionClosed) {
			t.Fatalf("iteration %d: confirm: %v", i, err)
		}

		waitFor(t, func() bool { return env.store.Len() == 0 })
		close(release)
		<-fired

		results, err := env.service.History(ctx, alice)
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		if len(results) != 1 || results[0].Score != 100 {
			t.Fatalf("iteration %d: expected exactly one record, got %+v", i, results)
		}
	}
}

func TestCancelThenConfirm(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	session, err := env.service.Begin(ctx, alice, "quiz-1")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	answer(t, session, "q1-b")
	answer(t, session, "q2-a")

	v, _ := session.View()
	if v.Phase != domain.PhasePendingConfirmation || v.Index != 1 {
		t.Fatalf("expected pending confirmation on last question, got %+v", v)
	}

	if err := session.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	v, _ = session.View()
	if v.Phase != domain.PhaseInProgress || v.Index != 1 {
		t.Fatalf("expected back on last question, got %+v", v)
	}
	answer(t, session, "q2-b")

	outcome, err := session.Confirm(ctx)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !outcome.Persisted || outcome.Result.Score != 100 {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if len(outcome.Result.Response) != 2 {
		t.Fatalf("re-answered question must replace its entry, got %d entries", len(outcome.Result.Response))
	}
	if env.store.Len() != 0 {
		t.Fatalf("expected session released after confirm")
	}
}

func TestDoubleExpireRecordsOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	session, err := env.service.Begin(ctx, alice, "quiz-1")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := session.Expire(ctx); err != nil {
		t.Fatalf("expire: %v", err)
	}
	_, err = session.Expire(ctx)
	if !errors.Is(err, domain.ErrSessionFinalized) && !errors.Is(err, domain.ErrSessionClosed) {
		t.Fatalf("expected second expire to be rejected, got %v", err)
	}

	results, err := env.service.History(ctx, alice)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(results) != 1 || results[0].Score != 0 {
		t.Fatalf("expected a single zero-score record, got %+v", results)
	}
}

func TestAdvanceRequiresSelection(t *testing.T) {
	env := newTestEnv()
	session, err := env.service.Begin(context.Background(), alice, "quiz-1")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer env.service.End(session.ID())

	before, _ := session.View()
	if err := session.Advance(); !errors.Is(err, domain.ErrNoSelection) {
		t.Fatalf("expected no selection error, got %v", err)
	}
	after, _ := session.View()
	if after.Index != before.Index || len(after.Answered) != 0 {
		t.Fatalf("state changed on rejected advance: %+v", after)
	}

	if err := session.Select("nope"); !errors.Is(err, domain.ErrOptionNotFound) {
		t.Fatalf("expected option not found, got %v", err)
	}
	if _, err := session.Confirm(context.Background()); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestJumpToClearsSelection(t *testing.T) {
	env := newTestEnv()
	session, err := env.service.Begin(context.Background(), alice, "quiz-1")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer env.service.End(session.ID())

	if err := session.Select("q1-a"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := session.JumpTo(1); err != nil {
		t.Fatalf("jump: %v", err)
	}
	v, _ := session.View()
	if v.Index != 1 || v.Selected != "" || v.Question == nil || v.Question.Text != "Capital of France?" {
		t.Fatalf("unexpected view after jump %+v", v)
	}
	for _, bad := range []int{-1, 2} {
		if err := session.JumpTo(bad); !errors.Is(err, domain.ErrQuestionOutOfRange) {
			t.Fatalf("jump %d: expected out of range, got %v", bad, err)
		}
	}
}

func TestTwoAttemptsAppendInOrder(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	for _, pick := range []string{"q1-a", "q1-b"} {
		session, err := env.service.Begin(ctx, alice, "quiz-1")
		if err != nil {
			t.Fatalf("begin: %v", err)
		}
		answer(t, session, pick)
		answer(t, session, "q2-b")
		if _, err := session.Confirm(ctx); err != nil {
			t.Fatalf("confirm: %v", err)
		}
	}

	results, err := env.service.History(ctx, alice)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(results) != 2 || results[0].Score != 50 || results[1].Score != 100 {
		t.Fatalf("unexpected history %+v", results)
	}

	first, err := env.service.FindResult(ctx, alice, "quiz-1")
	if err != nil || first.Score != 50 {
		t.Fatalf("expected first attempt, got %+v (%v)", first, err)
	}
	if _, err := env.service.FindResult(ctx, alice, "quiz-9"); !errors.Is(err, domain.ErrResultNotFound) {
		t.Fatalf("expected result not found, got %v", err)
	}

	stats, err := env.service.Stats(ctx, alice)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalQuizzes != 2 || stats.AverageScore != 75 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestPersistFailureStillReturnsResult(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.history.FailWrites(errors.New("disk full"))

	session, err := env.service.Begin(ctx, alice, "quiz-1")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	answer(t, session, "q1-b")
	answer(t, session, "q2-b")

	outcome, err := session.Confirm(ctx)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if outcome.Persisted || !errors.Is(outcome.PersistErr, domain.ErrPersistence) {
		t.Fatalf("expected persistence failure, got %+v", outcome)
	}
	if outcome.Result.Score != 100 {
		t.Fatalf("result should survive persistence failure: %+v", outcome.Result)
	}
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	env := newTestEnv()
	session, err := env.service.Begin(context.Background(), alice, "quiz-1")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer env.service.End(session.ID())

	ch, cancel, err := session.Subscribe()
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	initial := <-ch
	if initial.Phase != domain.PhaseInProgress || initial.Clock != "1:00" {
		t.Fatalf("unexpected initial snapshot %+v", initial)
	}

	if err := session.Select("q1-a"); err != nil {
		t.Fatalf("select: %v", err)
	}
	select {
	case update := <-ch:
		if update.Selected != "q1-a" {
			t.Fatalf("expected selection in update, got %+v", update)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for update")
	}
}

func TestBeginRejections(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	if _, err := env.service.Begin(ctx, domain.AuthContext{}, "quiz-1"); !errors.Is(err, domain.ErrAuthMissing) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if _, err := env.service.Begin(ctx, alice, "missing"); !errors.Is(err, domain.ErrQuizNotFound) || !errors.Is(err, domain.ErrLoadFailure) {
		t.Fatalf("expected load failure for missing quiz, got %v", err)
	}
	if _, err := env.service.Begin(ctx, alice, "broken"); !errors.Is(err, domain.ErrInvalidQuiz) {
		t.Fatalf("expected invalid quiz, got %v", err)
	}
	if env.store.Len() != 0 {
		t.Fatalf("failed sessions should not be registered")
	}
}

func TestSessionOwnership(t *testing.T) {
	env := newTestEnv()
	session, err := env.service.Begin(context.Background(), alice, "quiz-1")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer env.service.End(session.ID())

	if _, err := env.service.Session(alice, session.ID()); err != nil {
		t.Fatalf("owner lookup: %v", err)
	}
	bob := domain.AuthContext{Token: "t", Username: "bob"}
	if _, err := env.service.Session(bob, session.ID()); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected other users to be rejected, got %v", err)
	}
}

type testEnv struct {
	service *app.QuizService
	store   *memory.SessionStore
	history *memory.HistoryStore
	ticker  *manualTicker
}

func newTestEnv() testEnv {
	store := memory.NewSessionStore()
	history := memory.NewHistoryStore()
	ticker := newManualTicker()
	quizzes := memory.NewQuizRepository(memory.NewStaticQuizLoaderFromList([]domain.QuizDefinition{
		{
			ID:        "quiz-1",
			Title:     "General knowledge",
			TimeLimit: 1,
			Questions: []domain.Question{
				{
					Text: "What is 2 + 2?",
					Options: []domain.Option{
						{ID: "q1-a", Text: "3"},
						{ID: "q1-b", Text: "4", Correct: true},
					},
				},
				{
					Text: "Capital of France?",
					Options: []domain.Option{
						{ID: "q2-a", Text: "Lyon"},
						{ID: "q2-b", Text: "Paris", Correct: true},
					},
				},
			},
		},
		{
			ID:        "broken",
			Title:     "No answers",
			TimeLimit: 1,
			Questions: []domain.Question{{Text: "?", Options: []domain.Option{{ID: "x", Text: "x"}}}},
		},
	}), time.Minute)
	service := app.NewQuizService(store, quizzes, history, app.WithTicker(ticker.start, time.Second))
	return testEnv{service: service, store: store, history: history, ticker: ticker}
}

func answer(t *testing.T, session *app.Session, optionID string) {
	t.Helper()
	if err := session.Select(optionID); err != nil {
		t.Fatalf("select %s: %v", optionID, err)
	}
	if err := session.Advance(); err != nil {
		t.Fatalf("advance after %s: %v", optionID, err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func waitForHistory(t *testing.T, env testEnv, n int) []domain.QuizResult {
	t.Helper()
	var results []domain.QuizResult
	waitFor(t, func() bool {
		var err error
		results, err = env.service.History(context.Background(), alice)
		return err == nil && len(results) == n
	})
	return results
}
