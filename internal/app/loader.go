package app

import (
	"context"
	"fmt"
	"time"

	"quiz-session-engine/internal/domain"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error)
	ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error)
}

// LoadedQuiz is a validated definition plus the session clock seed.
type LoadedQuiz struct {
	Definition     domain.QuizDefinition
	InitialSeconds int
	StartedAt      time.Time
}

// Loader fetches and validates a quiz definition for a single session.
type Loader struct {
	quizzes QuizRepository
	now     func() time.Time
}

func NewLoader(quizzes QuizRepository, now func() time.Time) *Loader {
	if now == nil {
		now = time.Now
	}
	return &Loader{quizzes: quizzes, now: now}
}

// Load fetches quizID. Every failure is wrapped in domain.ErrLoadFailure; the
// underlying cause (not found, transport, invalid) stays matchable with errors.Is.
func (l *Loader) Load(ctx context.Context, quizID string) (LoadedQuiz, error) {
	def, err := l.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return LoadedQuiz{}, fmt.Errorf("%w: %w", domain.ErrLoadFailure, err)
	}
	if err := def.Validate(); err != nil {
		return LoadedQuiz{}, fmt.Errorf("%w: %w", domain.ErrLoadFailure, err)
	}
	def = def.WithQuestionIDs()
	return LoadedQuiz{
		Definition:     def,
		InitialSeconds: def.TimeLimitSeconds(),
		StartedAt:      l.now(),
	}, nil
}
