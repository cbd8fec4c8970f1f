package app

import (
	"context"
	"fmt"

	"quiz-session-engine/internal/domain"
)

// HistoryStore persists the whole result list per user. Writes replace the list.
type HistoryStore interface {
	ReadHistory(ctx context.Context, username string) ([]domain.QuizResult, error)
	WriteHistory(ctx context.Context, username string, results []domain.QuizResult) error
}

// Recorder appends finalized results to a user's history.
type Recorder struct {
	history HistoryStore
}

func NewRecorder(history HistoryStore) *Recorder {
	return &Recorder{history: history}
}

// Record reads the existing list, appends result and writes the list back.
// Concurrent writers for the same user are not guarded against.
func (r *Recorder) Record(ctx context.Context, username string, result domain.QuizResult) error {
	if username == "" {
		return domain.ErrAuthMissing
	}
	existing, err := r.history.ReadHistory(ctx, username)
	if err != nil {
		return fmt.Errorf("%w: read history: %w", domain.ErrPersistence, err)
	}
	updated := make([]domain.QuizResult, 0, len(existing)+1)
	updated = append(updated, existing...)
	updated = append(updated, result)
	if err := r.history.WriteHistory(ctx, username, updated); err != nil {
		return fmt.Errorf("%w: write history: %w", domain.ErrPersistence, err)
	}
	return nil
}
