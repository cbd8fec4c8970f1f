package memory

import (
	"context"
	"sync"

	"quiz-session-engine/internal/domain"
)

// HistoryStore keeps per-user result lists in process memory.
type HistoryStore struct {
	mu      sync.RWMutex
	results map[string][]domain.QuizResult
	failErr error
}

func NewHistoryStore() *HistoryStore {
	return &HistoryStore{results: make(map[string][]domain.QuizResult)}
}

func (h *HistoryStore) ReadHistory(_ context.Context, username string) ([]domain.QuizResult, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return cloneResults(h.results[username]), nil
}

func (h *HistoryStore) WriteHistory(_ context.Context, username string, results []domain.QuizResult) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failErr != nil {
		return h.failErr
	}
	h.results[username] = cloneResults(results)
	return nil
}

// FailWrites makes every subsequent write return err; nil restores normal behaviour.
func (h *HistoryStore) FailWrites(err error) {
	h.mu.Lock()
	h.failErr = err
	h.mu.Unlock()
}

func cloneResults(in []domain.QuizResult) []domain.QuizResult {
	out := make([]domain.QuizResult, len(in))
	for i, r := range in {
		r.Response = append([]domain.AnsweredQuestion(nil), r.Response...)
		out[i] = r
	}
	return out
}
