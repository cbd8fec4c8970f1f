package memory

import (
	"context"
	"sort"

	"quiz-session-engine/internal/domain"
)

// StaticQuizLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticQuizLoader struct {
	quizzes map[string]domain.QuizDefinition
}

func NewStaticQuizLoader(quizzes map[string]domain.QuizDefinition) *StaticQuizLoader {
	return &StaticQuizLoader{quizzes: quizzes}
}

// NewStaticQuizLoaderFromList keys definitions by their ID.
func NewStaticQuizLoaderFromList(quizzes []domain.QuizDefinition) *StaticQuizLoader {
	m := make(map[string]domain.QuizDefinition, len(quizzes))
	for _, q := range quizzes {
		m[q.ID] = q
	}
	return NewStaticQuizLoader(m)
}

func (l *StaticQuizLoader) LoadQuiz(_ context.Context, quizID string) (domain.QuizDefinition, error) {
	if quiz, ok := l.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.QuizDefinition{}, domain.ErrQuizNotFound
}

func (l *StaticQuizLoader) ListQuizzes(_ context.Context) ([]domain.QuizSummary, error) {
	out := make([]domain.QuizSummary, 0, len(l.quizzes))
	for _, q := range l.quizzes {
		out = append(out, domain.QuizSummary{ID: q.ID, Title: q.Title, Description: q.Description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
