package http

import (
	"net/http/httptest"
	"testing"
	"time"

	"quiz-session-engine/internal/app"
	"quiz-session-engine/internal/auth"
	"quiz-session-engine/internal/domain"
	"quiz-session-engine/internal/infra/memory"
)

type testServer struct {
	*httptest.Server
	service *app.QuizService
	history *memory.HistoryStore
	ticks   chan time.Time
	token   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ticks := make(chan time.Time)
	ticker := func(time.Duration) (<-chan time.Time, func()) { return ticks, func() {} }

	history := memory.NewHistoryStore()
	quizRepo := memory.NewQuizRepository(memory.NewStaticQuizLoader(sampleQuiz()), time.Minute)
	service := app.NewQuizService(memory.NewSessionStore(), quizRepo, history, app.WithTicker(ticker, time.Second))

	provider := auth.NewProvider("test-secret", "quiz-session-engine", time.Hour)
	token, err := provider.Issue("alice", "student")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	server := httptest.NewServer(NewRouter(service, provider, RouterOptions{}))
	t.Cleanup(server.Close)
	return &testServer{Server: server, service: service, history: history, ticks: ticks, token: token}
}

func (s *testServer) tick(t *testing.T) {
	t.Helper()
	select {
	case s.ticks <- time.Now():
	case <-time.After(time.Second):
		t.Fatalf("ticker not being read")
	}
}

func sampleQuiz() map[string]domain.QuizDefinition {
	return map[string]domain.QuizDefinition{
		"quiz-1": {
			ID:        "quiz-1",
			Title:     "Warmup",
			TimeLimit: 1,
			Questions: []domain.Question{
				{
					ID:   "q1",
					Text: "What is 2 + 2?",
					Options: []domain.Option{
						{ID: "o1", Text: "3", Correct: false},
						{ID: "o2", Text: "4", Correct: true},
						{ID: "o3", Text: "5", Correct: false},
					},
				},
				{
					ID:   "q2",
					Text: "What is 3 * 3?",
					Options: []domain.Option{
						{ID: "o1", Text: "9", Correct: true},
						{ID: "o2", Text: "6", Correct: false},
					},
				},
			},
		},
	}
}
