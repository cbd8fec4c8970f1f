package domain

import (
	"fmt"
	"time"
)

// Option represents a possible answer for a question.
type Option struct {
	ID      string `json:"id" yaml:"id"`
	Text    string `json:"answerText" yaml:"answerText"`
	Correct bool   `json:"isCorrect" yaml:"isCorrect"`
}

// Question models an MCQ question with exactly one correct option.
type Question struct {
	ID      string   `json:"id,omitempty" yaml:"id,omitempty"`
	Text    string   `json:"questionText" yaml:"questionText"`
	Options []Option `json:"options" yaml:"options"`
}

// CorrectOption returns the option flagged as correct.
func (q Question) CorrectOption() (Option, bool) {
	for _, opt := range q.Options {
		if opt.Correct {
			return opt, true
		}
	}
	return Option{}, false
}

// Option looks up an option by id.
func (q Question) Option(id string) (Option, bool) {
	for _, opt := range q.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return Option{}, false
}

// QuizDefinition is the immutable description of a quiz. TimeLimit is in minutes.
type QuizDefinition struct {
	ID          string     `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	TimeLimit   int        `json:"timeLimit" yaml:"timeLimit"`
	Questions   []Question `json:"questions" yaml:"questions"`
}

// TimeLimitSeconds is the initial countdown value for a session.
func (q QuizDefinition) TimeLimitSeconds() int {
	return q.TimeLimit * 60
}

// WithQuestionIDs returns a copy where questions missing an id get a positional one.
func (q QuizDefinition) WithQuestionIDs() QuizDefinition {
	questions := make([]Question, len(q.Questions))
	copy(questions, q.Questions)
	for i := range questions {
		if questions[i].ID == "" {
			questions[i].ID = fmt.Sprintf("q%d", i+1)
		}
	}
	q.Questions = questions
	return q
}

// QuizSummary is the catalog listing entry for a quiz.
type QuizSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// AuthContext carries the caller identity into the engine. It is read-only for a session.
type AuthContext struct {
	Token    string `json:"-"`
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
}

// Valid reports whether both a credential and a username are present.
func (a AuthContext) Valid() bool {
	return a.Token != "" && a.Username != ""
}

// AnsweredQuestion is one ledger entry.
type AnsweredQuestion struct {
	QuestionIndex  int    `json:"questionIndex"`
	QuestionID     string `json:"questionId,omitempty"`
	QuestionTitle  string `json:"questionTitle"`
	CorrectAnswer  string `json:"correctAnswer"`
	SelectedAnswer string `json:"selectedAnswer"`
}

// IsCorrect reports whether the selected answer matches the correct one.
func (a AnsweredQuestion) IsCorrect() bool {
	return a.SelectedAnswer == a.CorrectAnswer
}

// QuizResult is the immutable record produced when a session is finalized.
type QuizResult struct {
	QuizID         string             `json:"quizId"`
	QuizTitle      string             `json:"quizTitle"`
	Score          float64            `json:"score"`
	TotalQuestions int                `json:"totalQuestions"`
	CorrectAnswers int                `json:"correctAnswers"`
	Response       []AnsweredQuestion `json:"response"`
	Date           time.Time          `json:"date"`
	TimeTaken      int64              `json:"timeTaken"`
}

// Outcome is what a finalization hands back: the result, plus any history write failure.
// A non-nil PersistErr does not invalidate Result.
type Outcome struct {
	Result     QuizResult `json:"result"`
	Persisted  bool       `json:"persisted"`
	PersistErr error      `json:"-"`
}

// HistoryKey derives the result-store key for a user.
func HistoryKey(username string) string {
	return "quizResults:" + username
}
