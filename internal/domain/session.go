package domain

import "fmt"

// Phase is the lifecycle state of a quiz session.
type Phase string

const (
	PhaseLoading             Phase = "loading"
	PhaseInProgress          Phase = "in_progress"
	PhasePendingConfirmation Phase = "pending_confirmation"
	PhaseScored              Phase = "scored"
	PhaseFailed              Phase = "failed"
)

// Active reports whether the countdown should be running in this phase.
func (p Phase) Active() bool {
	return p == PhaseInProgress || p == PhasePendingConfirmation
}

// OptionView is an option as shown to the quiz taker, without correctness.
type OptionView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// QuestionView is the current question as shown to the quiz taker.
type QuestionView struct {
	Index   int          `json:"index"`
	Text    string       `json:"text"`
	Options []OptionView `json:"options"`
}

// SessionView is a point-in-time snapshot of a session for clients.
type SessionView struct {
	SessionID     string        `json:"sessionId"`
	QuizID        string        `json:"quizId"`
	Title         string        `json:"title,omitempty"`
	Phase         Phase         `json:"phase"`
	Index         int           `json:"index"`
	QuestionCount int           `json:"questionCount"`
	Question      *QuestionView `json:"question,omitempty"`
	Selected      string        `json:"selectedOptionId,omitempty"`
	Answered      []int         `json:"answered"`
	Remaining     int           `json:"remaining"`
	Clock         string        `json:"clock"`
	Result        *QuizResult   `json:"result,omitempty"`
	Persisted     bool          `json:"persisted"`
	Error         string        `json:"error,omitempty"`
}

// NewQuestionView strips correctness from a question.
func NewQuestionView(index int, q Question) *QuestionView {
	options := make([]OptionView, 0, len(q.Options))
	for _, opt := range q.Options {
		options = append(options, OptionView{ID: opt.ID, Text: opt.Text})
	}
	return &QuestionView{Index: index, Text: q.Text, Options: options}
}

// FormatClock renders remaining seconds as m:ss.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
