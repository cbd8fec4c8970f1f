package app

import "quiz-session-engine/internal/domain"

// Ledger records answered questions in first-completion order.
// Entries are keyed by question index: re-answering a question replaces its entry in place.
type Ledger struct {
	entries []domain.AnsweredQuestion
	byIndex map[int]int
}

func NewLedger() *Ledger {
	return &Ledger{byIndex: make(map[int]int)}
}

// Record upserts the entry for entry.QuestionIndex and reports whether it replaced one.
func (l *Ledger) Record(entry domain.AnsweredQuestion) bool {
	if pos, ok := l.byIndex[entry.QuestionIndex]; ok {
		l.entries[pos] = entry
		return true
	}
	l.byIndex[entry.QuestionIndex] = len(l.entries)
	l.entries = append(l.entries, entry)
	return false
}

func (l *Ledger) Len() int { return len(l.entries) }

func (l *Ledger) Answered(index int) bool {
	_, ok := l.byIndex[index]
	return ok
}

// Entries returns a copy of the ledger.
func (l *Ledger) Entries() []domain.AnsweredQuestion {
	out := make([]domain.AnsweredQuestion, len(l.entries))
	copy(out, l.entries)
	return out
}

// AnsweredIndices lists answered question indices in ledger order.
func (l *Ledger) AnsweredIndices() []int {
	out := make([]int, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e.QuestionIndex)
	}
	return out
}
