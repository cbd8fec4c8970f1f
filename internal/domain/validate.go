package domain

import "fmt"

// Validate checks the structural invariants the session engine relies on:
// at least one question, a positive time limit, and exactly one correct option per question.
func (q QuizDefinition) Validate() error {
	if len(q.Questions) == 0 {
		return fmt.Errorf("%w: quiz %q has no questions", ErrInvalidQuiz, q.ID)
	}
	if q.TimeLimit <= 0 {
		return fmt.Errorf("%w: quiz %q has non-positive time limit %d", ErrInvalidQuiz, q.ID, q.TimeLimit)
	}
	for i, question := range q.Questions {
		if len(question.Options) == 0 {
			return fmt.Errorf("%w: question %d has no options", ErrInvalidQuiz, i+1)
		}
		correct := 0
		for _, opt := range question.Options {
			if opt.Correct {
				correct++
			}
		}
		if correct != 1 {
			return fmt.Errorf("%w: question %d has %d correct options, want 1", ErrInvalidQuiz, i+1, correct)
		}
	}
	return nil
}
