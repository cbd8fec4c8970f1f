package app

import (
	"time"

	"quiz-session-engine/internal/domain"
)

// Score builds the final result for an attempt. The denominator is always the full quiz
// length, so questions that never reached the ledger count as wrong.
func Score(quiz domain.QuizDefinition, answers []domain.AnsweredQuestion, startedAt, now time.Time) domain.QuizResult {
	total := len(quiz.Questions)
	correct := 0
	for _, a := range answers {
		if a.IsCorrect() {
			correct++
		}
	}

	var score float64
	if total > 0 {
		score = (float64(correct) / float64(total)) * 100
	}

	elapsed := int64(now.Sub(startedAt) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}

	response := make([]domain.AnsweredQuestion, len(answers))
	copy(response, answers)

	return domain.QuizResult{
		QuizID:         quiz.ID,
		QuizTitle:      quiz.Title,
		Score:          score,
		TotalQuestions: total,
		CorrectAnswers: correct,
		Response:       response,
		Date:           now.UTC(),
		TimeTaken:      elapsed,
	}
}
