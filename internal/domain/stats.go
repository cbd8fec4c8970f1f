package domain

import "math"

// Stats aggregates a user's result history.
type Stats struct {
	TotalQuizzes int     `json:"totalQuizzes"`
	AverageScore float64 `json:"averageScore"`
	TotalMinutes int64   `json:"totalTime"`
}

// ComputeStats summarizes results. Average score is rounded to two decimals.
func ComputeStats(results []QuizResult) Stats {
	if len(results) == 0 {
		return Stats{}
	}
	var totalScore float64
	var totalSeconds int64
	for _, r := range results {
		totalScore += r.Score
		totalSeconds += r.TimeTaken
	}
	avg := totalScore / float64(len(results))
	return Stats{
		TotalQuizzes: len(results),
		AverageScore: math.Round(avg*100) / 100,
		TotalMinutes: totalSeconds / 60,
	}
}
