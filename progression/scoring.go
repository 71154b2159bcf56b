package progression

import (
	"math"

	course "lms/models/course"
)

// QuizResult is the graded outcome of one quiz submission.
type QuizResult struct {
	Percentage   float64 `json:"percentage"`
	Passed       bool    `json:"passed"`
	EarnedPoints int     `json:"earned_points"`
	TotalPoints  int     `json:"total_points"`
}

// ScoreQuiz grades a submitted answer set against the question weights.
// Answers maps question id to the selected option index; a missing or
// wrong answer earns nothing. An empty question set is an authoring
// error and grades as an automatic pass at 100 so a data-entry omission
// never blocks the learner.
func ScoreQuiz(questions []course.QuizQuestion, answers map[uint]int, passingScore int) QuizResult {
	if len(questions) == 0 {
		return QuizResult{Percentage: 100, Passed: true}
	}

	earned, total := 0, 0
	for _, q := range questions {
		points := q.Points
		if points <= 0 {
			points = 1
		}
		total += points
		if selected, ok := answers[q.ID]; ok && selected == q.CorrectOption {
			earned += points
		}
	}

	pct := math.Round(100 * float64(earned) / float64(total))
	return QuizResult{
		Percentage:   pct,
		Passed:       pct >= float64(passingScore),
		EarnedPoints: earned,
		TotalPoints:  total,
	}
}
