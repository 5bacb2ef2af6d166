// Package quiz holds server-side scoring for multiple-choice quizzes.
package quiz

import "github.com/learnhub/server/internal/model"

// Score grades answers against questions by position. Answers shorter than
// the question list count missing entries as unanswered; out-of-range option
// indexes score zero.
func Score(questions []model.QuizQuestion, answers []int) (score, maxScore int) {
	for i, q := range questions {
		maxScore += q.Points
		if i >= len(answers) {
			continue
		}
		a := answers[i]
		if a < 0 || a >= len(q.Options) {
			continue
		}
		if a == q.CorrectIndex {
			score += q.Points
		}
	}
	return score, maxScore
}

// Normalize pads or truncates answers to the question count, using -1 for
// unanswered positions, so stored attempts always align with the quiz.
func Normalize(questions []model.QuizQuestion, answers []int) []int {
	out := make([]int, len(questions))
	for i := range out {
		if i < len(answers) {
			out[i] = answers[i]
		} else {
			out[i] = -1
		}
	}
	return out
}
