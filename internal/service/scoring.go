package service

import (
	"math"
	"strings"

	"github.com/phaniteluguti/Edutech-mvp-sub000/internal/model"
)

// ScoreBreakdown is the output of scoring one attempt against the
// question set of its test.
type ScoreBreakdown struct {
	Score       float64 `json:"score"`
	MaxScore    float64 `json:"maxScore"`
	Correct     int     `json:"correctCount"`
	Incorrect   int     `json:"incorrectCount"`
	Unattempted int     `json:"unattemptedCount"`
}

// ScoreResponses grades a response map against a question set. It is a
// pure function: no stored state, safe for concurrent callers, and the
// same inputs always produce the same breakdown.
//
// Comparison is exact and case-sensitive beyond trimming whitespace; a
// blank or missing answer counts as unattempted. Wrong answers deduct
// the question's negative marks, but the total never drops below zero.
func ScoreResponses(questions []model.Question, responses map[string]string) ScoreBreakdown {
	var b ScoreBreakdown

	for _, q := range questions {
		b.MaxScore += q.Marks

		answer, ok := responses[q.ID]
		if !ok || strings.TrimSpace(answer) == "" {
			b.Unattempted++
			continue
		}

		if answer == q.CorrectAnswer {
			b.Correct++
			b.Score += q.Marks
		} else {
			b.Incorrect++
			b.Score -= q.NegativeMarks
		}
	}

	if b.Score < 0 {
		b.Score = 0
	}
	b.Score = math.Round(b.Score*100) / 100

	return b
}
