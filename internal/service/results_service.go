package service

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/phaniteluguti/Edutech-mvp-sub000/internal/model"
	"github.com/phaniteluguti/Edutech-mvp-sub000/internal/util"

	"gorm.io/gorm"
)

// Analysis thresholds. These drive fixed recommendation strings, not
// any kind of learned model.
const (
	weakTopicAccuracy    = 60.0
	lowAttemptedPercent  = 70.0
	highAccuracyPercent  = 85.0
	rushedTimePercent    = 95.0
	underusedTimePercent = 40.0
	strongAttemptedFloor = 90.0
)

type QuestionResult struct {
	QuestionID    string  `json:"questionId"`
	Content       string  `json:"content"`
	Subject       string  `json:"subject"`
	Topic         string  `json:"topic"`
	Difficulty    string  `json:"difficulty"`
	IsAttempted   bool    `json:"isAttempted"`
	IsCorrect     bool    `json:"isCorrect"`
	UserAnswer    string  `json:"userAnswer,omitempty"`
	CorrectAnswer string  `json:"correctAnswer"`
	Explanation   string  `json:"explanation,omitempty"`
	MarksEarned   float64 `json:"marksEarned"`
	MarksLost     float64 `json:"marksLost"`
}

type TopicStats struct {
	Topic     string  `json:"topic"`
	Total     int     `json:"total"`
	Attempted int     `json:"attempted"`
	Correct   int     `json:"correct"`
	Incorrect int     `json:"incorrect"`
	Accuracy  float64 `json:"accuracy"`
}

type ResultSummary struct {
	Score                  float64  `json:"score"`
	MaxScore               float64  `json:"maxScore"`
	Percentage             float64  `json:"percentage"`
	CorrectCount           int      `json:"correctCount"`
	IncorrectCount         int      `json:"incorrectCount"`
	UnattemptedCount       int      `json:"unattemptedCount"`
	AttemptedPercent       float64  `json:"attemptedPercent"`
	TimeTakenSeconds       int      `json:"timeTakenSeconds"`
	TimeUtilizationPercent float64  `json:"timeUtilizationPercent"`
	Recommendations        []string `json:"recommendations"`
}

type AttemptResults struct {
	AttemptID   string           `json:"attemptId"`
	MockTestID  string           `json:"mockTestId"`
	SubmittedAt *time.Time       `json:"submittedAt"`
	Summary     ResultSummary    `json:"summary"`
	Questions   []QuestionResult `json:"questions"`
	Topics      []TopicStats     `json:"topics"`
	WeakTopics  []string         `json:"weakTopics"`
}

// ResultsService builds the post-submission analysis of an attempt:
// per-question correctness, per-topic accuracy, and a handful of
// rule-based study recommendations.
type ResultsService struct {
	Store   AttemptStore
	Catalog Catalog
}

func NewResultsService(store AttemptStore, catalog Catalog) *ResultsService {
	return &ResultsService{Store: store, Catalog: catalog}
}

// Results analyzes a finalized attempt. Requests against an attempt
// still in progress are rejected outright rather than answered with
// zeroed data that could pass for a real score.
func (s *ResultsService) Results(attemptID string, userID uint) (*AttemptResults, error) {
	attempt, err := s.Store.FindByIDAndUser(attemptID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}
	if attempt.Status != model.AttemptSubmitted {
		return nil, util.ErrResultsNotReady
	}

	questions, err := s.Catalog.GetQuestions(attempt.MockTestID)
	if err != nil {
		return nil, err
	}

	responses := attempt.ResponseMap()

	results := make([]QuestionResult, 0, len(questions))
	topicIndex := make(map[string]*TopicStats)
	topicOrder := make([]string, 0)
	var maxScore float64

	for _, q := range questions {
		maxScore += q.Marks

		qr := QuestionResult{
			QuestionID:    q.ID,
			Content:       q.Content,
			Subject:       q.Subject,
			Topic:         q.Topic,
			Difficulty:    q.Difficulty,
			CorrectAnswer: q.CorrectAnswer,
			Explanation:   q.Explanation,
		}

		stats, ok := topicIndex[q.Topic]
		if !ok {
			stats = &TopicStats{Topic: q.Topic}
			topicIndex[q.Topic] = stats
			topicOrder = append(topicOrder, q.Topic)
		}
		stats.Total++

		// Same attempted test as the scorer, so the analysis never
		// contradicts the stamped counts over a blank answer.
		answer, attempted := responses[q.ID]
		qr.IsAttempted = attempted && strings.TrimSpace(answer) != ""
		if qr.IsAttempted {
			stats.Attempted++
			qr.UserAnswer = answer
			if answer == q.CorrectAnswer {
				qr.IsCorrect = true
				qr.MarksEarned = q.Marks
				stats.Correct++
			} else {
				qr.MarksLost = q.NegativeMarks
				stats.Incorrect++
			}
		}

		results = append(results, qr)
	}

	topics := make([]TopicStats, 0, len(topicOrder))
	weak := make([]string, 0)
	for _, name := range topicOrder {
		stats := topicIndex[name]
		stats.Accuracy = percentage(float64(stats.Correct), float64(stats.Attempted))
		topics = append(topics, *stats)
		// Unattempted topics carry no evidence either way, so they
		// never land on the weak list.
		if stats.Attempted > 0 && stats.Accuracy < weakTopicAccuracy {
			weak = append(weak, name)
		}
	}

	summary := s.buildSummary(attempt, maxScore, len(questions))

	return &AttemptResults{
		AttemptID:   attempt.ID,
		MockTestID:  attempt.MockTestID,
		SubmittedAt: attempt.SubmittedAt,
		Summary:     summary,
		Questions:   results,
		Topics:      topics,
		WeakTopics:  weak,
	}, nil
}

func (s *ResultsService) buildSummary(attempt *model.Attempt, maxScore float64, questionCount int) ResultSummary {
	attemptedCount := attempt.CorrectCount + attempt.IncorrectCount

	summary := ResultSummary{
		Score:            attempt.Score,
		MaxScore:         maxScore,
		Percentage:       percentage(attempt.Score, maxScore),
		CorrectCount:     attempt.CorrectCount,
		IncorrectCount:   attempt.IncorrectCount,
		UnattemptedCount: attempt.UnattemptedCount,
		AttemptedPercent: percentage(float64(attemptedCount), float64(questionCount)),
		TimeTakenSeconds: attempt.TimeTakenSeconds,
	}
	summary.TimeUtilizationPercent = percentage(
		float64(attempt.TimeTakenSeconds),
		float64(attempt.DurationMinutes*60),
	)

	accuracy := percentage(float64(attempt.CorrectCount), float64(attemptedCount))

	recs := make([]string, 0, 3)
	switch {
	case attemptedCount == 0:
		recs = append(recs, "No questions were attempted. Review the syllabus and retake a mock test when ready.")
	case accuracy < weakTopicAccuracy:
		recs = append(recs, fmt.Sprintf("Accuracy is %.0f%%. Revise your weak topics before attempting the next mock test.", accuracy))
	case accuracy >= highAccuracyPercent && summary.AttemptedPercent >= strongAttemptedFloor:
		recs = append(recs, "Strong performance. Move on to harder mock tests to keep improving.")
	}
	if attemptedCount > 0 && summary.AttemptedPercent < lowAttemptedPercent {
		recs = append(recs, fmt.Sprintf("Only %.0f%% of questions were attempted. Unattempted questions are guaranteed zero marks.", summary.AttemptedPercent))
	}
	if summary.TimeUtilizationPercent >= rushedTimePercent {
		recs = append(recs, "You used nearly the full duration. Practice pacing so the last questions are not rushed.")
	} else if attemptedCount > 0 && summary.TimeUtilizationPercent <= underusedTimePercent {
		recs = append(recs, "You finished with plenty of time left. Use spare time to re-check answers before submitting.")
	}
	summary.Recommendations = recs

	return summary
}

// percentage returns part/whole*100, defined as 0 for an empty whole
// to keep division-by-zero out of every call site.
func percentage(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return math.Round(part/whole*10000) / 100
}
