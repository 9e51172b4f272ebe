package model

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
)

// Attempt is one student's single timed pass through one mock test.
// SyncVersion starts at 1 and moves by exactly 1 on every successful
// mutation; concurrent writers are serialized by compare-and-swap on it.
//
// swagger:model Attempt
type Attempt struct {
	UUIDBase

	UserID     uint          `gorm:"index:idx_attempt_user_test,unique;type:bigint unsigned" json:"userId"`
	MockTestID string        `gorm:"index:idx_attempt_user_test,unique;type:varchar(36)" json:"mockTestId"`
	Status     AttemptStatus `gorm:"type:enum('in_progress','submitted');default:'in_progress';index" json:"status"`

	// DurationMinutes is snapshotted from the test at start time so a
	// later edit of the test definition never changes an in-flight deadline.
	StartedAt       time.Time  `gorm:"not null" json:"startedAt"`
	SubmittedAt     *time.Time `json:"submittedAt,omitempty"`
	DurationMinutes int        `gorm:"not null" json:"durationMinutes"`

	Responses   datatypes.JSONMap `json:"responses"`
	SyncVersion int               `gorm:"not null;default:1" json:"syncVersion"`

	Score            float64 `json:"score"`
	CorrectCount     int     `json:"correctCount"`
	IncorrectCount   int     `json:"incorrectCount"`
	UnattemptedCount int     `json:"unattemptedCount"`
	TimeTakenSeconds int     `json:"timeTakenSeconds"`
}

func (Attempt) TableName() string {
	return "attempts"
}

// ResponseMap flattens the stored JSON map to question id and answer text.
func (a *Attempt) ResponseMap() map[string]string {
	out := make(map[string]string, len(a.Responses))
	for k, v := range a.Responses {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}
