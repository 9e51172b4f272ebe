package service

import (
	"errors"
	"time"

	"github.com/phaniteluguti/Edutech-mvp-sub000/internal/model"
	"github.com/phaniteluguti/Edutech-mvp-sub000/internal/util"
	"github.com/phaniteluguti/Edutech-mvp-sub000/pkg/logger"
	"github.com/phaniteluguti/Edutech-mvp-sub000/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AttemptStore is the durable storage the lifecycle writes through.
// SaveResponses and Finalize must be atomic conditional updates keyed
// on the record's status and sync version; a false return means the
// guard did not match the stored row.
type AttemptStore interface {
	Create(attempt *model.Attempt) error
	FindByUserAndTest(userID uint, mockTestID string) (*model.Attempt, error)
	FindByIDAndUser(attemptID string, userID uint) (*model.Attempt, error)
	SaveResponses(attempt *model.Attempt, expectedVersion int) (bool, error)
	Finalize(attempt *model.Attempt, expectedVersion int) (bool, error)
	ListExpired(now time.Time, limit int) ([]model.Attempt, error)
}

// Catalog is the read-only view of the test and question bank.
type Catalog interface {
	GetMockTest(id string) (*model.MockTest, error)
	GetQuestions(mockTestID string) ([]model.Question, error)
}

const (
	// submitRetries bounds how often a submit re-reads and re-scores
	// after losing the conditional write to a racing answer save.
	submitRetries = 3

	// saveRetries bounds versionless saves, which carry no caller
	// expectation and may simply be replayed on a newer version.
	saveRetries = 5

	sweepBatchSize = 100
)

// AttemptService drives a student's single timed pass through a mock
// test: start/resume, answer sync, deadline math, and the terminal
// submit that freezes score and responses.
type AttemptService struct {
	Store   AttemptStore
	Catalog Catalog
	Clock   Clock
}

func NewAttemptService(store AttemptStore, catalog Catalog, clock Clock) *AttemptService {
	return &AttemptService{Store: store, Catalog: catalog, Clock: clock}
}

// Start creates an attempt for (user, test), or resumes the existing
// in-progress one unchanged. A submitted attempt blocks re-starting;
// re-attempting requires an explicit administrative reset.
func (s *AttemptService) Start(userID uint, mockTestID string) (*model.Attempt, error) {
	existing, err := s.Store.FindByUserAndTest(userID, mockTestID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if existing != nil {
		if existing.Status == model.AttemptSubmitted {
			return nil, util.ErrTestAlreadySubmitted
		}
		return existing, nil
	}

	test, err := s.Catalog.GetMockTest(mockTestID)
	if err != nil {
		return nil, err
	}
	if !test.IsPublished {
		return nil, util.ErrTestNotPublished
	}

	attempt := &model.Attempt{
		UserID:     userID,
		MockTestID: mockTestID,
		Status:     model.AttemptInProgress,
		StartedAt:  s.Clock.Now(),
		// snapshot so later edits to the test never move this deadline
		DurationMinutes: test.DurationMinutes,
		Responses:       datatypes.JSONMap{},
		SyncVersion:     1,
	}

	if err := s.Store.Create(attempt); err != nil {
		// The unique (user_id, mock_test_id) index catches two starts
		// racing; the loser resumes whatever the winner created.
		if raced, findErr := s.Store.FindByUserAndTest(userID, mockTestID); findErr == nil {
			if raced.Status == model.AttemptSubmitted {
				return nil, util.ErrTestAlreadySubmitted
			}
			return raced, nil
		}
		return nil, err
	}

	monitoring.AttemptsStarted.Inc()
	return attempt, nil
}

// Get returns the attempt for (attemptID, userID). Requiring both keys
// to match is what keeps one user from reading another's attempt.
func (s *AttemptService) Get(attemptID string, userID uint) (*model.Attempt, error) {
	attempt, err := s.Store.FindByIDAndUser(attemptID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}
	return attempt, nil
}

// RemainingSeconds computes the live remaining time from the server
// clock, never from anything the client sent. It is recomputed on
// every call and clamps at zero once the deadline passes.
func (s *AttemptService) RemainingSeconds(attempt *model.Attempt) int {
	if attempt.Status == model.AttemptSubmitted {
		return 0
	}
	deadline := attempt.StartedAt.Add(time.Duration(attempt.DurationMinutes) * time.Minute)
	remaining := int(deadline.Sub(s.Clock.Now()).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// SaveAnswer records one answer under optimistic concurrency. When the
// caller supplies expectedVersion and it is stale, the save is rejected
// with a sync conflict and stored state is left untouched; the caller
// refetches and retries. Versionless saves are replayed internally on a
// fresh read instead, since the caller expressed no expectation.
//
// The deadline is deliberately not checked here: a save racing the
// timer may still land, and Submit alone decides what gets scored.
func (s *AttemptService) SaveAnswer(attemptID string, userID uint, questionID, answer string, expectedVersion *int) (int, error) {
	retries := 1
	if expectedVersion == nil {
		retries = saveRetries
	}

	for i := 0; i < retries; i++ {
		attempt, err := s.Get(attemptID, userID)
		if err != nil {
			return 0, err
		}
		if attempt.Status == model.AttemptSubmitted {
			return 0, util.ErrAttemptSubmitted
		}
		if expectedVersion != nil && *expectedVersion != attempt.SyncVersion {
			monitoring.SyncConflicts.Inc()
			return 0, util.ErrSyncConflict
		}

		if attempt.Responses == nil {
			attempt.Responses = datatypes.JSONMap{}
		}
		attempt.Responses[questionID] = answer

		ok, err := s.Store.SaveResponses(attempt, attempt.SyncVersion)
		if err != nil {
			return 0, err
		}
		if ok {
			return attempt.SyncVersion + 1, nil
		}
		// Guard missed: the row moved between our read and write.
	}

	// The row kept moving. Distinguish a finished attempt from plain
	// write contention before reporting.
	attempt, err := s.Get(attemptID, userID)
	if err != nil {
		return 0, err
	}
	if attempt.Status == model.AttemptSubmitted {
		return 0, util.ErrAttemptSubmitted
	}
	monitoring.SyncConflicts.Inc()
	return 0, util.ErrSyncConflict
}

// Submit finalizes the attempt: scores whatever responses are present,
// stamps the result fields, and flips the state. Submitting twice is a
// caller error, not an idempotent no-op. This is the only finalization
// routine; deadline-expired attempts go through it too.
func (s *AttemptService) Submit(attemptID string, userID uint) (*model.Attempt, error) {
	return s.submit(attemptID, userID, "client")
}

func (s *AttemptService) submit(attemptID string, userID uint, trigger string) (*model.Attempt, error) {
	for i := 0; i < submitRetries; i++ {
		attempt, err := s.Get(attemptID, userID)
		if err != nil {
			return nil, err
		}
		if attempt.Status == model.AttemptSubmitted {
			return nil, util.ErrTestAlreadySubmitted
		}

		questions, err := s.Catalog.GetQuestions(attempt.MockTestID)
		if err != nil {
			return nil, err
		}

		breakdown := ScoreResponses(questions, attempt.ResponseMap())

		now := s.Clock.Now()
		taken := int(now.Sub(attempt.StartedAt).Seconds())
		if taken < 0 {
			// clock skew must not persist a negative duration
			taken = 0
		}

		attempt.SubmittedAt = &now
		attempt.Score = breakdown.Score
		attempt.CorrectCount = breakdown.Correct
		attempt.IncorrectCount = breakdown.Incorrect
		attempt.UnattemptedCount = breakdown.Unattempted
		attempt.TimeTakenSeconds = taken

		ok, err := s.Store.Finalize(attempt, attempt.SyncVersion)
		if err != nil {
			return nil, err
		}
		if ok {
			attempt.Status = model.AttemptSubmitted
			attempt.SyncVersion++
			monitoring.AttemptsSubmitted.WithLabelValues(trigger).Inc()
			return attempt, nil
		}
		// Lost the conditional write to a racing save; re-read so the
		// final score covers the responses that actually landed.
	}

	// Retries exhausted. A racer may have finished the submit itself;
	// report that rather than a raw conflict.
	attempt, err := s.Get(attemptID, userID)
	if err != nil {
		return nil, err
	}
	if attempt.Status == model.AttemptSubmitted {
		return nil, util.ErrTestAlreadySubmitted
	}
	return nil, util.ErrSyncConflict
}

// SubmitExpired finds in-progress attempts past their deadline and
// submits them through the normal path. Purely operational: remaining
// time already reads as zero for these, so nothing here is required
// for correctness.
func (s *AttemptService) SubmitExpired() error {
	expired, err := s.Store.ListExpired(s.Clock.Now(), sweepBatchSize)
	if err != nil {
		return err
	}

	for i := range expired {
		a := &expired[i]
		if _, err := s.submit(a.ID, a.UserID, "sweep"); err != nil {
			// A student submitting at the same moment is expected;
			// anything else is worth surfacing.
			if errors.Is(err, util.ErrTestAlreadySubmitted) {
				continue
			}
			logger.Log.Error("auto-submit of expired attempt failed",
				zap.String("attemptId", a.ID),
				zap.Uint("userId", a.UserID),
				zap.Error(err))
		} else {
			logger.Log.Info("auto-submitted expired attempt",
				zap.String("attemptId", a.ID),
				zap.String("mockTestId", a.MockTestID))
		}
	}

	return nil
}
