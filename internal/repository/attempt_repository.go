package repository

import (
	"time"

	"github.com/phaniteluguti/Edutech-mvp-sub000/internal/model"

	"gorm.io/gorm"
)

// AttemptRepository persists attempts. All mutations after creation go
// through conditional single-statement updates keyed on sync_version, so
// two writers racing on the same attempt can never both win.
type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) Create(attempt *model.Attempt) error {
	return r.DB.Create(attempt).Error
}

func (r *AttemptRepository) FindByUserAndTest(userID uint, mockTestID string) (*model.Attempt, error) {
	var a model.Attempt
	err := r.DB.Where("user_id = ? AND mock_test_id = ?", userID, mockTestID).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AttemptRepository) FindByIDAndUser(attemptID string, userID uint) (*model.Attempt, error) {
	var a model.Attempt
	err := r.DB.Where("id = ? AND user_id = ?", attemptID, userID).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// SaveResponses writes the response map if the stored record is still
// in progress at expectedVersion. Returns false when the guard did not
// match; the caller re-reads to find out why.
func (r *AttemptRepository) SaveResponses(attempt *model.Attempt, expectedVersion int) (bool, error) {
	res := r.DB.Model(&model.Attempt{}).
		Where("id = ? AND user_id = ? AND status = ? AND sync_version = ?",
			attempt.ID, attempt.UserID, model.AttemptInProgress, expectedVersion).
		Updates(map[string]interface{}{
			"responses":    attempt.Responses,
			"sync_version": expectedVersion + 1,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Finalize performs the terminal transition under the same guard.
// This is the single statement after which Responses is immutable.
func (r *AttemptRepository) Finalize(attempt *model.Attempt, expectedVersion int) (bool, error) {
	res := r.DB.Model(&model.Attempt{}).
		Where("id = ? AND user_id = ? AND status = ? AND sync_version = ?",
			attempt.ID, attempt.UserID, model.AttemptInProgress, expectedVersion).
		Updates(map[string]interface{}{
			"status":             model.AttemptSubmitted,
			"submitted_at":       attempt.SubmittedAt,
			"sync_version":       expectedVersion + 1,
			"score":              attempt.Score,
			"correct_count":      attempt.CorrectCount,
			"incorrect_count":    attempt.IncorrectCount,
			"unattempted_count":  attempt.UnattemptedCount,
			"time_taken_seconds": attempt.TimeTakenSeconds,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListExpired returns in-progress attempts whose deadline has passed.
func (r *AttemptRepository) ListExpired(now time.Time, limit int) ([]model.Attempt, error) {
	var attempts []model.Attempt
	err := r.DB.
		Where("status = ? AND DATE_ADD(started_at, INTERVAL duration_minutes MINUTE) <= ?",
			model.AttemptInProgress, now).
		Limit(limit).
		Find(&attempts).Error
	return attempts, err
}

// Delete removes an attempt. This is the administrative reset path; the
// lifecycle itself never deletes.
func (r *AttemptRepository) Delete(attemptID string) error {
	return r.DB.Delete(&model.Attempt{}, "id = ?", attemptID).Error
}

func (r *AttemptRepository) ListByTest(mockTestID string, page, limit int) ([]model.Attempt, int64, error) {
	query := r.DB.Model(&model.Attempt{}).Where("mock_test_id = ?", mockTestID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var attempts []model.Attempt
	err := query.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&attempts).Error
	return attempts, total, err
}
