package repository

import (
	"github.com/phaniteluguti/Edutech-mvp-sub000/internal/model"

	"gorm.io/gorm"
)

type MockTestRepository struct {
	DB *gorm.DB
}

func NewMockTestRepository(db *gorm.DB) *MockTestRepository {
	return &MockTestRepository{DB: db}
}

func (r *MockTestRepository) Create(test *model.MockTest) error {
	return r.DB.Create(test).Error
}

func (r *MockTestRepository) FindByID(id string) (*model.MockTest, error) {
	var test model.MockTest
	err := r.DB.First(&test, "id = ?", id).Error
	return &test, err
}

func (r *MockTestRepository) Update(test *model.MockTest) error {
	return r.DB.Save(test).Error
}

func (r *MockTestRepository) Delete(id string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("mock_test_id = ?", id).Delete(&model.Question{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.MockTest{}, "id = ?", id).Error
	})
}

type MockTestListRow struct {
	model.MockTest
	QuestionCount int `json:"questionCount"`
}

func (r *MockTestRepository) List(page, limit int, publishedOnly bool) ([]MockTestListRow, int64, error) {
	query := r.DB.Model(&model.MockTest{})
	if publishedOnly {
		query = query.Where("is_published = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []MockTestListRow
	err := query.
		Select("mock_tests.*, (SELECT COUNT(*) FROM questions WHERE questions.mock_test_id = mock_tests.id AND questions.deleted_at IS NULL) AS question_count").
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Scan(&rows).Error
	return rows, total, err
}

func (r *MockTestRepository) ListQuestions(mockTestID string) ([]model.Question, error) {
	var qs []model.Question
	err := r.DB.Where("mock_test_id = ?", mockTestID).
		Order("question_order ASC").
		Find(&qs).Error
	return qs, err
}

func (r *MockTestRepository) CreateQuestion(q *model.Question) error {
	return r.DB.Create(q).Error
}

func (r *MockTestRepository) UpdateQuestion(q *model.Question) error {
	return r.DB.Save(q).Error
}

func (r *MockTestRepository) DeleteQuestion(id string) error {
	return r.DB.Delete(&model.Question{}, "id = ?", id).Error
}
