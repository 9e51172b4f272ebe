package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/phaniteluguti/Edutech-mvp-sub000/internal/model"
	"github.com/phaniteluguti/Edutech-mvp-sub000/internal/repository"
	"github.com/phaniteluguti/Edutech-mvp-sub000/internal/util"

	"github.com/go-redis/redis/v8"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const questionCacheTTL = 5 * time.Minute

// CatalogService owns the mock test and question bank. It also serves
// as the read-only catalog the attempt lifecycle scores against, with
// the question set cached in redis since it is read on every submit.
type CatalogService struct {
	Repo  *repository.MockTestRepository
	Redis *redis.Client
}

func NewCatalogService(repo *repository.MockTestRepository, rdb *redis.Client) *CatalogService {
	return &CatalogService{Repo: repo, Redis: rdb}
}

func (s *CatalogService) GetMockTest(id string) (*model.MockTest, error) {
	test, err := s.Repo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrMockTestNotFound
		}
		return nil, err
	}
	return test, nil
}

// cachedQuestion carries the correct answer alongside the question:
// the model hides it from JSON so it cannot leak into API payloads,
// but the cache round-trip must preserve it for scoring.
type cachedQuestion struct {
	Question      model.Question `json:"question"`
	CorrectAnswer string         `json:"correctAnswer"`
}

func (s *CatalogService) GetQuestions(mockTestID string) ([]model.Question, error) {
	ctx := context.Background()
	cacheKey := "mock_test:questions:" + mockTestID

	if s.Redis != nil {
		if cached, err := s.Redis.Get(ctx, cacheKey).Result(); err == nil {
			var entries []cachedQuestion
			if json.Unmarshal([]byte(cached), &entries) == nil {
				qs := make([]model.Question, len(entries))
				for i, e := range entries {
					qs[i] = e.Question
					qs[i].CorrectAnswer = e.CorrectAnswer
				}
				return qs, nil
			}
		}
	}

	qs, err := s.Repo.ListQuestions(mockTestID)
	if err != nil {
		return nil, err
	}

	if s.Redis != nil {
		entries := make([]cachedQuestion, len(qs))
		for i, q := range qs {
			entries[i] = cachedQuestion{Question: q, CorrectAnswer: q.CorrectAnswer}
		}
		if payload, err := json.Marshal(entries); err == nil {
			s.Redis.Set(ctx, cacheKey, payload, questionCacheTTL)
		}
	}

	return qs, nil
}

func (s *CatalogService) invalidateQuestionCache(mockTestID string) {
	if s.Redis != nil {
		s.Redis.Del(context.Background(), "mock_test:questions:"+mockTestID)
	}
}

type QuestionReq struct {
	ID            string          `json:"id"`
	Content       string          `json:"content" binding:"required"`
	Options       json.RawMessage `json:"options"`
	CorrectAnswer string          `json:"correctAnswer" binding:"required"`
	Explanation   string          `json:"explanation"`
	Marks         float64         `json:"marks"`
	NegativeMarks float64         `json:"negativeMarks"`
	Subject       string          `json:"subject"`
	Topic         string          `json:"topic"`
	Difficulty    string          `json:"difficulty"`
	Order         int             `json:"order"`
}

type MockTestReq struct {
	Title           *string        `json:"title"`
	Description     *string        `json:"description"`
	Category        *string        `json:"category"`
	DurationMinutes *int           `json:"durationMinutes"`
	IsPublished     *bool          `json:"isPublished"`
	Questions       *[]QuestionReq `json:"questions"`
}

func (s *CatalogService) CreateTest(creatorID uint, req MockTestReq) (*model.MockTest, error) {
	if req.Title == nil || *req.Title == "" {
		return nil, errors.New("title is required")
	}
	if req.DurationMinutes == nil || *req.DurationMinutes <= 0 {
		return nil, errors.New("durationMinutes must be positive")
	}

	test := &model.MockTest{
		Title:           *req.Title,
		DurationMinutes: *req.DurationMinutes,
		CreatorID:       creatorID,
	}
	if req.Description != nil {
		test.Description = *req.Description
	}
	if req.Category != nil {
		test.Category = *req.Category
	}
	if req.IsPublished != nil {
		test.IsPublished = *req.IsPublished
	}

	if err := s.Repo.Create(test); err != nil {
		return nil, err
	}

	if req.Questions != nil {
		for _, qReq := range *req.Questions {
			q := questionFromReq(test.ID, qReq)
			if err := s.Repo.CreateQuestion(q); err != nil {
				return nil, err
			}
			test.TotalMarks += q.Marks
		}
		if err := s.Repo.Update(test); err != nil {
			return nil, err
		}
	}

	return test, nil
}

func (s *CatalogService) UpdateTest(testID string, req MockTestReq) (*model.MockTest, error) {
	test, err := s.GetMockTest(testID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		test.Title = *req.Title
	}
	if req.Description != nil {
		test.Description = *req.Description
	}
	if req.Category != nil {
		test.Category = *req.Category
	}
	if req.DurationMinutes != nil {
		test.DurationMinutes = *req.DurationMinutes
	}
	if req.IsPublished != nil {
		test.IsPublished = *req.IsPublished
	}

	if req.Questions != nil {
		existing, err := s.Repo.ListQuestions(testID)
		if err != nil {
			return nil, err
		}
		existingMap := make(map[string]*model.Question, len(existing))
		for i := range existing {
			existingMap[existing[i].ID] = &existing[i]
		}

		keep := make(map[string]bool)
		var totalMarks float64
		for _, qReq := range *req.Questions {
			totalMarks += qReq.Marks
			if qReq.ID != "" {
				if q, ok := existingMap[qReq.ID]; ok {
					applyQuestionReq(q, qReq)
					if err := s.Repo.UpdateQuestion(q); err != nil {
						return nil, err
					}
					keep[q.ID] = true
					continue
				}
			}
			if err := s.Repo.CreateQuestion(questionFromReq(testID, qReq)); err != nil {
				return nil, err
			}
		}

		for id := range existingMap {
			if !keep[id] {
				if err := s.Repo.DeleteQuestion(id); err != nil {
					return nil, err
				}
			}
		}
		test.TotalMarks = totalMarks
	}

	if err := s.Repo.Update(test); err != nil {
		return nil, err
	}

	s.invalidateQuestionCache(testID)
	return test, nil
}

func (s *CatalogService) DeleteTest(testID string) error {
	if err := s.Repo.Delete(testID); err != nil {
		return err
	}
	s.invalidateQuestionCache(testID)
	return nil
}

func (s *CatalogService) GetTestWithQuestions(testID string) (*model.MockTest, []model.Question, error) {
	test, err := s.GetMockTest(testID)
	if err != nil {
		return nil, nil, err
	}
	qs, err := s.Repo.ListQuestions(testID)
	return test, qs, err
}

func (s *CatalogService) ListTests(page, limit int, publishedOnly bool) ([]repository.MockTestListRow, int64, error) {
	return s.Repo.List(page, limit, publishedOnly)
}

func questionFromReq(testID string, req QuestionReq) *model.Question {
	q := &model.Question{
		MockTestID: testID,
	}
	applyQuestionReq(q, req)
	return q
}

func applyQuestionReq(q *model.Question, req QuestionReq) {
	q.Content = req.Content
	q.Options = datatypes.JSON(req.Options)
	q.CorrectAnswer = req.CorrectAnswer
	q.Explanation = req.Explanation
	q.Marks = req.Marks
	q.NegativeMarks = req.NegativeMarks
	q.Subject = req.Subject
	q.Topic = req.Topic
	q.Difficulty = req.Difficulty
	q.Order = req.Order
}
