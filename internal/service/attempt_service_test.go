package service

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/phaniteluguti/Edutech-mvp-sub000/internal/model"
	"github.com/phaniteluguti/Edutech-mvp-sub000/internal/util"
	"github.com/phaniteluguti/Edutech-mvp-sub000/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeStore is an in-memory AttemptStore with the same conditional
// write semantics the gorm repository provides.
type fakeStore struct {
	mu       sync.Mutex
	attempts map[string]*model.Attempt

	// when set, runs once at the start of the next Finalize call,
	// before the guard is evaluated. Used to race a save against a
	// submit deterministically.
	beforeFinalize func()

	// while positive, every Finalize loses the conditional write after
	// running onFinalize. Simulates sustained contention.
	failFinalize int
	onFinalize   func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{attempts: make(map[string]*model.Attempt)}
}

func cloneAttempt(a *model.Attempt) *model.Attempt {
	cp := *a
	cp.Responses = datatypes.JSONMap{}
	for k, v := range a.Responses {
		cp.Responses[k] = v
	}
	if a.SubmittedAt != nil {
		t := *a.SubmittedAt
		cp.SubmittedAt = &t
	}
	return &cp
}

func (f *fakeStore) Create(a *model.Attempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.attempts {
		if existing.UserID == a.UserID && existing.MockTestID == a.MockTestID {
			return gorm.ErrDuplicatedKey
		}
	}
	if a.ID == "" {
		a.ID = model.GenerateUUID()
	}
	f.attempts[a.ID] = cloneAttempt(a)
	return nil
}

func (f *fakeStore) FindByUserAndTest(userID uint, mockTestID string) (*model.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.attempts {
		if a.UserID == userID && a.MockTestID == mockTestID {
			return cloneAttempt(a), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeStore) FindByIDAndUser(attemptID string, userID uint) (*model.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[attemptID]
	if !ok || a.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return cloneAttempt(a), nil
}

func (f *fakeStore) SaveResponses(a *model.Attempt, expectedVersion int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.attempts[a.ID]
	if !ok || stored.UserID != a.UserID ||
		stored.Status != model.AttemptInProgress ||
		stored.SyncVersion != expectedVersion {
		return false, nil
	}
	stored.Responses = datatypes.JSONMap{}
	for k, v := range a.Responses {
		stored.Responses[k] = v
	}
	stored.SyncVersion = expectedVersion + 1
	return true, nil
}

func (f *fakeStore) Finalize(a *model.Attempt, expectedVersion int) (bool, error) {
	if hook := f.beforeFinalize; hook != nil {
		f.beforeFinalize = nil
		hook()
	}

	f.mu.Lock()
	if f.failFinalize > 0 {
		f.failFinalize--
		hook := f.onFinalize
		f.mu.Unlock()
		if hook != nil {
			hook()
		}
		return false, nil
	}
	defer f.mu.Unlock()
	stored, ok := f.attempts[a.ID]
	if !ok || stored.UserID != a.UserID ||
		stored.Status != model.AttemptInProgress ||
		stored.SyncVersion != expectedVersion {
		return false, nil
	}
	stored.Status = model.AttemptSubmitted
	if a.SubmittedAt != nil {
		t := *a.SubmittedAt
		stored.SubmittedAt = &t
	}
	stored.SyncVersion = expectedVersion + 1
	stored.Score = a.Score
	stored.CorrectCount = a.CorrectCount
	stored.IncorrectCount = a.IncorrectCount
	stored.UnattemptedCount = a.UnattemptedCount
	stored.TimeTakenSeconds = a.TimeTakenSeconds
	return true, nil
}

func (f *fakeStore) ListExpired(now time.Time, limit int) ([]model.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Attempt
	for _, a := range f.attempts {
		if a.Status != model.AttemptInProgress {
			continue
		}
		deadline := a.StartedAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
		if !deadline.After(now) {
			out = append(out, *cloneAttempt(a))
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

type fakeCatalog struct {
	tests     map[string]*model.MockTest
	questions map[string][]model.Question
}

func (f *fakeCatalog) GetMockTest(id string) (*model.MockTest, error) {
	test, ok := f.tests[id]
	if !ok {
		return nil, util.ErrMockTestNotFound
	}
	return test, nil
}

func (f *fakeCatalog) GetQuestions(mockTestID string) ([]model.Question, error) {
	return f.questions[mockTestID], nil
}

func question(id, topic, correct string, marks, negative float64) model.Question {
	q := model.Question{
		Topic:         topic,
		Subject:       "General",
		CorrectAnswer: correct,
		Marks:         marks,
		NegativeMarks: negative,
	}
	q.ID = id
	return q
}

const testID = "test-1"

func newFixture(durationMinutes int) (*AttemptService, *fakeStore, *fakeCatalog, *fakeClock) {
	test := &model.MockTest{
		Title:           "Sample Mock Test",
		DurationMinutes: durationMinutes,
		IsPublished:     true,
	}
	test.ID = testID

	catalog := &fakeCatalog{
		tests: map[string]*model.MockTest{testID: test},
		questions: map[string][]model.Question{
			testID: {
				question("q1", "Algebra", "A", 4, 1),
				question("q2", "Algebra", "B", 4, 1),
				question("q3", "Geometry", "C", 4, 1),
			},
		},
	}

	store := newFakeStore()
	clock := newFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	return NewAttemptService(store, catalog, clock), store, catalog, clock
}

func intPtr(v int) *int { return &v }

func TestStartIsIdempotentBeforeSubmission(t *testing.T) {
	svc, _, _, clock := newFixture(60)

	first, err := svc.Start(7, testID)
	if err != nil {
		t.Fatalf("first start: %v", err)
	}
	if first.SyncVersion != 1 {
		t.Fatalf("expected syncVersion 1, got %d", first.SyncVersion)
	}

	if _, err := svc.SaveAnswer(first.ID, 7, "q1", "A", nil); err != nil {
		t.Fatalf("save: %v", err)
	}

	clock.Advance(5 * time.Minute)

	second, err := svc.Start(7, testID)
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same attempt, got %s and %s", first.ID, second.ID)
	}
	if !second.StartedAt.Equal(first.StartedAt) {
		t.Fatalf("startedAt reset on resume: %v -> %v", first.StartedAt, second.StartedAt)
	}
	if len(second.Responses) != 1 {
		t.Fatalf("responses reset on resume: %v", second.Responses)
	}
}

func TestStartUnknownTest(t *testing.T) {
	svc, _, _, _ := newFixture(60)

	if _, err := svc.Start(7, "missing"); err != util.ErrMockTestNotFound {
		t.Fatalf("expected ErrMockTestNotFound, got %v", err)
	}
}

func TestStartUnpublishedTest(t *testing.T) {
	svc, _, catalog, _ := newFixture(60)
	catalog.tests[testID].IsPublished = false

	if _, err := svc.Start(7, testID); err != util.ErrTestNotPublished {
		t.Fatalf("expected ErrTestNotPublished, got %v", err)
	}
}

func TestNoResurrectionAfterSubmit(t *testing.T) {
	svc, _, _, _ := newFixture(60)

	attempt, err := svc.Start(7, testID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.Submit(attempt.ID, 7); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := svc.Start(7, testID); err != util.ErrTestAlreadySubmitted {
		t.Fatalf("expected ErrTestAlreadySubmitted on restart, got %v", err)
	}
	if _, err := svc.SaveAnswer(attempt.ID, 7, "q1", "A", nil); err != util.ErrAttemptSubmitted {
		t.Fatalf("expected ErrAttemptSubmitted on save, got %v", err)
	}
	if _, err := svc.Submit(attempt.ID, 7); err != util.ErrTestAlreadySubmitted {
		t.Fatalf("expected ErrTestAlreadySubmitted on resubmit, got %v", err)
	}
}

func TestSaveAnswerOwnership(t *testing.T) {
	svc, _, _, _ := newFixture(60)

	attempt, err := svc.Start(7, testID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := svc.SaveAnswer(attempt.ID, 8, "q1", "A", nil); err != util.ErrAttemptNotFound {
		t.Fatalf("expected ErrAttemptNotFound for wrong user, got %v", err)
	}
}

func TestSaveAnswerVersionConflict(t *testing.T) {
	svc, store, _, _ := newFixture(60)

	attempt, err := svc.Start(7, testID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// move the attempt to syncVersion 3
	if _, err := svc.SaveAnswer(attempt.ID, 7, "q1", "A", intPtr(1)); err != nil {
		t.Fatalf("save v1: %v", err)
	}
	if _, err := svc.SaveAnswer(attempt.ID, 7, "q2", "B", intPtr(2)); err != nil {
		t.Fatalf("save v2: %v", err)
	}

	if _, err := svc.SaveAnswer(attempt.ID, 7, "q3", "C", intPtr(2)); err != util.ErrSyncConflict {
		t.Fatalf("expected ErrSyncConflict for stale version, got %v", err)
	}

	stored, _ := store.FindByIDAndUser(attempt.ID, 7)
	if stored.SyncVersion != 3 {
		t.Fatalf("conflicting save mutated version: %d", stored.SyncVersion)
	}
	if _, ok := stored.Responses["q3"]; ok {
		t.Fatalf("conflicting save mutated responses: %v", stored.Responses)
	}

	version, err := svc.SaveAnswer(attempt.ID, 7, "q3", "C", intPtr(3))
	if err != nil {
		t.Fatalf("save with current version: %v", err)
	}
	if version != 4 {
		t.Fatalf("expected syncVersion 4, got %d", version)
	}
}

func TestSaveAnswerOverwritesPriorAnswer(t *testing.T) {
	svc, store, _, _ := newFixture(60)

	attempt, _ := svc.Start(7, testID)
	if _, err := svc.SaveAnswer(attempt.ID, 7, "q1", "A", nil); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := svc.SaveAnswer(attempt.ID, 7, "q1", "B", nil); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	stored, _ := store.FindByIDAndUser(attempt.ID, 7)
	if stored.Responses["q1"] != "B" {
		t.Fatalf("expected latest answer B, got %v", stored.Responses["q1"])
	}
	if stored.SyncVersion != 3 {
		t.Fatalf("expected two increments, got version %d", stored.SyncVersion)
	}
}

func TestRemainingSecondsDecreasesAndClamps(t *testing.T) {
	svc, _, _, clock := newFixture(30)

	attempt, err := svc.Start(7, testID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	before := svc.RemainingSeconds(attempt)
	if before != 30*60 {
		t.Fatalf("expected 1800s remaining, got %d", before)
	}

	clock.Advance(10 * time.Minute)
	after := svc.RemainingSeconds(attempt)
	if after != 20*60 {
		t.Fatalf("expected 1200s remaining, got %d", after)
	}
	if after > before {
		t.Fatalf("remaining time increased: %d -> %d", before, after)
	}

	clock.Advance(25 * time.Minute)
	if rem := svc.RemainingSeconds(attempt); rem != 0 {
		t.Fatalf("expected 0 past deadline, got %d", rem)
	}
}

func TestRemainingSecondsZeroDuration(t *testing.T) {
	svc, _, catalog, _ := newFixture(30)
	catalog.tests[testID].DurationMinutes = 0

	attempt, err := svc.Start(7, testID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if rem := svc.RemainingSeconds(attempt); rem != 0 {
		t.Fatalf("expected 0 for zero duration, got %d", rem)
	}
}

func TestSubmitScoresAndStampsResults(t *testing.T) {
	svc, store, _, clock := newFixture(60)

	attempt, _ := svc.Start(7, testID)
	svc.SaveAnswer(attempt.ID, 7, "q1", "A", nil) // correct
	svc.SaveAnswer(attempt.ID, 7, "q2", "X", nil) // wrong
	svc.SaveAnswer(attempt.ID, 7, "q3", "Y", nil) // wrong

	clock.Advance(40 * time.Minute)

	final, err := svc.Submit(attempt.ID, 7)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if final.Status != model.AttemptSubmitted {
		t.Fatalf("expected submitted status, got %s", final.Status)
	}
	if final.Score != 2 { // 4 - 1 - 1
		t.Fatalf("expected score 2, got %v", final.Score)
	}
	if final.CorrectCount != 1 || final.IncorrectCount != 2 || final.UnattemptedCount != 0 {
		t.Fatalf("unexpected counts: %d/%d/%d", final.CorrectCount, final.IncorrectCount, final.UnattemptedCount)
	}
	if final.TimeTakenSeconds != 40*60 {
		t.Fatalf("expected 2400s taken, got %d", final.TimeTakenSeconds)
	}
	if final.SubmittedAt == nil {
		t.Fatalf("submittedAt not stamped")
	}

	stored, _ := store.FindByIDAndUser(attempt.ID, 7)
	if stored.Status != model.AttemptSubmitted || stored.Score != 2 {
		t.Fatalf("finalization not persisted: %+v", stored)
	}
}

func TestSubmitClampsNegativeTimeTaken(t *testing.T) {
	svc, _, _, clock := newFixture(60)

	attempt, _ := svc.Start(7, testID)

	// clock skew: server time moved backwards after start
	clock.Advance(-time.Minute)

	final, err := svc.Submit(attempt.ID, 7)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if final.TimeTakenSeconds != 0 {
		t.Fatalf("expected clamped 0, got %d", final.TimeTakenSeconds)
	}
}

func TestSubmitRetriesAfterRacingSave(t *testing.T) {
	svc, store, _, _ := newFixture(60)

	attempt, _ := svc.Start(7, testID)
	if _, err := svc.SaveAnswer(attempt.ID, 7, "q1", "A", nil); err != nil {
		t.Fatalf("save: %v", err)
	}

	// A second tab lands one more answer between submit's read and its
	// conditional write; the retry must score the late answer too.
	store.beforeFinalize = func() {
		if _, err := svc.SaveAnswer(attempt.ID, 7, "q2", "B", nil); err != nil {
			t.Errorf("racing save: %v", err)
		}
	}

	final, err := svc.Submit(attempt.ID, 7)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if final.Score != 8 { // both q1 and q2 correct
		t.Fatalf("expected racing answer to be scored, got score %v", final.Score)
	}
	if final.CorrectCount != 2 {
		t.Fatalf("expected 2 correct, got %d", final.CorrectCount)
	}
}

func TestSubmitExhaustedRetriesReportsFinalState(t *testing.T) {
	t.Run("racer finished the submit", func(t *testing.T) {
		svc, store, _, _ := newFixture(60)
		attempt, err := svc.Start(7, testID)
		if err != nil {
			t.Fatalf("start: %v", err)
		}

		// every conditional write loses; on the last try another caller
		// lands the terminal transition first
		store.failFinalize = submitRetries
		calls := 0
		store.onFinalize = func() {
			calls++
			if calls == submitRetries {
				store.mu.Lock()
				store.attempts[attempt.ID].Status = model.AttemptSubmitted
				store.mu.Unlock()
			}
		}

		if _, err := svc.Submit(attempt.ID, 7); err != util.ErrTestAlreadySubmitted {
			t.Fatalf("expected ErrTestAlreadySubmitted, got %v", err)
		}
	})

	t.Run("still contended", func(t *testing.T) {
		svc, store, _, _ := newFixture(60)
		attempt, err := svc.Start(7, testID)
		if err != nil {
			t.Fatalf("start: %v", err)
		}

		// saves keep landing between every read and write
		store.failFinalize = submitRetries
		store.onFinalize = func() {
			store.mu.Lock()
			store.attempts[attempt.ID].SyncVersion++
			store.mu.Unlock()
		}

		if _, err := svc.Submit(attempt.ID, 7); err != util.ErrSyncConflict {
			t.Fatalf("expected ErrSyncConflict, got %v", err)
		}
	})
}

func TestSubmitExpiredSweep(t *testing.T) {
	svc, store, _, clock := newFixture(30)

	expired, err := svc.Start(7, testID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	svc.SaveAnswer(expired.ID, 7, "q1", "A", nil)

	clock.Advance(31 * time.Minute)

	// a second student starts after the first deadline passed
	active, err := svc.Start(8, testID)
	if err != nil {
		t.Fatalf("second start: %v", err)
	}

	if err := svc.SubmitExpired(); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	swept, _ := store.FindByIDAndUser(expired.ID, 7)
	if swept.Status != model.AttemptSubmitted {
		t.Fatalf("expired attempt not submitted by sweep")
	}
	if swept.Score != 4 {
		t.Fatalf("sweep scored wrong: %v", swept.Score)
	}

	untouched, _ := store.FindByIDAndUser(active.ID, 8)
	if untouched.Status != model.AttemptInProgress {
		t.Fatalf("sweep submitted an attempt inside its window")
	}
}

func TestEndToEndAttemptFlow(t *testing.T) {
	svc, store, catalog, clock := newFixture(60)
	results := NewResultsService(store, catalog)

	attempt, err := svc.Start(7, testID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := svc.SaveAnswer(attempt.ID, 7, "q1", "A", intPtr(1)); err != nil {
		t.Fatalf("save q1: %v", err)
	}
	if _, err := svc.SaveAnswer(attempt.ID, 7, "q2", "B", intPtr(2)); err != nil {
		t.Fatalf("save q2: %v", err)
	}

	clock.Advance(30 * time.Minute)

	final, err := svc.Submit(attempt.ID, 7)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	analysis, err := results.Results(attempt.ID, 7)
	if err != nil {
		t.Fatalf("results: %v", err)
	}

	attemptedTotal, correctTotal, incorrectTotal := 0, 0, 0
	for _, topic := range analysis.Topics {
		attemptedTotal += topic.Attempted
		correctTotal += topic.Correct
		incorrectTotal += topic.Incorrect
	}
	if correctTotal != final.CorrectCount || incorrectTotal != final.IncorrectCount {
		t.Fatalf("topic totals diverge from attempt counts: %d/%d vs %d/%d",
			correctTotal, incorrectTotal, final.CorrectCount, final.IncorrectCount)
	}
	if attemptedTotal != final.CorrectCount+final.IncorrectCount {
		t.Fatalf("attempted total mismatch: %d", attemptedTotal)
	}

	for _, q := range analysis.Questions {
		switch q.QuestionID {
		case "q1", "q2":
			if !q.IsAttempted {
				t.Fatalf("%s should be attempted", q.QuestionID)
			}
		case "q3":
			if q.IsAttempted {
				t.Fatalf("q3 should be unattempted")
			}
		}
	}
}
