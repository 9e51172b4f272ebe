package util

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrEmailRegistered      = errors.New("email already registered")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrMockTestNotFound     = errors.New("mock test not found")
	ErrTestNotPublished     = errors.New("test not published or not accessible")
	ErrAttemptNotFound      = errors.New("attempt not found")
	ErrTestAlreadySubmitted = errors.New("test already submitted")
	ErrAttemptSubmitted     = errors.New("cannot modify a submitted attempt")
	ErrSyncConflict         = errors.New("attempt changed since last sync, refetch and retry")
	ErrResultsNotReady      = errors.New("results not available before submission")
	ErrInvalidResetToken    = errors.New("invalid or expired reset token")
)
