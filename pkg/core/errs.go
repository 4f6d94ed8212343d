package core

import "errors"

var (
	// ErrUserNotFound is returned when no profile exists for a user id.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmptyCache is returned by TopCoinStore.List before the first
	// successful refresh.
	ErrEmptyCache = errors.New("top coin cache is empty")
)
