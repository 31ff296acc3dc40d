package models

import "errors"

// Common errors for control plane persistence.
var (
	// Item metadata errors
	ErrItemNotFound = errors.New("item metadata not found")

	// Usage errors
	ErrUsageNotFound = errors.New("usage record not found")
)
