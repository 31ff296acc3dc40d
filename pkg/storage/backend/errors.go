package backend

import (
	"errors"

	"github.com/certforge/certstore/pkg/storage"
)

var (
	// ErrSkipDir is returned by a WalkFunc to skip a directory's subtree.
	ErrSkipDir = errors.New("skip directory")

	// ErrClosed is the cause of errors returned after Close.
	ErrClosed = errors.New("backend is closed")

	// ErrPresignUnsupported is returned by a Presigner that cannot sign in its
	// current configuration.
	ErrPresignUnsupported = errors.New("presigned uploads not supported")
)

// Closed returns the error backends report once closed.
func Closed(key string) error {
	return storage.NewBackendError(key, ErrClosed)
}

// NotADirectory reports a listing of a file.
func NotADirectory(key string) error {
	return storage.NewInvalidInputError(key, "not a directory")
}
