package model

import "errors"

// Error classes shared by the practice packages. Callers match them with errors.Is.
var (
	// ErrStorageUnavailable marks a failed durable read or write.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrValidation marks rejected user input. No state was changed.
	ErrValidation = errors.New("validation failed")
	// ErrFormat marks an import document with missing or malformed fields.
	ErrFormat = errors.New("invalid snapshot format")
	// ErrNotFound marks a reference to an unknown user or exam.
	ErrNotFound = errors.New("not found")
)
