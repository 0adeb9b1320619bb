// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrEmptyContent is returned when source content is empty or contains
	// only whitespace, so no chunk can be produced from it.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidJobType is returned for a job type outside the known set.
	ErrInvalidJobType = errors.New("invalid job type")

	// ErrInvalidJobStatus is returned for a status outside the known set.
	ErrInvalidJobStatus = errors.New("invalid job status")

	// ErrInvalidPriority is returned for a priority outside the known set.
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrInvalidInput is returned when a job input payload cannot be decoded
	// or does not match its job type.
	ErrInvalidInput = errors.New("invalid job input")

	// ErrMalformedQuiz is returned when generated quiz output does not have
	// the required shape.
	ErrMalformedQuiz = errors.New("malformed quiz")
)
