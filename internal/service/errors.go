// Package service provides business logic for the messaging platform.
package service

import (
	"errors"
)

var (
	// ErrInvalid marks malformed input. Detected before any persistence
	// attempt; nothing is partially written.
	ErrInvalid = errors.New("invalid input")

	// ErrNotFound marks a reference to an entity that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden marks an operation by a user who is not a participant
	// of the referenced conversation.
	ErrForbidden = errors.New("forbidden")
)
