// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrBotNotFound indicates a bot was not found by the given identifier.
	ErrBotNotFound = errors.New("bot not found")

	// ErrUserNotFound indicates a remote user was not found by the given identifier.
	ErrUserNotFound = errors.New("remote user not found")

	// ErrConversationNotFound indicates a conversation was not found.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrAlreadyExists indicates an insert collided with a uniqueness constraint.
	ErrAlreadyExists = errors.New("already exists")
)

// EntityError wraps repository errors with the operation and the key involved.
type EntityError struct {
	Op     string // Operation being performed (e.g., "GetByID", "Create")
	Entity string // Entity kind (e.g., "bot", "remote_user")
	Key    string // Identifier used for the operation
	Err    error  // Underlying error
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Entity, e.Key, e.Err)
}

func (e *EntityError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for entity errors.
func (e *EntityError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewEntityError creates a new entity error with context.
func NewEntityError(op, entity, key string, err error) *EntityError {
	return &EntityError{
		Op:     op,
		Entity: entity,
		Key:    key,
		Err:    err,
	}
}

// IsNotFound checks if an error indicates any entity was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrBotNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrConversationNotFound) ||
		errors.Is(err, ErrWorkflowNotFound)
}

// IsBotNotFound checks if an error indicates a bot was not found.
func IsBotNotFound(err error) bool {
	return errors.Is(err, ErrBotNotFound)
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsAlreadyExists checks if an error is a uniqueness violation.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}
