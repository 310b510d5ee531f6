package storage

import (
	"errors"
	"fmt"
)

// Sentinel errors for the store taxonomy. Callers classify failures with
// errors.Is (or the helpers below) and must never parse messages.
var (
	// ErrNotFound signals an absent entity.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals an identity collision on create.
	ErrAlreadyExists = errors.New("already exists")
	// ErrForbidden signals a structurally disallowed operation, such as
	// deleting the default channel.
	ErrForbidden = errors.New("forbidden")
	// ErrStorageFailure signals that a transactional write could not
	// complete. The caller must assume no partial effect occurred.
	ErrStorageFailure = errors.New("storage failure")
)

// ErrTokenCollision reports a generated channel token colliding with
// another channel's token. It matches ErrAlreadyExists.
var ErrTokenCollision = fmt.Errorf("channel token: %w", ErrAlreadyExists)

// NotFound wraps ErrNotFound with the entity kind and id.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}

// AlreadyExists wraps ErrAlreadyExists with the entity kind and id.
func AlreadyExists(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrAlreadyExists)
}

// Failure wraps a driver or transaction error as ErrStorageFailure,
// keeping the underlying cause on the chain.
func Failure(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageFailure, err)
}

func IsNotFound(err error) bool      { return errors.Is(err, ErrNotFound) }
func IsAlreadyExists(err error) bool { return errors.Is(err, ErrAlreadyExists) }
func IsForbidden(err error) bool     { return errors.Is(err, ErrForbidden) }
