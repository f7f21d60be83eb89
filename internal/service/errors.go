package service

import (
	"errors"
	"fmt"

	"github.com/sealdoc/sealdoc/internal/repository"
)

var (
	// ErrValidation marks malformed or missing input. Never retried.
	ErrValidation = errors.New("validation failed")

	// ErrTemplateNotFound is returned when a template does not exist or
	// belongs to another account.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrPersistenceConflict marks a backing-store constraint violation.
	ErrPersistenceConflict = errors.New("persistence conflict")
)

// mapStoreError folds repository constraint violations into the
// service error taxonomy so callers can match with errors.Is.
func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	var constraintErr *repository.ConstraintError
	if errors.As(err, &constraintErr) {
		return fmt.Errorf("%w: %v", ErrPersistenceConflict, err)
	}
	return err
}
