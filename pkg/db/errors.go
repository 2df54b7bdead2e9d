package db

import (
	"errors"
	"strings"

	pkgerrors "github.com/angelmondragon/orderengine/pkg/errors"
	"gorm.io/gorm"
)

// IsUniqueViolation reports whether the provided error references a unique
// constraint violation. When constraintName is provided, the helper looks for
// the constraint text in the error message.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	class, _ := pkgerrors.Classify(err)
	if pkgerrors.PGCode(err) != "" && class != pkgerrors.ClassUniqueViolation {
		return false
	}
	msg := err.Error()
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return class == pkgerrors.ClassUniqueViolation || strings.Contains(msg, "duplicate key value")
}

// IsRetryable reports whether the error is a concurrency abort the caller may
// retry with a fresh unit of work.
func IsRetryable(err error) bool {
	_, retryable := pkgerrors.Classify(err)
	return retryable
}

// IsNotFound reports whether err is gorm's record-not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// WrapStorage converts a raw storage failure into a typed dependency error.
// Errors that already carry a code pass through untouched.
func WrapStorage(err error, message string) error {
	if err == nil {
		return nil
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	wrapped := pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
	if class, retryable := pkgerrors.Classify(err); class != pkgerrors.ClassUnclassified {
		wrapped.WithDetails(map[string]any{"class": class, "retryable": retryable})
	}
	return wrapped
}
