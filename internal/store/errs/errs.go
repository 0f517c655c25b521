package errs

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrStaleState is returned when a conditional update finds the row in a
	// different state than the caller expected.
	ErrStaleState           = errors.New("record is no longer in the expected state")
	ErrInvalidTransition    = errors.New("invalid state transition")
	ErrPendingRequestExists = errors.New("user already has a pending withdrawal request")
)

// IsUniqueViolation matches duplicate key errors from postgres and sqlite,
// translated or not.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
