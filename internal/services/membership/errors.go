package membership

import (
	"errors"
	"fmt"
)

// Service errors. Specific validation failures wrap ErrValidation so
// callers can branch on the kind while still seeing the cause.
var (
	ErrNotFound         = errors.New("membership not found")
	ErrCardNotFound     = errors.New("card not found")
	ErrValidation       = errors.New("validation failed")
	ErrConflict         = errors.New("concurrent modification detected")
	ErrStoreUnavailable = errors.New("membership store unavailable")
)

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
