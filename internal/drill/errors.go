package drill

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the mistake or session does not exist or belongs to another user
	ErrNotFound = errors.New("not found")
	// ErrSessionExpired means the drill session no longer accepts results
	ErrSessionExpired = errors.New("drill session expired")
	// ErrConflict means a concurrent update kept winning the race for the same record
	ErrConflict = errors.New("concurrent update conflict")
)

// ValidationError reports a malformed request
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
