package attrs

import (
	"errors"
	"fmt"
)

// ErrDuplicate is returned when a key is registered twice.
var ErrDuplicate = errors.New("already defined")

// ErrInvalidValue is returned when a value is outside the allowed set or of the wrong kind.
var ErrInvalidValue = errors.New("invalid value")

// NotFoundError reports a lookup of an unknown attribute, status or action.
type NotFoundError struct {
	Registry string // "attribute", "status" or "action"
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Registry, e.Key)
}

// IsNotFound reports whether err is a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
