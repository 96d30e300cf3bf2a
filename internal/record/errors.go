package record

import (
	"errors"
	"fmt"
)

// Error classes surfaced to clients. Every failure coming out of a handler
// wraps exactly one of them, so callers can branch with errors.Is.
var (
	ErrSchema = errors.New("schema error")
	ErrType   = errors.New("type error")
	ErrValue  = errors.New("value error")
)

func SchemaErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSchema, fmt.Sprintf(format, args...))
}

func TypeErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrType, fmt.Sprintf(format, args...))
}

func ValueErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValue, fmt.Sprintf(format, args...))
}
