// Package compaction decides how a conversation is shrunk to fit a model's
// context window: duplicate file contents are collapsed first, and the
// middle of the conversation is hidden when that is not enough.
package compaction

import (
	"errors"
	"fmt"
)

// Compaction errors.
var (
	// ErrInvalidConfig indicates a Config value outside its allowed range.
	ErrInvalidConfig = errors.New("compaction: invalid config")

	// ErrMalformedUsage indicates a request marker whose usage record cannot be parsed.
	ErrMalformedUsage = errors.New("compaction: malformed usage record")

	// ErrNoUsage indicates that no completed request carries usage data.
	ErrNoUsage = errors.New("compaction: no usage data")
)

// Error adds operation context to a compaction failure.
type Error struct {
	// Op is the operation that failed, e.g. "ParseUsage" or "Optimize".
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("compaction %s failed", e.Op)
	}
	return fmt.Sprintf("compaction %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// wrapError returns nil when err is nil.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}
