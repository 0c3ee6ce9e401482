package portal

import (
	"errors"
	"fmt"
)

// ErrInvariantViolation marks a condition the portal's own contract rules
// out: non-monotonic block numbers within one response, or a malformed
// height response. An out-of-order block closes the stream and surfaces to
// the next pull instead of being retried. A malformed height is returned by
// GetFinalizedHeight; inside a stream, a failed head poll does not end the
// stream (see Stream.Next). A line that fails to decode is a FatalError
// without this marker.
var ErrInvariantViolation = errors.New("portal: invariant violation")

// FatalError wraps the operation name and cause of a stream-terminating
// error so callers can log context without string-matching Error().
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string { return fmt.Sprintf("portal: %s: %v", e.Op, e.Err) }
func (e *FatalError) Unwrap() error { return e.Err }
