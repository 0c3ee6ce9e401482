package portal

import (
	"context"
	"io"

	"github.com/slowdrip-network/portal-sdk/internal/buffer"
)

// Stream is a pull-based handle onto one ingest loop. Next blocks until a
// batch is ready, the stream is cancelled, or it fails. Cancel may be
// called from any goroutine at any time, including concurrently with a
// blocked Next; it is idempotent.
type Stream struct {
	buf    *buffer.Buffer[Block]
	head   *headPoller
	cancel context.CancelFunc
	done   chan struct{}
}

// Next returns the next batch, io.EOF once the stream has ended cleanly
// (cancellation or exhaustion), or the fatal error that ended it.
func (s *Stream) Next(ctx context.Context) (Batch, error) {
	res, err := s.buf.Take(ctx)
	if err != nil {
		if err == buffer.ErrEndOfStream {
			return Batch{}, io.EOF
		}
		return Batch{}, err
	}

	head, herr := s.head.get(ctx)
	if herr != nil {
		// The batch itself decoded fine; a stale or missing head is not a
		// reason to fail delivery, just to omit the stamp.
		head = FinalizedHead{}
	}
	return Batch{FinalizedHead: head, Blocks: res.Items}, nil
}

// Cancel stops the ingest loop. It does not wait for the loop to exit;
// call Next until it returns io.EOF to drain any already-buffered batch
// and observe the stream's end.
func (s *Stream) Cancel() {
	s.cancel()
}

// Done closes once the ingest loop has fully exited, for callers that need
// to wait for in-flight HTTP requests to unwind before reusing resources.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}
