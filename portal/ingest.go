package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/slowdrip-network/portal-sdk/internal/buffer"
	"github.com/slowdrip-network/portal-sdk/internal/linesplit"
	"github.com/slowdrip-network/portal-sdk/query"
)

// errTransientTimeout marks a body-read timeout the ingest loop resumes
// from mid-range, as opposed to a fatal decode or protocol error.
var errTransientTimeout = errors.New("portal: transient read timeout")

// runIngest drives every per-range request in q in order, stopping early if
// ctx is cancelled. A non-nil return is fatal and closes the buffer with an
// error; a nil return means the stream ended cleanly (exhausted or
// cancelled).
func (c *Client) runIngest(ctx context.Context, q query.Query, opts resolvedStreamOptions, buf *buffer.Buffer[Block]) error {
	for _, rr := range q.PerRangeRequests {
		if ctx.Err() != nil {
			return nil
		}
		if err := c.ingestRange(ctx, rr.Request, buf, opts); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) ingestRange(ctx context.Context, req query.WireRequest, buf *buffer.Buffer[Block], opts resolvedStreamOptions) error {
	url := strings.TrimRight(c.cfg.URL, "/") + "/finalized-stream"
	fromBlock := req.FromBlock
	toBlock := req.ToBlock

	for {
		if ctx.Err() != nil {
			return nil
		}
		if toBlock != nil && fromBlock > *toBlock {
			return nil
		}

		req.FromBlock = fromBlock
		body, err := json.Marshal(req)
		if err != nil {
			return &FatalError{Op: "encode request", Err: err}
		}

		resp, err := c.transport.postStreaming(ctx, url, body)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return &FatalError{Op: "post finalized-stream", Err: err}
		}

		switch resp.StatusCode {
		case http.StatusNoContent:
			resp.Body.Close()
			if opts.stopOnHead {
				return nil
			}
			if err := sleepCtx(ctx, opts.headPollInterval); err != nil {
				return nil
			}
			continue

		case http.StatusOK:
			next, err := c.drainBody(ctx, resp.Body, buf, fromBlock)
			resp.Body.Close()
			if err != nil {
				if errors.Is(err, errTransientTimeout) {
					if c.metrics != nil {
						c.metrics.TransientTimeouts.Inc()
					}
					fromBlock = next
					continue
				}
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			fromBlock = next
			buf.Flush()
			continue

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return &FatalError{Op: "post finalized-stream", Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(b))}
		}
	}
}

// drainBody reads one streaming response to completion, splitting lines,
// decoding each into a Block, and appending it to buf. It returns the next
// fromBlock cursor (one past the last block seen) and either nil, an
// errTransientTimeout sentinel the caller resumes from, or a fatal error.
func (c *Client) drainBody(ctx context.Context, body io.Reader, buf *buffer.Buffer[Block], fromBlock uint64) (uint64, error) {
	sp := linesplit.New('\n')
	var last uint64
	haveSeen := false
	chunk := make([]byte, 64*1024)

	handle := func(line string) error {
		if line == "" {
			return nil
		}
		var blk Block
		if err := json.Unmarshal([]byte(line), &blk); err != nil {
			return &FatalError{Op: "decode block line", Err: err}
		}
		num := uint64(blk.Header.Number)
		if haveSeen && num <= last {
			return &FatalError{Op: "ingest", Err: fmt.Errorf("%w: block %d out of order after %d", ErrInvariantViolation, num, last)}
		}
		last, haveSeen = num, true
		if err := buf.Append(ctx, blk, uint64(len(line))); err != nil {
			return err
		}
		fromBlock = num + 1
		return nil
	}

	for {
		if ctx.Err() != nil {
			return fromBlock, nil
		}
		n, readErr := body.Read(chunk)
		if n > 0 {
			lines := sp.Feed(chunk[:n])
			if len(lines) > 0 {
				buf.ArmTimers()
				buf.ResetIdle()
				for _, line := range lines {
					if err := handle(line); err != nil {
						if errors.Is(err, buffer.ErrEndOfStream) {
							return fromBlock, nil
						}
						return fromBlock, err
					}
				}
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				if tail := sp.End(); len(tail) > 0 {
					buf.ResetIdle()
					for _, line := range tail {
						if err := handle(line); err != nil {
							if errors.Is(err, buffer.ErrEndOfStream) {
								return fromBlock, nil
							}
							return fromBlock, err
						}
					}
				}
				return fromBlock, nil
			}
			if isTransientTimeout(readErr) {
				return fromBlock, errTransientTimeout
			}
			return fromBlock, &FatalError{Op: "read body", Err: readErr}
		}
	}
}

func isTransientTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
