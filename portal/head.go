package portal

import (
	"context"
	"sync"
	"time"
)

// headPoller caches the portal's finalized height so concurrent streams on
// one Client share a single throttled poll instead of hammering the height
// endpoint once per stream. The cached value only ever moves forward: a
// poll that returns a lower or equal number than the cache never overwrites
// it, keeping FinalizedHead.Number non-decreasing across every batch a
// Client's streams deliver.
type headPoller struct {
	client      *Client
	minInterval time.Duration

	mu       sync.Mutex
	last     FinalizedHead
	polledAt time.Time
}

func newHeadPoller(c *Client, minInterval time.Duration) *headPoller {
	return &headPoller{client: c, minInterval: minInterval}
}

// get returns the cached head, refreshing it first if the cache is stale.
// A failed refresh falls back to the last known good value; the very first
// call on an empty cache propagates the error since there is nothing to
// fall back to.
func (h *headPoller) get(ctx context.Context) (FinalizedHead, error) {
	h.mu.Lock()
	fresh := !h.last.isZero() && time.Since(h.polledAt) < h.minInterval
	cached := h.last
	h.mu.Unlock()
	if fresh {
		return cached, nil
	}

	n, err := h.client.GetFinalizedHeight(ctx)
	if err != nil {
		if !cached.isZero() {
			return cached, nil
		}
		return FinalizedHead{}, err
	}

	if h.client.metrics != nil {
		h.client.metrics.HeadPolls.Inc()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.polledAt = time.Now()
	if n > h.last.Number {
		h.last = FinalizedHead{Number: n}
	}
	return h.last, nil
}
