// Package buffer implements the bounded single-producer/single-consumer
// rendezvous described by the streaming client: a queue of decoded items
// with three readiness triggers (size, idle time, wait time) and one hard
// backpressure threshold.
package buffer

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrEndOfStream is returned by Take once the buffer has been closed
// (normally or via cancellation) and every buffered item has been
// delivered.
var ErrEndOfStream = errors.New("buffer: end of stream")

type state int

const (
	stateFilling state = iota
	stateReady
	stateClosed
	stateFailed
)

// Config holds the three readiness thresholds and the backpressure
// ceiling. MaxBytes must be >= MinBytes.
type Config struct {
	MinBytes    uint64
	MaxBytes    uint64
	MaxIdleTime time.Duration
	MaxWaitTime time.Duration
}

// Result is the contents handed to the consumer at one handoff.
type Result[T any] struct {
	Items []T
	Bytes uint64
}

// Observer receives buffer lifecycle events for metrics/logging. The
// Observer passed to New may be nil, in which case no events are reported.
type Observer interface {
	OnBufferedBytes(n uint64)
	OnHandoff(items int, bytes uint64)
	OnBackpressureStart()
	OnBackpressureEnd()
}

// Buffer is a bounded rendezvous between one producer (the ingest loop)
// and one consumer (a stream's Next). It is safe for one producer
// goroutine and one consumer goroutine to use concurrently; it is not
// safe for multiple producers or multiple consumers.
type Buffer[T any] struct {
	cfg Config
	obs Observer

	mu       sync.Mutex
	items    []T
	bytes    uint64
	state    state
	err      error
	lastPull time.Time

	readyCh chan struct{}
	spaceCh chan struct{}

	idleTimer *time.Timer
	waitTimer *time.Timer
}

// New returns an empty, filling Buffer.
func New[T any](cfg Config, obs Observer) *Buffer[T] {
	return &Buffer[T]{
		cfg:      cfg,
		obs:      obs,
		lastPull: time.Now(),
		readyCh:  make(chan struct{}),
		spaceCh:  make(chan struct{}),
	}
}

// ArmTimers ensures the idle and wait timers are running. The ingest loop
// calls it on every line batch it processes; it is a no-op while the
// timers are already armed, and re-arms them after Take disarms on
// handoff so a sub-MinBytes tail later in the same response still flushes
// on idle or wait.
func (b *Buffer[T]) ArmTimers() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.idleTimer == nil {
		b.idleTimer = time.AfterFunc(b.cfg.MaxIdleTime, b.onIdleFire)
	}
	if b.waitTimer == nil {
		remaining := b.cfg.MaxWaitTime - time.Since(b.lastPull)
		if remaining < 0 {
			remaining = 0
		}
		b.waitTimer = time.AfterFunc(remaining, b.onWaitFire)
	}
}

// ResetIdle restarts the idle timer; called after every line batch is
// processed.
func (b *Buffer[T]) ResetIdle() {
	b.mu.Lock()
	if b.idleTimer != nil {
		b.idleTimer.Reset(b.cfg.MaxIdleTime)
	}
	b.mu.Unlock()
}

// Append adds an item produced from a raw wire line of n bytes. If the
// append pushes the buffer to or past MinBytes it becomes ready. If it
// pushes the buffer to or past MaxBytes, Append blocks (respecting ctx)
// until the consumer has taken the buffer's contents.
func (b *Buffer[T]) Append(ctx context.Context, item T, n uint64) error {
	b.mu.Lock()
	if b.state == stateClosed || b.state == stateFailed {
		b.mu.Unlock()
		return ErrEndOfStream
	}

	b.items = append(b.items, item)
	b.bytes += n
	if b.obs != nil {
		b.obs.OnBufferedBytes(b.bytes)
	}

	if b.state == stateFilling && b.bytes >= b.cfg.MinBytes {
		b.state = stateReady
		b.notifyReadyLocked()
	}

	mustWait := b.bytes >= b.cfg.MaxBytes
	var wait chan struct{}
	if mustWait {
		wait = b.spaceCh
	}
	b.mu.Unlock()

	if wait == nil {
		return nil
	}
	if b.obs != nil {
		b.obs.OnBackpressureStart()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-wait:
		if b.obs != nil {
			b.obs.OnBackpressureEnd()
		}
		return nil
	}
}

// Flush forces a handoff of whatever is currently buffered, even if no
// threshold has been crossed. The ingest loop calls this when the
// upstream HTTP response ends naturally.
func (b *Buffer[T]) Flush() {
	b.mu.Lock()
	if b.state == stateFilling && len(b.items) > 0 {
		b.state = stateReady
		b.notifyReadyLocked()
	}
	b.mu.Unlock()
}

// Take blocks until the buffer is ready, closed, or failed, then returns
// its contents (resetting it to empty and unblocking any backpressure
// wait), ErrEndOfStream, or the stored error.
func (b *Buffer[T]) Take(ctx context.Context) (Result[T], error) {
	for {
		b.mu.Lock()
		switch {
		case b.state == stateFailed:
			err := b.err
			b.items = nil
			b.bytes = 0
			b.err = nil
			b.state = stateClosed
			b.mu.Unlock()
			return Result[T]{}, err

		case b.state == stateReady, b.state == stateClosed && len(b.items) > 0:
			items := b.items
			bytes := b.bytes
			b.items = nil
			b.bytes = 0
			wasClosed := b.state == stateClosed
			if !wasClosed {
				b.state = stateFilling
			}
			b.lastPull = time.Now()
			b.disarmTimersLocked()
			b.notifySpaceLocked()
			b.mu.Unlock()
			if b.obs != nil {
				b.obs.OnHandoff(len(items), bytes)
			}
			return Result[T]{Items: items, Bytes: bytes}, nil

		case b.state == stateClosed:
			b.mu.Unlock()
			return Result[T]{}, ErrEndOfStream

		default:
			ready := b.readyCh
			b.mu.Unlock()
			select {
			case <-ctx.Done():
				return Result[T]{}, ctx.Err()
			case <-ready:
			}
		}
	}
}

// Close terminates the buffer. A nil err is a clean close (cancellation
// or normal exhaustion): any already-buffered items are still delivered
// to one final Take before ErrEndOfStream. A non-nil err discards
// whatever is buffered and is delivered to exactly the next Take, after
// which the buffer behaves as cleanly closed.
func (b *Buffer[T]) Close(err error) {
	b.mu.Lock()
	if b.state == stateFailed || b.state == stateClosed {
		b.mu.Unlock()
		return
	}
	if err != nil {
		b.items = nil
		b.bytes = 0
		b.state = stateFailed
		b.err = err
	} else {
		b.state = stateClosed
	}
	b.disarmTimersLocked()
	b.notifyReadyLocked()
	b.notifySpaceLocked()
	b.mu.Unlock()
}

func (b *Buffer[T]) onIdleFire() {
	b.mu.Lock()
	if b.state == stateFilling {
		if len(b.items) > 0 {
			b.state = stateReady
			b.notifyReadyLocked()
		} else if b.idleTimer != nil {
			b.idleTimer.Reset(b.cfg.MaxIdleTime)
		}
	}
	b.mu.Unlock()
}

func (b *Buffer[T]) onWaitFire() {
	b.mu.Lock()
	if b.state == stateFilling {
		if len(b.items) > 0 {
			b.state = stateReady
			b.notifyReadyLocked()
		} else if b.waitTimer != nil {
			b.waitTimer.Reset(b.cfg.MaxWaitTime)
		}
	}
	b.mu.Unlock()
}

// notifyReadyLocked and notifySpaceLocked use the "close then replace"
// broadcast idiom: closing readyCh/spaceCh wakes every goroutine
// currently selecting on it, and a fresh channel is installed so the next
// wait starts clean. Callers must hold b.mu.
func (b *Buffer[T]) notifyReadyLocked() {
	close(b.readyCh)
	b.readyCh = make(chan struct{})
}

func (b *Buffer[T]) notifySpaceLocked() {
	close(b.spaceCh)
	b.spaceCh = make(chan struct{})
}

func (b *Buffer[T]) disarmTimersLocked() {
	if b.idleTimer != nil {
		b.idleTimer.Stop()
		b.idleTimer = nil
	}
	if b.waitTimer != nil {
		b.waitTimer.Stop()
		b.waitTimer = nil
	}
}

// BufferedBytes reports the current buffered size, for metrics/tests.
func (b *Buffer[T]) BufferedBytes() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bytes
}
