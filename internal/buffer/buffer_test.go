package buffer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cfg(min, max uint64, idle, wait time.Duration) Config {
	return Config{MinBytes: min, MaxBytes: max, MaxIdleTime: idle, MaxWaitTime: wait}
}

func TestMinBytesTriggersHandoffImmediately(t *testing.T) {
	b := New[string](cfg(20, 100, time.Hour, time.Hour), nil)
	ctx := context.Background()

	require.NoError(t, b.Append(ctx, "aaaaaaaaaa", 10))
	require.NoError(t, b.Append(ctx, "bbbbbbbbbb", 10))

	res, err := b.Take(withTimeout(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"aaaaaaaaaa", "bbbbbbbbbb"}, res.Items)
	assert.Equal(t, uint64(20), res.Bytes)
}

func TestIdleTriggerFlushesBelowMinBytes(t *testing.T) {
	b := New[string](cfg(1_000_000, 1_000_000, 30*time.Millisecond, time.Hour), nil)
	b.ArmTimers()
	ctx := context.Background()
	require.NoError(t, b.Append(ctx, "x", 1))

	start := time.Now()
	res, err := b.Take(withTimeout(t))
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, res.Items)
	assert.GreaterOrEqual(t, elapsed, 25*time.Millisecond)
}

func TestWaitTriggerFlushesWithoutChunks(t *testing.T) {
	b := New[string](cfg(1_000_000, 1_000_000, time.Hour, 30*time.Millisecond), nil)
	b.ArmTimers()
	ctx := context.Background()
	require.NoError(t, b.Append(ctx, "x", 1))

	res, err := b.Take(withTimeout(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, res.Items)
}

func TestBackpressureBlocksUntilTake(t *testing.T) {
	b := New[string](cfg(20, 20, time.Hour, time.Hour), nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		done <- b.Append(ctx, "0123456789", 10) // 10 bytes, below max
	}()
	require.NoError(t, <-done)

	go func() {
		done <- b.Append(ctx, "0123456789", 10) // now at 20 == max, should block after append returns? no: this append itself blocks.
	}()

	select {
	case err := <-done:
		t.Fatalf("expected Append to block on backpressure, got %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	res, err := b.Take(withTimeout(t))
	require.NoError(t, err)
	assert.Equal(t, uint64(20), res.Bytes)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("producer did not unblock after Take")
	}
}

func TestCloseCleanDeliversFinalBatchThenEOF(t *testing.T) {
	b := New[string](cfg(1_000_000, 1_000_000, time.Hour, time.Hour), nil)
	ctx := context.Background()
	require.NoError(t, b.Append(ctx, "last", 4))
	b.Close(nil)

	res, err := b.Take(withTimeout(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"last"}, res.Items)

	_, err = b.Take(withTimeout(t))
	assert.ErrorIs(t, err, ErrEndOfStream)
}

func TestCloseWithErrorDeliversOnceThenEOF(t *testing.T) {
	b := New[string](cfg(10, 10, time.Hour, time.Hour), nil)
	boom := assertError("boom")
	b.Close(boom)

	_, err := b.Take(withTimeout(t))
	assert.Equal(t, boom, err)

	_, err = b.Take(withTimeout(t))
	assert.ErrorIs(t, err, ErrEndOfStream)
}

func TestAppendAfterCloseReturnsEndOfStream(t *testing.T) {
	b := New[string](cfg(10, 10, time.Hour, time.Hour), nil)
	b.Close(nil)
	err := b.Append(context.Background(), "x", 1)
	assert.ErrorIs(t, err, ErrEndOfStream)
}

func TestCtxCancelDuringTakeReturnsCtxErr(t *testing.T) {
	b := New[string](cfg(10, 10, time.Hour, time.Hour), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Take(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func withTimeout(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

type assertError string

func (e assertError) Error() string { return string(e) }
