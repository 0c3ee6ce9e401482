package portal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/slowdrip-network/portal-sdk/internal/buffer"
	"github.com/slowdrip-network/portal-sdk/query"
)

const (
	defaultMinBytes         = 40 * 1 << 20 // 40 MiB
	defaultMaxIdleTime      = 300 * time.Millisecond
	defaultMaxWaitTime      = 5 * time.Second
	defaultHeadPollInterval = 15 * time.Second
	defaultRetryMax         = 4
	defaultRequestTimeout   = 30 * time.Second
)

// Config configures a Client. Zero values are replaced with defaults
// matched to the portal's own recommended operating range (see
// SPEC_FULL.md's streaming client section).
type Config struct {
	// URL is the portal's base URL, no trailing slash, e.g.
	// "https://portal.example.org/datasets/eth-mainnet".
	URL string

	// HTTPClient overrides the transport's underlying *http.Client. Leave
	// nil to use a default client with RequestTimeout applied.
	HTTPClient *http.Client

	MinBytes         uint64
	MaxBytes         uint64
	MaxIdleTime      time.Duration
	MaxWaitTime      time.Duration
	HeadPollInterval time.Duration
	RequestTimeout   time.Duration
	RetryMax         int
	Headers          http.Header

	// Logger should be constructed with internal/logger.New; the zero
	// value is zerolog's disabled logger, so nothing is logged.
	Logger  zerolog.Logger
	Metrics *Metrics
}

func (c Config) withDefaults() Config {
	if c.MinBytes == 0 {
		c.MinBytes = defaultMinBytes
	}
	if c.MaxBytes == 0 {
		c.MaxBytes = c.MinBytes
	}
	if c.MaxIdleTime == 0 {
		c.MaxIdleTime = defaultMaxIdleTime
	}
	if c.MaxWaitTime == 0 {
		c.MaxWaitTime = defaultMaxWaitTime
	}
	if c.HeadPollInterval == 0 {
		c.HeadPollInterval = defaultHeadPollInterval
	}
	if c.RetryMax == 0 {
		c.RetryMax = defaultRetryMax
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	return c
}

// StreamOptions overrides Config's defaults for a single GetFinalizedStream
// call. Nil pointer fields inherit the Client's Config.
type StreamOptions struct {
	MinBytes         *uint64
	MaxBytes         *uint64
	MaxIdleTime      *time.Duration
	MaxWaitTime      *time.Duration
	HeadPollInterval *time.Duration

	// StopOnHead ends the stream (Stream.Next returns io.EOF) instead of
	// polling as soon as the portal reports no data (204) at the current
	// fromBlock.
	StopOnHead bool
}

type resolvedStreamOptions struct {
	bufferCfg        buffer.Config
	headPollInterval time.Duration
	stopOnHead       bool
	requestTimeout   time.Duration
}

func (c *Client) resolveStreamOptions(o StreamOptions) resolvedStreamOptions {
	minB, maxB := c.cfg.MinBytes, c.cfg.MaxBytes
	if o.MinBytes != nil {
		minB = *o.MinBytes
	}
	if o.MaxBytes != nil {
		maxB = *o.MaxBytes
	}
	if maxB < minB {
		maxB = minB
	}
	idle, wait, poll := c.cfg.MaxIdleTime, c.cfg.MaxWaitTime, c.cfg.HeadPollInterval
	if o.MaxIdleTime != nil {
		idle = *o.MaxIdleTime
	}
	if o.MaxWaitTime != nil {
		wait = *o.MaxWaitTime
	}
	if o.HeadPollInterval != nil {
		poll = *o.HeadPollInterval
	}
	return resolvedStreamOptions{
		bufferCfg:        buffer.Config{MinBytes: minB, MaxBytes: maxB, MaxIdleTime: idle, MaxWaitTime: wait},
		headPollInterval: poll,
		stopOnHead:       o.StopOnHead,
		requestTimeout:   c.cfg.RequestTimeout,
	}
}

// Client drives the finalized-stream protocol against one portal dataset.
// A Client is safe for concurrent use by multiple goroutines; each call to
// GetFinalizedStream starts its own independent ingest loop.
type Client struct {
	cfg       Config
	transport *transport
	log       zerolog.Logger
	metrics   *Metrics
	head      *headPoller
}

// NewClient builds a Client. cfg.URL must be set.
func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()
	log := cfg.Logger

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}

	c := &Client{
		cfg:     cfg,
		log:     log,
		metrics: cfg.Metrics,
	}
	c.transport = newTransport(httpClient, log, cfg.RetryMax, cfg.Headers, cfg.Metrics)
	c.head = newHeadPoller(c, cfg.HeadPollInterval)
	return c
}

// Close releases idle transport connections.
func (c *Client) Close() {
	c.transport.closeIdleConnections()
}

// GetFinalizedHeight fetches the portal's current finalized block height.
func (c *Client) GetFinalizedHeight(ctx context.Context) (uint64, error) {
	url := strings.TrimRight(c.cfg.URL, "/") + "/finalized-stream/height"
	resp, err := c.transport.get(ctx, url)
	if err != nil {
		return 0, &FatalError{Op: "get height", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, &FatalError{Op: "get height", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, &FatalError{Op: "get height", Err: err}
	}
	s := strings.TrimSpace(string(b))
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, &FatalError{Op: "get height", Err: fmt.Errorf("%w: malformed height %q", ErrInvariantViolation, s)}
	}
	return n, nil
}

// GetFinalizedBatch drives q to completion against the current finalized
// head and returns every matching block. It is a convenience wrapper around
// GetFinalizedStream with StopOnHead set; callers with large result sets
// should prefer GetFinalizedStream directly to bound memory use.
func (c *Client) GetFinalizedBatch(ctx context.Context, q query.Query) ([]Block, error) {
	s, err := c.GetFinalizedStream(ctx, q, StreamOptions{StopOnHead: true})
	if err != nil {
		return nil, err
	}
	defer s.Cancel()

	var all []Block
	for {
		batch, err := s.Next(ctx)
		if err == io.EOF {
			return all, nil
		}
		if err != nil {
			return nil, err
		}
		all = append(all, batch.Blocks...)
	}
}

// GetFinalizedStream starts an ingest loop for q and returns a Stream the
// caller pulls batches from. The ingest loop runs in its own goroutine
// until the returned Stream is cancelled, ctx is done, or a fatal error
// occurs.
func (c *Client) GetFinalizedStream(ctx context.Context, q query.Query, opts StreamOptions) (*Stream, error) {
	if c.cfg.URL == "" {
		return nil, &FatalError{Op: "get finalized stream", Err: fmt.Errorf("empty portal URL")}
	}
	resolved := c.resolveStreamOptions(opts)

	var obs buffer.Observer
	if c.metrics != nil {
		obs = c.metrics
	}
	buf := buffer.New[Block](resolved.bufferCfg, obs)

	streamCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s := &Stream{buf: buf, cancel: cancel, done: done, head: c.head}

	go func() {
		defer close(done)
		err := c.runIngest(streamCtx, q, resolved, buf)
		if streamCtx.Err() != nil {
			buf.Close(nil)
			return
		}
		buf.Close(err)
	}()

	return s, nil
}
