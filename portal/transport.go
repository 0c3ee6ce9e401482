package portal

import (
	"bytes"
	"context"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/slowdrip-network/portal-sdk/internal/logger"
)

// transport wraps a retryablehttp.Client so connection failures, 429 and
// 5xx responses from the portal are retried transparently, while 200/204
// and other 4xx are handed back untouched for the ingest loop to interpret.
type transport struct {
	rh      *retryablehttp.Client
	headers http.Header
	metrics *Metrics
}

func newTransport(base *http.Client, log zerolog.Logger, retryMax int, headers http.Header, m *Metrics) *transport {
	rh := retryablehttp.NewClient()
	rh.RetryMax = retryMax
	rh.Logger = zerologLeveledLogger{log: log.With().Str("component", "portal.http").Logger()}
	if base != nil {
		rh.HTTPClient = base
	}
	rh.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		retry, rerr := retryablehttp.DefaultRetryPolicy(ctx, resp, err)
		if retry && m != nil {
			m.HTTPRetries.Inc()
		}
		return retry, rerr
	}
	return &transport{rh: rh, headers: headers, metrics: m}
}

func (t *transport) get(ctx context.Context, url string) (*http.Response, error) {
	if t.metrics != nil {
		t.metrics.HTTPRequests.Inc()
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	t.applyHeaders(req.Request)
	return t.rh.Do(req)
}

// postStreaming issues the finalized-stream POST. The body returned may be
// arbitrarily long-lived (200) or empty (204); retryablehttp only retries
// connect/5xx failures before headers arrive, never after the caller starts
// reading the body.
func (t *transport) postStreaming(ctx context.Context, url string, body []byte) (*http.Response, error) {
	if t.metrics != nil {
		t.metrics.HTTPRequests.Inc()
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	t.applyHeaders(req.Request)
	return t.rh.Do(req)
}

func (t *transport) applyHeaders(r *http.Request) {
	for k, vs := range t.headers {
		for _, v := range vs {
			r.Header.Add(k, v)
		}
	}
}

func (t *transport) closeIdleConnections() {
	t.rh.HTTPClient.CloseIdleConnections()
}

// zerologLeveledLogger adapts zerolog.Logger to retryablehttp.LeveledLogger,
// keeping the HTTP client's own retry/backoff logging on the same
// structured logging stack as the rest of the client.
type zerologLeveledLogger struct{ log zerolog.Logger }

func (z zerologLeveledLogger) Error(msg string, kv ...interface{}) {
	z.log.Error().Fields(logger.KVToMap(kv...)).Msg(msg)
}

func (z zerologLeveledLogger) Info(msg string, kv ...interface{}) {
	z.log.Info().Fields(logger.KVToMap(kv...)).Msg(msg)
}

func (z zerologLeveledLogger) Debug(msg string, kv ...interface{}) {
	z.log.Debug().Fields(logger.KVToMap(kv...)).Msg(msg)
}

func (z zerologLeveledLogger) Warn(msg string, kv ...interface{}) {
	z.log.Warn().Fields(logger.KVToMap(kv...)).Msg(msg)
}
