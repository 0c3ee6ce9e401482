package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/slowdrip-network/portal-sdk/internal/api"
	"github.com/slowdrip-network/portal-sdk/internal/config"
	"github.com/slowdrip-network/portal-sdk/internal/logger"
	"github.com/slowdrip-network/portal-sdk/portal"
	"github.com/slowdrip-network/portal-sdk/query"
)

func main() {
	cfgPath := os.Getenv("PORTALCLI_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/portalcli.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(err)
	}

	lg := logger.New(cfg.LogLevel)

	reg := prometheus.NewRegistry()
	var metrics *portal.Metrics
	if cfg.Metrics.Enable {
		metrics = portal.NewMetrics(reg)
	}

	client := portal.NewClient(portal.Config{
		URL:              cfg.Portal.URL,
		MinBytes:         cfg.Portal.MinBytes,
		MaxBytes:         cfg.Portal.MaxBytes,
		MaxIdleTime:      cfg.Portal.MaxIdleTime.Duration,
		MaxWaitTime:      cfg.Portal.MaxWaitTime.Duration,
		HeadPollInterval: cfg.Portal.HeadPollInterval.Duration,
		RetryMax:         cfg.Portal.RetryMax,
		RequestTimeout:   cfg.Portal.RequestTimeout.Duration,
		Logger:           lg,
		Metrics:          metrics,
	})
	defer client.Close()

	b := query.NewBuilder()
	b.SetRange(query.Range{From: cfg.Query.FromBlock, To: cfg.Query.ToBlock})
	if cfg.Query.IncludeAllBlocks {
		b.IncludeAllBlocks(query.Range{From: cfg.Query.FromBlock, To: cfg.Query.ToBlock})
	}
	if len(cfg.Query.LogAddresses) > 0 {
		b.AddLog(query.LogFilter{Address: cfg.Query.LogAddresses}, query.Range{From: cfg.Query.FromBlock, To: cfg.Query.ToBlock})
	}
	q := b.Build()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var ready atomic.Bool
	mux := api.Router(cfg, reg, ready.Load)
	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		lg.Info().Str("addr", cfg.Server.Listen).Msg("control server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error().Err(err).Msg("control server failed")
		}
	}()

	stream, err := client.GetFinalizedStream(ctx, q, portal.StreamOptions{})
	if err != nil {
		lg.Fatal().Err(err).Msg("start finalized stream")
	}
	ready.Store(true)

	var blocks, batches uint64
	for {
		batch, err := stream.Next(ctx)
		if err != nil {
			if err == io.EOF {
				lg.Info().Uint64("blocks", blocks).Uint64("batches", batches).Msg("stream ended")
				break
			}
			lg.Error().Err(err).Msg("stream failed")
			break
		}
		batches++
		blocks += uint64(len(batch.Blocks))
		lg.Info().
			Int("blocks", len(batch.Blocks)).
			Uint64("finalizedHead", batch.FinalizedHead.Number).
			Msg("batch received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
