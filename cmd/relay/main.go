package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/dx-spot-relay/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/dx-spot-relay/internal/adapter/kafka"
	"github.com/couchcryptid/dx-spot-relay/internal/adapter/telegram"
	"github.com/couchcryptid/dx-spot-relay/internal/config"
	"github.com/couchcryptid/dx-spot-relay/internal/dedup"
	"github.com/couchcryptid/dx-spot-relay/internal/feed"
	"github.com/couchcryptid/dx-spot-relay/internal/notify"
	"github.com/couchcryptid/dx-spot-relay/internal/observability"
	"github.com/couchcryptid/dx-spot-relay/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	events := observability.NewEventLog(logger, metrics)

	// Sinks are feature-flagged; with none enabled alerts only go to the log.
	var sinks notify.Fanout
	var closers []io.Closer
	if cfg.TelegramEnabled {
		sinks = append(sinks, telegram.NewClient(cfg.TelegramToken, cfg.TelegramChatIDs, cfg.TelegramRatePerMinute, cfg.NotifyTimeout, logger))
		logger.Info("telegram notifier enabled", "chats", len(cfg.TelegramChatIDs), "rate_per_minute", cfg.TelegramRatePerMinute)
	}
	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaAlertTopic, logger)
		sinks = append(sinks, writer)
		closers = append(closers, writer)
		logger.Info("kafka alert sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaAlertTopic)
	}
	var sink notify.Sink = sinks
	if len(sinks) == 0 {
		logger.Info("no notifier configured, alerts are logged only")
		sink = notify.NewLogSink(logger)
	}
	if len(cfg.Targets) == 0 {
		logger.Warn("no targets configured, no alerts will be sent", "targets_file", cfg.TargetsFile)
	}

	client := feed.NewClient(feed.Config{
		Addr:         cfg.ClusterAddr(),
		Login:        cfg.ClusterCall,
		Commands:     cfg.ClusterCommands,
		DialTimeout:  cfg.FeedDialTimeout,
		LoginTimeout: cfg.FeedLoginTimeout,
		IdleTimeout:  cfg.FeedIdleTimeout,
	}, logger)

	d := pipeline.New(pipeline.Config{
		Criteria:      cfg.Targets,
		DedupWindow:   cfg.DedupWindow,
		NotifyTimeout: cfg.NotifyTimeout,
		BackoffMin:    cfg.BackoffMin,
		BackoffMax:    cfg.BackoffMax,
		BackoffReset:  cfg.BackoffReset,
	}, client, dedup.New(dedup.DefaultEvictMultiplier), sink, events, logger, metrics, clockwork.NewRealClock())

	srv := httpadapter.NewServer(cfg.HTTPAddr, d, prometheus.DefaultGatherer, logger)

	if err := srv.Listen(); err != nil {
		logger.Error("http server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start the dispatcher.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := d.Run(ctx); err != nil {
			logger.Error("dispatcher error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("dispatcher did not stop before shutdown timeout")
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Error("sink close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
