package main

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/deckshot/deckshot/internal/config"
	"github.com/deckshot/deckshot/internal/logging"
	"github.com/deckshot/deckshot/internal/metrics"
	"github.com/deckshot/deckshot/internal/pipeline"
	"github.com/deckshot/deckshot/internal/security"
	"github.com/deckshot/deckshot/internal/steam"
	"github.com/deckshot/deckshot/internal/watcher"
)

// run delivers screenshots until ctx is cancelled.
func run(ctx context.Context, configPath string, cfg *config.Config) error {
	titles := steam.NewResolver()
	backend, err := newBackend(ctx, cfg, titles, nil)
	if err != nil {
		return err
	}

	q, err := openQueue(cfg)
	if err != nil {
		return err
	}
	defer q.Close()

	for _, f := range security.Audit(cfg, configPath) {
		slog.Warn("security: "+f.Message, "subject", f.Subject)
	}

	if n, err := q.Len(ctx); err == nil && n > 0 {
		slog.Info("screenshots waiting for retry", "count", n)
	}

	p := pipeline.New(backend, q,
		pipeline.WithMetrics(metrics.NewRecorder(backend.Name()), cfg.MetricsFile),
		pipeline.WithTitles(titles),
	)
	w := watcher.New(cfg.ScreenshotsPath)

	slog.Info("deckshot starting",
		"uploader", backend.Name(),
		"screenshots_path", cfg.ScreenshotsPath,
		"retrier_interval", cfg.Interval(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := w.Start(gctx); err != nil {
			return fmt.Errorf("watch %s: %w", cfg.ScreenshotsPath, err)
		}
		return nil
	})
	g.Go(func() error { return p.Run(gctx, w.Events()) })
	g.Go(func() error { return p.Schedule(gctx, cfg.Interval()) })
	g.Go(func() error {
		// Only the log level is applied on reload; everything else needs a restart.
		err := config.Watch(gctx, configPath, func(updated *config.Config) {
			if err := logging.SetLevel(updated.LogLevel); err != nil {
				slog.Warn("config reload: keeping log level", "err", err)
				return
			}
			slog.Info("config reload: log level applied", "log_level", updated.LogLevel)
		})
		if err != nil {
			slog.Warn("config watcher stopped", "err", err)
		}
		return nil
	})

	err = g.Wait()
	slog.Info("deckshot shutting down")
	return err
}
