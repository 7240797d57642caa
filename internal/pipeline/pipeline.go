package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/deckshot/deckshot/internal/metrics"
	"github.com/deckshot/deckshot/internal/screenshot"
	"github.com/deckshot/deckshot/internal/watcher"
)

// Backend is the delivery half of delivery.Backend.
type Backend interface {
	Name() string
	Deliver(ctx context.Context, s screenshot.Screenshot) error
}

// Queue is the durable list of paths awaiting redelivery.
type Queue interface {
	Enqueue(ctx context.Context, entry string) error
	List(ctx context.Context) ([]string, error)
	Remove(ctx context.Context, entry string) (bool, error)
	Len(ctx context.Context) (int, error)
}

// TitleResolver names the application a screenshot was taken in.
type TitleResolver interface {
	Resolve(ctx context.Context, appID uint64) string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMetrics records counters in rec and, when file is not empty, writes
// them to file after every retry cycle.
func WithMetrics(rec *metrics.Recorder, file string) Option {
	return func(p *Pipeline) {
		p.recorder = rec
		p.metricsFile = file
	}
}

// WithTitles adds the resolved title to delivery failure logs. Successful
// deliveries skip the extra lookup.
func WithTitles(r TitleResolver) Option {
	return func(p *Pipeline) { p.titles = r }
}

// Pipeline delivers screenshots through one backend.
type Pipeline struct {
	backend     Backend
	queue       Queue
	titles      TitleResolver
	recorder    *metrics.Recorder
	metricsFile string
}

// New returns a Pipeline delivering through b and queueing failures in q.
func New(b Backend, q Queue, opts ...Option) *Pipeline {
	p := &Pipeline{backend: b, queue: q}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle delivers the screenshot at path. On failure the path is queued
// and the delivery error is returned, joined with the enqueue error if the
// path could not be queued either.
func (p *Pipeline) Handle(ctx context.Context, path string) error {
	s := screenshot.New(path)

	log := p.logger(s)
	err := p.backend.Deliver(ctx, s)
	if err == nil {
		p.recorder.Delivered(metrics.SourceLive)
		log.Info("pipeline: screenshot delivered")
		return nil
	}
	p.recorder.Failed(metrics.SourceLive)

	// Queue even when ctx was cancelled mid-delivery, or the path is lost.
	qerr := p.queue.Enqueue(context.WithoutCancel(ctx), path)
	log = p.withTitle(ctx, log, s)
	if qerr != nil {
		log.Error("pipeline: delivery failed and screenshot could not be queued", "err", err, "enqueue_err", qerr)
		return errors.Join(err, fmt.Errorf("pipeline: enqueue: %w", qerr))
	}

	log.Warn("pipeline: delivery failed, queued for retry", "err", err)
	return err
}

// Run handles every screenshot event until ctx is cancelled. Other events
// are ignored.
func (p *Pipeline) Run(ctx context.Context, events <-chan watcher.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if !watcher.IsScreenshot(ev) {
				slog.Debug("pipeline: ignoring event", "path", ev.Path, "op", ev.Op.String())
				continue
			}
			// Failures are logged and queued by Handle.
			_ = p.Handle(ctx, ev.Path)
		}
	}
}

// RetryCycle redelivers a snapshot of the queue. Delivered entries are
// removed by value; failed ones stay for the next cycle.
func (p *Pipeline) RetryCycle(ctx context.Context) error {
	entries, err := p.queue.List(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: list queue: %w", err)
	}
	if len(entries) == 0 {
		p.recorder.RetryCycle(0)
		return p.flushMetrics()
	}

	var (
		errs      []error
		delivered int
	)
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}

		s := screenshot.New(entry)
		if err := p.backend.Deliver(ctx, s); err != nil {
			p.recorder.Failed(metrics.SourceRetry)
			p.withTitle(ctx, p.logger(s), s).Warn("pipeline: retry failed", "err", err)
			continue
		}
		p.recorder.Delivered(metrics.SourceRetry)
		delivered++

		if _, err := p.queue.Remove(context.WithoutCancel(ctx), entry); err != nil {
			errs = append(errs, fmt.Errorf("pipeline: remove %s: %w", entry, err))
			continue
		}
		p.logger(s).Info("pipeline: queued screenshot delivered")
	}

	remaining, err := p.queue.Len(context.WithoutCancel(ctx))
	if err != nil {
		errs = append(errs, fmt.Errorf("pipeline: queue length: %w", err))
	}
	p.recorder.RetryCycle(remaining)
	slog.Info("pipeline: retry cycle finished", "attempted", len(entries), "delivered", delivered, "remaining", remaining)

	if err := p.flushMetrics(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (p *Pipeline) logger(s screenshot.Screenshot) *slog.Logger {
	return slog.With("path", s.Path, "app_id", s.AppID, "backend", p.backend.Name())
}

// withTitle adds the screenshot's title to log when a resolver is set.
func (p *Pipeline) withTitle(ctx context.Context, log *slog.Logger, s screenshot.Screenshot) *slog.Logger {
	if p.titles == nil {
		return log
	}
	return log.With("title", p.titles.Resolve(context.WithoutCancel(ctx), s.AppID))
}

func (p *Pipeline) flushMetrics() error {
	if p.recorder == nil || p.metricsFile == "" {
		return nil
	}
	return p.recorder.WriteFile(p.metricsFile)
}
