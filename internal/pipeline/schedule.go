package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule runs RetryCycle once right away, so screenshots queued before
// a restart do not wait a full interval, then every interval until ctx is
// cancelled. A cycle that is still running when the next one is due causes
// that one to be skipped. Schedule waits for a running cycle before
// returning.
func (p *Pipeline) Schedule(ctx context.Context, interval time.Duration) error {
	logger := cronLogger{}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	spec := fmt.Sprintf("@every %s", interval)
	cycle := func() {
		if err := p.RetryCycle(ctx); err != nil {
			slog.Error("pipeline: retry cycle", "err", err)
		}
	}
	if _, err := c.AddFunc(spec, cycle); err != nil {
		return fmt.Errorf("pipeline: schedule %q: %w", spec, err)
	}

	slog.Info("pipeline: retrier started", "interval", interval)
	cycle()
	if ctx.Err() != nil {
		return nil
	}
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// cronLogger routes cron's errors to slog. Its info messages (start,
// wake, run) fire on every tick and are dropped.
type cronLogger struct{}

func (cronLogger) Info(string, ...interface{}) {}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append([]interface{}{"err", err}, keysAndValues...)...)
}
