package delivery

import (
	"context"
	"log/slog"

	"github.com/deckshot/deckshot/internal/screenshot"
)

// noopBackend accepts every screenshot without sending it anywhere.
type noopBackend struct {
	noAuthorize
}

func newNoop() *noopBackend { return &noopBackend{} }

func (*noopBackend) Name() string { return "noop" }

func (*noopBackend) Deliver(_ context.Context, s screenshot.Screenshot) error {
	slog.Debug("noop: discarding screenshot", "path", s.Path, "app_id", s.AppID)
	return nil
}
