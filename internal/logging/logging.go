package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Level is shared by every handler built here so a config reload can
// change verbosity without replacing the logger.
var Level = new(slog.LevelVar)

// Setup installs the default slog logger writing to w. Terminals get the
// text handler, everything else (journald, redirected output) gets JSON.
func Setup(w io.Writer, level string) error {
	if err := SetLevel(level); err != nil {
		return err
	}

	opts := &slog.HandlerOptions{Level: Level}

	var h slog.Handler
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

// SetLevel parses level (debug|info|warn|error) and applies it.
func SetLevel(level string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	Level.Set(l)
	return nil
}
