package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"

	"github.com/deckshot/deckshot/internal/config"
	"github.com/deckshot/deckshot/internal/credentials"
	"github.com/deckshot/deckshot/internal/delivery"
	"github.com/deckshot/deckshot/internal/logging"
	"github.com/deckshot/deckshot/internal/queue"
	"github.com/deckshot/deckshot/internal/steam"
)

const usage = `usage: deckshot [-config FILE] [command]

commands:
  run      watch for screenshots and deliver them (default)
  auth     run the uploader's interactive authorization flow
  pending  list screenshots waiting for a retry
  check    audit the configuration and the uploader's TLS certificate
`

func main() {
	configPath := flag.String("config", config.DefaultPath(), "path to config file")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := logging.Setup(os.Stderr, config.DefaultLogLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cmd := "run"
	if flag.NArg() > 0 {
		cmd = flag.Arg(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "path", *configPath, "err", err)
		os.Exit(1)
	}
	if err := logging.SetLevel(cfg.LogLevel); err != nil {
		slog.Error("invalid log level", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch cmd {
	case "run":
		err = run(ctx, *configPath, cfg)
	case "auth":
		err = auth(ctx, cfg)
	case "pending":
		err = pending(ctx, cfg)
	case "check":
		err = check(ctx, *configPath, cfg)
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		slog.Error("deckshot: "+cmd+" failed", "err", err)
		cancel()
		os.Exit(1)
	}
}

// newBackend builds the configured uploader with the shared collaborators.
func newBackend(ctx context.Context, cfg *config.Config, titles *steam.Resolver, prompt *delivery.Prompt) (delivery.Backend, error) {
	return delivery.New(ctx, cfg.Uploader, delivery.Deps{
		Credentials: credentials.New(cfg.CredentialsDir()),
		Titles:      titles,
		Prompt:      prompt,
	})
}

func openQueue(cfg *config.Config) (*queue.Queue, error) {
	if err := os.MkdirAll(cfg.DataPath, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return queue.Open(cfg.DatabasePath(), queue.DefaultList)
}

func auth(ctx context.Context, cfg *config.Config) error {
	prompt := &delivery.Prompt{
		In:  os.Stdin,
		Out: os.Stdout,
		QR:  isatty.IsTerminal(os.Stdout.Fd()),
	}
	backend, err := newBackend(ctx, cfg, steam.NewResolver(), prompt)
	if err != nil {
		return err
	}

	if err := backend.Authorize(ctx); err != nil {
		if errors.Is(err, delivery.ErrUnsupported) {
			return fmt.Errorf("%s: %w", backend.Name(), err)
		}
		return fmt.Errorf("authorize %s: %w", backend.Name(), err)
	}

	fmt.Fprintf(os.Stdout, "%s authorized, credentials saved to %s\n", backend.Name(), cfg.CredentialsDir())
	return nil
}
