package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/deckshot/deckshot/internal/config"
	"github.com/deckshot/deckshot/internal/credentials"
	"github.com/deckshot/deckshot/internal/screenshot"
)

const defaultHTTPTimeout = 60 * time.Second

// ErrUnsupported is returned by Authorize on destinations that have no
// interactive authorization step.
var ErrUnsupported = errors.New("authorization is not supported by this uploader")

// Backend delivers screenshots to one destination.
type Backend interface {
	// Name is a human-readable destination name used in logs.
	Name() string

	// Deliver transmits the screenshot file. Any error means the
	// screenshot should be retried later.
	Deliver(ctx context.Context, s screenshot.Screenshot) error

	// Authorize runs the interactive authorization flow and stores the
	// resulting credentials.
	Authorize(ctx context.Context) error
}

// TitleResolver names the application a screenshot was taken in.
type TitleResolver interface {
	Resolve(ctx context.Context, appID uint64) string
}

// Deps are the collaborators shared by every destination.
type Deps struct {
	Credentials *credentials.Store
	Titles      TitleResolver
	Prompt      *Prompt

	// HTTPClient is used for every outgoing call. Nil means a client with
	// a 60s timeout.
	HTTPClient *http.Client
}

func (d Deps) httpClient() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return &http.Client{Timeout: defaultHTTPTimeout}
}

// New returns the Backend selected by cfg.Kind.
func New(ctx context.Context, cfg config.Uploader, deps Deps) (Backend, error) {
	switch cfg.Kind {
	case config.KindNoop:
		return newNoop(), nil
	case config.KindS3:
		return newS3(cfg.S3, deps)
	case config.KindGDrive:
		return newGDrive(ctx, cfg.GoogleDrive, deps)
	case config.KindDropbox:
		return newDropbox(cfg.Dropbox, deps), nil
	case config.KindOneDrive:
		return newOneDrive(cfg.OneDrive, deps), nil
	case config.KindDiscord:
		return newDiscord(cfg.Discord, deps), nil
	case config.KindImgur:
		return newImgur(cfg.Imgur, deps), nil
	default:
		return nil, fmt.Errorf("delivery: unsupported uploader kind %q", cfg.Kind)
	}
}

// noAuthorize is embedded by destinations without an authorization flow.
type noAuthorize struct{}

func (noAuthorize) Authorize(context.Context) error { return ErrUnsupported }

// readScreenshot loads the whole file. Screenshots are a few MB at most.
func readScreenshot(s screenshot.Screenshot) ([]byte, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read screenshot: %w", err)
	}
	return data, nil
}
