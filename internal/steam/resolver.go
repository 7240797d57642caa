package steam

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
)

const (
	// UnknownTitle is returned whenever a title cannot be determined.
	UnknownTitle = "UNKNOWN_GAME"

	// DefaultStoreURL is the Steam storefront API base.
	DefaultStoreURL = "https://store.steampowered.com"

	defaultLookupTimeout = 10 * time.Second
	maxResponseBytes     = 4 << 20
)

// builtinTitles names application ids that are not store apps.
var builtinTitles = map[uint64]string{
	7:   "Steam UI",
	753: "Steam",
}

// Resolver maps application ids to titles.
type Resolver struct {
	storeURL string
	client   *http.Client
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithStoreURL points the resolver at another storefront (tests use an
// httptest server).
func WithStoreURL(u string) Option {
	return func(r *Resolver) { r.storeURL = u }
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) { r.client = c }
}

// NewResolver creates a Resolver for the public Steam store.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		storeURL: DefaultStoreURL,
		client:   &http.Client{Timeout: defaultLookupTimeout},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the title for appID. It never fails.
func (r *Resolver) Resolve(ctx context.Context, appID uint64) string {
	if title, ok := builtinTitles[appID]; ok {
		return title
	}
	if appID == 0 {
		return UnknownTitle
	}

	title, err := r.lookup(ctx, appID)
	if err != nil {
		slog.Debug("steam: title lookup failed", "app_id", appID, "err", err)
		return UnknownTitle
	}
	return title
}

// lookup queries appdetails and extracts <id>.data.name.
func (r *Resolver) lookup(ctx context.Context, appID uint64) (string, error) {
	id := strconv.FormatUint(appID, 10)
	u := r.storeURL + "/api/appdetails?appids=" + url.QueryEscape(id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("malformed response body")
	}

	name := gjson.GetBytes(body, id+".data.name")
	if name.Type != gjson.String || name.String() == "" {
		return "", fmt.Errorf("no title for app %s", id)
	}
	return name.String(), nil
}
