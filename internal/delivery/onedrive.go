package delivery

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"golang.org/x/oauth2"

	"github.com/deckshot/deckshot/internal/config"
	"github.com/deckshot/deckshot/internal/screenshot"
)

const (
	onedriveAuthURL  = "https://login.microsoftonline.com/consumers/oauth2/v2.0/authorize"
	onedriveTokenURL = "https://login.microsoftonline.com/consumers/oauth2/v2.0/token"
	graphURL         = "https://graph.microsoft.com/v1.0"
	onedriveTokenKey = "onedrive-token"
)

// onedriveBackend uploads to /<folder>/<title>/<file> in the user's
// OneDrive. Graph creates missing parent folders on a path-based PUT.
type onedriveBackend struct {
	folder   string
	graphURL string
	tokens   *tokenManager
	titles   TitleResolver
	prompt   *Prompt
	client   *http.Client
}

func newOneDrive(cfg config.OneDriveConfig, deps Deps) *onedriveBackend {
	client := deps.httpClient()
	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       []string{"offline_access", "Files.ReadWrite"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   onedriveAuthURL,
			TokenURL:  onedriveTokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	return &onedriveBackend{
		folder:   cfg.Folder,
		graphURL: graphURL,
		tokens:   newTokenManager(conf, deps.Credentials, onedriveTokenKey, client),
		titles:   deps.Titles,
		prompt:   deps.Prompt,
		client:   client,
	}
}

func (*onedriveBackend) Name() string { return "Microsoft OneDrive" }

func (o *onedriveBackend) Authorize(ctx context.Context) error {
	return o.tokens.Authorize(ctx, o.prompt, nil, nil)
}

func (o *onedriveBackend) Deliver(ctx context.Context, s screenshot.Screenshot) error {
	tok, err := o.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("onedrive: %w", err)
	}

	data, err := readScreenshot(s)
	if err != nil {
		return err
	}

	dest := path.Join(o.folder, s.RemoteName(o.titles.Resolve(ctx, s.AppID)))
	u := o.graphURL + "/me/drive/root:/" + escapePath(dest) + ":/content?@microsoft.graph.conflictBehavior=replace"

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("onedrive: build request: %w", err)
	}
	tok.SetAuthHeader(req)
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("onedrive: upload %s: %w", dest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("onedrive: upload %s: %w", dest, statusError(resp))
	}
	return nil
}

// escapePath escapes each segment of a slash-separated drive path.
func escapePath(p string) string {
	segs := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}
