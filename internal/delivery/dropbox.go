package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/oauth2"

	"github.com/deckshot/deckshot/internal/config"
	"github.com/deckshot/deckshot/internal/screenshot"
)

const (
	dropboxAuthURL    = "https://www.dropbox.com/oauth2/authorize"
	dropboxTokenURL   = "https://api.dropboxapi.com/oauth2/token"
	dropboxContentURL = "https://content.dropboxapi.com"
	dropboxTokenKey   = "dropbox-token"
)

// dropboxBackend uploads to /<folder>/<title>/<file> in the user's Dropbox.
type dropboxBackend struct {
	folder     string
	contentURL string
	tokens     *tokenManager
	titles     TitleResolver
	prompt     *Prompt
	client     *http.Client
}

func newDropbox(cfg config.DropboxConfig, deps Deps) *dropboxBackend {
	client := deps.httpClient()
	conf := &oauth2.Config{
		ClientID: cfg.ClientID,
		Endpoint: oauth2.Endpoint{
			AuthURL:   dropboxAuthURL,
			TokenURL:  dropboxTokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	return &dropboxBackend{
		folder:     cfg.Folder,
		contentURL: dropboxContentURL,
		tokens:     newTokenManager(conf, deps.Credentials, dropboxTokenKey, client),
		titles:     deps.Titles,
		prompt:     deps.Prompt,
		client:     client,
	}
}

func (*dropboxBackend) Name() string { return "Dropbox" }

// Authorize runs the PKCE flow; offline access yields a refresh token.
func (d *dropboxBackend) Authorize(ctx context.Context) error {
	verifier := oauth2.GenerateVerifier()
	return d.tokens.Authorize(ctx, d.prompt,
		[]oauth2.AuthCodeOption{
			oauth2.S256ChallengeOption(verifier),
			oauth2.SetAuthURLParam("token_access_type", "offline"),
		},
		[]oauth2.AuthCodeOption{oauth2.VerifierOption(verifier)},
	)
}

func (d *dropboxBackend) Deliver(ctx context.Context, s screenshot.Screenshot) error {
	tok, err := d.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("dropbox: %w", err)
	}

	data, err := readScreenshot(s)
	if err != nil {
		return err
	}

	dest := "/" + path.Join(d.folder, s.RemoteName(d.titles.Resolve(ctx, s.AppID)))
	arg, err := dropboxAPIArg(map[string]any{
		"path":       dest,
		"mode":       "add",
		"autorename": true,
	})
	if err != nil {
		return fmt.Errorf("dropbox: encode arg: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.contentURL+"/2/files/upload", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("dropbox: build request: %w", err)
	}
	tok.SetAuthHeader(req)
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Dropbox-API-Arg", arg)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("dropbox: upload %s: %w", dest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("dropbox: upload %s: %w", dest, statusError(resp))
	}
	return nil
}

// dropboxAPIArg JSON-encodes v for the Dropbox-API-Arg header, which must
// be ASCII: every non-ASCII rune is written as a \uXXXX escape.
func dropboxAPIArg(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, r := range string(raw) {
		if r < utf8.RuneSelf {
			b.WriteRune(r)
			continue
		}
		if r > 0xFFFF {
			r1, r2 := utf16.EncodeRune(r)
			fmt.Fprintf(&b, `\u%04x\u%04x`, r1, r2)
			continue
		}
		fmt.Fprintf(&b, `\u%04x`, r)
	}
	return b.String(), nil
}
