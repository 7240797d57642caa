package delivery

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/deckshot/deckshot/internal/config"
	"github.com/deckshot/deckshot/internal/screenshot"
)

const (
	imgurAPIURL   = "https://api.imgur.com"
	imgurTokenKey = "imgur-token"
)

// imgurBackend uploads each screenshot to the authorized Imgur account.
type imgurBackend struct {
	apiURL string
	tokens *tokenManager
	titles TitleResolver
	prompt *Prompt
	client *http.Client
}

func newImgur(cfg config.ImgurConfig, deps Deps) *imgurBackend {
	client := deps.httpClient()
	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:   imgurAPIURL + "/oauth2/authorize",
			TokenURL:  imgurAPIURL + "/oauth2/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	return &imgurBackend{
		apiURL: imgurAPIURL,
		tokens: newTokenManager(conf, deps.Credentials, imgurTokenKey, client),
		titles: deps.Titles,
		prompt: deps.Prompt,
		client: client,
	}
}

func (*imgurBackend) Name() string { return "Imgur" }

func (i *imgurBackend) Authorize(ctx context.Context) error {
	return i.tokens.Authorize(ctx, i.prompt, nil, nil)
}

func (i *imgurBackend) Deliver(ctx context.Context, s screenshot.Screenshot) error {
	tok, err := i.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("imgur: %w", err)
	}

	data, err := readScreenshot(s)
	if err != nil {
		return err
	}

	name := fmt.Sprintf("%s - %s", i.titles.Resolve(ctx, s.AppID), s.FileName())

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	_ = w.WriteField("type", "file")
	_ = w.WriteField("name", name)
	_ = w.WriteField("title", name)
	part, err := w.CreateFormFile("image", s.FileName())
	if err != nil {
		return fmt.Errorf("imgur: build payload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("imgur: build payload: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("imgur: build payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.apiURL+"/3/upload", &body)
	if err != nil {
		return fmt.Errorf("imgur: build request: %w", err)
	}
	tok.SetAuthHeader(req)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := i.client.Do(req)
	if err != nil {
		return fmt.Errorf("imgur: upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("imgur: upload: %w", statusError(resp))
	}
	return nil
}
