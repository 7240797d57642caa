package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/deckshot/deckshot/internal/config"
	"github.com/deckshot/deckshot/internal/screenshot"
)

// discordBackend posts each screenshot to a channel webhook.
type discordBackend struct {
	noAuthorize

	url      string
	username string
	titles   TitleResolver
	client   *http.Client
}

func newDiscord(cfg config.DiscordConfig, deps Deps) *discordBackend {
	return &discordBackend{
		url:      cfg.WebhookURL,
		username: cfg.Username,
		titles:   deps.Titles,
		client:   deps.httpClient(),
	}
}

func (*discordBackend) Name() string { return "Discord" }

func (d *discordBackend) Deliver(ctx context.Context, s screenshot.Screenshot) error {
	data, err := readScreenshot(s)
	if err != nil {
		return err
	}

	title := d.titles.Resolve(ctx, s.AppID)
	body, contentType, err := d.payload(title, s.FileName(), data)
	if err != nil {
		return fmt.Errorf("discord: build payload: %w", err)
	}

	if err := d.post(ctx, body, contentType); err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	return nil
}

// message is the text posted alongside the attachment.
func (d *discordBackend) message(title string) string {
	if d.username != "" {
		return fmt.Sprintf("%s took a new screenshot from %s", d.username, title)
	}
	return fmt.Sprintf("New screenshot from %s", title)
}

// payload builds the multipart body: payload_json plus files[0].
func (d *discordBackend) payload(title, fileName string, data []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	meta, _ := json.Marshal(map[string]string{"content": d.message(title)})
	if err := w.WriteField("payload_json", string(meta)); err != nil {
		return nil, "", err
	}

	part, err := w.CreateFormFile("files[0]", fileName)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func (d *discordBackend) post(ctx context.Context, body io.Reader, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
