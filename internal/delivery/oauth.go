package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/deckshot/deckshot/internal/credentials"
)

// tokenManager owns the OAuth2 token of one destination.
//
// The token (access, refresh, expiry) is stored as JSON under a single
// credential key. Token refreshes it when expired and persists the result
// before returning, all under mu.
type tokenManager struct {
	mu     sync.Mutex
	conf   *oauth2.Config
	store  *credentials.Store
	key    string
	client *http.Client
}

func newTokenManager(conf *oauth2.Config, store *credentials.Store, key string, client *http.Client) *tokenManager {
	return &tokenManager{conf: conf, store: store, key: key, client: client}
}

// withClient makes the oauth2 package use our HTTP client for token calls.
func (m *tokenManager) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, m.client)
}

// Token returns a valid token, refreshing it first if it has expired.
func (m *tokenManager) Token(ctx context.Context) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tok, err := m.load()
	if err != nil {
		return nil, err
	}
	if tok.Valid() {
		return tok, nil
	}
	if tok.RefreshToken == "" {
		return nil, fmt.Errorf("%s expired without a refresh token: %w", m.key, credentials.ErrNotAuthorized)
	}

	fresh, err := m.conf.TokenSource(m.withClient(ctx), tok).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh %s: %w", m.key, err)
	}
	if err := m.save(fresh); err != nil {
		return nil, err
	}

	slog.Info("oauth: token refreshed", "key", m.key, "expiry", fresh.Expiry)
	return fresh, nil
}

// Authorize runs the authorization code flow through p and stores the
// resulting token.
func (m *tokenManager) Authorize(ctx context.Context, p *Prompt, authOpts, exchangeOpts []oauth2.AuthCodeOption) error {
	authURL := m.conf.AuthCodeURL(uuid.NewString(), authOpts...)

	code, err := p.AuthorizationCode(authURL)
	if err != nil {
		return err
	}

	tok, err := m.conf.Exchange(m.withClient(ctx), code, exchangeOpts...)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	if tok.RefreshToken == "" {
		slog.Warn("oauth: provider returned no refresh token, re-run auth when the token expires", "key", m.key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(tok)
}

func (m *tokenManager) load() (*oauth2.Token, error) {
	raw, err := m.store.Load(m.key)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		return nil, fmt.Errorf("decode %s: %w", m.key, err)
	}
	return &tok, nil
}

func (m *tokenManager) save(tok *oauth2.Token) error {
	raw, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode %s: %w", m.key, err)
	}
	return m.store.Save(m.key, string(raw))
}
