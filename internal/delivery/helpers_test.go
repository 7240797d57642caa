package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/deckshot/deckshot/internal/credentials"
	"github.com/deckshot/deckshot/internal/screenshot"
)

const testImage = "\xff\xd8\xff\xe0fake-jpeg-bytes"

// staticTitles resolves every id to the same title.
type staticTitles string

func (s staticTitles) Resolve(context.Context, uint64) string { return string(s) }

// writeShot creates <tmp>/730/screenshots/1.jpg and returns it.
func writeShot(t *testing.T) screenshot.Screenshot {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "730", "screenshots")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(dir, "1.jpg")
	if err := os.WriteFile(p, []byte(testImage), 0o644); err != nil {
		t.Fatal(err)
	}
	return screenshot.New(p)
}

func testDeps(t *testing.T, client *http.Client) Deps {
	t.Helper()
	return Deps{
		Credentials: credentials.New(filepath.Join(t.TempDir(), "credentials")),
		Titles:      staticTitles("Counter-Strike 2"),
		HTTPClient:  client,
	}
}

// seedToken stores tok under key as the authorization flow would.
func seedToken(t *testing.T, st *credentials.Store, key string, tok *oauth2.Token) {
	t.Helper()
	raw, err := json.Marshal(tok)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Save(key, string(raw)); err != nil {
		t.Fatal(err)
	}
}

func loadToken(t *testing.T, st *credentials.Store, key string) *oauth2.Token {
	t.Helper()
	raw, err := st.Load(key)
	if err != nil {
		t.Fatalf("load %s: %v", key, err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		t.Fatalf("decode %s: %v", key, err)
	}
	return &tok
}

func validToken(access string) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  access,
		TokenType:    "Bearer",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(time.Hour),
	}
}

func expiredToken(access string) *oauth2.Token {
	tok := validToken(access)
	tok.Expiry = time.Now().Add(-time.Hour)
	return tok
}

// writeTokenResponse answers an OAuth2 token request.
func writeTokenResponse(w http.ResponseWriter, access, refresh string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "bearer",
		"expires_in":    3600,
	})
}
