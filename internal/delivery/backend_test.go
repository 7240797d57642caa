package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"google.golang.org/api/option"

	"github.com/deckshot/deckshot/internal/config"
	"github.com/deckshot/deckshot/internal/screenshot"
)

func TestNew_SelectsBackendByKind(t *testing.T) {
	tests := []struct {
		uploader config.Uploader
		wantName string
	}{
		{config.Uploader{Kind: config.KindNoop}, "noop"},
		{config.Uploader{Kind: config.KindS3, S3: config.S3Config{Endpoint: "http://127.0.0.1:9000", Bucket: "b"}}, "S3"},
		{config.Uploader{Kind: config.KindDropbox, Dropbox: config.DropboxConfig{ClientID: "c"}}, "Dropbox"},
		{config.Uploader{Kind: config.KindOneDrive, OneDrive: config.OneDriveConfig{ClientID: "c"}}, "Microsoft OneDrive"},
		{config.Uploader{Kind: config.KindDiscord, Discord: config.DiscordConfig{WebhookURL: "http://x"}}, "Discord"},
		{config.Uploader{Kind: config.KindImgur, Imgur: config.ImgurConfig{ClientID: "c"}}, "Imgur"},
	}
	for _, tc := range tests {
		t.Run(tc.uploader.Kind, func(t *testing.T) {
			b, err := New(context.Background(), tc.uploader, testDeps(t, nil))
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if b.Name() != tc.wantName {
				t.Errorf("Name(): got %q, want %q", b.Name(), tc.wantName)
			}
		})
	}
}

func TestNew_UnknownKind(t *testing.T) {
	if _, err := New(context.Background(), config.Uploader{Kind: "ftp"}, testDeps(t, nil)); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestNew_GDriveMissingKeyFile(t *testing.T) {
	cfg := config.Uploader{
		Kind:        config.KindGDrive,
		GoogleDrive: config.GDriveConfig{PrivateKeyFile: filepath.Join(t.TempDir(), "absent.json"), Folder: "f"},
	}
	if _, err := New(context.Background(), cfg, testDeps(t, nil)); err == nil {
		t.Fatal("expected error for missing private key file")
	}
}

func TestAuthorize_UnsupportedWithoutFlow(t *testing.T) {
	deps := testDeps(t, nil)
	backends := []Backend{
		newNoop(),
		newDiscord(config.DiscordConfig{WebhookURL: "http://x"}, deps),
	}
	for _, b := range backends {
		if err := b.Authorize(context.Background()); !errors.Is(err, ErrUnsupported) {
			t.Errorf("%s: Authorize() = %v, want ErrUnsupported", b.Name(), err)
		}
	}
}

func TestNoop_DeliverAlwaysSucceeds(t *testing.T) {
	// The file does not even have to exist.
	s := screenshot.New("/nowhere/730/screenshots/1.jpg")
	if err := newNoop().Deliver(context.Background(), s); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
}

func TestDiscord_Deliver(t *testing.T) {
	var (
		gotContent string
		gotFile    string
		gotName    string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var meta struct {
			Content string `json:"content"`
		}
		_ = json.Unmarshal([]byte(r.FormValue("payload_json")), &meta)
		gotContent = meta.Content

		f, hdr, err := r.FormFile("files[0]")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		gotFile, gotName = string(data), hdr.Filename
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b := newDiscord(config.DiscordConfig{WebhookURL: srv.URL, Username: "deck"}, testDeps(t, srv.Client()))
	if err := b.Deliver(context.Background(), writeShot(t)); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	if gotContent != "deck took a new screenshot from Counter-Strike 2" {
		t.Errorf("content: got %q", gotContent)
	}
	if gotName != "1.jpg" {
		t.Errorf("attachment name: got %q", gotName)
	}
	if gotFile != testImage {
		t.Errorf("attachment bytes differ")
	}
}

func TestDiscord_MessageWithoutUsername(t *testing.T) {
	b := newDiscord(config.DiscordConfig{WebhookURL: "http://x"}, testDeps(t, nil))
	if got := b.message("Hades"); got != "New screenshot from Hades" {
		t.Errorf("message: got %q", got)
	}
}

func TestDiscord_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	b := newDiscord(config.DiscordConfig{WebhookURL: srv.URL}, testDeps(t, srv.Client()))
	err := b.Deliver(context.Background(), writeShot(t))
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected HTTP 429 error, got %v", err)
	}
}

func TestDiscord_MissingFile(t *testing.T) {
	b := newDiscord(config.DiscordConfig{WebhookURL: "http://127.0.0.1:1"}, testDeps(t, nil))
	s := screenshot.New(filepath.Join(t.TempDir(), "730", "screenshots", "gone.jpg"))
	if err := b.Deliver(context.Background(), s); err == nil {
		t.Fatal("expected error for a missing file")
	}
}

func TestS3_Deliver(t *testing.T) {
	var (
		gotMethod string
		gotPath   string
		gotBody   string
		gotType   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath, gotType = r.Method, r.URL.Path, r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b, err := newS3(config.S3Config{
		Endpoint:        srv.URL,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "secret",
		Bucket:          "screenshots",
	}, testDeps(t, srv.Client()))
	if err != nil {
		t.Fatalf("newS3: %v", err)
	}

	if err := b.Deliver(context.Background(), writeShot(t)); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if gotMethod != http.MethodPut {
		t.Errorf("method: got %s", gotMethod)
	}
	if gotPath != "/screenshots/Counter-Strike 2/1.jpg" {
		t.Errorf("path: got %q", gotPath)
	}
	if gotType != "image/jpeg" {
		t.Errorf("content type: got %q", gotType)
	}
	if gotBody != testImage {
		t.Errorf("body differs from the file")
	}
}

func TestS3_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	b, err := newS3(config.S3Config{Endpoint: srv.URL, Bucket: "screenshots"}, testDeps(t, srv.Client()))
	if err != nil {
		t.Fatalf("newS3: %v", err)
	}
	if err := b.Deliver(context.Background(), writeShot(t)); err == nil {
		t.Fatal("expected error on HTTP 403")
	}
}

// fakeDrive answers the three Drive calls deckshot makes: folder search,
// folder creation and media upload.
type fakeDrive struct {
	mu       sync.Mutex
	queries  []string
	folders  int
	uploads  []string
	existing bool
}

func (f *fakeDrive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.URL.Query().Get("uploadType") != "":
		data, _ := io.ReadAll(r.Body)
		f.uploads = append(f.uploads, string(data))
		_, _ = io.WriteString(w, `{"id":"file-1"}`)
	case r.Method == http.MethodGet:
		f.queries = append(f.queries, r.URL.Query().Get("q"))
		if f.existing {
			_, _ = io.WriteString(w, `{"files":[{"id":"folder-existing"}]}`)
			return
		}
		_, _ = io.WriteString(w, `{"files":[]}`)
	case r.Method == http.MethodPost:
		f.folders++
		_, _ = io.WriteString(w, `{"id":"folder-1"}`)
	default:
		http.Error(w, "unexpected call", http.StatusBadRequest)
	}
}

func newTestGDrive(t *testing.T, fake *fakeDrive) *gdriveBackend {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	g, err := newGDrive(context.Background(),
		config.GDriveConfig{Folder: "parent-id"},
		testDeps(t, srv.Client()),
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("newGDrive: %v", err)
	}
	return g
}

func TestGDrive_DeliverCreatesGameFolder(t *testing.T) {
	fake := &fakeDrive{}
	g := newTestGDrive(t, fake)

	if err := g.Deliver(context.Background(), writeShot(t)); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	if len(fake.queries) != 1 || !strings.Contains(fake.queries[0], "name = 'Counter-Strike 2'") {
		t.Errorf("folder search: got %q", fake.queries)
	}
	if fake.folders != 1 {
		t.Errorf("folders created: got %d, want 1", fake.folders)
	}
	if len(fake.uploads) != 1 {
		t.Fatalf("uploads: got %d, want 1", len(fake.uploads))
	}
	if !strings.Contains(fake.uploads[0], "folder-1") || !strings.Contains(fake.uploads[0], testImage) {
		t.Errorf("upload body lacks the parent folder or the image bytes")
	}
}

func TestGDrive_DeliverReusesExistingFolder(t *testing.T) {
	fake := &fakeDrive{existing: true}
	g := newTestGDrive(t, fake)

	if err := g.Deliver(context.Background(), writeShot(t)); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if fake.folders != 0 {
		t.Errorf("folders created: got %d, want 0", fake.folders)
	}
	if len(fake.uploads) != 1 || !strings.Contains(fake.uploads[0], "folder-existing") {
		t.Errorf("upload did not target the existing folder")
	}
}

func TestFolderQuery_Escapes(t *testing.T) {
	got := folderQuery("root", `Baldur's Gate \ 3`)
	want := `mimeType = 'application/vnd.google-apps.folder' and 'root' in parents and name = 'Baldur\'s Gate \\ 3' and trashed = false`
	if got != want {
		t.Errorf("folderQuery:\n got %s\nwant %s", got, want)
	}
}
