package delivery

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/deckshot/deckshot/internal/config"
	"github.com/deckshot/deckshot/internal/screenshot"
)

const folderMimeType = "application/vnd.google-apps.folder"

// gdriveBackend uploads into <folder>/<title>/<file> on Google Drive using
// a service account, so it needs no interactive authorization.
type gdriveBackend struct {
	noAuthorize

	files  *drive.FilesService
	parent string
	titles TitleResolver

	// folderMu serializes lookup-or-create so two concurrent deliveries for
	// the same title do not create duplicate folders.
	folderMu sync.Mutex
}

func newGDrive(ctx context.Context, cfg config.GDriveConfig, deps Deps, opts ...option.ClientOption) (*gdriveBackend, error) {
	if len(opts) == 0 {
		if _, err := os.Stat(cfg.PrivateKeyFile); err != nil {
			return nil, fmt.Errorf("gdrive: private key file: %w", err)
		}
		opts = []option.ClientOption{
			option.WithCredentialsFile(cfg.PrivateKeyFile),
			option.WithScopes(drive.DriveScope),
		}
	}

	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gdrive: create service: %w", err)
	}

	return &gdriveBackend{files: svc.Files, parent: cfg.Folder, titles: deps.Titles}, nil
}

func (*gdriveBackend) Name() string { return "Google Drive" }

func (g *gdriveBackend) Deliver(ctx context.Context, s screenshot.Screenshot) error {
	title := g.titles.Resolve(ctx, s.AppID)

	folderID, err := g.folder(ctx, title)
	if err != nil {
		return err
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return fmt.Errorf("gdrive: open screenshot: %w", err)
	}
	defer f.Close()

	remote := &drive.File{Name: s.FileName(), Parents: []string{folderID}}
	_, err = g.files.Create(remote).
		Media(f, googleapi.ContentType("image/jpeg")).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("gdrive: upload file: %w", err)
	}
	return nil
}

// folder returns the ID of the per-title folder, creating it if absent.
func (g *gdriveBackend) folder(ctx context.Context, title string) (string, error) {
	g.folderMu.Lock()
	defer g.folderMu.Unlock()

	list, err := g.files.List().
		Q(folderQuery(g.parent, title)).
		Fields("files(id)").
		PageSize(1).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("gdrive: find game folder: %w", err)
	}
	if len(list.Files) > 0 {
		return list.Files[0].Id, nil
	}

	created, err := g.files.Create(&drive.File{
		Name:     title,
		Parents:  []string{g.parent},
		MimeType: folderMimeType,
	}).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("gdrive: create game folder: %w", err)
	}
	return created.Id, nil
}

// folderQuery builds the Drive search expression for a child folder.
func folderQuery(parent, name string) string {
	return fmt.Sprintf("mimeType = '%s' and '%s' in parents and name = '%s' and trashed = false",
		folderMimeType, escapeQuery(parent), escapeQuery(name))
}

var queryEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func escapeQuery(s string) string { return queryEscaper.Replace(s) }
