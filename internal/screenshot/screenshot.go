package screenshot

import (
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

// Extension is the file suffix Steam uses for screenshots.
const Extension = ".jpg"

// ThumbnailMarker appears in the path of every thumbnail copy.
const ThumbnailMarker = "thumbnail"

const screenshotsDir = "screenshots"

// Screenshot is a screenshot file identified by its path.
type Screenshot struct {
	Path  string
	AppID uint64
}

// New builds a Screenshot from path. AppID is 0 when the path does not
// follow the Steam layout.
func New(p string) Screenshot {
	return Screenshot{Path: p, AppID: appIDFromPath(p)}
}

// FileName returns the base name of the file.
func (s Screenshot) FileName() string {
	return filepath.Base(s.Path)
}

// RemoteName returns the destination name "<title>/<file>".
func (s Screenshot) RemoteName(title string) string {
	return path.Join(title, s.FileName())
}

// IsCandidate reports whether p names a full-size screenshot rather than
// a thumbnail or an unrelated file.
func IsCandidate(p string) bool {
	return strings.HasSuffix(p, Extension) && !strings.Contains(p, ThumbnailMarker)
}

func appIDFromPath(p string) uint64 {
	parts := strings.Split(filepath.ToSlash(filepath.Clean(p)), "/")
	for i := len(parts) - 2; i > 0; i-- {
		if parts[i] != screenshotsDir {
			continue
		}
		id, err := strconv.ParseUint(parts[i-1], 10, 64)
		if err != nil {
			return 0
		}
		return id
	}
	return 0
}
