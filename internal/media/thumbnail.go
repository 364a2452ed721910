package media

import (
	"context"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	_ "golang.org/x/image/webp"
)

// staleTolerance absorbs filesystem timestamp jitter so that a
// touch-without-modify does not force a thumbnail regeneration.
const staleTolerance = 100 * time.Millisecond

var (
	folderKeySeps  = regexp.MustCompile(`[:\s\\/]+`)
	folderKeyStrip = regexp.MustCompile(`[^A-Za-z0-9_\-.]`)
)

// FolderKey derives a filesystem-safe key from a root folder's absolute
// path. Two roots never collide in the thumbnail tree because the full path,
// not just the base name, is encoded into the key.
func FolderKey(root string) string {
	key := strings.ReplaceAll(root, string(os.PathSeparator), "_")
	key = folderKeySeps.ReplaceAllString(key, "_")
	key = folderKeyStrip.ReplaceAllString(key, "")
	if key == "" {
		key = "folder"
	}
	return key
}

// Thumbnailer generates and caches crop-to-fill JPEG thumbnails under Dir.
type Thumbnailer struct {
	Dir  string
	Size int
}

// RelPath returns the thumbnail path for a file, relative to Dir. Path
// separators and ".." segments in relPath are flattened to underscores so a
// crafted file name cannot escape the thumbnail tree.
func (t *Thumbnailer) RelPath(root, relPath string) string {
	safe := strings.ReplaceAll(relPath, string(os.PathSeparator), "_")
	safe = strings.ReplaceAll(safe, "/", "_")
	safe = strings.ReplaceAll(safe, "..", "_")
	return filepath.Join(FolderKey(root), safe+".jpg")
}

// Ensure generates the thumbnail at thumbRel for srcPath unless a fresh one
// already exists. A thumbnail is stale when the source mtime is more than
// staleTolerance past the thumbnail mtime. Returns false on any decode or
// encode failure; the caller indexes the file with a null thumbnail instead
// of failing.
func (t *Thumbnailer) Ensure(ctx context.Context, srcPath, thumbRel string, isVideo bool) bool {
	srcInfo, err := os.Stat(srcPath)
	if err != nil {
		return false
	}

	dest := filepath.Join(t.Dir, thumbRel)
	if destInfo, err := os.Stat(dest); err == nil {
		if !srcInfo.ModTime().After(destInfo.ModTime().Add(staleTolerance)) {
			return true
		}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		slog.Warn("thumbnail dir", "path", dest, "error", err)
		return false
	}

	img, err := t.decode(ctx, srcPath, isVideo)
	if err != nil {
		slog.Debug("thumbnail decode", "path", srcPath, "error", err)
		return false
	}

	thumb := imaging.Fill(img, t.Size, t.Size, imaging.Center, imaging.Lanczos)
	if err := imaging.Save(thumb, dest, imaging.JPEGQuality(85)); err != nil {
		slog.Debug("thumbnail save", "path", dest, "error", err)
		return false
	}
	return true
}

// decode loads the source pixels: a full decode with auto-orientation for
// images, or the container's first frame for videos and HEIC/HEIF stills,
// which have no registered pure-Go decoder.
func (t *Thumbnailer) decode(ctx context.Context, srcPath string, isVideo bool) (image.Image, error) {
	if isVideo || IsHEIC(srcPath) {
		return firstFrame(ctx, srcPath)
	}
	return imaging.Open(srcPath, imaging.AutoOrientation(true))
}
