package media

import (
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// exifTimeLayouts are the accepted timestamp formats, tried in order. The
// first is the EXIF standard layout; the rest absorb writers that emit
// ISO-8601 or plain dash-separated timestamps.
var exifTimeLayouts = []string{
	"2006:01:02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// OriginalTime extracts the capture instant from an image's EXIF block,
// preferring DateTimeOriginal and falling back to DateTimeDigitized.
// Returns nil on any decode or parse failure — callers fall back to
// filesystem timestamps themselves; this never approximates from mtime.
func OriginalTime(path string) *time.Time {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return nil
	}

	for _, field := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTimeDigitized} {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}
		s, err := tag.StringVal()
		if err != nil {
			continue
		}
		if t := parseMetaTime(s); t != nil {
			return t
		}
	}
	return nil
}

// parseMetaTime parses a metadata timestamp string against the accepted
// layouts. Returns nil when no layout matches.
func parseMetaTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range exifTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
