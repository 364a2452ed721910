// Package media classifies files by extension and extracts best-effort
// capture metadata and thumbnails from images and videos.
package media

import (
	"mime"
	"path/filepath"
	"strings"
)

// Category groups a file for browsing. Classification is a pure function of
// the (lowercased) extension.
type Category string

const (
	CategoryImages    Category = "images"
	CategoryVideo     Category = "video"
	CategoryDocuments Category = "documents"
	CategoryText      Category = "text"
	CategoryAudio     Category = "audio"
	CategoryOthers    Category = "others"
)

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".webp": true, ".heic": true, ".heif": true,
	".tiff": true,
}

var videoExts = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".webm": true,
}

var documentExts = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".ppt": true,
	".pptx": true, ".xlsx": true, ".xls": true,
}

var textExts = map[string]bool{
	".txt": true, ".md": true, ".csv": true, ".log": true,
	".json": true, ".xml": true,
}

var audioExts = map[string]bool{
	".mp3": true, ".wav": true, ".flac": true, ".m4a": true, ".aac": true,
}

// Classify maps an extension (with leading dot, any case) to its Category.
// Unknown extensions map to CategoryOthers.
func Classify(ext string) Category {
	switch ext = strings.ToLower(ext); {
	case imageExts[ext]:
		return CategoryImages
	case videoExts[ext]:
		return CategoryVideo
	case documentExts[ext]:
		return CategoryDocuments
	case textExts[ext]:
		return CategoryText
	case audioExts[ext]:
		return CategoryAudio
	default:
		return CategoryOthers
	}
}

// IsHEIC reports whether path is a HEIC/HEIF image, which browsers cannot
// render and the media endpoint transcodes on the fly.
func IsHEIC(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".heic" || ext == ".heif"
}

// ContentType returns the MIME content type for path based on its extension.
// ".mov" maps to video/quicktime when the platform table has no entry;
// anything else unknown falls back to application/octet-stream.
func ContentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	if ext == ".mov" {
		return "video/quicktime"
	}
	return "application/octet-stream"
}
