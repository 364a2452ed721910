package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os/exec"

	"github.com/disintegration/imaging"
)

// firstFrame decodes a single frame from the file at path using ffmpeg.
// Works for video containers (first frame) and HEIC/HEIF stills, neither of
// which has a pure-Go decoder.
func firstFrame(ctx context.Context, path string) (image.Image, error) {
	out, err := exec.CommandContext(ctx, "ffmpeg",
		"-i", path, "-frames:v", "1", "-f", "image2pipe", "-vcodec", "png",
		"pipe:1").Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg frame %q: %w", path, err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("decode ffmpeg frame %q: %w", path, err)
	}
	return img, nil
}

// ConvertHEIC decodes the HEIC/HEIF image at path fully into memory and
// re-encodes it as a browser-renderable JPEG at quality 90. The caller
// serves raw bytes instead when this fails.
func ConvertHEIC(ctx context.Context, path string) ([]byte, error) {
	img, err := firstFrame(ctx, path)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("encode jpeg %q: %w", path, err)
	}
	return buf.Bytes(), nil
}
