package media

import (
	"context"
	"encoding/json"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// DefaultProbeTimeout bounds a single ffprobe invocation.
const DefaultProbeTimeout = 6 * time.Second

// Prober extracts container creation times from video files by shelling out
// to ffprobe. The zero value is not usable; call NewProber.
type Prober struct {
	binary  string
	timeout time.Duration
}

// NewProber returns a Prober using the ffprobe binary on PATH.
func NewProber() *Prober {
	return &Prober{binary: "ffprobe", timeout: DefaultProbeTimeout}
}

// probeFormat mirrors the subset of ffprobe's -show_format JSON we read.
type probeFormat struct {
	Format struct {
		Tags map[string]string `json:"tags"`
	} `json:"format"`
}

// CreationTime returns the container creation time of the video at path, or
// nil. Timeout, non-zero exit, and malformed output all degrade to nil.
func (p *Prober) CreationTime(ctx context.Context, path string) *time.Time {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, p.binary,
		"-v", "quiet", "-print_format", "json", "-show_format", path).Output()
	if err != nil {
		slog.Debug("ffprobe failed", "path", path, "error", err)
		return nil
	}
	return parseProbeOutput(out)
}

// parseProbeOutput extracts a creation timestamp from ffprobe JSON, reading
// the standard creation_time tag first and the QuickTime vendor tag second.
func parseProbeOutput(out []byte) *time.Time {
	var pf probeFormat
	if err := json.Unmarshal(out, &pf); err != nil {
		return nil
	}

	for _, key := range []string{"creation_time", "com.apple.quicktime.creationdate"} {
		raw, ok := pf.Format.Tags[key]
		if !ok {
			continue
		}
		if t := parseProbeTime(raw); t != nil {
			return t
		}
	}
	return nil
}

// parseProbeTime parses an ffprobe timestamp such as
// "2021-05-01T10:00:00.000000Z". The UTC Z suffix is stripped before trying
// ISO-8601 layouts, then the plain dash layout as a fallback.
func parseProbeTime(s string) *time.Time {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "Z"))
	layouts := []string{
		"2006-01-02T15:04:05.999999",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04:05-0700",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
