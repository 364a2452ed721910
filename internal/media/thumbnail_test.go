package media

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFolderKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/mnt/photos", "_mnt_photos"},
		{"/mnt/my photos", "_mnt_my_photos"},
		{"C:\\Users\\me", "C_Users_me"},
		{"", "folder"},
	}
	for _, c := range cases {
		if got := FolderKey(c.in); got != c.want {
			t.Errorf("FolderKey(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestRelPathNeutralizesTraversal(t *testing.T) {
	th := &Thumbnailer{Dir: "/thumbs", Size: 256}
	rel := th.RelPath("/mnt/photos", "../../etc/passwd")
	if strings.Contains(rel, "..") {
		t.Errorf("RelPath leaked traversal segments: %q", rel)
	}
	if !strings.HasSuffix(rel, ".jpg") {
		t.Errorf("RelPath missing .jpg suffix: %q", rel)
	}
	if filepath.Dir(rel) != FolderKey("/mnt/photos") {
		t.Errorf("RelPath not rooted under folder key: %q", rel)
	}
}

func TestRelPathDistinctRoots(t *testing.T) {
	th := &Thumbnailer{Dir: "/thumbs", Size: 256}
	a := th.RelPath("/mnt/alpha", "pic.jpg")
	b := th.RelPath("/mnt/beta", "pic.jpg")
	if a == b {
		t.Errorf("same rel path for different roots: %q", a)
	}
}

func TestEnsureGeneratesAndCaches(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	writePNG(t, src, 300, 200)

	th := &Thumbnailer{Dir: filepath.Join(dir, "thumbs"), Size: 64}
	rel := th.RelPath(dir, "src.png")

	if !th.Ensure(context.Background(), src, rel, false) {
		t.Fatal("Ensure failed for a valid png")
	}
	dest := filepath.Join(th.Dir, rel)
	info, err := os.Stat(dest)
	if err != nil {
		t.Fatalf("thumbnail not written: %v", err)
	}

	// Pin both mtimes so a second Ensure can be proven a no-op.
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(src, past, past); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(dest, past, past); err != nil {
		t.Fatal(err)
	}
	if !th.Ensure(context.Background(), src, rel, false) {
		t.Fatal("Ensure failed on cached thumbnail")
	}
	info2, err := os.Stat(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !info2.ModTime().Equal(past) {
		t.Errorf("fresh thumbnail was regenerated: mtime %v", info2.ModTime())
	}
	_ = info
}

func TestEnsureRegeneratesStale(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	writePNG(t, src, 100, 100)

	th := &Thumbnailer{Dir: filepath.Join(dir, "thumbs"), Size: 32}
	rel := th.RelPath(dir, "src.png")
	if !th.Ensure(context.Background(), src, rel, false) {
		t.Fatal("initial Ensure failed")
	}

	// Thumbnail far in the past, source fresh: beyond the jitter tolerance.
	dest := filepath.Join(th.Dir, rel)
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(dest, past, past); err != nil {
		t.Fatal(err)
	}
	if !th.Ensure(context.Background(), src, rel, false) {
		t.Fatal("Ensure failed on stale thumbnail")
	}
	info, err := os.Stat(dest)
	if err != nil {
		t.Fatal(err)
	}
	if info.ModTime().Equal(past) {
		t.Error("stale thumbnail was not regenerated")
	}
}

func TestEnsureCorruptSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "bad.png")
	if err := os.WriteFile(src, []byte("this is not a png"), 0644); err != nil {
		t.Fatal(err)
	}

	th := &Thumbnailer{Dir: filepath.Join(dir, "thumbs"), Size: 64}
	rel := th.RelPath(dir, "bad.png")
	if th.Ensure(context.Background(), src, rel, false) {
		t.Error("Ensure must return false for a corrupt source")
	}
	if _, err := os.Stat(filepath.Join(th.Dir, rel)); !os.IsNotExist(err) {
		t.Error("no thumbnail file should exist for a corrupt source")
	}
}

func TestEnsureMissingSource(t *testing.T) {
	th := &Thumbnailer{Dir: t.TempDir(), Size: 64}
	if th.Ensure(context.Background(), "/nonexistent/src.png", "k/x.jpg", false) {
		t.Error("Ensure must return false for a missing source")
	}
}

// TestDecodeRoutesHEICThroughExternalDecoder verifies heic/heif sources take
// the ffmpeg first-frame path: no pure-Go HEIC decoder is registered, so the
// in-process path could never produce a thumbnail for them. The decode error
// for a missing file names the path taken.
func TestDecodeRoutesHEICThroughExternalDecoder(t *testing.T) {
	th := &Thumbnailer{Dir: t.TempDir(), Size: 64}

	for _, name := range []string{"pic.heic", "pic.heif"} {
		_, err := th.decode(context.Background(), "/nonexistent/"+name, false)
		if err == nil || !strings.Contains(err.Error(), "ffmpeg") {
			t.Errorf("%s decode not routed to ffmpeg: %v", name, err)
		}
	}

	_, err := th.decode(context.Background(), "/nonexistent/clip.mp4", true)
	if err == nil || !strings.Contains(err.Error(), "ffmpeg") {
		t.Errorf("video decode not routed to ffmpeg: %v", err)
	}

	_, err = th.decode(context.Background(), "/nonexistent/pic.png", false)
	if err == nil {
		t.Fatal("decode of a missing png should fail")
	}
	if strings.Contains(err.Error(), "ffmpeg") {
		t.Errorf("plain image decode should stay in-process: %v", err)
	}
}

// TestEnsureHEICGeneratesThumbnail runs the full heic pipeline when ffmpeg is
// available. The fixture carries png pixels under a .heic name; ffmpeg sniffs
// content, so it decodes regardless of the extension.
func TestEnsureHEICGeneratesThumbnail(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skipf("ffmpeg unavailable: %v", err)
	}

	dir := t.TempDir()
	src := filepath.Join(dir, "photo.heic")
	writePNG(t, src, 200, 150)

	th := &Thumbnailer{Dir: filepath.Join(dir, "thumbs"), Size: 64}
	rel := th.RelPath(dir, "photo.heic")
	if !th.Ensure(context.Background(), src, rel, false) {
		t.Fatal("Ensure failed for a heic source")
	}
	if _, err := os.Stat(filepath.Join(th.Dir, rel)); err != nil {
		t.Errorf("heic thumbnail not written: %v", err)
	}
}
