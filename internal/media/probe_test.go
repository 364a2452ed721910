package media

import (
	"context"
	"testing"
	"time"
)

func TestParseProbeOutputCreationTime(t *testing.T) {
	out := []byte(`{"format":{"tags":{"creation_time":"2021-05-01T10:00:00.000000Z"}}}`)
	got := parseProbeOutput(out)
	want := time.Date(2021, 5, 1, 10, 0, 0, 0, time.UTC)
	if got == nil || !got.Equal(want) {
		t.Fatalf("parseProbeOutput = %v, want %v", got, want)
	}
}

func TestParseProbeOutputQuicktimeTag(t *testing.T) {
	out := []byte(`{"format":{"tags":{"com.apple.quicktime.creationdate":"2020-12-24T18:30:00"}}}`)
	got := parseProbeOutput(out)
	want := time.Date(2020, 12, 24, 18, 30, 0, 0, time.UTC)
	if got == nil || !got.Equal(want) {
		t.Fatalf("parseProbeOutput = %v, want %v", got, want)
	}
}

func TestParseProbeOutputDegradesToNil(t *testing.T) {
	cases := [][]byte{
		[]byte(`not json`),
		[]byte(`{}`),
		[]byte(`{"format":{}}`),
		[]byte(`{"format":{"tags":{"creation_time":"garbage"}}}`),
	}
	for _, out := range cases {
		if got := parseProbeOutput(out); got != nil {
			t.Errorf("parseProbeOutput(%s) = %v, want nil", out, got)
		}
	}
}

func TestProberMissingBinary(t *testing.T) {
	p := &Prober{binary: "/nonexistent/ffprobe", timeout: time.Second}
	if got := p.CreationTime(context.Background(), "/tmp/clip.mp4"); got != nil {
		t.Errorf("CreationTime with missing binary = %v, want nil", got)
	}
}
