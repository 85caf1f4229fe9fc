package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// mediaServer serves one fixed blob with Range support and an ETag.
func mediaServer(t *testing.T, content []byte, etag string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var rangeRequests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") != "" {
			rangeRequests.Add(1)
		}
		if etag != "" {
			w.Header().Set("ETag", etag)
		}
		http.ServeContent(w, r, "episode.mp3", time.Unix(1700000000, 0), bytes.NewReader(content))
	}))
	t.Cleanup(srv.Close)
	return srv, &rangeRequests
}

func TestDownloadFresh(t *testing.T) {
	content := bytes.Repeat([]byte("0123456789"), 100)
	srv, _ := mediaServer(t, content, `"v1"`)

	partial := filepath.Join(t.TempDir(), "ep.mp3.partial")
	c := NewClient()

	var lastWritten, lastTotal int64
	err := c.DownloadResume(context.Background(), srv.URL, partial, func(written, total int64) {
		lastWritten, lastTotal = written, total
	})
	if err != nil {
		t.Fatalf("DownloadResume failed: %v", err)
	}

	got, _ := os.ReadFile(partial)
	if !bytes.Equal(got, content) {
		t.Errorf("content mismatch: got %d bytes, want %d", len(got), len(content))
	}
	if lastWritten != int64(len(content)) || lastTotal != int64(len(content)) {
		t.Errorf("progress = (%d, %d), want (%d, %d)", lastWritten, lastTotal, len(content), len(content))
	}

	sidecar, err := os.ReadFile(SidecarPath(partial))
	if err != nil {
		t.Fatalf("sidecar not written: %v", err)
	}
	if string(sidecar) != `"v1"` {
		t.Errorf("sidecar = %q, want recorded ETag", sidecar)
	}
}

func TestDownloadResumesValidatedPartial(t *testing.T) {
	content := bytes.Repeat([]byte("abcdefghij"), 100)
	srv, rangeRequests := mediaServer(t, content, `"v1"`)

	partial := filepath.Join(t.TempDir(), "ep.mp3.partial")
	if err := os.WriteFile(partial, content[:300], 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(SidecarPath(partial), []byte(`"v1"`), 0644); err != nil {
		t.Fatal(err)
	}

	err := NewClient().DownloadResume(context.Background(), srv.URL, partial, nil)
	if err != nil {
		t.Fatalf("DownloadResume failed: %v", err)
	}

	got, _ := os.ReadFile(partial)
	if !bytes.Equal(got, content) {
		t.Errorf("resumed file differs from an uninterrupted download")
	}
	if rangeRequests.Load() == 0 {
		t.Error("expected a Range request for the validated partial")
	}
}

func TestDownloadRestartsOnValidatorMismatch(t *testing.T) {
	content := bytes.Repeat([]byte("abcdefghij"), 100)
	srv, rangeRequests := mediaServer(t, content, `"v2"`)

	partial := filepath.Join(t.TempDir(), "ep.mp3.partial")
	// Stale prefix from a previous version of the resource.
	if err := os.WriteFile(partial, []byte(strings.Repeat("x", 300)), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(SidecarPath(partial), []byte(`"v1"`), 0644); err != nil {
		t.Fatal(err)
	}

	err := NewClient().DownloadResume(context.Background(), srv.URL, partial, nil)
	if err != nil {
		t.Fatalf("DownloadResume failed: %v", err)
	}

	got, _ := os.ReadFile(partial)
	if !bytes.Equal(got, content) {
		t.Error("mismatched validator must restart, not splice")
	}
	if rangeRequests.Load() != 0 {
		t.Error("no Range request should be sent after a validator mismatch")
	}
}

func TestDownloadRestartsWithoutSidecar(t *testing.T) {
	content := bytes.Repeat([]byte("abcdefghij"), 50)
	srv, rangeRequests := mediaServer(t, content, `"v1"`)

	partial := filepath.Join(t.TempDir(), "ep.mp3.partial")
	if err := os.WriteFile(partial, []byte("unverifiable prefix"), 0644); err != nil {
		t.Fatal(err)
	}

	err := NewClient().DownloadResume(context.Background(), srv.URL, partial, nil)
	if err != nil {
		t.Fatalf("DownloadResume failed: %v", err)
	}

	got, _ := os.ReadFile(partial)
	if !bytes.Equal(got, content) {
		t.Error("unverifiable partial must restart from zero")
	}
	if rangeRequests.Load() != 0 {
		t.Error("no Range request should be sent without a validator")
	}
}

func TestStat(t *testing.T) {
	content := []byte("0123456789")
	srv, _ := mediaServer(t, content, `"v1"`)

	res, err := NewClient().Stat(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if res.Size != int64(len(content)) {
		t.Errorf("Size = %d, want %d", res.Size, len(content))
	}
	if res.ETag != `"v1"` {
		t.Errorf("ETag = %q", res.ETag)
	}
	if !res.AcceptRanges {
		t.Error("ServeContent advertises byte ranges")
	}
}

func TestDownloadHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	partial := filepath.Join(t.TempDir(), "ep.mp3.partial")
	err := NewClient().DownloadResume(context.Background(), srv.URL, partial, nil)
	if err == nil {
		t.Fatal("expected error for HTTP 404")
	}
	if _, statErr := os.Stat(partial); !os.IsNotExist(statErr) {
		t.Error("no partial file should be created for an immediate HTTP error")
	}
}
