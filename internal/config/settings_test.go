package config

import (
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/castpull/castpull/internal/pattern"
)

func TestResolveDefaults(t *testing.T) {
	p, err := Resolve("show", Raw{}, Raw{"url": "https://example.com/feed"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if p.URL != "https://example.com/feed" {
		t.Errorf("URL = %q", p.URL)
	}
	if p.DownloadPath.String() != DefaultDownloadPath {
		t.Errorf("DownloadPath = %q, want built-in default", p.DownloadPath.String())
	}
	if p.IDPattern.String() != DefaultIDPattern {
		t.Errorf("IDPattern = %q, want built-in default", p.IDPattern.String())
	}
	if p.MaxDays != 0 || p.MaxEpisodes != 0 {
		t.Error("optional settings should be zero when unset")
	}
	if p.DownloadHook != "" {
		t.Errorf("DownloadHook = %q, want empty", p.DownloadHook)
	}
}

func TestResolveOverrideBeatsGlobal(t *testing.T) {
	global := Raw{"max_days": int64(30), "id_pattern": "{url}"}
	override := Raw{"url": "https://example.com/feed", "max_days": int64(7)}

	p, err := Resolve("show", global, override)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if p.MaxDays != 7 {
		t.Errorf("MaxDays = %d, want 7 (override)", p.MaxDays)
	}
	if p.IDPattern.String() != "{url}" {
		t.Errorf("IDPattern = %q, want global value", p.IDPattern.String())
	}
}

func TestResolveDisableSentinel(t *testing.T) {
	global := Raw{"download_hook": "/bin/notify"}
	override := Raw{"url": "https://example.com/feed", "download_hook": false}

	p, err := Resolve("show", global, override)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if p.DownloadHook != "" {
		t.Errorf("DownloadHook = %q, want disabled despite global", p.DownloadHook)
	}
}

func TestResolvePodcastOnlyNeverFromGlobal(t *testing.T) {
	global := Raw{"backlog_start": "2024-01-01", "backlog_interval": int64(3)}
	override := Raw{"url": "https://example.com/feed"}

	p, err := Resolve("show", global, override)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !p.BacklogStart.IsZero() || p.BacklogInterval != 0 {
		t.Error("backlog settings must never be sourced from the global document")
	}

	override["backlog_start"] = "2024-01-01"
	override["backlog_interval"] = int64(3)
	p, err = Resolve("show", global, override)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if p.BacklogStart.IsZero() || p.BacklogInterval != 3 {
		t.Error("per-podcast backlog settings should resolve")
	}
}

func TestResolveMissingURL(t *testing.T) {
	_, err := Resolve("show", Raw{}, Raw{})
	var missing *MissingSettingError
	if !errors.As(err, &missing) {
		t.Fatalf("error = %v, want *MissingSettingError", err)
	}
	if missing.Setting != "url" {
		t.Errorf("Setting = %q, want url", missing.Setting)
	}
}

func TestResolveRequiredDisabledFails(t *testing.T) {
	_, err := Resolve("show", Raw{}, Raw{"url": "https://example.com/feed", "id_pattern": false})
	var missing *MissingSettingError
	if !errors.As(err, &missing) {
		t.Fatalf("error = %v, want *MissingSettingError for disabled required setting", err)
	}
}

func TestResolveContextViolation(t *testing.T) {
	override := Raw{
		"url":           "https://example.com/feed",
		"download_path": "/podcasts/{id3tag::artist}",
	}
	_, err := Resolve("show", Raw{}, override)

	var se *SettingError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *SettingError", err)
	}
	var ce *pattern.ContextError
	if !errors.As(err, &ce) {
		t.Fatalf("error should wrap *pattern.ContextError, got %v", err)
	}
}

func TestResolveDates(t *testing.T) {
	override := Raw{
		"url":           "https://example.com/feed",
		"earliest_date": "2024-03-15",
	}
	p, err := Resolve("show", Raw{}, override)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	if !p.EarliestDate.Equal(want) {
		t.Errorf("EarliestDate = %v, want %v", p.EarliestDate, want)
	}

	override["earliest_date"] = "not a date"
	if _, err := Resolve("show", Raw{}, override); err == nil {
		t.Error("expected error for malformed date")
	}
}

func TestResolveID3Tags(t *testing.T) {
	override := Raw{
		"url": "https://example.com/feed",
		"id3_tags": map[string]any{
			"artist": "{rss::channel::title}",
			"title":  "{rss::episode::title}",
		},
	}
	p, err := Resolve("show", Raw{}, override)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(p.ID3Tags) != 2 {
		t.Fatalf("len(ID3Tags) = %d, want 2", len(p.ID3Tags))
	}
	// Sorted by tag name for deterministic application order.
	if p.ID3Tags[0].Tag != "artist" || p.ID3Tags[1].Tag != "title" {
		t.Errorf("tags = %q, %q, want artist, title", p.ID3Tags[0].Tag, p.ID3Tags[1].Tag)
	}
}

func TestLoadPodcastsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := PodcastsPath(dir)

	added, err := AddPodcast(path, "show", "https://example.com/feed")
	if err != nil {
		t.Fatalf("AddPodcast failed: %v", err)
	}
	if !added {
		t.Fatal("AddPodcast should report true for a new podcast")
	}

	added, err = AddPodcast(path, "show", "https://example.com/other")
	if err != nil {
		t.Fatalf("AddPodcast failed: %v", err)
	}
	if added {
		t.Error("AddPodcast should report false for a duplicate name")
	}

	podcasts, err := LoadPodcasts(path)
	if err != nil {
		t.Fatalf("LoadPodcasts failed: %v", err)
	}
	if got := podcasts["show"]["url"]; got != "https://example.com/feed" {
		t.Errorf("url = %v, want original feed URL", got)
	}
}

func TestCatchUp(t *testing.T) {
	dir := t.TempDir()
	path := PodcastsPath(dir)
	for _, name := range []string{"alpha", "beta"} {
		if _, err := AddPodcast(path, name, "https://example.com/"+name); err != nil {
			t.Fatalf("AddPodcast failed: %v", err)
		}
	}

	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	updated, err := CatchUp(path, regexp.MustCompile("^alpha$"), now)
	if err != nil {
		t.Fatalf("CatchUp failed: %v", err)
	}
	if len(updated) != 1 || updated[0] != "alpha" {
		t.Fatalf("updated = %v, want [alpha]", updated)
	}

	podcasts, err := LoadPodcasts(path)
	if err != nil {
		t.Fatalf("LoadPodcasts failed: %v", err)
	}
	p, err := Resolve("alpha", Raw{}, podcasts["alpha"])
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !p.EarliestDate.Equal(now) {
		t.Errorf("EarliestDate = %v, want %v", p.EarliestDate, now)
	}
	if _, ok := podcasts["beta"]["earliest_date"]; ok {
		t.Error("beta should not have been caught up")
	}
}

func TestLoadGlobalMissingFile(t *testing.T) {
	raw, err := LoadGlobal(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("LoadGlobal failed: %v", err)
	}
	if len(raw) != 0 {
		t.Errorf("Raw = %v, want empty", raw)
	}
	// A missing file still resolves to a usable podcast via defaults.
	if _, err := Resolve("show", raw, Raw{"url": "https://example.com/feed"}); err != nil {
		t.Errorf("Resolve with empty global failed: %v", err)
	}
}
