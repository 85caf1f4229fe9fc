package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultDir returns the configuration directory, typically
// ~/.config/castpull.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating config dir: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// GlobalPath returns the global settings file inside dir.
func GlobalPath(dir string) string { return filepath.Join(dir, "config.toml") }

// PodcastsPath returns the podcast list file inside dir.
func PodcastsPath(dir string) string { return filepath.Join(dir, "podcasts.toml") }

// LoadGlobal reads the global settings document. A missing file is not
// an error: every setting then falls through to its built-in default.
func LoadGlobal(path string) (Raw, error) {
	raw := Raw{}
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		if os.IsNotExist(err) {
			return Raw{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return raw, nil
}

// LoadPodcasts reads the podcast list: one TOML table per podcast, keyed
// by podcast name. A missing file yields an empty list.
func LoadPodcasts(path string) (map[string]Raw, error) {
	podcasts := map[string]Raw{}
	if _, err := toml.DecodeFile(path, &podcasts); err != nil {
		if os.IsNotExist(err) {
			return map[string]Raw{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return podcasts, nil
}

// SavePodcasts writes the podcast list back to disk, creating parent
// directories as needed.
func SavePodcasts(path string, podcasts map[string]Raw) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(podcasts); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// AddPodcast appends a new podcast to the list. It reports false if a
// podcast with that name already exists, leaving the file untouched.
func AddPodcast(path, name, url string) (bool, error) {
	podcasts, err := LoadPodcasts(path)
	if err != nil {
		return false, err
	}
	if _, exists := podcasts[name]; exists {
		return false, nil
	}
	podcasts[name] = Raw{"url": url}
	if err := SavePodcasts(path, podcasts); err != nil {
		return false, err
	}
	return true, nil
}

// CatchUp sets earliest_date to now for every podcast matching filter
// (all podcasts when filter is nil), so episodes published before the
// current time are never downloaded. It returns the updated names.
func CatchUp(path string, filter *regexp.Regexp, now time.Time) ([]string, error) {
	podcasts, err := LoadPodcasts(path)
	if err != nil {
		return nil, err
	}

	var updated []string
	for name, raw := range podcasts {
		if filter != nil && !filter.MatchString(name) {
			continue
		}
		raw["earliest_date"] = now.UTC().Format(time.RFC3339)
		updated = append(updated, name)
	}
	sort.Strings(updated)

	if len(updated) == 0 {
		return nil, nil
	}
	if err := SavePodcasts(path, podcasts); err != nil {
		return nil, err
	}
	return updated, nil
}
