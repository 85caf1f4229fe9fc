// Package logger sets up structured logging for a run. Each run writes
// its own log file under the user cache directory, so console output
// stays reserved for progress and results.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Setup returns a text slog.Logger writing to w. With verbose set, the
// level drops to Debug.
func Setup(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// OpenRunLog creates the per-run log file, named after the start time,
// under <user cache dir>/castpull/logs. It returns the open file and
// its path.
func OpenRunLog(appName string) (*os.File, string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return nil, "", fmt.Errorf("locating cache dir: %w", err)
	}
	dir := filepath.Join(base, appName, "logs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, "", fmt.Errorf("creating log dir: %w", err)
	}

	path := filepath.Join(dir, time.Now().Format("2006-01-02_15-04-05")+".log")
	f, err := os.Create(path)
	if err != nil {
		return nil, "", fmt.Errorf("creating run log: %w", err)
	}
	return f, path, nil
}
