// Package tracker persists which episodes have already been downloaded.
//
// Each podcast has one ledger file: UTF-8 text, one entry per line,
// newline-terminated, append-only. A line is
//
//	<id> <unix-seconds> "<episode title>"
//
// and only the first whitespace-separated token (the rendered tracked
// id) matters for membership; the timestamp and title exist for humans
// reading or diffing the file. The system never removes or rewrites
// lines, so the file stays merge-friendly under line-based version
// control.
package tracker

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Tracker is the in-memory view of one podcast's ledger plus the append
// handle to it. Load it once before dispatching any download task;
// Commit is safe for concurrent use by that podcast's tasks.
type Tracker struct {
	path string

	mu  sync.Mutex
	ids map[string]struct{}
}

// Load reads the ledger at path into memory. A missing file yields an
// empty tracker; a path pointing at a directory is an error since
// appending would silently fail later.
func Load(path string) (*Tracker, error) {
	t := &Tracker{path: path, ids: make(map[string]struct{})}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, fmt.Errorf("reading tracker %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("tracker path %s is a directory", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading tracker %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) > 0 {
			t.ids[fields[0]] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading tracker %s: %w", path, err)
	}
	return t, nil
}

// Contains reports whether the id has been committed, either in a
// previous run or earlier in this one.
func (t *Tracker) Contains(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.ids[id]
	return ok
}

// Len returns the number of distinct committed ids.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.ids)
}

// Commit appends one entry and flushes it to disk before returning.
// Call it only after a download has fully completed post-processing:
// a crash mid-download must never leave a false completion behind.
// Commits for the same podcast are serialized by the tracker's mutex.
func (t *Tracker) Commit(id, title string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(t.path), 0755); err != nil {
		return fmt.Errorf("creating tracker dir: %w", err)
	}
	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening tracker %s: %w", t.path, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s %d %q\n", id, time.Now().Unix(), title); err != nil {
		return fmt.Errorf("appending to tracker %s: %w", t.path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("flushing tracker %s: %w", t.path, err)
	}

	t.ids[id] = struct{}{}
	return nil
}
