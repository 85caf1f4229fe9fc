package ioutils

import (
	"os"
	"regexp"
	"strings"
)

// PartialSuffix is appended to a final episode path to form its
// temporary download path. The name is a pure function of the final
// path so a later run can locate the partial file and resume it.
const PartialSuffix = ".partial"

// PartialPath returns the temporary download path for a final path.
func PartialPath(finalPath string) string {
	return finalPath + PartialSuffix
}

// SanitizeFileName removes or replaces characters that are invalid in
// file and folder names.
//
// The following transformations are applied:
//   - Invalid characters (<>:"/\|?* and control chars 0x00-0x1f) → underscore
//   - Trailing dots → removed (Windows limitation)
//   - Multiple whitespace → single space
//   - Trailing whitespace → removed
//
// Rendered episode names pass through this before being joined to the
// download directory, so a template like "{rss::episode::title}" cannot
// escape into other directories via a slash in the feed data.
func SanitizeFileName(name string) string {
	invalidChars := regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	name = invalidChars.ReplaceAllString(name, "_")

	name = regexp.MustCompile(`\.+$`).ReplaceAllString(name, "")
	name = regexp.MustCompile(`\s+`).ReplaceAllString(name, " ")
	name = strings.TrimRight(name, " ")

	return name
}

// EnsureDir creates a directory and all parents if they don't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// Publish atomically moves a completed partial file to its final path.
// The rename never partially overwrites: either the old content or the
// new content is visible, nothing in between.
func Publish(partialPath, finalPath string) error {
	return os.Rename(partialPath, finalPath)
}
