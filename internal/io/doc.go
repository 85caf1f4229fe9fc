// Package ioutils provides file system helpers for the download
// pipeline: filename sanitization, directory creation, the
// partial-file naming convention, and atomic publication of completed
// downloads. It also hosts the cover-art image service.
package ioutils
