package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// Client wraps HTTP operations for feed media downloads.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// NewClient creates a new download client.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{},
		userAgent:  "castpull",
	}
}

// Resource describes a remote file as reported by a HEAD request.
type Resource struct {
	// Size is the Content-Length, or -1 if the server didn't report one.
	Size int64

	ETag         string
	LastModified string

	// AcceptRanges reports whether the server advertises byte-range
	// support.
	AcceptRanges bool
}

// SidecarPath returns the path of the validator sidecar recorded next
// to a partial file. The sidecar holds the ETag (or Last-Modified)
// observed when the partial was started, so a later run can tell
// whether resuming is safe.
func SidecarPath(partialPath string) string {
	return partialPath + ".etag"
}

// ProgressWriter wraps a writer to track transfer progress.
type ProgressWriter struct {
	// Writer is the underlying writer to write data to.
	Writer io.Writer

	// Total is the expected total size of the complete file, or -1 if
	// unknown.
	Total int64

	// Written is the number of bytes of the file present so far,
	// including any resumed prefix.
	Written int64

	// OnUpdate is called after each Write with (written, total).
	OnUpdate func(written, total int64)
}

// Write implements io.Writer, tracking progress and calling OnUpdate.
func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.Written += int64(n)
	if pw.OnUpdate != nil {
		pw.OnUpdate(pw.Written, pw.Total)
	}
	return n, err
}

// Get performs a GET request and returns the body. Used for small
// payloads like cover art; episode transfers go through DownloadResume.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// Stat describes the remote file at url via a HEAD request.
func (c *Client) Stat(ctx context.Context, url string) (*Resource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	return &Resource{
		Size:         resp.ContentLength,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		AcceptRanges: strings.Contains(resp.Header.Get("Accept-Ranges"), "bytes"),
	}, nil
}

// DownloadResume streams url into partialPath, resuming from the
// existing byte offset when a validated partial file is present.
//
// On success the partial file holds the complete content; the caller is
// responsible for publishing it to its final path. On any error the
// partial file is left as-is so a later run can resume.
func (c *Client) DownloadResume(ctx context.Context, url, partialPath string, onProgress func(written, total int64)) error {
	var offset int64
	if info, err := os.Stat(partialPath); err == nil {
		offset = info.Size()
	}

	if offset > 0 {
		ok, err := c.validateResume(ctx, url, partialPath)
		if err != nil {
			return err
		}
		if !ok {
			if err := discardPartial(partialPath); err != nil {
				return err
			}
			offset = 0
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case offset > 0 && resp.StatusCode == http.StatusPartialContent:
		// Appending to the validated partial.
	case resp.StatusCode == http.StatusOK:
		// Full body: the server ignored the Range request, or this is a
		// fresh transfer.
		if offset > 0 {
			if err := discardPartial(partialPath); err != nil {
				return err
			}
			offset = 0
		}
	default:
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	if offset == 0 {
		writeSidecar(partialPath, resp.Header)
	}

	f, err := os.OpenFile(partialPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	total := int64(-1)
	if resp.ContentLength >= 0 {
		total = offset + resp.ContentLength
	}

	var w io.Writer = f
	if onProgress != nil {
		w = &ProgressWriter{Writer: f, Total: total, Written: offset, OnUpdate: onProgress}
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return err
	}
	return nil
}

// validateResume checks whether the remote resource still matches the
// validator recorded when the partial file was started. Without a
// recorded validator, or when the server can't serve ranges, resuming
// would risk splicing bytes of a changed file, so the partial is
// restarted instead.
func (c *Client) validateResume(ctx context.Context, url, partialPath string) (bool, error) {
	recorded, err := os.ReadFile(SidecarPath(partialPath))
	if err != nil {
		return false, nil
	}

	res, err := c.Stat(ctx, url)
	if err != nil {
		return false, err
	}
	if !res.AcceptRanges {
		return false, nil
	}

	validator := strings.TrimSpace(string(recorded))
	return validator != "" && (validator == res.ETag || validator == res.LastModified), nil
}

// writeSidecar records the response's validator next to the partial
// file. Best effort: without one, a future resume simply restarts.
func writeSidecar(partialPath string, header http.Header) {
	validator := header.Get("ETag")
	if validator == "" {
		validator = header.Get("Last-Modified")
	}
	if validator == "" {
		os.Remove(SidecarPath(partialPath))
		return
	}
	_ = os.WriteFile(SidecarPath(partialPath), []byte(validator), 0644)
}

func discardPartial(partialPath string) error {
	if err := os.Remove(partialPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(SidecarPath(partialPath)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
