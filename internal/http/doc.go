// Package http wraps the HTTP transport used by the download pipeline.
//
// The Client handles the resume contract for episode transfers:
//
//   - A transfer streams into a partial file next to the final path.
//   - If a partial file already exists, the transfer resumes from its
//     byte offset with a Range request — but only after validating that
//     the remote resource is unchanged (ETag or Last-Modified recorded
//     in a sidecar file when the partial was started). On mismatch, or
//     when the server ignores the Range request, the partial is
//     discarded and the transfer restarts from zero.
//   - On failure or cancellation the partial file is left in place so a
//     later run can pick it up.
//
// The Client carries no overall request timeout: episode files are
// large and slow links are normal. Cancellation comes from the caller's
// context.
package http
