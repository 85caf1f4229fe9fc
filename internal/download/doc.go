// Package download orchestrates the episode acquisition pipeline.
//
// # Manager
//
// The Manager coordinates one sync run across all configured podcasts:
//
//  1. Fetch each podcast's feed and load its download tracker
//  2. Filter episodes: already tracked, earliest_date, max_days,
//     backlog pacing, then rank by publish date and cap at max_episodes
//  3. Download eligible episodes on a bounded worker pool, resuming
//     partial files from previous runs
//  4. Rewrite ID3 tags and embed cover art
//  5. Invoke the download hook (exit code observed as a warning only)
//  6. Commit the episode's rendered id to the tracker
//
// The eligible set for a run is fixed before any task is dispatched:
// concurrent tasks never observe each other's filtering decisions. The
// tracker is the only mutable state shared between a podcast's tasks,
// and its commits are serialized; across podcasts nothing is shared but
// the worker pool.
//
// # Failure model
//
// Configuration and feed errors skip the affected podcast; render
// errors fail the affected episode; transfer errors are retried with
// exponential backoff before failing the task. A failed or interrupted
// transfer leaves its partial file (and validator sidecar) in place so
// the next run resumes instead of restarting. The tracker commit is
// always the final step, so a crash at any earlier point records
// nothing.
//
// # Progress
//
// Progress is reported via a callback receiving ProgressEvent values,
// and in aggregate via GetProgress for UI front ends.
package download
