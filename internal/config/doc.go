// Package config loads and resolves castpull's configuration.
//
// Configuration lives in two TOML documents under the user config dir:
//
//   - config.toml: global defaults for every recognized setting
//   - podcasts.toml: one table per podcast, keyed by podcast name
//
// # Resolution
//
// Each setting resolves per podcast in a fixed order: the per-podcast
// override wins; an explicit boolean false means "disabled" regardless
// of the global value; otherwise the global value applies (except for
// podcast-only settings, which never consult the global document); then
// the built-in default; and if none of those produced a value for a
// required setting, resolution fails and the podcast is skipped.
//
// "Disabled" and "unset" are distinct states: a per-podcast
// `download_hook = false` turns the hook off even when the global
// config sets one, while omitting the key inherits the global hook.
//
// # Settings
//
//	url               per-podcast, required
//	download_path     required; default "{home}/Podcasts/{podname}"
//	name_pattern      required; default "{pubdate::%Y-%m-%d} {rss::episode::title}"
//	id_pattern        required; default "{guid}"
//	tracker_path      optional; default <download_path>/.downloaded
//	download_hook     optional executable path
//	max_days          optional; skip episodes older than N days
//	max_episodes      optional; keep only the N most recent episodes
//	earliest_date     optional; skip episodes published before this date
//	embed_cover_art   optional boolean
//	id3_tags          optional table of tag = pattern
//	backlog_start     podcast-only; start of the backlog drip feed
//	backlog_interval  podcast-only; days between backlog unlocks
//
// Resolution happens once per run, before any network I/O, and compiles
// every template against its call-site context so malformed patterns
// and context violations are reported up front.
package config
