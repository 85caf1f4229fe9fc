// Package feed fetches and parses podcast RSS feeds into tag tables.
//
// The rest of the pipeline treats feed data as opaque string keys mapped
// to opaque string values: a TagTable per channel and one per episode.
// Known RSS elements appear under their RSS names (title, description,
// guid, pubDate, ...), namespaced extensions under "prefix:name" keys
// (itunes:author, content:encoded), and unrecognized elements under
// whatever name they carried in the document.
//
// Parsing is delegated to github.com/mmcdole/gofeed; this package only
// flattens its output and extracts the fields the pipeline needs
// directly (enclosure URL, publish timestamp, GUID).
package feed
