// Package pattern implements the curly-brace template language used for
// download paths, episode file names, tracked ids, and ID3 tag values.
//
// A template is a string of literal text and {placeholder} nodes:
//
//	"{pubdate::%Y-%m-%d} {rss::episode::title}.mp3"
//
// Placeholders come in two shapes. A unit pattern takes no argument
// (guid, url, podname, appname, home). A data pattern takes a single
// string argument after "::" (rss::episode::<tag>, rss::channel::<tag>,
// pubdate::<strftime format>, id3tag::<tag>).
//
// # Context Restriction
//
// Each call site declares which namespaces are legal by passing a
// Context to Compile. A download path is rendered before any episode is
// bound, so its context excludes episode and id3 patterns; id3 tag
// values are rendered after the file exists, so their context includes
// everything. Using a pattern outside its permitted context is a
// compile-time error (ContextError), so invalid configuration surfaces
// before any network I/O:
//
//	_, err := pattern.Compile("{id3tag::artist}", pattern.PathContext)
//	// err is a *pattern.ContextError
//
// # Rendering
//
// Compiled templates are immutable and reusable. Rendering is pure:
// given identical Bindings it always produces identical output and has
// no side effects.
//
//	tmpl, _ := pattern.Compile("{guid}", pattern.EpisodeContext)
//	id, err := tmpl.Render(pattern.Bindings{GUID: "abc123"})
//
// Literal braces are escaped by doubling: "{{" renders as "{" and "}}"
// as "}". A lone brace is a compile error.
package pattern
