// Package audio is the pipeline's ID3 capability: rewriting frames of a
// downloaded episode from rendered tag patterns, reading frames back
// for the {id3tag::...} pattern namespace, and embedding cover art.
//
// Tags are addressed by friendly names (artist, album, title, ...) that
// map to ID3v2 frame IDs; a four-character uppercase name is treated as
// a raw frame ID, so uncommon frames remain reachable.
//
// Frame mechanics are delegated to github.com/bogem/id3v2.
package audio
