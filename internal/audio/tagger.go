package audio

import (
	"fmt"
	"strings"

	"github.com/bogem/id3v2"
)

// frameIDs maps friendly tag names to ID3v2 frame IDs.
var frameIDs = map[string]string{
	"artist":       "TPE1",
	"album_artist": "TPE2",
	"album":        "TALB",
	"title":        "TIT2",
	"genre":        "TCON",
	"year":         "TYER",
	"date":         "TDRC",
	"track":        "TRCK",
	"disc":         "TPOS",
	"composer":     "TCOM",
	"publisher":    "TPUB",
}

// FrameID resolves a configured tag name to an ID3v2 frame ID. Friendly
// names come from the table above; a four-character uppercase name is
// accepted as a raw frame ID.
func FrameID(name string) (string, bool) {
	if id, ok := frameIDs[name]; ok {
		return id, true
	}
	if len(name) == 4 && name == strings.ToUpper(name) && !strings.ContainsAny(name, " :") {
		return name, true
	}
	return "", false
}

// RenderedTag is one frame write: a resolved frame ID and its rendered
// value.
type RenderedTag struct {
	FrameID string
	Value   string
}

// Tagger rewrites ID3 tags on downloaded episode files.
type Tagger struct{}

// NewTagger creates a new Tagger.
func NewTagger() *Tagger {
	return &Tagger{}
}

// Rewrite applies the rendered tag values to the file at path and
// optionally embeds artwork (JPEG bytes) as the front cover. Tags are
// applied in slice order; a file without existing ID3 tags gets a fresh
// tag block.
func (t *Tagger) Rewrite(path string, tags []RenderedTag, artwork []byte) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("opening tags of %s: %w", path, err)
	}
	defer tag.Close()

	tag.SetVersion(4)
	for _, rt := range tags {
		tag.AddTextFrame(rt.FrameID, id3v2.EncodingUTF8, rt.Value)
	}

	if artwork != nil {
		tag.DeleteFrames(tag.CommonID("Attached picture"))
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    "image/jpeg",
			PictureType: id3v2.PTFrontCover,
			Description: "Cover",
			Picture:     artwork,
		})
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("saving tags of %s: %w", path, err)
	}
	return nil
}

// FileTags reads frames from an episode file on disk. It satisfies the
// pattern engine's TagSource interface, backing the {id3tag::...}
// namespace once a file exists.
type FileTags struct {
	tag *id3v2.Tag
}

// OpenFileTags opens the file's ID3 tags for reading.
func OpenFileTags(path string) (*FileTags, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return nil, fmt.Errorf("opening tags of %s: %w", path, err)
	}
	return &FileTags{tag: tag}, nil
}

// Lookup returns the frame's text value, or nil if the name is unknown
// or the frame is absent.
func (f *FileTags) Lookup(name string) []string {
	id, ok := FrameID(name)
	if !ok {
		return nil
	}
	text := f.tag.GetTextFrame(id).Text
	if text == "" {
		return nil
	}
	return []string{text}
}

// Close releases the underlying file handle.
func (f *FileTags) Close() error {
	return f.tag.Close()
}
