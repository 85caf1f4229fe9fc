package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/extensions"
)

// TagTable maps a tag name to its values in document order. Tags may
// repeat (e.g. category), so a lookup returns a slice.
type TagTable map[string][]string

// Lookup returns all values for the named tag, or nil if absent. It
// satisfies the pattern engine's TagSource interface.
func (t TagTable) Lookup(name string) []string { return t[name] }

func (t TagTable) add(name, value string) {
	if value == "" {
		return
	}
	t[name] = append(t[name], value)
}

// Episode is one feed entry. Tags holds every tag value from the entry;
// the fields the pipeline needs directly are extracted alongside.
type Episode struct {
	Title        string
	GUID         string
	EnclosureURL string
	Published    time.Time
	Tags         TagTable
}

// Channel is a fetched, parsed feed: the channel-level tag table plus
// the episodes in document order.
type Channel struct {
	Title    string
	ImageURL string
	Tags     TagTable
	Episodes []Episode
}

// Fetcher retrieves and parses podcast feeds.
type Fetcher struct {
	parser *gofeed.Parser
}

// NewFetcher creates a Fetcher with the given HTTP timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	p := gofeed.NewParser()
	p.UserAgent = "castpull"
	p.Client = &http.Client{Timeout: timeout}
	return &Fetcher{parser: p}
}

// Fetch downloads and parses the feed at url.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Channel, error) {
	parsed, err := f.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching feed %s: %w", url, err)
	}
	return convert(parsed), nil
}

// Parse parses a feed document from r. Used for local fixtures and tests.
func Parse(r io.Reader) (*Channel, error) {
	parsed, err := gofeed.NewParser().Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}
	return convert(parsed), nil
}

func convert(f *gofeed.Feed) *Channel {
	ch := &Channel{
		Title: f.Title,
		Tags:  channelTags(f),
	}
	if f.Image != nil {
		ch.ImageURL = f.Image.URL
	}
	if ch.ImageURL == "" && f.ITunesExt != nil {
		ch.ImageURL = f.ITunesExt.Image
	}

	for _, item := range f.Items {
		ch.Episodes = append(ch.Episodes, convertItem(item))
	}
	return ch
}

func channelTags(f *gofeed.Feed) TagTable {
	tags := TagTable{}
	tags.add("title", f.Title)
	tags.add("description", f.Description)
	tags.add("link", f.Link)
	tags.add("language", f.Language)
	tags.add("copyright", f.Copyright)
	tags.add("generator", f.Generator)
	tags.add("pubDate", f.Published)
	tags.add("lastBuildDate", f.Updated)
	if f.Image != nil {
		tags.add("image", f.Image.URL)
	}
	if f.Author != nil {
		tags.add("author", f.Author.Name)
	}
	for _, c := range f.Categories {
		tags.add("category", c)
	}
	addExtensions(tags, f.Extensions)
	addCustom(tags, f.Custom)
	return tags
}

func convertItem(item *gofeed.Item) Episode {
	tags := TagTable{}
	tags.add("title", item.Title)
	tags.add("description", item.Description)
	tags.add("link", item.Link)
	tags.add("guid", item.GUID)
	tags.add("pubDate", item.Published)
	tags.add("content:encoded", item.Content)
	if item.Author != nil {
		tags.add("author", item.Author.Name)
	}
	for _, c := range item.Categories {
		tags.add("category", c)
	}

	var enclosure string
	if len(item.Enclosures) > 0 {
		enclosure = item.Enclosures[0].URL
	}
	tags.add("enclosure", enclosure)

	addExtensions(tags, item.Extensions)
	addCustom(tags, item.Custom)

	var published time.Time
	if item.PublishedParsed != nil {
		published = *item.PublishedParsed
	}

	// The GUID is the default tracked id; fall back to the enclosure URL
	// for feeds that omit it.
	guid := item.GUID
	if guid == "" {
		guid = enclosure
	}

	return Episode{
		Title:        item.Title,
		GUID:         guid,
		EnclosureURL: enclosure,
		Published:    published,
		Tags:         tags,
	}
}

func addExtensions(tags TagTable, exts ext.Extensions) {
	for prefix, byName := range exts {
		for name, values := range byName {
			for _, v := range values {
				tags.add(prefix+":"+name, v.Value)
			}
		}
	}
}

func addCustom(tags TagTable, custom map[string]string) {
	for name, value := range custom {
		tags.add(name, value)
	}
}
