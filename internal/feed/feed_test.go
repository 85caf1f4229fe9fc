package feed

import (
	"strings"
	"testing"
	"time"
)

const fixtureRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd">
  <channel>
    <title>Test Show</title>
    <link>https://example.com/show</link>
    <description>A show for testing</description>
    <language>en</language>
    <itunes:author>The Host</itunes:author>
    <image><url>https://example.com/cover.jpg</url><title>Test Show</title><link>https://example.com/show</link></image>
    <item>
      <title>Episode Two</title>
      <guid>ep-2</guid>
      <pubDate>Fri, 15 Mar 2024 10:00:00 GMT</pubDate>
      <enclosure url="https://example.com/ep2.mp3" length="1000" type="audio/mpeg"/>
      <itunes:duration>30:00</itunes:duration>
      <category>tech</category>
      <category>news</category>
    </item>
    <item>
      <title>Episode One</title>
      <guid>ep-1</guid>
      <pubDate>Fri, 01 Mar 2024 10:00:00 GMT</pubDate>
      <enclosure url="https://example.com/ep1.mp3" length="1000" type="audio/mpeg"/>
    </item>
  </channel>
</rss>`

func TestParseChannel(t *testing.T) {
	ch, err := Parse(strings.NewReader(fixtureRSS))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if ch.Title != "Test Show" {
		t.Errorf("Title = %q, want %q", ch.Title, "Test Show")
	}
	if ch.ImageURL != "https://example.com/cover.jpg" {
		t.Errorf("ImageURL = %q, want cover.jpg URL", ch.ImageURL)
	}
	if got := ch.Tags.Lookup("language"); len(got) != 1 || got[0] != "en" {
		t.Errorf("channel language = %v, want [en]", got)
	}
	if got := ch.Tags.Lookup("itunes:author"); len(got) != 1 || got[0] != "The Host" {
		t.Errorf("channel itunes:author = %v, want [The Host]", got)
	}
	if len(ch.Episodes) != 2 {
		t.Fatalf("episode count = %d, want 2", len(ch.Episodes))
	}
}

func TestParseEpisode(t *testing.T) {
	ch, err := Parse(strings.NewReader(fixtureRSS))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	ep := ch.Episodes[0]
	if ep.Title != "Episode Two" {
		t.Errorf("Title = %q, want %q", ep.Title, "Episode Two")
	}
	if ep.GUID != "ep-2" {
		t.Errorf("GUID = %q, want %q", ep.GUID, "ep-2")
	}
	if ep.EnclosureURL != "https://example.com/ep2.mp3" {
		t.Errorf("EnclosureURL = %q", ep.EnclosureURL)
	}

	want := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	if !ep.Published.Equal(want) {
		t.Errorf("Published = %v, want %v", ep.Published, want)
	}

	if got := ep.Tags.Lookup("itunes:duration"); len(got) != 1 || got[0] != "30:00" {
		t.Errorf("itunes:duration = %v, want [30:00]", got)
	}

	// Repeating tags keep all values in document order.
	cats := ep.Tags.Lookup("category")
	if len(cats) != 2 || cats[0] != "tech" || cats[1] != "news" {
		t.Errorf("categories = %v, want [tech news]", cats)
	}
}

func TestGUIDFallsBackToEnclosure(t *testing.T) {
	doc := `<?xml version="1.0"?>
<rss version="2.0"><channel><title>S</title>
<item><title>No GUID</title><enclosure url="https://example.com/x.mp3" length="1" type="audio/mpeg"/></item>
</channel></rss>`

	ch, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := ch.Episodes[0].GUID; got != "https://example.com/x.mp3" {
		t.Errorf("GUID = %q, want enclosure URL", got)
	}
}
