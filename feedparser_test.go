package newsmon

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Agência Exemplo</title>
    <link>http://example.com</link>
    <description>Notícias</description>
    <item>
      <title>Reforma ministerial avança</title>
      <link>http://example.com/reforma-1</link>
      <description>&lt;p&gt;Governo anuncia &lt;b&gt;mudanças&lt;/b&gt;&lt;/p&gt;</description>
      <pubDate>Tue, 01 Jan 2030 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Sem data</title>
      <link>http://example.com/reforma-2</link>
      <description>Texto</description>
    </item>
  </channel>
</rss>`

// TestFeedItemToRawEntry_BasicRSSItem verifies conversion of a basic RSS item
func TestFeedItemToRawEntry_BasicRSSItem(t *testing.T) {
	item := &gofeed.Item{
		Title:       "Test Article",
		Description: "This is a test description",
		Link:        "http://example.com/article",
		Published:   "Tue, 01 Jan 2030 10:00:00 GMT",
	}

	entry := FeedItemToRawEntry(item, "Example Feed")

	assert.Equal(t, RawEntry{
		Link:      "http://example.com/article",
		Title:     "Test Article",
		Summary:   "This is a test description",
		Source:    "Example Feed",
		Published: "Tue, 01 Jan 2030 10:00:00 GMT",
	}, entry)
}

// TestFeedItemToRawEntry_GUIDFallback verifies permalink GUIDs stand in for links
func TestFeedItemToRawEntry_GUIDFallback(t *testing.T) {
	item := &gofeed.Item{Title: "Test", GUID: "https://example.com/permalink"}

	entry := FeedItemToRawEntry(item, "Feed")

	assert.Equal(t, "https://example.com/permalink", entry.Link)
}

// TestFeedItemToRawEntry_NonURLGUID verifies opaque GUIDs are not used as links
func TestFeedItemToRawEntry_NonURLGUID(t *testing.T) {
	item := &gofeed.Item{Title: "Test", GUID: "tag:example.com,2030:1"}

	entry := FeedItemToRawEntry(item, "Feed")

	assert.Empty(t, entry.Link)
}

// TestFeedItemToRawEntry_ContentFallback verifies content replaces an empty description
func TestFeedItemToRawEntry_ContentFallback(t *testing.T) {
	item := &gofeed.Item{
		Title:   "Test",
		Link:    "http://example.com",
		Content: "<p>Full content</p>",
	}

	entry := FeedItemToRawEntry(item, "Feed")

	assert.Equal(t, "<p>Full content</p>", entry.Summary)
}

// TestFeedItemToRawEntry_SourceFallsBackToHost verifies host naming without a feed title
func TestFeedItemToRawEntry_SourceFallsBackToHost(t *testing.T) {
	item := &gofeed.Item{Title: "Test", Link: "https://news.example.org/a/b"}

	entry := FeedItemToRawEntry(item, "")

	assert.Equal(t, "news.example.org", entry.Source)
}

// TestFeedItemToRawEntry_UpdatedDate verifies Atom updated is used without published
func TestFeedItemToRawEntry_UpdatedDate(t *testing.T) {
	item := &gofeed.Item{
		Title:   "Test",
		Link:    "http://example.com",
		Updated: "2030-01-01T10:00:00Z",
	}

	entry := FeedItemToRawEntry(item, "Feed")

	assert.Equal(t, "2030-01-01T10:00:00Z", entry.Published)
}

// TestFeedItemToRawEntry_ParsedDateFallback verifies parsed dates fill a missing raw token
func TestFeedItemToRawEntry_ParsedDateFallback(t *testing.T) {
	parsed := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)
	item := &gofeed.Item{
		Title:           "Test",
		Link:            "http://example.com",
		PublishedParsed: &parsed,
	}

	entry := FeedItemToRawEntry(item, "Feed")

	assert.Equal(t, "2030-01-01T10:00:00Z", entry.Published)
	assert.Same(t, &parsed, entry.PublishedParsed)
}

// TestFeedItemToRawEntry_NoDate verifies an absent date stays empty
func TestFeedItemToRawEntry_NoDate(t *testing.T) {
	item := &gofeed.Item{Title: "Test", Link: "http://example.com"}

	entry := FeedItemToRawEntry(item, "Feed")

	assert.Empty(t, entry.Published)
}

// TestFeedToRawEntries verifies every item is converted in order
func TestFeedToRawEntries(t *testing.T) {
	feed := &gofeed.Feed{
		Title: "Feed",
		Items: []*gofeed.Item{
			{Title: "One", Link: "http://example.com/1"},
			{Title: "Two", Link: "http://example.com/2"},
		},
	}

	entries := FeedToRawEntries(feed)

	require.Len(t, entries, 2)
	assert.Equal(t, "One", entries[0].Title)
	assert.Equal(t, "Two", entries[1].Title)
	assert.Equal(t, "Feed", entries[1].Source)
}

// TestFeedSource_Fetch verifies fetching and parsing over HTTP
func TestFeedSource_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, sampleRSS)
	}))
	defer server.Close()

	source := NewFeedSource(server.URL, "")
	assert.Equal(t, server.URL, source.Name(), "name defaults to the URL")

	entries, err := source.Fetch(context.Background())

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "http://example.com/reforma-1", entries[0].Link)
	assert.Equal(t, "Agência Exemplo", entries[0].Source)
	assert.Equal(t, "Tue, 01 Jan 2030 10:00:00 GMT", entries[0].Published)
	assert.Contains(t, entries[0].Summary, "<b>mudanças</b>")
	assert.Empty(t, entries[1].Published)
}

// TestFeedSource_FetchParsedDate verifies a pubDate outside the normalizer's
// layouts still dates the record through gofeed's own parse
func TestFeedSource_FetchParsedDate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Agência Exemplo</title>
    <item>
      <title>Reforma ministerial avança</title>
      <link>http://example.com/reforma-3</link>
      <pubDate>2030-01-01T10:00:00.000-0500</pubDate>
    </item>
  </channel>
</rss>`)
	}))
	defer server.Close()

	entries, err := NewFeedSource(server.URL, "").Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "2030-01-01T10:00:00.000-0500", entries[0].Published)
	require.NotNil(t, entries[0].PublishedParsed)
	want := time.Date(2030, 1, 1, 15, 0, 0, 0, time.UTC)
	assert.True(t, entries[0].PublishedParsed.Equal(want))

	result, err := setupTestAggregator(t, nil, false).Ingest(context.Background(), entries)

	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	require.NotNil(t, result.Records[0].PublishedAt)
	assert.True(t, result.Records[0].PublishedAt.Equal(want))
	assert.Equal(t, "01/01/2030 12:00", result.Records[0].PublishedDisplay)
}

// TestFeedSource_FetchError verifies HTTP failures are wrapped
func TestFeedSource_FetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewFeedSource(server.URL, "broken").Fetch(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse feed")
}
