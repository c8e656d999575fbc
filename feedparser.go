package newsmon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const feedUserAgent = "newsmon/1.0 (RSS/Atom news monitor)"

// FeedSource reads entries from an RSS or Atom feed.
type FeedSource struct {
	url  string
	name string
}

// NewFeedSource creates a source for the feed at url. name is used for logs;
// when empty the URL is used.
func NewFeedSource(url, name string) *FeedSource {
	if name == "" {
		name = url
	}
	return &FeedSource{url: url, name: name}
}

// Name returns the source label.
func (s *FeedSource) Name() string {
	return s.name
}

// Fetch downloads the feed and converts every item to a RawEntry.
func (s *FeedSource) Fetch(ctx context.Context) ([]RawEntry, error) {
	feed, err := FetchFeed(ctx, s.url)
	if err != nil {
		return nil, err
	}
	return FeedToRawEntries(feed), nil
}

// FetchFeed fetches and parses an RSS or Atom feed from the given URL. The
// gofeed library detects the format.
func FetchFeed(ctx context.Context, url string) (*gofeed.Feed, error) {
	fp := gofeed.NewParser()
	fp.UserAgent = feedUserAgent
	feed, err := fp.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	return feed, nil
}

// FeedItemToRawEntry converts a feed item. gofeed normalizes RSS and Atom into
// the same structure, so both formats map the same way.
func FeedItemToRawEntry(item *gofeed.Item, feedTitle string) RawEntry {
	// Link: <link> (RSS) or <link rel="alternate"> (Atom), falling back to a
	// permalink GUID
	link := strings.TrimSpace(item.Link)
	if link == "" && strings.HasPrefix(item.GUID, "http") {
		link = strings.TrimSpace(item.GUID)
	}

	// Summary: <description> (RSS) or <summary> (Atom), then full content
	summary := item.Description
	if strings.TrimSpace(summary) == "" {
		summary = item.Content
	}

	// Source: feed-level title, else the article host
	source := strings.TrimSpace(feedTitle)
	if source == "" {
		source = hostOf(link)
	}

	// Published: the raw token is passed through for normalization. gofeed's
	// parsed value rides along for tokens the normalizer does not know, and
	// stands in for the raw text when that is missing.
	published := strings.TrimSpace(item.Published)
	if published == "" {
		published = strings.TrimSpace(item.Updated)
	}
	parsed := item.PublishedParsed
	if parsed == nil {
		parsed = item.UpdatedParsed
	}
	if published == "" && parsed != nil {
		published = parsed.Format(time.RFC3339)
	}

	return RawEntry{
		Link:            link,
		Title:           item.Title,
		Summary:         summary,
		Source:          source,
		Published:       published,
		PublishedParsed: parsed,
	}
}

// FeedToRawEntries converts all items in a feed.
func FeedToRawEntries(feed *gofeed.Feed) []RawEntry {
	entries := make([]RawEntry, 0, len(feed.Items))
	for _, item := range feed.Items {
		entries = append(entries, FeedItemToRawEntry(item, feed.Title))
	}
	return entries
}
