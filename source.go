// Package newsmon monitors a news query: it pulls entries from a search API or
// an RSS/Atom feed, resolves their publication times, and keeps an ordered,
// deduplicated history for the session.
package newsmon

import (
	"context"
	"net/url"
	"time"
)

// RawEntry is one item as delivered by a source, before normalization.
type RawEntry struct {
	Link      string `json:"link"`
	Title     string `json:"title"`
	Summary   string `json:"summary"`
	Source    string `json:"source"`
	Published string `json:"published"` // raw date token, may be empty

	// PublishedParsed is the source's own reading of the date, used when
	// Published matches no known layout.
	PublishedParsed *time.Time `json:"published_parsed,omitempty"`
}

// Source produces batches of raw entries for the monitored query.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]RawEntry, error)
}

// hostOf returns the host part of a link, or "" if it cannot be parsed.
func hostOf(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
