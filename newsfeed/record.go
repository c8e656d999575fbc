package newsfeed

import (
	"time"

	"github.com/google/uuid"
)

// DateOrigin records where a record's publication time came from.
type DateOrigin string

const (
	// OriginFeed is a date parsed from the feed entry itself.
	OriginFeed DateOrigin = "feed"
	// OriginPage is a date scraped from the article page.
	OriginPage DateOrigin = "page"
	// OriginNone means no date could be resolved.
	OriginNone DateOrigin = "none"
)

// NewsRecord is the canonical form of one observed news item.
type NewsRecord struct {
	ID               uuid.UUID  `json:"id"`
	Identifier       string     `json:"identifier"`
	Title            string     `json:"title"`
	Snippet          string     `json:"snippet"`
	SourceName       string     `json:"source_name"`
	PublishedAt      *time.Time `json:"published_at,omitempty"`
	PublishedDisplay string     `json:"published_display"`
	DateOrigin       DateOrigin `json:"date_origin"`
	FirstSeenAt      time.Time  `json:"first_seen_at"`
	LastSeenAt       time.Time  `json:"last_seen_at"`
}

// RecordID derives the stable UUID for an identifier. The same link always
// maps to the same ID.
func RecordID(identifier string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(identifier))
}

// IsDated reports whether the record has a resolved publication time.
func (r NewsRecord) IsDated() bool {
	return r.PublishedAt != nil
}
