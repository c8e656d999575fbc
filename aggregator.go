package newsmon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pevans/newsmon/discovery"
	"github.com/pevans/newsmon/newsfeed"
	"github.com/pevans/newsmon/pubdate"
)

// NoSnippet replaces an empty summary.
const NoSnippet = "Sem descrição disponível"

// Errors for entries that cannot become records.
var (
	ErrMissingLink  = errors.New("entry has no link")
	ErrMissingTitle = errors.New("entry has no title")
)

// EntryError describes a raw entry that was skipped.
type EntryError struct {
	Index int
	Link  string
	Err   error
}

func (e *EntryError) Error() string {
	if e.Link == "" {
		return fmt.Sprintf("entry %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("entry %d (%s): %v", e.Index, e.Link, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

// IngestResult is the outcome of one Ingest call. Records is the full ordered
// history after the merge, not only this batch.
type IngestResult struct {
	Records    []newsfeed.NewsRecord
	Accepted   int
	Skipped    int
	Enriched   int
	Unresolved int
	Inserted   int
	Updated    int
	Evicted    int
	Errors     []EntryError
}

// Aggregator turns raw entries into records and merges them into a history
// store it does not own.
type Aggregator struct {
	store      *newsfeed.HistoryStore
	normalizer *pubdate.Normalizer
	resolver   discovery.DateResolver
	enrich     atomic.Bool
	now        func() time.Time
}

// NewAggregator creates an aggregator over store. A nil resolver disables
// enrichment regardless of the enrich flag.
func NewAggregator(
	store *newsfeed.HistoryStore,
	normalizer *pubdate.Normalizer,
	resolver discovery.DateResolver,
	enrich bool,
) *Aggregator {
	if resolver == nil {
		resolver = discovery.NoopResolver{}
	}
	a := &Aggregator{
		store:      store,
		normalizer: normalizer,
		resolver:   resolver,
		now:        time.Now,
	}
	a.enrich.Store(enrich)
	return a
}

// WithClock replaces the clock used as the reference for relative dates.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// SetEnrich toggles page-date enrichment for later Ingest calls.
func (a *Aggregator) SetEnrich(enabled bool) {
	a.enrich.Store(enabled)
}

// Enrich reports whether page-date enrichment is on.
func (a *Aggregator) Enrich() bool {
	return a.enrich.Load()
}

// Store returns the history store the aggregator merges into.
func (a *Aggregator) Store() *newsfeed.HistoryStore {
	return a.store
}

// Ingest normalizes entries, merges them into the history and returns the
// ordered history. Malformed entries are skipped and reported in the result;
// they never fail the batch. The only error is a context that is already done.
func (a *Aggregator) Ingest(ctx context.Context, entries []RawEntry) (*IngestResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("ingest cancelled: %w", err)
	}

	now := a.now()
	enrich := a.enrich.Load()
	result := &IngestResult{}
	records := make([]newsfeed.NewsRecord, 0, len(entries))

	for i, entry := range entries {
		record, err := a.buildRecord(entry, now)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, EntryError{
				Index: i,
				Link:  strings.TrimSpace(entry.Link),
				Err:   err,
			})
			continue
		}

		if enrich && a.enrichRecord(ctx, &record) {
			result.Enriched++
		}
		if !record.IsDated() {
			result.Unresolved++
		}

		records = append(records, record)
		result.Accepted++
	}

	merge := a.store.Merge(records)
	result.Inserted = merge.Inserted
	result.Updated = merge.Updated
	result.Evicted = merge.Evicted
	result.Records = a.store.Snapshot()

	return result, nil
}

// buildRecord maps one raw entry to a record using the feed's own date.
func (a *Aggregator) buildRecord(entry RawEntry, now time.Time) (newsfeed.NewsRecord, error) {
	link := strings.TrimSpace(entry.Link)
	if link == "" {
		return newsfeed.NewsRecord{}, ErrMissingLink
	}

	title := discovery.PlainText(entry.Title)
	if title == "" {
		return newsfeed.NewsRecord{}, ErrMissingTitle
	}

	snippet := discovery.PlainText(entry.Summary)
	if snippet == "" {
		snippet = NoSnippet
	}

	source := strings.TrimSpace(entry.Source)
	if source == "" {
		source = hostOf(link)
	}

	record := newsfeed.NewsRecord{
		ID:               newsfeed.RecordID(link),
		Identifier:       link,
		Title:            title,
		Snippet:          snippet,
		SourceName:       source,
		PublishedDisplay: pubdate.Unavailable,
		DateOrigin:       newsfeed.OriginNone,
		FirstSeenAt:      now,
		LastSeenAt:       now,
	}

	if resolved, ok := a.normalizer.Normalize(entry.Published, now); ok {
		t := resolved.Time
		record.PublishedAt = &t
		record.PublishedDisplay = resolved.Display()
		record.DateOrigin = newsfeed.OriginFeed
	} else if entry.PublishedParsed != nil {
		t := entry.PublishedParsed.In(a.normalizer.Location())
		record.PublishedAt = &t
		record.PublishedDisplay = t.Format(pubdate.DisplayLayout)
		record.DateOrigin = newsfeed.OriginFeed
	}

	return record, nil
}

// enrichRecord asks the resolver for a page date. Records already holding a
// page date are not fetched again.
func (a *Aggregator) enrichRecord(ctx context.Context, record *newsfeed.NewsRecord) bool {
	if existing, ok := a.store.Get(record.Identifier); ok && existing.DateOrigin == newsfeed.OriginPage {
		return false
	}

	t, ok := a.resolver.ResolveDate(ctx, record.Identifier)
	if !ok {
		return false
	}

	t = t.In(a.normalizer.Location())
	record.PublishedAt = &t
	record.PublishedDisplay = t.Format(pubdate.DisplayLayout)
	record.DateOrigin = newsfeed.OriginPage
	return true
}
