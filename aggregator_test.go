package newsmon

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pevans/newsmon/newsfeed"
	"github.com/pevans/newsmon/pubdate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var clockNow = time.Date(2030, 3, 10, 15, 30, 0, 0, time.UTC)

// fakeResolver returns canned page dates and counts lookups.
type fakeResolver struct {
	dates map[string]time.Time
	calls map[string]int
}

func newFakeResolver(dates map[string]time.Time) *fakeResolver {
	return &fakeResolver{dates: dates, calls: map[string]int{}}
}

func (f *fakeResolver) ResolveDate(_ context.Context, url string) (time.Time, bool) {
	f.calls[url]++
	t, ok := f.dates[url]
	return t, ok
}

// Test helper: create an aggregator with a fixed clock and the given resolver
func setupTestAggregator(t *testing.T, resolver *fakeResolver, enrich bool) *Aggregator {
	loc, err := pubdate.LoadZone("America/Sao_Paulo")
	require.NoError(t, err)
	store := newsfeed.NewHistoryStore(0)
	var agg *Aggregator
	if resolver == nil {
		agg = NewAggregator(store, pubdate.NewNormalizer(loc), nil, enrich)
	} else {
		agg = NewAggregator(store, pubdate.NewNormalizer(loc), resolver, enrich)
	}
	return agg.WithClock(func() time.Time { return clockNow })
}

func entry(link, published string) RawEntry {
	return RawEntry{
		Link:      link,
		Title:     "Title for " + link,
		Summary:   "<p>Summary for <b>" + link + "</b></p>",
		Source:    "example.com",
		Published: published,
	}
}

func recordLinks(records []newsfeed.NewsRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Identifier)
	}
	return out
}

// TestIngest_BuildsCanonicalRecords verifies field mapping and markup stripping
func TestIngest_BuildsCanonicalRecords(t *testing.T) {
	agg := setupTestAggregator(t, nil, false)

	result, err := agg.Ingest(context.Background(), []RawEntry{
		entry("http://example.com/a", "Tue, 01 Jan 2030 10:00:00 GMT"),
	})

	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	r := result.Records[0]
	assert.Equal(t, "http://example.com/a", r.Identifier)
	assert.Equal(t, newsfeed.RecordID("http://example.com/a"), r.ID)
	assert.Equal(t, "Title for http://example.com/a", r.Title)
	assert.Equal(t, "Summary for http://example.com/a", r.Snippet)
	assert.Equal(t, "example.com", r.SourceName)
	require.NotNil(t, r.PublishedAt)
	assert.True(t, r.PublishedAt.Equal(time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, "01/01/2030 07:00", r.PublishedDisplay)
	assert.Equal(t, newsfeed.OriginFeed, r.DateOrigin)
	assert.Equal(t, clockNow, r.FirstSeenAt)
	assert.Equal(t, 1, result.Accepted)
	assert.Equal(t, 1, result.Inserted)
}

// TestIngest_RelativeDates verifies relative phrases resolve against the clock
func TestIngest_RelativeDates(t *testing.T) {
	agg := setupTestAggregator(t, nil, false)

	result, err := agg.Ingest(context.Background(), []RawEntry{
		entry("http://example.com/yesterday", "ontem"),
		entry("http://example.com/two-hours", "2 horas"),
	})

	require.NoError(t, err)
	require.Len(t, result.Records, 2)
	assert.Equal(t, []string{"http://example.com/two-hours", "http://example.com/yesterday"}, recordLinks(result.Records))
	assert.True(t, result.Records[0].PublishedAt.Equal(clockNow.Add(-2*time.Hour)))
	assert.Equal(t, "2 horas", result.Records[0].PublishedDisplay)
	assert.True(t, result.Records[1].PublishedAt.Equal(clockNow.AddDate(0, 0, -1)))
}

// TestIngest_UnresolvedDates verifies undated records sort last and are counted
func TestIngest_UnresolvedDates(t *testing.T) {
	agg := setupTestAggregator(t, nil, false)

	result, err := agg.Ingest(context.Background(), []RawEntry{
		entry("http://example.com/undated", ""),
		entry("http://example.com/garbage", "not a date"),
		entry("http://example.com/dated", "2030-01-01T00:00:00Z"),
	})

	require.NoError(t, err)
	assert.Equal(t, 2, result.Unresolved)
	assert.Equal(t,
		[]string{"http://example.com/dated", "http://example.com/undated", "http://example.com/garbage"},
		recordLinks(result.Records))
	assert.Nil(t, result.Records[1].PublishedAt)
	assert.Equal(t, pubdate.Unavailable, result.Records[1].PublishedDisplay)
	assert.Equal(t, newsfeed.OriginNone, result.Records[1].DateOrigin)
}

// TestIngest_SkipsMalformedEntries verifies missing link/title are skipped, not fatal
func TestIngest_SkipsMalformedEntries(t *testing.T) {
	agg := setupTestAggregator(t, nil, false)
	noTitle := entry("http://example.com/no-title", "")
	noTitle.Title = "  "

	result, err := agg.Ingest(context.Background(), []RawEntry{
		entry("http://example.com/ok-1", "1 hora"),
		entry("", "1 hora"),
		noTitle,
		entry("http://example.com/ok-2", "2 horas"),
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"http://example.com/ok-1", "http://example.com/ok-2"}, recordLinks(result.Records))
	assert.Equal(t, 2, result.Accepted)
	assert.Equal(t, 2, result.Skipped)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, 1, result.Errors[0].Index)
	assert.ErrorIs(t, &result.Errors[0], ErrMissingLink)
	assert.Equal(t, 2, result.Errors[1].Index)
	assert.ErrorIs(t, &result.Errors[1], ErrMissingTitle)
	assert.Contains(t, result.Errors[1].Error(), "http://example.com/no-title")
}

// TestIngest_Idempotent verifies re-ingesting a batch changes nothing
func TestIngest_Idempotent(t *testing.T) {
	agg := setupTestAggregator(t, nil, false)
	batch := []RawEntry{
		entry("http://example.com/a", "3 horas"),
		entry("http://example.com/b", ""),
		entry("http://example.com/c", "Tue, 01 Jan 2030 10:00:00 GMT"),
		entry("http://example.com/d", "10 minutos"),
	}

	first, err := agg.Ingest(context.Background(), batch)
	require.NoError(t, err)
	second, err := agg.Ingest(context.Background(), batch)
	require.NoError(t, err)

	assert.Equal(t, first.Records, second.Records)
	assert.Equal(t, 4, second.Updated)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 4, agg.Store().Len())
}

// TestIngest_IdempotentWhenBatchExceedsBound verifies a batch larger than the
// history bound is kept whole and re-ingests to the same history
func TestIngest_IdempotentWhenBatchExceedsBound(t *testing.T) {
	loc, err := pubdate.LoadZone("America/Sao_Paulo")
	require.NoError(t, err)
	store := newsfeed.NewHistoryStore(2)
	agg := NewAggregator(store, pubdate.NewNormalizer(loc), nil, false).
		WithClock(func() time.Time { return clockNow })
	batch := []RawEntry{
		entry("http://example.com/a", "1 hora"),
		entry("http://example.com/b", "2 horas"),
		entry("http://example.com/c", "3 horas"),
	}

	first, err := agg.Ingest(context.Background(), batch)
	require.NoError(t, err)
	second, err := agg.Ingest(context.Background(), batch)
	require.NoError(t, err)

	assert.Equal(t,
		[]string{"http://example.com/a", "http://example.com/b", "http://example.com/c"},
		recordLinks(first.Records))
	assert.Equal(t, first.Records, second.Records)
	assert.Equal(t, 0, first.Evicted)
	assert.Equal(t, 0, second.Evicted)
}

// TestIngest_ParsedDateFallback verifies a source-parsed date dates the record
// when the raw token matches no layout
func TestIngest_ParsedDateFallback(t *testing.T) {
	agg := setupTestAggregator(t, nil, false)
	parsed := time.Date(2030, 1, 1, 10, 0, 0, 0, time.FixedZone("", -5*60*60))
	e := entry("http://example.com/a", "2030-01-01T10:00:00.000-0500")
	e.PublishedParsed = &parsed

	result, err := agg.Ingest(context.Background(), []RawEntry{e})

	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	r := result.Records[0]
	require.NotNil(t, r.PublishedAt)
	assert.True(t, r.PublishedAt.Equal(time.Date(2030, 1, 1, 15, 0, 0, 0, time.UTC)))
	assert.Equal(t, "01/01/2030 12:00", r.PublishedDisplay)
	assert.Equal(t, newsfeed.OriginFeed, r.DateOrigin)
	assert.Equal(t, 0, result.Unresolved)
}

// TestIngest_RawTokenOutranksParsedDate verifies the normalizer's reading wins
func TestIngest_RawTokenOutranksParsedDate(t *testing.T) {
	agg := setupTestAggregator(t, nil, false)
	parsed := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	e := entry("http://example.com/a", "Tue, 01 Jan 2030 10:00:00 GMT")
	e.PublishedParsed = &parsed

	result, err := agg.Ingest(context.Background(), []RawEntry{e})

	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "01/01/2030 07:00", result.Records[0].PublishedDisplay)
}

// TestIngest_NoDuplicatesAcrossBatches verifies identifiers stay unique
func TestIngest_NoDuplicatesAcrossBatches(t *testing.T) {
	agg := setupTestAggregator(t, nil, false)

	for cycle := 0; cycle < 5; cycle++ {
		var batch []RawEntry
		for i := 0; i < 6; i++ {
			batch = append(batch, entry(fmt.Sprintf("http://example.com/%d", (cycle+i)%8), fmt.Sprintf("%d horas", i)))
		}
		batch = append(batch, batch[0])
		_, err := agg.Ingest(context.Background(), batch)
		require.NoError(t, err)
	}

	seen := map[string]int{}
	for _, r := range agg.Store().Snapshot() {
		seen[r.Identifier]++
	}
	assert.Len(t, seen, 8)
	for id, count := range seen {
		assert.Equal(t, 1, count, "%s should appear once", id)
	}
}

// TestIngest_ImprovedDateInLaterBatch verifies an undated item picks up a later date
func TestIngest_ImprovedDateInLaterBatch(t *testing.T) {
	agg := setupTestAggregator(t, nil, false)

	_, err := agg.Ingest(context.Background(), []RawEntry{entry("x", "")})
	require.NoError(t, err)
	result, err := agg.Ingest(context.Background(), []RawEntry{entry("x", "2030-01-01T10:00:00Z")})
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	require.NotNil(t, result.Records[0].PublishedAt)
	assert.True(t, result.Records[0].PublishedAt.Equal(time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)))
}

// TestIngest_Enrichment verifies page dates override feed dates when enabled
func TestIngest_Enrichment(t *testing.T) {
	pageDate := time.Date(2030, 2, 1, 12, 0, 0, 0, time.UTC)
	resolver := newFakeResolver(map[string]time.Time{"http://example.com/a": pageDate})
	agg := setupTestAggregator(t, resolver, true)

	result, err := agg.Ingest(context.Background(), []RawEntry{
		entry("http://example.com/a", "5 dias"),
		entry("http://example.com/b", "1 hora"),
	})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Enriched)
	a, ok := agg.Store().Get("http://example.com/a")
	require.True(t, ok)
	assert.Equal(t, newsfeed.OriginPage, a.DateOrigin)
	assert.True(t, a.PublishedAt.Equal(pageDate))
	assert.Equal(t, "01/02/2030 09:00", a.PublishedDisplay)

	b, _ := agg.Store().Get("http://example.com/b")
	assert.Equal(t, newsfeed.OriginFeed, b.DateOrigin, "unavailable enrichment keeps the feed date")
}

// TestIngest_EnrichmentNotRepeated verifies scraped records are not fetched again
func TestIngest_EnrichmentNotRepeated(t *testing.T) {
	pageDate := time.Date(2030, 2, 1, 12, 0, 0, 0, time.UTC)
	resolver := newFakeResolver(map[string]time.Time{"http://example.com/a": pageDate})
	agg := setupTestAggregator(t, resolver, true)
	batch := []RawEntry{entry("http://example.com/a", "5 dias")}

	_, err := agg.Ingest(context.Background(), batch)
	require.NoError(t, err)
	_, err = agg.Ingest(context.Background(), batch)
	require.NoError(t, err)

	assert.Equal(t, 1, resolver.calls["http://example.com/a"])
	a, _ := agg.Store().Get("http://example.com/a")
	assert.Equal(t, newsfeed.OriginPage, a.DateOrigin, "page date survives the feed copy")
}

// TestIngest_EnrichmentDisabled verifies the resolver is not consulted
func TestIngest_EnrichmentDisabled(t *testing.T) {
	resolver := newFakeResolver(map[string]time.Time{"http://example.com/a": clockNow})
	agg := setupTestAggregator(t, resolver, false)

	_, err := agg.Ingest(context.Background(), []RawEntry{entry("http://example.com/a", "")})
	require.NoError(t, err)
	assert.Empty(t, resolver.calls)

	agg.SetEnrich(true)
	assert.True(t, agg.Enrich())
	_, err = agg.Ingest(context.Background(), []RawEntry{entry("http://example.com/a", "")})
	require.NoError(t, err)
	assert.Equal(t, 1, resolver.calls["http://example.com/a"])
}

// TestIngest_EmptySnippetAndSource verifies fallbacks
func TestIngest_EmptySnippetAndSource(t *testing.T) {
	agg := setupTestAggregator(t, nil, false)

	result, err := agg.Ingest(context.Background(), []RawEntry{
		{Link: "https://news.example.org/a", Title: "Only a title"},
	})

	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, NoSnippet, result.Records[0].Snippet)
	assert.Equal(t, "news.example.org", result.Records[0].SourceName)
}

// TestIngest_CancelledContext verifies a done context is a caller error
func TestIngest_CancelledContext(t *testing.T) {
	agg := setupTestAggregator(t, nil, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := agg.Ingest(ctx, []RawEntry{entry("http://example.com/a", "")})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, agg.Store().Len(), "history is untouched")
}

// TestIngest_EmptyBatch verifies an empty batch returns the current history
func TestIngest_EmptyBatch(t *testing.T) {
	agg := setupTestAggregator(t, nil, false)
	_, err := agg.Ingest(context.Background(), []RawEntry{entry("http://example.com/a", "")})
	require.NoError(t, err)

	result, err := agg.Ingest(context.Background(), nil)

	require.NoError(t, err)
	assert.Len(t, result.Records, 1)
	assert.Equal(t, 0, result.Accepted)
}
