package discovery

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pevans/newsmon/scraper"
)

// DefaultFetchTimeout bounds a single article page fetch.
const DefaultFetchTimeout = 10 * time.Second

// maxPageBytes caps how much of an article page is read.
const maxPageBytes = 5 * 1024 * 1024

// userAgent identifies newsmon to article sites.
const userAgent = "newsmon/1.0 (news monitor date enrichment)"

// DateResolver looks up a more authoritative publication time for an article.
// Implementations never fail: a false second return means no date was found.
type DateResolver interface {
	ResolveDate(ctx context.Context, url string) (time.Time, bool)
}

// NoopResolver never finds a date. It is used when enrichment is disabled.
type NoopResolver struct{}

// ResolveDate always reports no date.
func (NoopResolver) ResolveDate(context.Context, string) (time.Time, bool) {
	return time.Time{}, false
}

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// PageResolver fetches the article page and reads its publication date from
// well-known markup locations.
type PageResolver struct {
	client  HTTPClient
	timeout time.Duration
	probes  []scraper.DateProbe
	loc     *time.Location
}

// NewPageResolver creates a resolver reporting times in loc. A nil client gets
// a default http.Client; a non-positive timeout gets DefaultFetchTimeout.
func NewPageResolver(client HTTPClient, loc *time.Location, timeout time.Duration) *PageResolver {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &PageResolver{
		client:  client,
		timeout: timeout,
		probes:  scraper.DefaultDateProbes(),
		loc:     loc,
	}
}

// WithProbes replaces the probe order.
func (r *PageResolver) WithProbes(probes []scraper.DateProbe) *PageResolver {
	r.probes = probes
	return r
}

// ResolveDate fetches url within the resolver's timeout and returns the first
// probe date found, converted to the display zone. Failures are logged and
// reported as no date.
func (r *PageResolver) ResolveDate(ctx context.Context, url string) (time.Time, bool) {
	fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	doc, err := FetchHTML(fetchCtx, r.client, url)
	if err != nil {
		log.Printf("WARN: Date enrichment skipped for %s: %v", url, err)
		return time.Time{}, false
	}

	t, _, ok := ExtractPublishedAt(doc, r.probes)
	if !ok {
		return time.Time{}, false
	}
	return t.In(r.loc), true
}

// FetchHTML fetches and parses the HTML page at url.
func FetchHTML(ctx context.Context, client HTTPClient, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return doc, nil
}

// ExtractPublishedAt walks probes in order and returns the first value that
// parses as a date, along with the name of the probe that matched.
func ExtractPublishedAt(doc *goquery.Document, probes []scraper.DateProbe) (time.Time, string, bool) {
	for _, probe := range probes {
		sel := doc.Find(probe.Selector).First()
		if sel.Length() == 0 {
			continue
		}

		var value string
		if probe.Attr != "" {
			value, _ = sel.Attr(probe.Attr)
		} else {
			value = sel.Text()
		}

		if t, ok := ParseProbeDate(value); ok {
			return t, probe.Name, true
		}
	}
	return time.Time{}, "", false
}

// ParseProbeDate parses a probe value. Values without an offset are UTC.
func ParseProbeDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range scraper.DateLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// PlainText strips markup from an HTML fragment and collapses whitespace.
func PlainText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	// Block boundaries would otherwise glue adjacent words together.
	doc.Find("p, br, div, li, h1, h2, h3, h4, h5, h6").AppendHtml(" ")
	return strings.Join(strings.Fields(doc.Find("body").Text()), " ")
}
