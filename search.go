package newsmon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pevans/newsmon/discovery"
)

// DefaultSearchEndpoint is the Custom Search JSON API.
const DefaultSearchEndpoint = "https://www.googleapis.com/customsearch/v1"

// maxSearchResults is the provider's per-request ceiling.
const maxSearchResults = 10

const maxSearchResponseBytes = 1 << 20

// ErrMissingCredentials is returned when the search source has no API key or
// engine ID.
var ErrMissingCredentials = errors.New("search API key and engine ID are required")

// metatag keys that may carry a publication date, in priority order
var searchDateMetatags = []string{
	"article:published_time",
	"og:article:published_time",
	"datepublished",
	"pubdate",
	"date",
}

// leadingSnippetDate matches the date prefix search engines put in front of a
// snippet, such as "3 hours ago ... " or "Jan 5, 2030 ... ".
var leadingSnippetDate = regexp.MustCompile(
	`(?s)^((?:\d+\s+\S+\s+ago)|(?:h[aá]\s+\d+\s+\S+)|(?:[A-Z][a-z]{2}\s+\d{1,2},\s+\d{4}))\s+\.\.\.\s*(.*)$`,
)

// SearchConfig configures a SearchSource.
type SearchConfig struct {
	Endpoint string
	APIKey   string
	EngineID string
	Query    string
	Results  int
	Timeout  time.Duration
}

// SearchSource queries a web search JSON API for the monitored term.
type SearchSource struct {
	client discovery.HTTPClient
	config SearchConfig
}

// NewSearchSource creates a search source. A nil client gets an http.Client
// with the configured timeout.
func NewSearchSource(client discovery.HTTPClient, config SearchConfig) *SearchSource {
	if config.Endpoint == "" {
		config.Endpoint = DefaultSearchEndpoint
	}
	if config.Results <= 0 || config.Results > maxSearchResults {
		config.Results = maxSearchResults
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}
	return &SearchSource{client: client, config: config}
}

// Name returns the source label.
func (s *SearchSource) Name() string {
	return "search:" + s.config.Query
}

type searchResponse struct {
	Items []searchItem `json:"items"`
}

type searchItem struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Snippet     string `json:"snippet"`
	DisplayLink string `json:"displayLink"`
	Pagemap     struct {
		Metatags []map[string]string `json:"metatags"`
	} `json:"pagemap"`
}

// Fetch runs the query once and converts each result to a RawEntry.
func (s *SearchSource) Fetch(ctx context.Context) ([]RawEntry, error) {
	if s.config.APIKey == "" || s.config.EngineID == "" {
		return nil, ErrMissingCredentials
	}

	params := url.Values{}
	params.Set("q", s.config.Query)
	params.Set("cx", s.config.EngineID)
	params.Set("key", s.config.APIKey)
	params.Set("num", strconv.Itoa(s.config.Results))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query search API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSearchResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	entries := make([]RawEntry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		entries = append(entries, searchItemToRawEntry(item))
	}
	return entries, nil
}

func searchItemToRawEntry(item searchItem) RawEntry {
	snippet := item.Snippet
	published := metatagDate(item.Pagemap.Metatags)
	if date, rest, ok := splitSnippetDate(snippet); ok {
		snippet = rest
		if published == "" {
			published = date
		}
	}

	source := item.DisplayLink
	if source == "" {
		source = hostOf(item.Link)
	}

	return RawEntry{
		Link:      item.Link,
		Title:     item.Title,
		Summary:   snippet,
		Source:    source,
		Published: published,
	}
}

func metatagDate(metatags []map[string]string) string {
	for _, key := range searchDateMetatags {
		for _, tags := range metatags {
			if v := strings.TrimSpace(tags[key]); v != "" {
				return v
			}
		}
	}
	return ""
}

// splitSnippetDate separates a leading date phrase from the snippet text.
func splitSnippetDate(snippet string) (date, rest string, ok bool) {
	m := leadingSnippetDate.FindStringSubmatch(strings.TrimSpace(snippet))
	if m == nil {
		return "", snippet, false
	}
	return m[1], m[2], true
}
