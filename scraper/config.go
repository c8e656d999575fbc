package scraper

// DateProbe names one place in an article page that may hold its publication
// date. Attr is read from the first element matching Selector; an empty Attr
// reads the element text instead.
type DateProbe struct {
	Name     string `json:"name" yaml:"name"`
	Selector string `json:"selector" yaml:"selector"`
	Attr     string `json:"attr,omitempty" yaml:"attr,omitempty"`
}

// DefaultDateProbes returns the probe order used for date enrichment. The
// first probe that yields a parseable date wins.
func DefaultDateProbes() []DateProbe {
	return []DateProbe{
		{Name: "article:published_time", Selector: `meta[property="article:published_time"]`, Attr: "content"},
		{Name: "itemprop:datePublished", Selector: `meta[itemprop="datePublished"]`, Attr: "content"},
		{Name: "time[datetime]", Selector: "time[datetime]", Attr: "datetime"},
		{Name: "meta:pubdate", Selector: `meta[name="pubdate"]`, Attr: "content"},
		{Name: "meta:date", Selector: `meta[name="date"]`, Attr: "content"},
	}
}

// DateLayouts are the formats accepted from probe values. Values without an
// offset are read as UTC.
var DateLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}
