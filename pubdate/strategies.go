package pubdate

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ParseFunc attempts to read token as a point in time. loc is the display
// zone, used for layouts that carry no offset.
type ParseFunc func(token string, now time.Time, loc *time.Location) (time.Time, bool)

// Strategy is one named entry in the parse order.
type Strategy struct {
	Name     string
	Relative bool
	Parse    ParseFunc
}

// relativePattern matches "2 horas", "há 5 minutos", "3 days ago", "1h" and
// similar. Input is lowercased before matching.
var relativePattern = regexp.MustCompile(
	`^(?:h[aá]\s+)?(\d+)\s*(minutos?|minutes?|mins?|m|horas?|hours?|hrs?|h|dias?|days?|d)\.?(?:\s+(?:ago|atr[aá]s))?$`,
)

var yesterdayWords = map[string]struct{}{
	"ontem":     {},
	"yesterday": {},
}

// absoluteLayouts is the priority order for absolute tokens. Layouts without
// an offset are read in the display zone.
var absoluteLayouts = []struct {
	name   string
	layout string
}{
	{"rfc1123z", time.RFC1123Z},
	{"rfc1123", time.RFC1123},
	{"rss-short-day-numeric", "Mon, 2 Jan 2006 15:04:05 -0700"},
	{"rss-short-day", "Mon, 2 Jan 2006 15:04:05 MST"},
	{"rfc822z", time.RFC822Z},
	{"rfc822", time.RFC822},
	{"rfc3339nano", time.RFC3339Nano},
	{"rfc3339", time.RFC3339},
	{"iso-local", "2006-01-02T15:04:05"},
	{"iso-local-space", "2006-01-02 15:04:05"},
	{"iso-date", "2006-01-02"},
	{"display", DisplayLayout},
	{"display-date", "02/01/2006"},
	{"month-day-year", "Jan 2, 2006"},
}

// DefaultStrategies returns the standard parse order: relative phrases, the
// literal "yesterday", then each absolute layout.
func DefaultStrategies() []Strategy {
	strategies := []Strategy{
		{Name: "relative", Relative: true, Parse: parseRelative},
		{Name: "yesterday", Relative: true, Parse: parseYesterday},
	}
	for _, l := range absoluteLayouts {
		strategies = append(strategies, LayoutStrategy(l.name, l.layout))
	}
	return strategies
}

// rfc822Zones are the North American zone names RFC 822 allows in place of
// a numeric offset. time.Parse records an unknown abbreviation with a zero
// offset, so these are fixed up after parsing.
var rfc822Zones = map[string]int{
	"EST": -5 * 60 * 60,
	"EDT": -4 * 60 * 60,
	"CST": -6 * 60 * 60,
	"CDT": -5 * 60 * 60,
	"MST": -7 * 60 * 60,
	"MDT": -6 * 60 * 60,
	"PST": -8 * 60 * 60,
	"PDT": -7 * 60 * 60,
}

// universalZones are the abbreviations that legitimately mean a zero offset.
var universalZones = map[string]struct{}{
	"":    {},
	"GMT": {},
	"UTC": {},
	"UT":  {},
	"Z":   {},
}

// LayoutStrategy builds an absolute strategy for a time.Parse layout. Named
// zones unknown to the display zone are resolved through rfc822Zones; any
// other unknown abbreviation makes the layout a non-match.
func LayoutStrategy(name, layout string) Strategy {
	named := strings.Contains(layout, "MST")
	return Strategy{
		Name: name,
		Parse: func(token string, _ time.Time, loc *time.Location) (time.Time, bool) {
			if named && strings.HasSuffix(token, " UT") {
				token += "C"
			}
			t, err := time.ParseInLocation(layout, token, loc)
			if err != nil {
				return time.Time{}, false
			}
			if !named || t.Location() == loc {
				return t, true
			}
			return fixZone(t)
		},
	}
}

// fixZone corrects a time whose zone name time.Parse could not resolve.
func fixZone(t time.Time) (time.Time, bool) {
	zone, offset := t.Zone()
	if offset != 0 {
		return t, true
	}
	if _, ok := universalZones[zone]; ok {
		return t, true
	}
	offset, ok := rfc822Zones[zone]
	if !ok {
		return time.Time{}, false
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(),
		t.Nanosecond(), time.FixedZone(zone, offset)), true
}

// parseRelative subtracts the extracted magnitude from now. Large magnitudes
// are not clamped.
func parseRelative(token string, now time.Time, loc *time.Location) (time.Time, bool) {
	m := relativePattern.FindStringSubmatch(strings.ToLower(token))
	if m == nil {
		return time.Time{}, false
	}

	n, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}

	now = now.In(loc)
	switch unit := m[2]; {
	case strings.HasPrefix(unit, "m"):
		return now.Add(-time.Duration(n) * time.Minute), true
	case strings.HasPrefix(unit, "h"):
		return now.Add(-time.Duration(n) * time.Hour), true
	default:
		return now.AddDate(0, 0, -n), true
	}
}

func parseYesterday(token string, now time.Time, loc *time.Location) (time.Time, bool) {
	if _, ok := yesterdayWords[strings.ToLower(token)]; !ok {
		return time.Time{}, false
	}
	return now.In(loc).AddDate(0, 0, -1), true
}
