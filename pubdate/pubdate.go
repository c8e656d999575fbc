// Package pubdate turns the publication date tokens found in search results
// and feed items into absolute times in a single display zone.
package pubdate

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// DefaultZone is the display zone used when none is configured.
const DefaultZone = "America/Sao_Paulo"

// DisplayLayout is how absolute publication times are shown to readers. It is
// also one of the accepted input layouts, so values we rendered earlier can be
// parsed back.
const DisplayLayout = "02/01/2006 15:04"

// Unavailable is shown in place of a date that could not be resolved.
const Unavailable = "unavailable"

// Resolved is a publication time derived from a raw token.
type Resolved struct {
	Time time.Time
	// Relative is true when the token was a phrase such as "2 horas" or
	// "yesterday" rather than an absolute date.
	Relative bool
	// Phrase is the trimmed raw token.
	Phrase string
	// Strategy names the parser that matched.
	Strategy string
}

// Display returns the presentation string for r: the original phrase for
// relative tokens, otherwise the time formatted with DisplayLayout.
func (r Resolved) Display() string {
	if r.Relative {
		return r.Phrase
	}
	return r.Time.Format(DisplayLayout)
}

// Normalizer resolves raw date tokens using an ordered list of strategies.
type Normalizer struct {
	loc        *time.Location
	strategies []Strategy
}

// NewNormalizer creates a normalizer that reports times in loc using the
// default strategy order. A nil loc means UTC.
func NewNormalizer(loc *time.Location) *Normalizer {
	return NewNormalizerWithStrategies(loc, DefaultStrategies())
}

// NewNormalizerWithStrategies creates a normalizer with a custom strategy
// order.
func NewNormalizerWithStrategies(loc *time.Location, strategies []Strategy) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{
		loc:        loc,
		strategies: strategies,
	}
}

// LoadNormalizer creates a normalizer for the named IANA zone. An empty name
// selects DefaultZone.
func LoadNormalizer(zone string) (*Normalizer, error) {
	loc, err := LoadZone(zone)
	if err != nil {
		return nil, err
	}
	return NewNormalizer(loc), nil
}

// LoadZone loads the named IANA zone, falling back to DefaultZone for an
// empty name.
func LoadZone(zone string) (*time.Location, error) {
	if zone == "" {
		zone = DefaultZone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("failed to load time zone %q: %w", zone, err)
	}
	return loc, nil
}

// Location returns the zone results are reported in.
func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// Normalize resolves raw against now. Strategies are tried in order and the
// first match wins. The second return value is false when raw is empty or no
// strategy matched.
func (n *Normalizer) Normalize(raw string, now time.Time) (Resolved, bool) {
	token := strings.TrimSpace(raw)
	if token == "" {
		return Resolved{}, false
	}

	for _, s := range n.strategies {
		t, ok := s.Parse(token, now, n.loc)
		if !ok {
			continue
		}
		return Resolved{
			Time:     t.In(n.loc),
			Relative: s.Relative,
			Phrase:   token,
			Strategy: s.Name,
		}, true
	}

	return Resolved{}, false
}
