package types

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"
)

const (
	// VisitsSummaryPlugin owns the core visit metrics (visits, converted visits).
	VisitsSummaryPlugin = "VisitsSummary"
	// AllPluginsGroup is the archive group used when every plugin is archived in one pass.
	AllPluginsGroup = "all"
)

// Site is a tracked website. Timezone is an IANA name; empty means UTC.
type Site struct {
	ID       int    `json:"id" yaml:"id"`
	Name     string `json:"name,omitempty" yaml:"name"`
	Timezone string `json:"timezone,omitempty" yaml:"timezone"`
}

// Location returns the site's timezone, falling back to UTC when unknown.
func (s Site) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Params identifies one archive request. It is a value type: WithPlugin returns a copy.
type Params struct {
	Site    Site   `json:"site"`
	Period  Period `json:"period"`
	Segment string `json:"segment,omitempty"`
	Plugin  string `json:"plugin,omitempty"`
}

func NewParams(site Site, period Period, segment string) Params {
	return Params{Site: site, Period: period, Segment: strings.TrimSpace(segment)}
}

// WithPlugin returns a copy of p requesting the given plugin.
func (p Params) WithPlugin(name string) Params {
	p.Plugin = name
	return p
}

func (p Params) Validate() error {
	if p.Site.ID <= 0 {
		return Err(ErrInvalidParams, nil, "site id must be positive, got %d", p.Site.ID)
	}
	if !p.Period.Label.Valid() {
		return Err(ErrInvalidParams, nil, "unknown period %q", p.Period.Label)
	}
	if p.Period.End.Before(p.Period.Start) {
		return Err(ErrInvalidParams, nil, "period %s ends before it starts", p.Period)
	}
	return nil
}

// SegmentKey is a short, fixed-length key for the segment expression; empty for no segment.
func (p Params) SegmentKey() string {
	return SegmentKey(p.Segment)
}

func SegmentKey(segment string) string {
	if segment == "" {
		return ""
	}
	h := fnv.New32a()
	// hash.Hash.Write never returns an error according to the interface contract
	_, _ = h.Write([]byte(segment))
	return fmt.Sprintf("s%d", h.Sum32())
}

// StartInstant is the first instant of the period in the site's timezone, in UTC.
func (p Params) StartInstant() time.Time {
	return p.Period.StartInstant(p.Site.Location())
}

// EndInstant is the last second of the period in the site's timezone, in UTC.
func (p Params) EndInstant() time.Time {
	return p.Period.EndInstant(p.Site.Location())
}

func (p Params) String() string {
	seg := p.Segment
	if seg == "" {
		seg = "-"
	}
	plugin := p.Plugin
	if plugin == "" {
		plugin = "-"
	}
	return fmt.Sprintf("[idSite = %d, period = %s, segment = %s, plugin = %s]", p.Site.ID, p.Period, seg, plugin)
}
