// Package plan maps subscription tiers to durations and prices.
package plan

import (
	"sort"
	"time"

	coreconfig "github.com/m3rciful/clubbot/core/config"
)

// Plan describes a purchasable subscription tier.
type Plan struct {
	Tag    string
	Days   int
	Amount int64
}

// Table resolves plan tags to tiers. Unknown tags resolve to the default
// tier so a paid user is never blocked on a stale or mistyped tag.
type Table struct {
	tiers      map[string]Plan
	defaultTag string
}

// NewTable builds a Table from a tier map and a default tag. The default
// tag must be present in the map.
func NewTable(tiers map[string]Plan, defaultTag string) *Table {
	cp := make(map[string]Plan, len(tiers))
	for tag, p := range tiers {
		p.Tag = tag
		cp[tag] = p
	}
	return &Table{tiers: cp, defaultTag: defaultTag}
}

// FromConfig builds a Table from the normalized plans configuration.
func FromConfig(cfg coreconfig.PlansConfig) *Table {
	tiers := make(map[string]Plan, len(cfg.Tiers))
	for tag, t := range cfg.Tiers {
		tiers[tag] = Plan{Tag: tag, Days: t.Days, Amount: t.Amount}
	}
	return NewTable(tiers, cfg.Default)
}

// Resolve returns the tier for tag, falling back to the default tier for
// unknown tags. The returned plan always carries its canonical tag.
func (t *Table) Resolve(tag string) Plan {
	if p, ok := t.tiers[tag]; ok {
		return p
	}
	return t.tiers[t.defaultTag]
}

// Known reports whether tag names a configured tier.
func (t *Table) Known(tag string) bool {
	_, ok := t.tiers[tag]
	return ok
}

// End computes the subscription expiry for a purchase of tag at now.
// Fixed 24h days, so the expiry is re-derivable from tag plus purchase time.
func (t *Table) End(tag string, now time.Time) time.Time {
	p := t.Resolve(tag)
	return now.Add(time.Duration(p.Days) * 24 * time.Hour)
}

// Tags returns all configured tags ordered by ascending duration, for
// stable keyboard layouts.
func (t *Table) Tags() []string {
	tags := make([]string, 0, len(t.tiers))
	for tag := range t.tiers {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool {
		a, b := t.tiers[tags[i]], t.tiers[tags[j]]
		if a.Days != b.Days {
			return a.Days < b.Days
		}
		return tags[i] < tags[j]
	})
	return tags
}
