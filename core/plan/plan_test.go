package plan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/clubbot/core/config"
)

func testTable(t *testing.T) *Table {
	t.Helper()
	return FromConfig(coreconfig.PlansConfig{
		Default: "month",
		Tiers: map[string]coreconfig.PlanConfig{
			"month":   {Days: 30, Amount: 555},
			"quarter": {Days: 90, Amount: 1555},
			"year":    {Days: 365, Amount: 6130},
		},
	})
}

func TestResolveKnownTag(t *testing.T) {
	tbl := testTable(t)

	p := tbl.Resolve("quarter")
	assert.Equal(t, "quarter", p.Tag)
	assert.Equal(t, 90, p.Days)
	assert.Equal(t, int64(1555), p.Amount)
}

func TestResolveUnknownTagFallsBackToDefault(t *testing.T) {
	tbl := testTable(t)

	for _, tag := range []string{"", "lifetime", "MONTH", "month "} {
		p := tbl.Resolve(tag)
		assert.Equal(t, "month", p.Tag, "tag %q", tag)
		assert.Equal(t, 30, p.Days)
	}
}

func TestKnown(t *testing.T) {
	tbl := testTable(t)

	assert.True(t, tbl.Known("year"))
	assert.False(t, tbl.Known("lifetime"))
	assert.False(t, tbl.Known(""))
}

func TestEndIsPurchaseTimePlusDuration(t *testing.T) {
	tbl := testTable(t)
	now := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)

	cases := map[string]time.Duration{
		"month":   30 * 24 * time.Hour,
		"quarter": 90 * 24 * time.Hour,
		"year":    365 * 24 * time.Hour,
	}
	for tag, d := range cases {
		assert.Equal(t, now.Add(d), tbl.End(tag, now), "tag %q", tag)
	}

	// Unknown tags expire like the default tier.
	assert.Equal(t, now.Add(30*24*time.Hour), tbl.End("bogus", now))
}

func TestEndSameInputsSameExpiry(t *testing.T) {
	tbl := testTable(t)
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	first := tbl.End("year", now)
	second := tbl.End("year", now)
	assert.Equal(t, first, second)
}

func TestTagsOrderedByDuration(t *testing.T) {
	tbl := testTable(t)
	require.Equal(t, []string{"month", "quarter", "year"}, tbl.Tags())
}
