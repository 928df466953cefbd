package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/communityhub/events/internal/query"
)

func TestCacheRoundTrip(t *testing.T) {
	c := New(time.Minute)

	_, ok := c.Get("k")
	assert.False(t, ok)

	c.Set("k", 42)

	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestCacheExpiry(t *testing.T) {
	c := New(10 * time.Millisecond)
	c.Set("k", "v")

	time.Sleep(25 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCacheClear(t *testing.T) {
	c := New(time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Clear()

	_, okA := c.Get("a")
	_, okB := c.Get("b")
	assert.False(t, okA)
	assert.False(t, okB)
}

func TestListKeyDistinguishesQueries(t *testing.T) {
	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	base := ListKey(query.Filter{}, query.DefaultSort())
	withCat := ListKey(query.Filter{Category: "meetup"}, query.DefaultSort())
	withDate := ListKey(query.Filter{StartDate: &from}, query.DefaultSort())
	withSort := ListKey(query.Filter{}, query.Sort{Field: query.SortByTitle, Direction: query.Asc})

	keys := []string{base, withCat, withDate, withSort}
	seen := map[string]bool{}
	for _, k := range keys {
		assert.False(t, seen[k], "duplicate key %q", k)
		seen[k] = true
	}
}

func TestListKeyStable(t *testing.T) {
	f := query.Filter{Category: "workshop", OnlyActive: true}
	s := query.DefaultSort()

	assert.Equal(t, ListKey(f, s), ListKey(f, s))
}
