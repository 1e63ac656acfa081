package mst

import (
	petname "github.com/dustinkirkland/golang-petname"
	lru "github.com/hashicorp/golang-lru"
)

// machineNames assigns every machine 0..k-1 a two-word debug name, purely
// for readability in log output — petname.Generate draws from an unseeded
// RNG, so names are not stable across runs, and nothing in this package
// relies on them being so. Names never feed into MachineOf's routing
// arithmetic.
func machineNames(k int) []string {
	names := make([]string, k)
	for i := range names {
		names[i] = petname.Generate(2, "-")
	}
	return names
}

// procNameCache is a bounded procId -> procName lookup filled by the graph
// loader from one bulk query of proc_ids, so building nodes never issues a
// query per edge. Each name is copied into its Node, which is where the
// summarize output reads it from.
type procNameCache struct {
	cache *lru.Cache
}

// defaultProcNameCacheSize bounds the cache well above any graph this
// engine would reasonably run against in a single process. Past that bound
// the least recently added entries are evicted and never re-queried, so
// LoadGraph gives an evicted proc an empty name and, if it has no
// surviving edge, no node at all.
const defaultProcNameCacheSize = 65536

func newProcNameCache() *procNameCache {
	c, err := lru.New(defaultProcNameCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which is a
		// programmer error, not a runtime condition.
		panic(err)
	}
	return &procNameCache{cache: c}
}

func (c *procNameCache) get(procID int64) (string, bool) {
	v, ok := c.cache.Get(procID)
	if !ok {
		return "", false
	}
	return v.(string), true
}

func (c *procNameCache) put(procID int64, name string) {
	c.cache.Add(procID, name)
}

// Len reports how many entries the cache currently holds.
func (c *procNameCache) Len() int {
	return c.cache.Len()
}

// Keys returns every cached procId, in the cache's own (recency) order.
func (c *procNameCache) Keys() []int64 {
	keys := c.cache.Keys()
	out := make([]int64, len(keys))
	for i, k := range keys {
		out[i] = k.(int64)
	}
	return out
}
