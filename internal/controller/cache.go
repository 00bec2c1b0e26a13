package controller

import (
	"sync"
	"time"

	"github.com/searchforge/creators_proxy/internal/contract"
	"github.com/searchforge/creators_proxy/obs"
)

// Snapshot is the cached creator listing as last fetched from upstream.
// Records must be treated as read-only.
type Snapshot struct {
	Records   []contract.Creator
	FetchedAt time.Time
}

// Cache is a single slot holding either nothing or one full snapshot. It has
// no TTL; only a successful fetch replaces its contents.
type Cache struct {
	mu   sync.RWMutex
	snap *Snapshot

	lastErr   error
	lastErrAt time.Time
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Get returns the current snapshot if the cache has been populated.
func (c *Cache) Get() (Snapshot, bool) {
	if c == nil {
		return Snapshot{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil {
		return Snapshot{}, false
	}
	return *c.snap, true
}

// Set replaces the snapshot and clears the recorded fetch error.
func (c *Cache) Set(records []contract.Creator) Snapshot {
	if records == nil {
		records = []contract.Creator{}
	}
	snap := Snapshot{
		Records:   records,
		FetchedAt: time.Now(),
	}
	c.mu.Lock()
	c.snap = &snap
	c.lastErr = nil
	c.lastErrAt = time.Time{}
	c.mu.Unlock()

	obs.SetCachedRecords(len(records))
	return snap
}

// RecordError remembers the most recent failed fetch without touching the
// snapshot.
func (c *Cache) RecordError(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.lastErrAt = time.Now()
	c.mu.Unlock()
}

// Status summarises the cache for readiness reporting.
type Status struct {
	Loaded    bool
	Records   int
	FetchedAt time.Time
	LastError error
	ErrorAt   time.Time
}

// Status returns the current cache status.
func (c *Cache) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := Status{
		LastError: c.lastErr,
		ErrorAt:   c.lastErrAt,
	}
	if c.snap != nil {
		st.Loaded = true
		st.Records = len(c.snap.Records)
		st.FetchedAt = c.snap.FetchedAt
	}
	return st
}
