package dedup

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/crimson-sun/tribewatch/internal/model"
)

// Config controls deduplication behavior.
type Config struct {
	// Baseline marks everything seen on the first call without reporting it,
	// so a fresh process does not replay the server's history.
	Baseline bool
	// Capacity bounds the seen set. 0 means unbounded. When bounded, keys
	// are evicted least-recently-encountered first, so Capacity must exceed
	// the number of matching records a single fetch can contain.
	Capacity int
}

// Deduplicator remembers which raw records have been reported. Keys are the
// record text exactly as decoded. Safe for concurrent use, though the poller
// only ever calls it from one cycle at a time.
type Deduplicator struct {
	mu       sync.Mutex
	firstRun bool
	seen     seenSet
}

// New creates a Deduplicator with the given config.
func New(cfg Config) *Deduplicator {
	d := &Deduplicator{firstRun: cfg.Baseline}
	if cfg.Capacity > 0 {
		d.seen = newBoundedSet(cfg.Capacity)
	} else {
		d.seen = make(mapSet)
	}
	return d
}

// FilterNew returns the records whose text has not been seen before, in
// input order, and marks them seen. On the first call with baseline enabled
// every record is marked and nothing is returned. Duplicates within one call
// are reported once.
func (d *Deduplicator) FilterNew(records []model.RawRecord) []model.RawRecord {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.firstRun {
		for _, r := range records {
			d.seen.add(r.Text)
		}
		d.firstRun = false
		return nil
	}

	var fresh []model.RawRecord
	for _, r := range records {
		if d.seen.add(r.Text) {
			fresh = append(fresh, r)
		}
	}
	return fresh
}

// IsFirstRun reports whether the baseline call is still pending.
func (d *Deduplicator) IsFirstRun() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.firstRun
}

// Len returns the number of keys currently held.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen.len()
}

// seenSet records keys. add reports whether key was absent.
type seenSet interface {
	add(key string) bool
	len() int
}

type mapSet map[string]struct{}

func (s mapSet) add(key string) bool {
	if _, ok := s[key]; ok {
		return false
	}
	s[key] = struct{}{}
	return true
}

func (s mapSet) len() int { return len(s) }

// boundedSet refreshes a key's recency every time it is encountered, so keys
// still present in each fetch are never the ones evicted.
type boundedSet struct {
	cache *lru.Cache[string, struct{}]
}

func newBoundedSet(size int) *boundedSet {
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[string, struct{}](size)
	return &boundedSet{cache: cache}
}

func (s *boundedSet) add(key string) bool {
	if _, ok := s.cache.Get(key); ok {
		return false
	}
	s.cache.Add(key, struct{}{})
	return true
}

func (s *boundedSet) len() int { return s.cache.Len() }
