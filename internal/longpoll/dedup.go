package longpoll

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Deduplicator suppresses updates the server replays after a cursor
// resync (failure code 1 hands back an older ts, so part of the window
// is delivered again).
type Deduplicator struct {
	cache *lru.Cache[string, bool]
}

// NewDeduplicator creates a Deduplicator remembering the last size updates
func NewDeduplicator(size int) (*Deduplicator, error) {
	cache, err := lru.New[string, bool](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	return &Deduplicator{cache: cache}, nil
}

// Seen reports whether the update was already delivered and records it
func (d *Deduplicator) Seen(u Update) bool {
	key := dedupKey(u)
	if d.cache.Contains(key) {
		return true
	}
	d.cache.Add(key, true)
	return false
}

// Clear forgets all remembered updates
func (d *Deduplicator) Clear() {
	d.cache.Purge()
}

// Len returns the number of remembered updates
func (d *Deduplicator) Len() int {
	return d.cache.Len()
}

// dedupKey prefers the server-assigned event id; updates without one are
// keyed by a hash of their raw body
func dedupKey(u Update) string {
	if u.EventID != "" {
		return "event:" + u.EventID
	}
	return fmt.Sprintf("hash:%x", hashBytes(u.Raw))
}

// hashBytes creates a simple FNV-1a hash for deduplication
func hashBytes(data []byte) uint64 {
	var hash uint64 = 14695981039346656037
	for _, b := range data {
		hash ^= uint64(b)
		hash *= 1099511628211
	}
	return hash
}
