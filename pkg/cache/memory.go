package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const layerMemory = "memory"

// DefaultMaxEntries bounds a MemoryStore created with a non-positive limit.
const DefaultMaxEntries = 10000

// MemoryStore is an in-process Store bounded by entry count. When full, the
// entry closest to expiry is evicted to make room.
type MemoryStore struct {
	maxEntries int

	mu      sync.RWMutex
	entries map[string]*CacheEntry
}

// NewMemoryStore creates a MemoryStore holding at most maxEntries entries.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryStore{
		maxEntries: maxEntries,
		entries:    make(map[string]*CacheEntry),
	}
}

// Get returns a copy of the entry for key or ErrCacheMiss.
func (s *MemoryStore) Get(_ context.Context, key CacheKey) (*CacheEntry, error) {
	k := key.String()

	s.mu.RLock()
	entry, ok := s.entries[k]
	s.mu.RUnlock()

	if !ok {
		CacheMisses.WithLabelValues(layerMemory).Inc()
		return nil, ErrCacheMiss
	}

	if entry.IsExpired() {
		s.mu.Lock()
		// Another writer may have replaced it in between
		if current, ok := s.entries[k]; ok && current == entry {
			delete(s.entries, k)
		}
		s.mu.Unlock()
		CacheMisses.WithLabelValues(layerMemory).Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(layerMemory).Inc()
	return entry.Clone(), nil
}

// Set stores a copy of entry until entry.Expires.
func (s *MemoryStore) Set(_ context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	if entry.TTL() <= 0 {
		return nil
	}

	stored := entry.Clone()
	k := key.String()

	s.mu.Lock()
	if _, exists := s.entries[k]; !exists && len(s.entries) >= s.maxEntries {
		s.evictLocked()
	}
	s.entries[k] = stored
	s.mu.Unlock()

	CacheStores.WithLabelValues(layerMemory).Inc()
	CacheEntryBytes.WithLabelValues(layerMemory).Observe(float64(len(stored.Data)))
	return nil
}

// evictLocked drops every expired entry, or failing that the one expiring
// soonest. s.mu must be held for writing.
func (s *MemoryStore) evictLocked() {
	now := time.Now()
	var (
		victim  string
		soonest time.Time
		removed bool
	)
	for k, e := range s.entries {
		if now.After(e.Expires) {
			delete(s.entries, k)
			removed = true
			continue
		}
		if victim == "" || e.Expires.Before(soonest) {
			victim, soonest = k, e.Expires
		}
	}
	if !removed && victim != "" {
		delete(s.entries, victim)
	}
}

// Delete removes the entry for key.
func (s *MemoryStore) Delete(_ context.Context, key CacheKey) error {
	s.mu.Lock()
	delete(s.entries, key.String())
	s.mu.Unlock()
	return nil
}

// Len reports the number of entries held, including expired ones not yet
// reclaimed.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Name implements Store.
func (s *MemoryStore) Name() string {
	return layerMemory
}

// Close drops all entries.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.entries = make(map[string]*CacheEntry)
	s.mu.Unlock()
	return nil
}
