package db2reader

import (
	"reflect"
	"sort"
	"sync"
	"time"
)

// CacheConfig configures a Cache. A zero MaxMemoryMB means 16 MB;
// MaxEntries and TTL are unlimited when zero.
type CacheConfig struct {
	MaxMemoryMB float64
	MaxEntries  int
	TTL         time.Duration
	AutoEvict   bool
}

type CacheStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Entries   int
}

// HitRate returns the fraction of lookups served from the cache.
func (cs CacheStats) HitRate() float64 {
	total := cs.Hits + cs.Misses
	if total == 0 {
		return 0
	}
	return float64(cs.Hits) / float64(total)
}

type cacheEntry[V any] struct {
	value        V
	size         int64
	accessCount  uint64
	lastAccessed time.Time
	storedAt     time.Time
}

/*
Cache is a key/value cache with a memory budget. Entries carry a
byte-size estimate; Set evicts before inserting when the projected
usage would exceed the budget, removing candidates ordered by
(lastAccessed ascending, accessCount ascending) until enough space is
freed and the entry-count cap holds. An entry larger than the whole
budget is dropped instead of stored. TTL expiry is checked lazily on
Get. All operations are safe for concurrent use.
*/
type Cache[K comparable, V any] struct {
	mu      sync.RWMutex
	cfg     CacheConfig
	entries map[K]*cacheEntry[V]
	usage   int64

	hits      uint64
	misses    uint64
	evictions uint64
}

func NewCache[K comparable, V any](cfg CacheConfig) *Cache[K, V] {
	if cfg.MaxMemoryMB <= 0 {
		cfg.MaxMemoryMB = 16
	}
	return &Cache[K, V]{
		cfg:     cfg,
		entries: make(map[K]*cacheEntry[V]),
	}
}

func (c *Cache[K, V]) Get(key K) (value V, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return value, false
	}
	if c.cfg.TTL > 0 && time.Since(entry.storedAt) > c.cfg.TTL {
		c.usage -= entry.size
		delete(c.entries, key)
		c.misses++
		return value, false
	}
	entry.accessCount++
	entry.lastAccessed = time.Now()
	c.hits++
	return entry.value, true
}

// Set stores value under key with an estimated byte size.
func (c *Cache[K, V]) Set(key K, value V) {
	c.SetWithSize(key, value, estimateSize(value))
}

// SetWithSize stores value under key using a caller-supplied size hint.
func (c *Cache[K, V]) SetWithSize(key K, value V, size int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.entries[key]; ok {
		c.usage -= old.size
		delete(c.entries, key)
	}
	if c.cfg.AutoEvict {
		if size > int64(c.cfg.MaxMemoryMB*1024*1024) {
			// an entry larger than the whole budget can never fit
			return
		}
		c.evictLocked(size)
	}
	now := time.Now()
	c.entries[key] = &cacheEntry[V]{
		value:        value,
		size:         size,
		lastAccessed: now,
		storedAt:     now,
	}
	c.usage += size
}

func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return false
	}
	c.usage -= entry.size
	delete(c.entries, key)
	return true
}

func (c *Cache[K, V]) Has(key K) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[key]
	return ok
}

func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]*cacheEntry[V])
	c.usage = 0
}

func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache[K, V]) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Entries:   len(c.entries),
	}
}

func (c *Cache[K, V]) MemoryUsageMB() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return float64(c.usage) / (1024 * 1024)
}

// evictLocked frees room for incoming bytes. Caller holds the write
// lock. Eviction sweeps are O(n) over live entries.
func (c *Cache[K, V]) evictLocked(incoming int64) {
	budget := int64(c.cfg.MaxMemoryMB * 1024 * 1024)
	needEntrySlot := c.cfg.MaxEntries > 0 && len(c.entries)+1 > c.cfg.MaxEntries
	if c.usage+incoming <= budget && !needEntrySlot {
		return
	}
	type victim struct {
		key   K
		entry *cacheEntry[V]
	}
	victims := make([]victim, 0, len(c.entries))
	for key, entry := range c.entries {
		victims = append(victims, victim{key: key, entry: entry})
	}
	sort.Slice(victims, func(i, j int) bool {
		if !victims[i].entry.lastAccessed.Equal(victims[j].entry.lastAccessed) {
			return victims[i].entry.lastAccessed.Before(victims[j].entry.lastAccessed)
		}
		return victims[i].entry.accessCount < victims[j].entry.accessCount
	})
	for _, v := range victims {
		entriesOK := c.cfg.MaxEntries <= 0 || len(c.entries)+1 <= c.cfg.MaxEntries
		if c.usage+incoming <= budget && entriesOK {
			break
		}
		c.usage -= v.entry.size
		delete(c.entries, v.key)
		c.evictions++
	}
}

/*
estimateSize is the recursive, type-driven byte-size estimator:
primitives cost their width, strings two bytes per character,
containers the sum of their elements plus per-entry overhead.
*/
func estimateSize(v any) int64 {
	return estimateValue(reflect.ValueOf(v), 0)
}

func estimateValue(rv reflect.Value, depth int) int64 {
	if depth > 8 || !rv.IsValid() {
		return 8
	}
	switch rv.Kind() {
	case reflect.Bool, reflect.Int8, reflect.Uint8:
		return 1
	case reflect.Int16, reflect.Uint16:
		return 2
	case reflect.Int32, reflect.Uint32, reflect.Float32:
		return 4
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint64, reflect.Float64, reflect.Uintptr:
		return 8
	case reflect.String:
		return int64(rv.Len()) * 2
	case reflect.Slice, reflect.Array:
		var total int64 = 24
		for i := 0; i < rv.Len(); i++ {
			total += estimateValue(rv.Index(i), depth+1)
		}
		return total
	case reflect.Map:
		var total int64 = 48
		iter := rv.MapRange()
		for iter.Next() {
			total += estimateValue(iter.Key(), depth+1)
			total += estimateValue(iter.Value(), depth+1)
		}
		return total
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return 8
		}
		return 8 + estimateValue(rv.Elem(), depth+1)
	case reflect.Struct:
		var total int64
		for i := 0; i < rv.NumField(); i++ {
			total += estimateValue(rv.Field(i), depth+1)
		}
		return total
	}
	return 8
}

/*
RecordCache memoizes decoded records on top of a fully loaded Loader,
with a second, independent cache for caller-supplied parsed
projections so raw-record caching and schema-mapped caching stay
decoupled.
*/
type RecordCache struct {
	loader  *Loader
	records *Cache[uint32, *RecordView]
	parsed  *Cache[string, any]
}

func NewRecordCache(loader *Loader, cfg CacheConfig) *RecordCache {
	return &RecordCache{
		loader:  loader,
		records: NewCache[uint32, *RecordView](cfg),
		parsed:  NewCache[string, any](cfg),
	}
}

// GetRecord returns the cached view for id, decoding through the
// loader on a miss.
func (rc *RecordCache) GetRecord(id uint32) (*RecordView, error) {
	if view, ok := rc.records.Get(id); ok {
		return view, nil
	}
	view, err := rc.loader.GetRecord(id)
	if err != nil {
		return nil, err
	}
	rc.records.SetWithSize(id, view, int64(len(view.buf))+int64(len(view.rec)))
	return view, nil
}

// PreloadRecords warms the cache for a precomputed ID list. Missing
// IDs are skipped; the count of records actually loaded is returned.
func (rc *RecordCache) PreloadRecords(ids []uint32) (loaded int) {
	for _, id := range ids {
		if _, err := rc.GetRecord(id); err == nil {
			loaded++
		}
	}
	return loaded
}

func (rc *RecordCache) GetParsed(key string) (any, bool) {
	return rc.parsed.Get(key)
}

func (rc *RecordCache) SetParsed(key string, value any) {
	rc.parsed.Set(key, value)
}

func (rc *RecordCache) Loader() *Loader {
	return rc.loader
}

func (rc *RecordCache) Stats() CacheStats {
	return rc.records.Stats()
}

func (rc *RecordCache) MemoryUsageMB() float64 {
	return rc.records.MemoryUsageMB()
}

func (rc *RecordCache) Clear() {
	rc.records.Clear()
	rc.parsed.Clear()
}
