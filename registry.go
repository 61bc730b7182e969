package db2reader

import (
	"sort"
	"strings"
	"sync"
)

/*
CacheManager is a registry of record caches keyed by normalized
(lower-cased) file name, with lazy creation on first access. Creation
is atomic: when two callers race on the same name the first stored
instance wins and both receive it. Callers construct a manager and
pass it around; there is no package-level singleton.
*/
type CacheManager struct {
	mu     sync.Mutex
	caches map[string]*RecordCache
}

func NewCacheManager() *CacheManager {
	return &CacheManager{caches: make(map[string]*RecordCache)}
}

func (m *CacheManager) Get(name string) (*RecordCache, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cache, ok := m.caches[strings.ToLower(name)]
	return cache, ok
}

// GetOrCreate returns the cache registered under name, constructing
// and registering it through create when absent. create runs under the
// registry lock, so a racing caller never observes a half-registered
// cache.
func (m *CacheManager) GetOrCreate(name string, create func() (*RecordCache, error)) (*RecordCache, error) {
	key := strings.ToLower(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	if cache, ok := m.caches[key]; ok {
		return cache, nil
	}
	cache, err := create()
	if err != nil {
		return nil, err
	}
	m.caches[key] = cache
	return cache, nil
}

func (m *CacheManager) Delete(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.caches, strings.ToLower(name))
}

// Names returns the registered cache names in sorted order.
func (m *CacheManager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.caches))
	for name := range m.caches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
