package data

import (
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ducminhle1904/trend-engine/pkg/types"
)

// MemoryCache implements DataCache using in-memory storage
type MemoryCache struct {
	cache map[string][]types.Bar
	mutex sync.RWMutex
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{cache: make(map[string][]types.Bar)}
}

// Get retrieves a copy of cached bars
func (c *MemoryCache) Get(key string) ([]types.Bar, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	data, exists := c.cache[key]
	if !exists {
		return nil, false
	}
	result := make([]types.Bar, len(data))
	copy(result, data)
	return result, true
}

// Set stores a copy of data
func (c *MemoryCache) Set(key string, data []types.Bar) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	cached := make([]types.Bar, len(data))
	copy(cached, data)
	c.cache[key] = cached
}

// Clear removes all cached data
func (c *MemoryCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.cache = make(map[string][]types.Bar)
}

// Size returns the number of cached entries
func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.cache)
}

// CachedProvider wraps another DataProvider with caching functionality
type CachedProvider struct {
	provider DataProvider
	cache    DataCache
}

// NewCachedProvider creates a new cached data provider
func NewCachedProvider(provider DataProvider) *CachedProvider {
	return &CachedProvider{provider: provider, cache: NewMemoryCache()}
}

// GetName returns the name of the underlying provider with cache indication
func (p *CachedProvider) GetName() string {
	return "Cached " + p.provider.GetName()
}

// LoadData loads bars, serving repeated loads of the same symbol and source from memory
func (p *CachedProvider) LoadData(symbol, source string) ([]types.Bar, error) {
	key := symbol + "|" + source
	if cached, ok := p.cache.Get(key); ok {
		return cached, nil
	}

	data, err := p.provider.LoadData(symbol, source)
	if err != nil {
		log.Error().Err(err).Str("file", filepath.Base(source)).Msg("failed to load data")
		return nil, err
	}
	p.cache.Set(key, data)
	log.Info().Str("symbol", symbol).Str("file", filepath.Base(source)).Int("bars", len(data)).Msg("loaded and cached data")
	return data, nil
}

// ValidateData validates data using the underlying provider
func (p *CachedProvider) ValidateData(data []types.Bar) error {
	return p.provider.ValidateData(data)
}

// ClearCache clears all cached data
func (p *CachedProvider) ClearCache() {
	p.cache.Clear()
}
