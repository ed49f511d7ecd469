package device

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/deploymenttheory/go-reiserfs/internal/interfaces"
)

// CacheChunkSize is the unit the block cache stores, independent of the
// filesystem block size which is unknown until the superblock is read.
const CacheChunkSize = 4096

// blockCache is an LRU of fixed-size image chunks keyed by chunk index
type blockCache struct {
	cache    *lru.Cache[uint64, []byte]
	capacity int
	hits     atomic.Uint64
	misses   atomic.Uint64
}

var _ interfaces.BlockCache = (*blockCache)(nil)

func newBlockCache(capacity int) (*blockCache, error) {
	cache, err := lru.New[uint64, []byte](capacity)
	if err != nil {
		return nil, err
	}
	return &blockCache{cache: cache, capacity: capacity}, nil
}

// Get returns a cached chunk
func (c *blockCache) Get(block uint64) ([]byte, bool) {
	data, ok := c.cache.Get(block)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return data, ok
}

// Add stores a chunk
func (c *blockCache) Add(block uint64, data []byte) {
	c.cache.Add(block, data)
}

// Purge removes every cached chunk
func (c *blockCache) Purge() {
	c.cache.Purge()
}

// Statistics returns cache counters
func (c *blockCache) Statistics() interfaces.BlockCacheStats {
	hits, misses := c.hits.Load(), c.misses.Load()
	stats := interfaces.BlockCacheStats{
		Hits:          hits,
		Misses:        misses,
		BlocksInCache: c.cache.Len(),
		MaxBlocks:     c.capacity,
	}
	if total := hits + misses; total > 0 {
		stats.HitRatio = float64(hits) / float64(total) * 100
	}
	return stats
}
