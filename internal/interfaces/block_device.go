// File: internal/interfaces/block_device.go
package interfaces

// BlockDevice is the sector-addressed device a filesystem is mounted from.
// Implementations must be safe for concurrent reads when the mounted
// filesystem is shared between goroutines.
type BlockDevice interface {
	// ReadSectors fills buf with bytes starting at sector*SectorSize+offset.
	// A read past the end of the device returns an error wrapping
	// types.ErrOutOfRange.
	ReadSectors(sector uint64, offset uint64, buf []byte) error

	// Size returns the device size in bytes
	Size() uint64

	// Close releases the device
	Close() error
}

// BlockCache caches whole filesystem blocks read through a device
type BlockCache interface {
	// Get returns a cached block
	Get(block uint64) ([]byte, bool)

	// Add stores a block
	Add(block uint64, data []byte)

	// Purge removes every cached block
	Purge()

	// Statistics returns cache counters
	Statistics() BlockCacheStats
}

// BlockCacheStats contains cache performance statistics
type BlockCacheStats struct {
	// Total number of cache hits
	Hits uint64

	// Total number of cache misses
	Misses uint64

	// Current number of blocks in cache
	BlocksInCache int

	// Maximum number of blocks the cache can hold
	MaxBlocks int

	// Cache hit ratio as a percentage
	HitRatio float64
}

// DeviceStatistics summarises device activity
type DeviceStatistics struct {
	// Number of read requests served
	Reads uint64

	// Number of bytes returned to callers
	BytesRead uint64

	// Cache counters (zero when caching is disabled)
	Cache BlockCacheStats
}
