package device

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/deploymenttheory/go-reiserfs/internal/interfaces"
	"github.com/deploymenttheory/go-reiserfs/internal/types"
)

// ImageDevice provides sector addressed access to a ReiserFS partition
// stored in an image file or any io.ReaderAt
type ImageDevice struct {
	reader   io.ReaderAt
	closer   io.Closer
	size     int64
	offset   int64 // Offset to the partition within the image
	tempPath string

	cache   *blockCache
	metrics *Metrics
	logger  *zap.Logger

	reads     atomic.Uint64
	bytesRead atomic.Uint64
	closed    atomic.Bool
}

var _ interfaces.BlockDevice = (*ImageDevice)(nil)

// Option configures an ImageDevice
type Option func(*ImageDevice)

// WithLogger sets the logger used for device diagnostics
func WithLogger(logger *zap.Logger) Option {
	return func(d *ImageDevice) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics records reads and cache activity in m
func WithMetrics(m *Metrics) Option {
	return func(d *ImageDevice) {
		d.metrics = m
	}
}

// NewImageDevice wraps r, whose total length is size bytes
func NewImageDevice(r io.ReaderAt, size int64, config *DeviceConfig, opts ...Option) (*ImageDevice, error) {
	if config == nil {
		config = DefaultDeviceConfig()
	}
	if config.PartitionOffset < 0 || config.PartitionOffset > size {
		return nil, fmt.Errorf("partition offset %d outside image of %d bytes", config.PartitionOffset, size)
	}

	d := &ImageDevice{
		reader: r,
		size:   size,
		offset: config.PartitionOffset,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}

	if config.CacheEnabled && config.CacheBlocks > 0 {
		cache, err := newBlockCache(config.CacheBlocks)
		if err != nil {
			return nil, fmt.Errorf("failed to create block cache: %w", err)
		}
		d.cache = cache
	}

	return d, nil
}

// OpenImage opens an image file. gzip and zstd compressed images are
// expanded into a temporary file that is removed on Close.
func OpenImage(path string, config *DeviceConfig, opts ...Option) (*ImageDevice, error) {
	if config == nil {
		config = DefaultDeviceConfig()
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}

	kind, err := DetectCompression(file)
	if err != nil {
		file.Close()
		return nil, err
	}

	var tempPath string
	if kind != CompressionNone {
		expanded, err := decompressToTemp(file, kind, config.DecompressDir)
		file.Close()
		if err != nil {
			return nil, err
		}
		file, tempPath = expanded, expanded.Name()
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		removeTemp(tempPath)
		return nil, fmt.Errorf("failed to stat image file: %w", err)
	}

	d, err := NewImageDevice(file, stat.Size(), config, opts...)
	if err != nil {
		file.Close()
		removeTemp(tempPath)
		return nil, err
	}
	d.closer = file
	d.tempPath = tempPath

	d.logger.Debug("opened image",
		zap.String("path", path),
		zap.Stringer("compression", kind),
		zap.Int64("size", stat.Size()),
		zap.Int64("partition_offset", config.PartitionOffset),
		zap.Bool("cache", d.cache != nil))

	return d, nil
}

// ReadSectors fills buf starting at sector*SectorSize+offset within the partition
func (d *ImageDevice) ReadSectors(sector uint64, offset uint64, buf []byte) error {
	if d.closed.Load() {
		return fmt.Errorf("device closed: %w", types.ErrRead)
	}

	start := time.Now()
	err := d.read(sector, offset, buf)
	d.metrics.observeRead(len(buf), time.Since(start), err)
	if err != nil {
		return err
	}

	d.reads.Add(1)
	d.bytesRead.Add(uint64(len(buf)))
	return nil
}

func (d *ImageDevice) read(sector uint64, offset uint64, buf []byte) error {
	size := d.Size()
	if sector > size/types.SectorSize {
		return fmt.Errorf("sector %d beyond device end: %w", sector, types.ErrOutOfRange)
	}
	pos := sector*types.SectorSize + offset
	if pos < offset || pos > size || uint64(len(buf)) > size-pos {
		return fmt.Errorf("read of %d bytes at sector %d offset %d beyond device of %d bytes: %w",
			len(buf), sector, offset, size, types.ErrOutOfRange)
	}

	if d.cache == nil {
		return d.readRaw(pos, buf)
	}
	return d.readCached(pos, buf)
}

func (d *ImageDevice) readCached(pos uint64, buf []byte) error {
	for len(buf) > 0 {
		index := pos / CacheChunkSize
		within := pos % CacheChunkSize

		chunk, err := d.chunk(index)
		if err != nil {
			return err
		}
		if within >= uint64(len(chunk)) {
			return fmt.Errorf("chunk %d shorter than expected: %w", index, types.ErrOutOfRange)
		}

		n := copy(buf, chunk[within:])
		buf = buf[n:]
		pos += uint64(n)
	}
	return nil
}

func (d *ImageDevice) chunk(index uint64) ([]byte, error) {
	if data, ok := d.cache.Get(index); ok {
		d.metrics.observeCache(true)
		return data, nil
	}
	d.metrics.observeCache(false)

	start := index * CacheChunkSize
	length := min(uint64(CacheChunkSize), d.Size()-start)
	data := make([]byte, length)
	if err := d.readRaw(start, data); err != nil {
		return nil, err
	}

	d.cache.Add(index, data)
	return data, nil
}

func (d *ImageDevice) readRaw(pos uint64, buf []byte) error {
	n, err := d.reader.ReadAt(buf, d.offset+int64(pos))
	if n == len(buf) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return fmt.Errorf("short read of %d/%d bytes at %d: %w", n, len(buf), pos, types.ErrOutOfRange)
	}
	return fmt.Errorf("failed to read %d bytes at %d: %w: %w", len(buf), pos, types.ErrRead, err)
}

// Size returns the size of the partition in bytes
func (d *ImageDevice) Size() uint64 {
	return uint64(d.size - d.offset)
}

// Statistics returns read counters
func (d *ImageDevice) Statistics() interfaces.DeviceStatistics {
	stats := interfaces.DeviceStatistics{
		Reads:     d.reads.Load(),
		BytesRead: d.bytesRead.Load(),
	}
	if d.cache != nil {
		stats.Cache = d.cache.Statistics()
	}
	return stats
}

// Close closes the image and removes any decompressed copy
func (d *ImageDevice) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	if d.cache != nil {
		d.cache.Purge()
	}

	var err error
	if d.closer != nil {
		err = d.closer.Close()
	}
	removeTemp(d.tempPath)
	return err
}

func removeTemp(path string) {
	if path != "" {
		os.Remove(path)
	}
}
