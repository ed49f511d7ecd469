package device

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DeviceConfig holds configuration for opening ReiserFS images
type DeviceConfig struct {
	PartitionOffset int64  `mapstructure:"partition_offset"`
	CacheEnabled    bool   `mapstructure:"cache_enabled"`
	CacheBlocks     int    `mapstructure:"cache_blocks"`
	DecompressDir   string `mapstructure:"decompress_dir"`
}

// Configuration keys, also used as flag names with '_' replaced by '-'.
const (
	KeyPartitionOffset = "partition_offset"
	KeyCacheEnabled    = "cache_enabled"
	KeyCacheBlocks     = "cache_blocks"
	KeyDecompressDir   = "decompress_dir"
)

// DefaultCacheBlocks is the default number of cached 4 KiB chunks.
const DefaultCacheBlocks = 1024

// DefaultDeviceConfig returns the configuration used when nothing is set
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		CacheEnabled: true,
		CacheBlocks:  DefaultCacheBlocks,
	}
}

// LoadDeviceConfig loads device configuration using Viper.
// Sources in increasing priority: defaults, reiserfs-config.yaml (or
// configFile when set), REISERFS_* environment variables, changed flags.
func LoadDeviceConfig(configFile string, flags *pflag.FlagSet) (*DeviceConfig, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("reiserfs-config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.reiserfs")
		v.AddConfigPath("/etc/reiserfs")
	}

	// Set defaults
	v.SetDefault(KeyPartitionOffset, 0)
	v.SetDefault(KeyCacheEnabled, true)
	v.SetDefault(KeyCacheBlocks, DefaultCacheBlocks)
	v.SetDefault(KeyDecompressDir, "")

	// Allow environment variables
	v.SetEnvPrefix("REISERFS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for _, key := range []string{KeyPartitionOffset, KeyCacheEnabled, KeyCacheBlocks, KeyDecompressDir} {
			if f := flags.Lookup(FlagName(key)); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", f.Name, err)
				}
			}
		}
	}

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config DeviceConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.PartitionOffset < 0 {
		return nil, fmt.Errorf("partition offset must not be negative: %d", config.PartitionOffset)
	}
	if config.CacheEnabled && config.CacheBlocks <= 0 {
		return nil, fmt.Errorf("cache_blocks must be positive when the cache is enabled: %d", config.CacheBlocks)
	}

	return &config, nil
}

// FlagName returns the command line flag bound to a configuration key
func FlagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

// RegisterFlags adds the device flags to a flag set
func RegisterFlags(flags *pflag.FlagSet) {
	flags.Int64(FlagName(KeyPartitionOffset), 0, "Byte offset of the ReiserFS partition within the image")
	flags.Bool(FlagName(KeyCacheEnabled), true, "Cache image blocks in memory")
	flags.Int(FlagName(KeyCacheBlocks), DefaultCacheBlocks, "Number of 4 KiB chunks kept in the block cache")
	flags.String(FlagName(KeyDecompressDir), "", "Directory for decompressed copies of .gz/.zst images (default system temp)")
}
