package cmd

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/deploymenttheory/go-reiserfs/internal/device"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective device configuration",
	Long: `Print the device settings after merging defaults, the config file,
REISERFS_* environment variables and command line flags.

The default config file is reiserfs-config.yaml, searched for in the
current directory, ./config, $HOME/.reiserfs and /etc/reiserfs.

Examples:
  go-reiserfs config
  REISERFS_CACHE_BLOCKS=4096 go-reiserfs config -o yaml
  go-reiserfs config --config ./forensics.yaml`,

	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfig(cmd)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

// configView is the serialised form of a device configuration
type configView struct {
	PartitionOffset int64  `json:"partition_offset" yaml:"partition_offset"`
	CacheEnabled    bool   `json:"cache_enabled" yaml:"cache_enabled"`
	CacheBlocks     int    `json:"cache_blocks" yaml:"cache_blocks"`
	DecompressDir   string `json:"decompress_dir" yaml:"decompress_dir"`
}

func runConfig(cmd *cobra.Command) error {
	config, err := deviceConfig(cmd)
	if err != nil {
		return err
	}
	view := configView(*config)

	out := cmd.OutOrStdout()
	if outputFormat != "table" {
		return writeStructured(out, view)
	}

	// mirror the config file layout so the output can be saved as one
	var node yaml.Node
	if err := node.Encode(view); err != nil {
		return err
	}

	table := newTable(out, "Key", "Value", "Flag")
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		table.Append([]string{key, node.Content[i+1].Value, "--" + device.FlagName(key)})
	}
	table.Render()
	return nil
}
