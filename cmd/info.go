package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info [image-path]",
	Short: "Show superblock and volume details",
	Long: `Show the volume label, UUID, format version, geometry and state
recorded in the ReiserFS superblock.

Examples:
  go-reiserfs info disk.img
  go-reiserfs info /dev/sdb1 --output json
  go-reiserfs info backup.img.zst --partition-offset 32256`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInfo(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, imagePath string) error {
	factory, svc, err := openVolume(cmd, imagePath, nil)
	if err != nil {
		return err
	}
	defer factory.Shutdown()

	info, err := svc.Info()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputFormat != "table" {
		return writeStructured(out, info)
	}

	journal := "absent"
	if info.JournalPresent {
		journal = fmt.Sprintf("%d blocks", info.JournalBlocks)
	}
	used := uint64(info.BlockCount-info.FreeBlocks) * uint64(info.BlockSize)

	table := newTable(out)
	table.AppendBulk([][]string{
		{"Label", info.Label},
		{"UUID", info.UUID},
		{"Format", info.Format},
		{"State", info.State},
		{"Block size", strconv.FormatUint(uint64(info.BlockSize), 10)},
		{"Blocks", fmt.Sprintf("%d (%d free)", info.BlockCount, info.FreeBlocks)},
		{"Used", formatBytes(used)},
		{"Root block", strconv.FormatUint(uint64(info.RootBlock), 10)},
		{"Tree height", strconv.FormatUint(uint64(info.TreeHeight), 10)},
		{"Hash", info.HashFunction},
		{"Journal", journal},
	})
	table.Render()
	return nil
}
