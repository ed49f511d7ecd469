package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/deploymenttheory/go-reiserfs/internal/device"
	"github.com/deploymenttheory/go-reiserfs/pkg/app"
	"github.com/deploymenttheory/go-reiserfs/pkg/services"
)

var (
	// Global output flags
	verbose      bool
	quiet        bool
	outputFormat string
	configFile   string

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "go-reiserfs",
	Short: "Cross-platform ReiserFS 3.x filesystem explorer and extractor",
	Long: `go-reiserfs is a cross-platform, read-only command-line tool for exploring
and extracting ReiserFS 3.5 and 3.6 volumes.

Works directly with raw disks, partitions, or image files (optionally gzip
or zstd compressed) without kernel support for ReiserFS. Ideal for data
recovery, forensic analysis, and migrating data off legacy systems.

Commands:
  info        Show superblock and volume details
  list        List directory contents
  cat         Print a file to standard output
  extract     Extract files or directory trees
  discover    Find files by name, extension, size, date, or content
  mount       Expose the volume read-only through FUSE
  verify      Check the internal tree for structural damage
  config      Show the effective device configuration`,
	Version:       "0.1.0-dev",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose && quiet {
			return fmt.Errorf("--verbose and --quiet are mutually exclusive")
		}
		switch outputFormat {
		case "table", "json", "yaml":
		default:
			return fmt.Errorf("unsupported output format: %s", outputFormat)
		}

		l, err := newLogger(verbose, quiet)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		cancel()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output except errors")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, json, yaml)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./reiserfs-config.yaml)")
	device.RegisterFlags(rootCmd.PersistentFlags())
}

// newLogger builds the console logger written to stderr. Verbose enables
// debug output, quiet keeps only errors.
func newLogger(verbose, quiet bool) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zap.WarnLevel)
	switch {
	case verbose:
		level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case quiet:
		level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	c := zap.NewProductionConfig()
	c.Level = level
	c.Encoding = "console"
	c.Sampling = nil
	c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	c.OutputPaths = []string{"stderr"}

	return c.Build(zap.AddStacktrace(zap.NewAtomicLevelAt(zap.FatalLevel)))
}

// newAppContext creates the application context for a command
func newAppContext(cmd *cobra.Command) *app.Context {
	ctx := app.NewContext()
	ctx.Context = cmd.Context()
	if ctx.Context == nil {
		ctx.Context = context.Background()
	}
	ctx.OutputFormat = outputFormat
	ctx.Verbose = verbose
	ctx.Quiet = quiet
	ctx.Logger = logger
	return ctx
}

// deviceConfig resolves the device settings from the config file,
// environment and command line
func deviceConfig(cmd *cobra.Command) (*device.DeviceConfig, error) {
	return device.LoadDeviceConfig(configFile, cmd.Flags())
}

// openVolume opens imagePath and returns the service factory owning it.
// The caller must Shutdown the factory.
func openVolume(cmd *cobra.Command, imagePath string, metrics *device.Metrics) (*services.ServiceFactory, services.FilesystemService, error) {
	config, err := deviceConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	factory := services.NewServiceFactory(logger, metrics)
	svc, err := factory.FilesystemService()
	if err != nil {
		return nil, nil, err
	}

	if _, err := svc.Open(cmd.Context(), imagePath, config); err != nil {
		factory.Shutdown()
		return nil, nil, app.NewError(app.ErrCodeImageAccess, fmt.Sprintf("cannot open %s", imagePath), err)
	}
	return factory, svc, nil
}

// GetVerbose returns the verbose flag value
func GetVerbose() bool {
	return verbose
}

// GetQuiet returns the quiet flag value
func GetQuiet() bool {
	return quiet
}

// GetOutputFormat returns the output format
func GetOutputFormat() string {
	return outputFormat
}
