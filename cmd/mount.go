package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/deploymenttheory/go-reiserfs/internal/device"
	"github.com/deploymenttheory/go-reiserfs/internal/fuse"
)

var (
	metricsListen string
	allowOther    bool
	fuseDebug     bool
)

var mountCmd = &cobra.Command{
	Use:   "mount [image-path] [mountpoint]",
	Short: "Expose the volume read-only through FUSE",
	Long: `Mount a ReiserFS volume read-only at the given directory using FUSE.
The command runs until interrupted, then unmounts.

Examples:
  go-reiserfs mount disk.img /mnt/legacy
  go-reiserfs mount disk.img /mnt/legacy --metrics-listen 127.0.0.1:9100`,

	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMount(cmd, args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(mountCmd)

	mountCmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "address to serve Prometheus metrics on (disabled when empty)")
	mountCmd.Flags().BoolVar(&allowOther, "allow-other", false, "allow other users to access the mount")
	mountCmd.Flags().BoolVar(&fuseDebug, "debug-fuse", false, "log every FUSE request")
}

func runMount(cmd *cobra.Command, imagePath, mountpoint string) error {
	ctx := cmd.Context()

	var metrics *device.Metrics
	if metricsListen != "" {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector())
		metrics = device.NewMetrics(registry)

		srv := serveMetrics(metricsListen, registry)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics server shutdown failed", zap.Error(err))
			}
		}()
	}

	factory, svc, err := openVolume(cmd, imagePath, metrics)
	if err != nil {
		return err
	}
	defer factory.Shutdown()

	fsys, err := svc.FileSystem()
	if err != nil {
		return err
	}

	server, err := fuse.Mount(fuse.Options{
		Mountpoint: mountpoint,
		FileSystem: fsys,
		AllowOther: allowOther,
		Debug:      fuseDebug,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Mounted %s at %s (read-only), interrupt to unmount\n", imagePath, mountpoint)
	}

	done := make(chan struct{})
	go func() {
		server.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("filesystem unmounted externally", zap.String("mountpoint", mountpoint))
	case <-ctx.Done():
		if err := server.Unmount(); err != nil {
			return fmt.Errorf("failed to unmount %s: %w", mountpoint, err)
		}
		<-done
		logger.Info("filesystem unmounted", zap.String("mountpoint", mountpoint))
	}
	return nil
}

// serveMetrics starts an HTTP server exposing registry on /metrics
func serveMetrics(addr string, registry *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.String("address", addr), zap.Error(err))
		}
	}()

	logger.Info("serving metrics", zap.String("address", addr))
	return srv
}
