package services

import (
	"sync"

	"go.uber.org/zap"

	"github.com/deploymenttheory/go-reiserfs/internal/device"
)

// ServiceFactory provides a centralized way to create and manage ReiserFS services
type ServiceFactory struct {
	logger            *zap.Logger
	metrics           *device.Metrics
	filesystemService FilesystemService
	extractionService ExtractionService
	mu                sync.RWMutex
	initialized       bool
}

// NewServiceFactory creates a new service factory instance. A nil logger
// discards output; nil metrics disables device instrumentation.
func NewServiceFactory(logger *zap.Logger, metrics *device.Metrics) *ServiceFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ServiceFactory{logger: logger, metrics: metrics}
}

// Initialize initializes all services with their dependencies
func (sf *ServiceFactory) Initialize() error {
	sf.mu.Lock()
	defer sf.mu.Unlock()

	if sf.initialized {
		return nil
	}

	// Filesystem service first, extraction reads through it
	sf.filesystemService = NewFilesystemService(WithLogger(sf.logger), WithMetrics(sf.metrics))
	sf.extractionService = NewExtractionService(sf.filesystemService, sf.logger)

	sf.initialized = true
	return nil
}

// FilesystemService returns the filesystem service instance
func (sf *ServiceFactory) FilesystemService() (FilesystemService, error) {
	if err := sf.Initialize(); err != nil {
		return nil, err
	}

	sf.mu.RLock()
	defer sf.mu.RUnlock()
	return sf.filesystemService, nil
}

// ExtractionService returns the extraction service instance
func (sf *ServiceFactory) ExtractionService() (ExtractionService, error) {
	if err := sf.Initialize(); err != nil {
		return nil, err
	}

	sf.mu.RLock()
	defer sf.mu.RUnlock()
	return sf.extractionService, nil
}

// Shutdown gracefully shuts down all services
func (sf *ServiceFactory) Shutdown() error {
	sf.mu.Lock()
	defer sf.mu.Unlock()

	if !sf.initialized {
		return nil
	}

	// Closing the filesystem service releases the open image
	if sf.filesystemService != nil {
		if err := sf.filesystemService.Close(); err != nil {
			return err
		}
	}

	sf.filesystemService = nil
	sf.extractionService = nil
	sf.initialized = false

	return nil
}

// IsInitialized returns whether the factory has been initialized
func (sf *ServiceFactory) IsInitialized() bool {
	sf.mu.RLock()
	defer sf.mu.RUnlock()
	return sf.initialized
}

// ServiceInfo represents information about a service
type ServiceInfo struct {
	Name        string
	Description string
	Available   bool
}

// ListAvailableServices returns information about all available services
func (sf *ServiceFactory) ListAvailableServices() []ServiceInfo {
	return []ServiceInfo{
		{
			Name:        "filesystem",
			Description: "Image mounting, directory listing, stat, symlink resolution and file reads",
			Available:   true,
		},
		{
			Name:        "extraction",
			Description: "Parallel copy of files and directory trees onto the host filesystem",
			Available:   true,
		},
	}
}
