/*
Package container provides dependency injection for the job import backend.

It keeps connection handles and services in one place so components receive
their dependencies explicitly instead of reaching for globals.
*/
package container

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/jobwire-io/job-import-backend/cache"
	"github.com/jobwire-io/job-import-backend/handlers"
	"github.com/jobwire-io/job-import-backend/monitoring"
	"github.com/jobwire-io/job-import-backend/queue"
	"github.com/jobwire-io/job-import-backend/store"
	"github.com/jobwire-io/job-import-backend/types"
)

// Dependencies collects everything the container wires together.
type Dependencies struct {
	Logger       *logrus.Logger
	PostingStore *store.PostingStore
	AuditLog     *store.AuditLog
	Queue        *queue.Client
	HistoryCache *cache.HistoryCache
	Alerts       *monitoring.AlertManager
	Feeds        []types.FeedSource
	DBPing       func(ctx context.Context) error
	RedisPing    func(ctx context.Context) error
}

// Container holds all service dependencies
type Container struct {
	mu        sync.RWMutex
	services  map[string]interface{}
	factories map[string]func() (interface{}, error)
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	return &Container{
		services:  make(map[string]interface{}),
		factories: make(map[string]func() (interface{}, error)),
	}
}

// Register registers a service instance
func (c *Container) Register(name string, service interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[name] = service
}

// RegisterFactory registers a factory function for lazy service creation
func (c *Container) RegisterFactory(name string, factory func() (interface{}, error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[name] = factory
}

// Get retrieves a service by name
func (c *Container) Get(name string) (interface{}, error) {
	c.mu.RLock()
	if service, exists := c.services[name]; exists {
		c.mu.RUnlock()
		return service, nil
	}
	factory, exists := c.factories[name]
	c.mu.RUnlock()

	if exists {
		service, err := factory()
		if err != nil {
			return nil, fmt.Errorf("failed to create service %s: %w", name, err)
		}
		c.Register(name, service)
		return service, nil
	}
	return nil, fmt.Errorf("service %s not found", name)
}

// GetLogger retrieves the logger service
func (c *Container) GetLogger() (*logrus.Logger, error) {
	service, err := c.Get("logger")
	if err != nil {
		return nil, err
	}
	logger, ok := service.(*logrus.Logger)
	if !ok {
		return nil, fmt.Errorf("logger service is not of expected type")
	}
	return logger, nil
}

// GetPostingStore retrieves the posting store
func (c *Container) GetPostingStore() (*store.PostingStore, error) {
	service, err := c.Get("postings")
	if err != nil {
		return nil, err
	}
	s, ok := service.(*store.PostingStore)
	if !ok {
		return nil, fmt.Errorf("postings service is not of expected type")
	}
	return s, nil
}

// GetAuditLog retrieves the audit log store
func (c *Container) GetAuditLog() (*store.AuditLog, error) {
	service, err := c.Get("auditlog")
	if err != nil {
		return nil, err
	}
	s, ok := service.(*store.AuditLog)
	if !ok {
		return nil, fmt.Errorf("auditlog service is not of expected type")
	}
	return s, nil
}

// GetQueue retrieves the import queue client
func (c *Container) GetQueue() (*queue.Client, error) {
	service, err := c.Get("queue")
	if err != nil {
		return nil, err
	}
	q, ok := service.(*queue.Client)
	if !ok {
		return nil, fmt.Errorf("queue service is not of expected type")
	}
	return q, nil
}

// GetHistoryCache retrieves the history cache
func (c *Container) GetHistoryCache() (*cache.HistoryCache, error) {
	service, err := c.Get("cache")
	if err != nil {
		return nil, err
	}
	hc, ok := service.(*cache.HistoryCache)
	if !ok {
		return nil, fmt.Errorf("cache service is not of expected type")
	}
	return hc, nil
}

// GetAlerts retrieves the alert manager
func (c *Container) GetAlerts() (*monitoring.AlertManager, error) {
	service, err := c.Get("alerts")
	if err != nil {
		return nil, err
	}
	am, ok := service.(*monitoring.AlertManager)
	if !ok {
		return nil, fmt.Errorf("alerts service is not of expected type")
	}
	return am, nil
}

// GetHandler retrieves the HTTP handler service
func (c *Container) GetHandler() (*handlers.Handler, error) {
	service, err := c.Get("handler")
	if err != nil {
		return nil, err
	}
	handler, ok := service.(*handlers.Handler)
	if !ok {
		return nil, fmt.Errorf("handler service is not of expected type")
	}
	return handler, nil
}

// InitializeServices registers all core services with proper dependencies
func (c *Container) InitializeServices(deps Dependencies) {
	c.Register("logger", deps.Logger)
	c.Register("postings", deps.PostingStore)
	c.Register("auditlog", deps.AuditLog)
	c.Register("queue", deps.Queue)
	c.Register("cache", deps.HistoryCache)
	c.Register("alerts", deps.Alerts)

	c.RegisterFactory("handler", func() (interface{}, error) {
		return handlers.NewHandler(
			deps.AuditLog,
			deps.PostingStore,
			deps.Queue,
			deps.HistoryCache,
			deps.Feeds,
			deps.DBPing,
			deps.RedisPing,
			deps.Logger,
		), nil
	})
}
