// Package di provides the dependency injection container for the
// application.
package di

import (
	"context"
	"fmt"

	"dementia-mcp/internal/ai"
	"dementia-mcp/internal/config"
	"dementia-mcp/internal/embeddings"
	"dementia-mcp/internal/logging"
	"dementia-mcp/internal/memory"
	"dementia-mcp/internal/session"
	"dementia-mcp/internal/storage"
)

// Container holds all application dependencies, built in dependency order.
type Container struct {
	Config       *config.Config
	Adapter      *storage.Adapter
	Schemas      *storage.Schemas
	SessionStore session.Store
	ProjectCache *session.ProjectCache
	Middleware   *session.Middleware
	Cleaner      *session.Cleaner
	Embedder     embeddings.Service
	Completer    ai.Completer
	Engine       *memory.Engine

	logger logging.Logger
}

// NewContainer builds the dependency graph. The database is contacted once
// to verify connectivity and ensure the control schema.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{
		Config: cfg,
		logger: logging.WithComponent("container"),
	}

	if err := c.initializeStorage(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.initializeCollaborators()
	c.initializeSessions()
	c.initializeEngine()

	return c, nil
}

func (c *Container) initializeStorage(ctx context.Context) error {
	adapter, err := storage.NewAdapter(&c.Config.Database)
	if err != nil {
		return err
	}
	if err := adapter.Ping(ctx); err != nil {
		_ = adapter.Close()
		return err
	}

	schemas := storage.NewSchemas(adapter)
	if err := schemas.EnsureSystem(ctx); err != nil {
		_ = adapter.Close()
		return err
	}

	c.Adapter = adapter
	c.Schemas = schemas
	return nil
}

// initializeCollaborators wires the optional AI services. Missing
// credentials leave them nil; the engine degrades those paths.
func (c *Container) initializeCollaborators() {
	if !c.Config.EmbeddingsEnabled() {
		c.logger.Info("embeddings disabled, semantic search will degrade to keyword search")
		return
	}
	c.Embedder = embeddings.NewOpenAIService(&c.Config.OpenAI)
	c.Completer = ai.NewOpenAICompleter(&c.Config.OpenAI)
}

func (c *Container) initializeSessions() {
	c.SessionStore = session.NewPostgresStore(c.Adapter)
	c.ProjectCache = session.NewProjectCache()
	c.Middleware = session.NewMiddleware(c.SessionStore, c.ProjectCache)
	c.Cleaner = session.NewCleaner(c.SessionStore,
		c.Config.Session.CleanupInterval(), c.Config.Session.Expiry())
}

func (c *Container) initializeEngine() {
	c.Engine = memory.NewEngine(
		c.Adapter, c.Schemas, c.SessionStore, c.ProjectCache,
		c.Embedder, c.Completer, c.Config)
}

// Close releases held resources.
func (c *Container) Close() error {
	if c.Adapter != nil {
		return c.Adapter.Close()
	}
	return nil
}
