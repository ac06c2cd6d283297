// server is the Dementia MCP memory server binary: persistent, versioned,
// project-isolated context storage for AI agents over the MCP stdio
// transport, with an HTTP health surface alongside.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/fredcamaral/gomcp-sdk/transport"

	"dementia-mcp/internal/api"
	"dementia-mcp/internal/config"
	"dementia-mcp/internal/di"
	"dementia-mcp/internal/logging"
	"dementia-mcp/internal/mcp"
)

func main() {
	var (
		healthAddr = flag.String("health-addr", ":9180", "Health endpoint listen address; empty disables")
	)
	flag.Parse()

	// stdout belongs to the MCP transport; all diagnostics go to stderr.
	banner := color.New(color.FgCyan, color.Bold)
	fail := color.New(color.FgRed, color.Bold)

	cfg, err := config.LoadConfig()
	if err != nil {
		_, _ = fail.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(logging.NewLogger(logging.ParseLevel(cfg.Logging.Level)))

	logger := logging.WithComponent("server")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	container, err := di.NewContainer(ctx, cfg)
	if err != nil {
		_, _ = fail.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := container.Close(); cerr != nil {
			logger.Error("shutdown error", "error", cerr)
		}
	}()

	go container.Cleaner.Run(ctx)

	var healthServer *api.HealthServer
	if *healthAddr != "" {
		healthServer = api.NewHealthServer(*healthAddr, container.Engine)
		go func() {
			if herr := healthServer.Start(); herr != nil {
				logger.Error("health server failed", "error", herr)
			}
		}()
	}

	memoryServer := mcp.NewMemoryServer(container.Engine, container.Middleware)
	mcpServer := memoryServer.GetMCPServer()
	mcpServer.SetTransport(transport.NewStdioTransport())

	_, _ = banner.Fprintln(os.Stderr, "dementia memory server ready on stdio")
	logger.Info("server starting",
		"health_addr", *healthAddr,
		"embeddings", cfg.EmbeddingsEnabled())

	if err := mcpServer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("mcp server failed", "error", err)
	}

	if healthServer != nil {
		drainCtx, drainCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if herr := healthServer.Shutdown(drainCtx); herr != nil {
			logger.Warn("health server drain failed", "error", herr)
		}
		drainCancel()
	}
	logger.Info("server stopped")
}
