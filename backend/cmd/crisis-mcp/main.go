package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/blackrose-blackhat/crisis-guard/backend/internal/audit"
	"github.com/blackrose-blackhat/crisis-guard/backend/internal/cache"
	"github.com/blackrose-blackhat/crisis-guard/backend/internal/config"
	"github.com/blackrose-blackhat/crisis-guard/backend/internal/crisis"
	"github.com/blackrose-blackhat/crisis-guard/backend/internal/escalation"
	"github.com/blackrose-blackhat/crisis-guard/backend/internal/mcp"
	"github.com/blackrose-blackhat/crisis-guard/backend/internal/routing"
	"github.com/blackrose-blackhat/crisis-guard/backend/internal/server"
	"github.com/joho/godotenv"
)

var version = "dev"

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger (log to stderr because stdout is for MCP)
	logger := log.New(os.Stderr, "[crisis-mcp] ", log.LstdFlags)

	// Load configuration
	cfg := config.Load()

	lib, err := crisis.OpenLibrary(cfg.Engine.LibraryPath)
	if err != nil {
		logger.Fatalf("Failed to load pattern library: %v", err)
	}

	router, err := routing.NewEngine(cfg.Routing.PolicyPath, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize routing engine: %v", err)
	}
	if cfg.Routing.HotReload && cfg.Routing.PolicyPath != "" {
		if err := router.StartHotReload(); err == nil {
			defer router.StopHotReload()
		}
	}

	sc := server.ServiceConfig{
		Engine: crisis.NewEngine(lib, logger),
		Router: router,
		Logger: logger,
	}
	if cfg.Cache.Enabled {
		sc.Cache = cache.NewResultCache(cfg.Cache.MaxSize, cfg.Cache.TTL)
	}
	if cfg.Escalation.Enabled {
		sc.Escalations = escalation.NewManager(escalation.Config{
			SLA:       cfg.Escalation.SLA,
			Retention: cfg.Escalation.Retention,
			MaxClosed: cfg.Escalation.MaxClosed,
		}, logger)
		sc.Escalations.SetNotifier(escalation.LogNotifier{Logger: logger})
	}
	// stdout carries the protocol, so audit entries need a file
	if cfg.Logging.Audit && cfg.Logging.AuditFile != "" {
		auditLogger, err := audit.NewLogger(cfg.Logging.AuditFile)
		if err != nil {
			logger.Fatalf("Failed to open audit log: %v", err)
		}
		defer auditLogger.Close()
		sc.Audit = auditLogger
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := mcp.NewServer(server.NewService(sc), version, logger)

	logger.Println("MCP Server starting on stdio...")
	if err := s.StartStdio(ctx); err != nil && ctx.Err() == nil {
		logger.Printf("[ERROR] MCP server stopped: %v", err)
	}
}
