package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blackrose-blackhat/crisis-guard/backend/internal/audit"
	"github.com/blackrose-blackhat/crisis-guard/backend/internal/cache"
	"github.com/blackrose-blackhat/crisis-guard/backend/internal/config"
	"github.com/blackrose-blackhat/crisis-guard/backend/internal/crisis"
	"github.com/blackrose-blackhat/crisis-guard/backend/internal/escalation"
	"github.com/blackrose-blackhat/crisis-guard/backend/internal/metrics"
	"github.com/blackrose-blackhat/crisis-guard/backend/internal/routing"
	"github.com/blackrose-blackhat/crisis-guard/backend/internal/server"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger
	logger := log.New(os.Stdout, "[crisisd] ", log.LstdFlags|log.Lshortfile)

	// Load configuration
	cfg := config.Load()
	logger.Println("Configuration loaded")

	lib, err := crisis.OpenLibrary(cfg.Engine.LibraryPath)
	if err != nil {
		logger.Fatalf("Failed to load pattern library: %v", err)
	}
	engine := crisis.NewEngine(lib, logger)

	// Initialize Cedar routing engine
	router, err := routing.NewEngine(cfg.Routing.PolicyPath, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize routing engine: %v", err)
	}
	if cfg.Routing.HotReload && cfg.Routing.PolicyPath != "" {
		if err := router.StartHotReload(); err != nil {
			logger.Printf("[WARN] Routing policy hot reload disabled: %v", err)
		}
		defer router.StopHotReload()
	}

	sc := server.ServiceConfig{
		Engine:           engine,
		Router:           router,
		Logger:           logger,
		BatchConcurrency: cfg.Engine.BatchConcurrency,
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
	if cfg.Logging.Audit {
		auditLogger, err := audit.NewLogger(cfg.Logging.AuditFile)
		if err != nil {
			logger.Fatalf("Failed to open audit log: %v", err)
		}
		defer auditLogger.Close()
		sc.Audit = auditLogger
	}

	hc := &server.HandlerConfig{
		Service:        server.NewService(sc),
		MaxRequestSize: cfg.Server.MaxRequestSize,
		MaxBatchSize:   cfg.Server.MaxBatchSize,
	}
	if cfg.Metrics.Enabled {
		metrics.Init()
		hc.MetricsEndpoint = cfg.Metrics.Endpoint
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server.NewHandler(hc),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Println("=================================")
	logger.Println("Crisis Guard Starting")
	logger.Println("=================================")
	logger.Printf("Server:   http://%s", srv.Addr)
	logger.Printf("Library:  v%s (%d patterns)", lib.Version(), len(lib.Patterns()))
	logger.Printf("Policy:   %s", router.PolicyVersion())
	logger.Println("=================================")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Printf("[ERROR] Shutdown failed: %v", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("Server failed: %v", err)
	}
	logger.Println("Server stopped")
}
