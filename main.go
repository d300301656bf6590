package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oks-citadel/apply-sla/config"
	"github.com/oks-citadel/apply-sla/handler"
	"github.com/oks-citadel/apply-sla/middleware"
	"github.com/oks-citadel/apply-sla/pkg/logger"
	"github.com/oks-citadel/apply-sla/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully")

	policy := service.PolicyFromConfig(cfg.Tiers)
	store := service.NewContractStore()

	// Durable audit archive, if configured
	if cfg.Archive.DSN != "" {
		archive, err := service.NewPostgresArchive(context.Background(), cfg.Archive.DSN)
		if err != nil {
			slog.Error("failed to initialize archive", "error", err)
			os.Exit(1)
		}
		defer archive.Close()
		if err := archive.EnsureSchema(context.Background()); err != nil {
			slog.Error("failed to ensure archive schema", "error", err)
			os.Exit(1)
		}
		store.SetArchiver(archive)
		slog.Info("postgres archive enabled")
	}

	// Violation report storage, if configured
	var reports *service.ReportArchive
	if cfg.Reports.Endpoint != "" {
		reports, err = service.NewReportArchive(&cfg.Reports)
		if err != nil {
			slog.Error("failed to initialize report archive", "error", err)
			os.Exit(1)
		}
		if err := reports.EnsureBucket(context.Background()); err != nil {
			slog.Error("failed to ensure report bucket", "error", err)
			os.Exit(1)
		}
		slog.Info("violation report archive enabled", "bucket", cfg.Reports.Bucket)
	}

	// Sweep lock: distributed when redis is configured
	var sweepLock service.SweepLock
	if cfg.Redis.Addr != "" {
		sweepLock = service.NewRedisSweepLock(&cfg.Redis)
		slog.Info("redis sweep lock enabled", "addr", cfg.Redis.Addr)
	} else {
		sweepLock = service.NewLocalSweepLock()
	}

	// Core services
	gate := service.NewProfileGate(&cfg.Eligibility, policy)
	contracts := service.NewContractService(store, gate, policy)
	tracker := service.NewProgressTracker(store)
	executor := service.NewRemedyExecutor(store, contracts, service.NewLoggingGateway())
	calculator := service.NewRemedyCalculator(policy)
	detector := service.NewViolationDetector(store, policy, calculator, executor, reports, sweepLock)
	dashboard := service.NewDashboardService(store, contracts, reports)

	// Handlers
	authHandler := handler.NewAuthHandler(cfg)
	contractHandler := handler.NewContractHandler(contracts, dashboard)
	progressHandler := handler.NewProgressHandler(store, tracker)
	remedyHandler := handler.NewRemedyHandler(store, executor, detector)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.RateLimit(100, time.Minute))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		contractCount, eventCount, violationCount, remedyCount := store.Counts()
		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"timestamp":  time.Now().Format(time.RFC3339),
			"contracts":  contractCount,
			"events":     eventCount,
			"violations": violationCount,
			"remedies":   remedyCount,
		})
	})

	// Public routes
	api := router.Group("/api")
	{
		api.POST("/auth/login", authHandler.Login)
	}

	// Protected routes
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)

		protected.POST("/contracts", contractHandler.Create)
		protected.GET("/contracts/status", contractHandler.Status)
		protected.GET("/contracts/dashboard", contractHandler.Dashboard)
		protected.POST("/contracts/extend", contractHandler.Extend)

		protected.POST("/progress/application", progressHandler.TrackApplication)
		protected.POST("/progress/response", progressHandler.TrackResponse)
		protected.POST("/progress/interview", progressHandler.TrackInterview)
		protected.POST("/progress/bulk", progressHandler.BulkTrack)
		protected.POST("/progress/:id/verify", progressHandler.Verify)

		protected.GET("/violations", remedyHandler.ListViolations)
		protected.GET("/violations/:id/remedies", remedyHandler.ListRemedies)
	}

	// Admin routes
	admin := protected.Group("/")
	admin.Use(middleware.RequireRole("admin"))
	{
		admin.POST("/remedies/:id/approve", remedyHandler.Approve)
		admin.POST("/remedies/:id/reject", remedyHandler.Reject)
		admin.POST("/admin/sweep", remedyHandler.TriggerSweep)
	}

	// Scheduled violation sweep
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	if cfg.Sweep.Enabled {
		go runSweepLoop(sweepCtx, detector, time.Duration(cfg.Sweep.IntervalHours)*time.Hour)
	}

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}

// runSweepLoop runs the violation sweep once per interval until ctx is
// cancelled.
func runSweepLoop(ctx context.Context, detector *service.ViolationDetector, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("violation sweep scheduled", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("sweep loop stopped")
			return
		case <-ticker.C:
			if _, err := detector.RunSweep(ctx); err != nil {
				slog.Error("scheduled sweep failed", "error", err)
			}
		}
	}
}
