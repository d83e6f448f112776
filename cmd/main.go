package main

import (
	"context"

	"automation-service/internal/engine"
	"automation-service/internal/handler"
	mid "automation-service/internal/middleware"
	"automation-service/internal/repository"
	"automation-service/pkg/config"
	"automation-service/pkg/database"
	"automation-service/pkg/jwtutil"
	"automation-service/pkg/logger"
	"automation-service/prometheus"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		// Can't use structured logger yet since it's not initialized
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	logger.InitLogger(appConfig)
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting automation-service",
		zap.String("environment", appConfig.Server.Env),
		zap.String("port", appConfig.Server.Port))

	// Initialize JWT utility
	jwtutil.Initialize(&appConfig.JWT)
	log.Info("JWT utility initialized")

	// Initialize Prometheus metrics
	prometheus.InitMetrics(appConfig)
	log.Info("Prometheus metrics initialized",
		zap.String("metrics_prefix", appConfig.Metrics.Prefix))

	// Initialize database
	if err := database.InitDB(appConfig); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Wire the workflow engine
	store := repository.NewGormStore(database.GetDB())
	mailer := &engine.LogMailer{Log: log}
	registry := engine.DefaultRegistry(store, mailer, log)
	eng := engine.New(store, registry, log, appConfig.Engine.StepTimeout)
	log.Info("Workflow engine initialized",
		zap.Strings("step_types", registry.Types()),
		zap.Duration("step_timeout", appConfig.Engine.StepTimeout))

	// Optional in-process scheduler for the overdue sweep. Deployments that
	// use an external cron hit /cron/invoice-overdue instead.
	if appConfig.Cron.InProcess {
		scheduler := cron.New()
		_, err := scheduler.AddFunc(appConfig.Cron.Schedule, func() {
			if _, err := eng.RunOverdueInvoiceSweep(context.Background()); err != nil {
				log.Error("Scheduled sweep failed", zap.Error(err))
			}
		})
		if err != nil {
			log.Fatal("Invalid cron schedule", zap.String("schedule", appConfig.Cron.Schedule), zap.Error(err))
		}
		scheduler.Start()
		log.Info("In-process sweep scheduler started", zap.String("schedule", appConfig.Cron.Schedule))
	}

	// Initialize Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Recover())
	e.Use(mid.RequestIDMiddleware)
	e.Use(mid.MetricsMiddleware)

	// Routes
	// Metrics endpoint
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Health check endpoint
	e.GET("/health", handler.Health)

	// Cron entry point, protected by a bearer secret
	cronHandler := handler.NewCronHandler(eng, appConfig.Cron.Secret)
	e.GET("/cron/invoice-overdue", cronHandler.InvoiceOverdueSweep)

	// Workflow API routes - Apply auth middleware to validate JWT and extract tenant ID
	wh := handler.NewWorkflowHandler(store, eng)
	workflowAPI := e.Group("/api/workflows", mid.AuthMiddleware)
	workflowAPI.POST("", wh.CreateWorkflow)
	workflowAPI.GET("", wh.ListWorkflows)
	workflowAPI.GET("/:id", wh.GetWorkflow)
	workflowAPI.PUT("/:id", wh.UpdateWorkflow)
	workflowAPI.PATCH("/:id/status", wh.SetWorkflowStatus)
	workflowAPI.DELETE("/:id", wh.DeleteWorkflow)
	workflowAPI.POST("/:id/execute", wh.ExecuteWorkflow, mid.ManualExecuteRateLimiter())
	workflowAPI.GET("/:id/runs", wh.ListRuns)
	workflowAPI.GET("/runs/:run_id", wh.GetRun)

	// Start server
	port := appConfig.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Server error", zap.Error(err))
	}
}
