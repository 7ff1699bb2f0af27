// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"drill-monitor/internal/config"
	"drill-monitor/internal/handler"
	"drill-monitor/internal/routes"
	"drill-monitor/internal/service"
	"drill-monitor/internal/utils"
)

// Application represents the main application
type Application struct {
	config *config.Config
	logger *zap.Logger
	server *http.Server

	monitorService   *service.MonitorService
	websocketHandler *handler.WebSocketHandler
	eventHandler     *handler.SensorEventHandler
}

func main() {
	// Initialize application
	app, err := NewApplication()
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	// Start the application
	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication() (*Application, error) {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Create service logger
	serviceLogger := utils.NewServiceLogger(logger, "drill-monitor")
	serviceLogger.LogServiceStart(cfg.App.Version, cfg)

	app := &Application{
		config: cfg,
		logger: logger,
	}

	// Initialize components
	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.initializeServer(); err != nil {
		return nil, fmt.Errorf("failed to initialize server: %w", err)
	}

	return app, nil
}

// initializeServices wires the measurement pipeline and its event sink
func (app *Application) initializeServices() error {
	monitorService, err := service.NewMonitorService(app.config, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create monitor service: %w", err)
	}
	app.monitorService = monitorService

	app.websocketHandler = handler.NewWebSocketHandler(app.monitorService, app.logger)

	// The event sink receives every decoded frame on the driver's reader
	// goroutine and fans out to MQTT and the WebSocket streams.
	app.eventHandler = handler.NewSensorEventHandler(
		app.monitorService,
		app.websocketHandler,
		app.logger,
	)
	app.monitorService.SetEventHandler(app.eventHandler)

	app.logger.Info("Services initialized successfully")
	return nil
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() error {
	// Create router
	routerManager := routes.NewRouter(
		app.config,
		app.logger,
		app.monitorService,
		app.websocketHandler,
	)

	// Setup router with all routes
	router := routerManager.SetupRouter()

	// Create HTTP server
	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
	)

	return nil
}

// autoConnect opens the sensor link on startup when configured. Failure
// is not fatal, the link can still be opened through the API.
func (app *Application) autoConnect() {
	if !app.config.Sensor.AutoConnect {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.monitorService.Connect(ctx); err != nil {
		app.logger.Warn("Auto-connect failed, sensor can be connected via API",
			zap.Error(err),
			zap.String("connection_type", app.config.Sensor.ConnectionType),
		)
		return
	}

	app.logger.Info("Sensor auto-connected",
		zap.String("connection_type", app.config.Sensor.ConnectionType),
	)
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	// Create channel to receive OS signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Wait for signal
	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	// Perform graceful shutdown
	app.shutdown()
}

// shutdown performs graceful shutdown
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, "drill-monitor")
	serviceLogger.LogServiceStop("shutdown signal received")

	// Shutdown HTTP server
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	// Close sensor link and MQTT connection
	if err := app.monitorService.Close(); err != nil {
		app.logger.Error("Sensor driver close error", zap.Error(err))
	} else {
		app.logger.Info("Sensor driver closed")
	}

	// Flush logger
	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}

	app.logger.Info("Application shutdown completed")
}

func (app *Application) Start() error {
	// Start server in goroutine
	go func() {
		app.logger.Info("Starting HTTP server",
			zap.String("address", app.server.Addr),
		)

		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Open the sensor link when configured to do so
	app.autoConnect()

	// Wait for interrupt signal
	app.waitForShutdown()

	return nil
}
