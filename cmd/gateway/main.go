package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/anova4all/gateway/internal/anovawifi"
	anovaevent "github.com/anova4all/gateway/internal/anovawifi/event"
	"github.com/anova4all/gateway/internal/api"
	"github.com/anova4all/gateway/internal/config"
	"github.com/anova4all/gateway/internal/health"
	"github.com/anova4all/gateway/internal/logger"
	"github.com/anova4all/gateway/internal/metrics"
	"github.com/anova4all/gateway/internal/sse"
)

// httpPort is fixed; only the appliance-facing TCP port is configurable.
const httpPort = 8000

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		LogDir:     cfg.LogDir,
		MaxSizeMB:  50,
		MaxBackups: 5,
		MaxAgeDays: 7,
		Compress:   true,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.Get()
	defer logger.Sync()

	manager := anovawifi.NewManager(log)
	hub := sse.NewHub()
	m := metrics.NewMetrics()
	manager.SetMetrics(m)
	hub.SetMetrics(m)

	tcpServer := anovawifi.NewServer(cfg.ServerHost, cfg.ServerPort, log, manager.HandleConnection)

	// Wired by hand rather than via hub.RegisterWithManager: the wildcard
	// disconnect subscriber is single-slot, so the metrics and SSE sides
	// are composed into one callback instead of each claiming it.
	manager.OnConnected(func(id string) {
		m.DeviceConnected()
		hub.Broadcast(sse.Event{Type: sse.TypeDeviceConnected, DeviceID: id})
	})
	manager.OnDisconnected("*", func(id string) {
		m.DeviceDisconnected()
		hub.Broadcast(sse.Event{Type: sse.TypeDeviceDisconnected, DeviceID: id})
	})
	manager.OnStateChange("*", func(id string, state anovawifi.DeviceState) {
		hub.Broadcast(sse.Event{Type: sse.TypeStateChanged, DeviceID: id, Payload: state})
	})
	manager.OnEvent("*", func(id string, evt anovaevent.Event) {
		hub.Broadcast(sse.Event{Type: sse.TypeEvent, DeviceID: id, Payload: evt})
	})

	checker := health.NewHealthChecker()
	checker.RegisterCheck("tcp_server", health.TCPServerHealthCheck(tcpServer.Alive), 15*time.Second)
	checker.RegisterCheck("device_manager", health.ManagerHealthCheck(manager.Count), 15*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	checker.StartPeriodicChecks(ctx)

	serverErrCh := make(chan error, 1)
	go func() {
		log.Sugar().Infof("appliance TCP server listening on %s:%d", cfg.ServerHost, cfg.ServerPort)
		serverErrCh <- tcpServer.Serve()
	}()

	service := api.NewService(manager, hub, cfg, m, log)
	handler := api.NewHandler(service)

	app := fiber.New(fiber.Config{
		AppName:               "anova4all-gateway",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(metrics.MetricsMiddleware(m))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	app.Get("/api/health", func(c *fiber.Ctx) error {
		results := checker.RunChecks(c.Context())
		status := checker.GetOverallStatus()
		code := fiber.StatusOK
		if status == health.StatusUnhealthy {
			code = fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{"status": status, "checks": results})
	})
	app.Get("/api/metrics", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/plain; version=0.0.4")
		return c.SendString(m.PrometheusFormat())
	})

	handler.SetupRoutes(app)

	if cfg.FrontendDistDir != "" {
		app.Static("/", cfg.FrontendDistDir)
	}

	httpAddr := fmt.Sprintf("0.0.0.0:%d", httpPort)
	go func() {
		log.Sugar().Infof("HTTP API listening on http://%s", httpAddr)
		serverErrCh <- app.Listen(httpAddr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Sugar().Infof("received %s, shutting down", sig)
	case err := <-serverErrCh:
		if err != nil {
			log.Sugar().Errorf("server error: %v", err)
		}
	}

	cancel()
	_ = app.ShutdownWithTimeout(5 * time.Second)
	_ = tcpServer.Close()
	manager.Stop()
	log.Info("shutdown complete")
}
