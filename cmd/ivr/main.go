package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/kursadbilgin/notify-gateway/internal/handler"
	"github.com/kursadbilgin/notify-gateway/internal/observability"
	"go.uber.org/zap"
)

// The IVR service needs no database, so it reads only its own variables
// instead of the full gateway config.
func main() {
	_ = godotenv.Load()

	port := envOr("IVR_PORT", "5000")
	logger, err := observability.NewLogger(envOr("LOG_LEVEL", "info"), "ivr")
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          handler.ErrorHandler(logger),
	})
	app.Use(metrics.HTTPMiddleware())
	handler.RegisterIVRRoutes(app)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
			logger.Warn("ivr shutdown failed", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf(":%s", port)
	logger.Info("ivr service listening", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		logger.Fatal("ivr service failed", zap.Error(err))
	}
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
