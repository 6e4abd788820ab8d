package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eldercare-vitals/internal/api/vital"
	"eldercare-vitals/internal/config"
	"eldercare-vitals/pkg/log"
	"eldercare-vitals/pkg/redis"
	websocketPkg "eldercare-vitals/pkg/websocket"

	"github.com/joho/godotenv"
)

func main() {
	logger := log.NewLogger()
	if err := godotenv.Load(); err != nil {
		logger.Warnf("No .env file loaded: %v", err)
	}

	fiberApp := config.NewFiber(logger)
	validator := config.NewValidator()
	redisServer := redis.New()
	meterDetector := websocketPkg.NewMeterDetectionClient(logger)

	server, err := config.NewServer(
		config.WithFiber(fiberApp),
		config.WithLogger(logger),
		config.WithVitalSettings(vital.SettingsFromEnv()),
		config.WithValidator(validator),
		config.WithDatabase(),
		config.WithRedisServer(redisServer),
		config.WithMeterDetector(meterDetector),
		config.WithRecognitionModels(),
		config.WithFallbackModel(),
		config.WithMiddleware(),
		config.WithS3Client(),
		config.WithUtils(),
	)
	if err != nil {
		logger.Fatal(err)
	}

	server.RegisterHandler()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	logger.Info("Server started successfully")

	<-sigChan
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Shutdown finished with error: %v", err)
	}
}
