package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"eldercare-vitals/database/migrations"
	"eldercare-vitals/database/postgres"
	"eldercare-vitals/database/sqlite"
	"eldercare-vitals/internal/api/vital"
	vitalHandler "eldercare-vitals/internal/api/vital/handler"
	vitalRecognition "eldercare-vitals/internal/api/vital/recognition"
	vitalRepository "eldercare-vitals/internal/api/vital/repository"
	vitalService "eldercare-vitals/internal/api/vital/service"
	"eldercare-vitals/internal/middleware"
	"eldercare-vitals/pkg/gemini"
	"eldercare-vitals/pkg/ocr"
	"eldercare-vitals/pkg/openai"
	"eldercare-vitals/pkg/redis"
	"eldercare-vitals/pkg/s3"
	"eldercare-vitals/pkg/utils"
	websocketPkg "eldercare-vitals/pkg/websocket"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type ServerOption func(*Server) error

// visionClient is what both fallback providers offer.
type visionClient interface {
	vitalService.VisionModel
	Close() error
}

type Server struct {
	engine        *fiber.App
	db            *sqlx.DB
	log           *logrus.Logger
	middleware    middleware.Middleware
	validator     *validator.Validate
	utils         utils.IUtils
	handlers      []handler
	redisServer   redis.IRedis
	s3Client      s3.ItfS3
	meterDetector websocketPkg.IWebsocket
	fallbackModel visionClient
	models        *vitalRecognition.Models
	settings      vital.Settings
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{settings: vital.DefaultSettings()}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if server.fallbackModel == nil {
		return nil, fmt.Errorf("fallback model is required")
	}
	if server.models == nil {
		return nil, fmt.Errorf("recognition models are required")
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithVitalSettings(settings vital.Settings) ServerOption {
	return func(s *Server) error {
		s.settings = settings
		return nil
	}
}

// WithDatabase connects to DB_DRIVER (postgres or sqlite) and applies the schema
// when DB_AUTO_MIGRATE is true.
func WithDatabase() ServerOption {
	return func(s *Server) error {
		driver := strings.ToLower(os.Getenv("DB_DRIVER"))
		if driver == "" {
			driver = "postgres"
		}

		var (
			db  *sqlx.DB
			err error
		)
		switch driver {
		case "postgres":
			db, err = postgres.New()
		case sqlite.DriverName:
			db, err = sqlite.New()
		default:
			return fmt.Errorf("unsupported DB_DRIVER %q", driver)
		}
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to connect to database: %v", err)
			}
			return fmt.Errorf("failed to create database connection: %w", err)
		}

		if os.Getenv("DB_AUTO_MIGRATE") == "true" {
			if err := migrations.Apply(context.Background(), db, driver); err != nil {
				_ = db.Close()
				return fmt.Errorf("failed to migrate database: %w", err)
			}
		}

		s.db = db
		return nil
	}
}

func WithRedisServer(redisServer redis.IRedis) ServerOption {
	return func(s *Server) error {
		s.redisServer = redisServer
		return nil
	}
}

// WithS3Client enables photo archiving. Without AWS_BUCKET_NAME archiving is skipped.
func WithS3Client() ServerOption {
	return func(s *Server) error {
		if os.Getenv("AWS_BUCKET_NAME") == "" {
			if s.log != nil {
				s.log.Warn("AWS_BUCKET_NAME not set, capture photos will not be archived")
			}
			return nil
		}

		client, err := s3.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to initialize S3 client: %v", err)
			}
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		s.s3Client = client
		return nil
	}
}

// WithFallbackModel picks the vision provider named by FALLBACK_PROVIDER.
func WithFallbackModel() ServerOption {
	return func(s *Server) error {
		provider := strings.ToLower(os.Getenv("FALLBACK_PROVIDER"))

		var (
			client visionClient
			err    error
		)
		switch provider {
		case "", "gemini":
			client, err = gemini.NewGeminiClient()
		case "openai":
			client, err = openai.NewVision()
		default:
			return fmt.Errorf("unsupported FALLBACK_PROVIDER %q", provider)
		}
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to create fallback model client: %v", err)
			}
			return fmt.Errorf("failed to create fallback model client: %w", err)
		}

		s.fallbackModel = client
		return nil
	}
}

func WithMeterDetector(detector websocketPkg.IWebsocket) ServerOption {
	return func(s *Server) error {
		s.meterDetector = detector
		return nil
	}
}

// WithRecognitionModels registers the lazy loader for the primary recognizer.
// The OCR engines are only created on the first capture.
func WithRecognitionModels() ServerOption {
	return func(s *Server) error {
		if s.meterDetector == nil {
			return fmt.Errorf("meter detector must be initialized before recognition models")
		}

		detector := s.meterDetector
		s.models = vitalRecognition.NewModels(func() (*vitalRecognition.ModelSet, error) {
			pool, err := ocr.NewPoolFromEnv()
			if err != nil {
				return nil, err
			}
			return vitalRecognition.NewModelSet(detector, pool, pool.Close), nil
		}, s.log)

		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log)
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.NewWithLimits(s.settings.MaxImageBytes, s.settings.MaxImagePixels)
		return nil
	}
}

func (s *Server) RegisterHandler() {
	// Vital Domain
	vitalRepo := vitalRepository.New(s.db, s.log)
	primary := vitalRecognition.NewPrimaryRecognizer(s.models, s.settings.DetectionConfidence, s.log)
	vitalServices := vitalService.NewVitalService(s.log, vitalRepo, primary, s.fallbackModel, s.redisServer, s.s3Client, s.utils, vital.SelfOnly{}, s.settings)
	vitalHandlers := vitalHandler.New(s.log, s.validator, s.middleware, vitalServices, s.utils)

	s.setupHealthCheck()
	s.handlers = append(s.handlers, vitalHandlers)
}

func (s *Server) Run() error {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())
	router := s.engine.Group("/api/v1")

	for _, h := range s.handlers {
		h.Start(router)
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "3000"
	}

	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

// Shutdown stops accepting requests and releases every client the server owns.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.engine.ShutdownWithContext(ctx); err != nil {
		s.log.Errorf("Failed to shut down http server: %v", err)
	}

	if s.models != nil {
		if err := s.models.Close(); err != nil {
			s.log.Errorf("Failed to release recognition models: %v", err)
		}
	}
	if s.meterDetector != nil {
		s.meterDetector.CloseConnections()
	}
	if s.fallbackModel != nil {
		if err := s.fallbackModel.Close(); err != nil {
			s.log.Errorf("Failed to close fallback model client: %v", err)
		}
	}
	if s.redisServer != nil {
		if err := s.redisServer.Close(); err != nil {
			s.log.Errorf("Failed to close redis client: %v", err)
		}
	}

	return s.db.Close()
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message": "Server is Healthy!",
		})
	})
}
