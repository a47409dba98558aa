package bootstrap

import (
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"responder_server/adapter/in/http"
	"responder_server/config"
	"responder_server/infra/middleware"
	"responder_server/pkg/logger"
)

// NewAPI builds the Fiber app that serves the review workflow, the OAuth
// consent flow, and health checks.
func NewAPI(cfg *config.Config) (*fiber.App, func(), error) {
	logLevel := logger.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = logger.LevelDebug
	}
	logger.Init(logger.Config{
		Level:   logLevel,
		Service: "replyagent-api",
	})

	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize dependencies")
		return nil, nil, err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),

		ReadBufferSize:  16384,
		WriteBufferSize: 16384,

		// go-json is a drop-in replacement, roughly 2-3x faster than
		// encoding/json
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit: 1 * 1024 * 1024,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger())
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(cors.New(cors.Config{
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,X-Request-ID",
	}))

	// Health checks (no prefix)
	healthHandler := http.NewHealthHandler(deps.DB, deps.Redis, deps.MongoDB)
	healthHandler.Register(app)

	api := app.Group("/api/v1")

	// One-time Gmail consent flow for monitored accounts
	oauthHandler := http.NewOAuthHandler(deps.Gmail)
	oauthHandler.Register(api)

	// Draft review workflow
	responseHandler := http.NewResponseHandler(deps.Orchestrator)
	responseHandler.Register(api)

	// Per-account processing counters
	statsHandler := http.NewStatsHandler(deps.LogRepo)
	statsHandler.Register(api)

	logger.Info("API server initialized successfully")

	return app, cleanup, nil
}
