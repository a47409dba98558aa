package bootstrap

import (
	"context"
	"io"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"responder_server/adapter/out/cache"
	"responder_server/adapter/out/llm"
	"responder_server/adapter/out/mongodb"
	"responder_server/adapter/out/persistence"
	"responder_server/adapter/out/provider/gmail"
	"responder_server/config"
	"responder_server/core/domain"
	"responder_server/core/port/out"
	"responder_server/core/service/classification"
	"responder_server/core/service/generation"
	"responder_server/core/service/learning"
	"responder_server/core/service/pipeline"
	"responder_server/infra/database"
	"responder_server/pkg/crypto"
	"responder_server/pkg/logger"
)

// Dependencies holds every constructed component. No ambient singletons;
// everything is wired here and passed down explicitly.
type Dependencies struct {
	Config *config.Config

	DB      *sqlx.DB
	Redis   *redis.Client
	MongoDB *mongo.Client

	// Repositories
	MessageRepo  out.MessageRepository
	ResponseRepo out.ResponseRepository
	TemplateRepo out.TemplateRepository
	LogRepo      out.LogRepository
	PatternCache out.PatternCache

	// Providers
	Gmail *gmail.Adapter
	LLM   out.TextCompleter

	// Services
	Classifier      *classification.Classifier
	Generator       *generation.Generator
	Miner           *learning.Miner
	Searcher        *learning.Searcher
	ContextAnalyzer *learning.ContextAnalyzer
	Orchestrator    *pipeline.Orchestrator
}

// NewDependencies wires the full graph. The returned cleanup closes every
// connection; callers run it on shutdown.
func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// Postgres
	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	deps.DB = db
	cleanups = append(cleanups, func() {
		if err := db.Close(); err != nil {
			logger.Error("postgres close: %v", err)
		}
	})
	logger.Info("Connected to PostgreSQL")

	// Redis
	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.Redis = redisClient
	cleanups = append(cleanups, func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("redis close: %v", err)
		}
	})
	logger.Info("Connected to Redis")

	// MongoDB
	mongoClient, err := mongodb.NewClient(cfg.MongoDBURL)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.MongoDB = mongoClient
	cleanups = append(cleanups, func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			logger.Error("mongodb disconnect: %v", err)
		}
	})
	logger.Info("Connected to MongoDB")

	// Repositories
	deps.MessageRepo = persistence.NewMessageAdapter(db)
	deps.ResponseRepo = persistence.NewResponseAdapter(db)
	deps.TemplateRepo = persistence.NewTemplateAdapter(db)
	deps.PatternCache = cache.NewPatternCache(redisClient)

	logAdapter := mongodb.NewLogAdapter(mongoClient.Database(cfg.MongoDBName))
	if err := logAdapter.EnsureIndexes(context.Background()); err != nil {
		logger.Warn("mongodb index creation failed: %v", err)
	}
	deps.LogRepo = logAdapter

	// Mail provider. Tokens are sealed at rest when a key is configured.
	var encryptor *crypto.Encryptor
	if cfg.TokenEncryptionKey != "" {
		encryptor, err = crypto.NewEncryptor([]byte(cfg.TokenEncryptionKey))
		if err != nil {
			cleanup()
			return nil, nil, err
		}
	} else {
		logger.Warn("TOKEN_ENCRYPTION_KEY not set, storing OAuth tokens in plaintext")
	}
	deps.Gmail = gmail.NewAdapter(gmail.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		TokenDir:     cfg.GoogleTokenDir,
		Encryptor:    encryptor,
	})

	// LLM completer, picked by model name
	completer, err := llm.NewCompleter(context.Background(), llm.FactoryConfig{
		Model:        cfg.LLMModel,
		OpenAIAPIKey: cfg.OpenAIAPIKey,
		GeminiAPIKey: cfg.GeminiAPIKey,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.LLM = completer
	if closer, ok := completer.(io.Closer); ok {
		cleanups = append(cleanups, func() {
			if err := closer.Close(); err != nil {
				logger.Error("llm client close: %v", err)
			}
		})
	}
	logger.Info("LLM completer ready (model %s)", cfg.LLMModel)

	// Services
	profile := domain.DefaultBusinessProfile()
	deps.Classifier = classification.NewClassifier(completer, profile, cfg.ClassifyTemperature, cfg.ClassifyMaxTokens)
	deps.Generator = generation.NewGenerator(completer, profile, cfg.GenerateTemperature, cfg.GenerateMaxTokens)
	deps.Miner = learning.NewMiner(deps.Gmail, deps.PatternCache, learning.MinerConfig{
		LookbackDays: cfg.PatternLookbackDays,
		MaxMessages:  cfg.PatternMaxMessages,
		CacheTTL:     cfg.PatternCacheTTL,
	})
	deps.Searcher = learning.NewSearcher(deps.Gmail, cfg.SimilarityLookbackDays)
	deps.ContextAnalyzer = learning.NewContextAnalyzer(deps.Gmail)

	deps.Orchestrator = pipeline.NewOrchestrator(
		deps.Gmail,
		deps.MessageRepo,
		deps.ResponseRepo,
		deps.TemplateRepo,
		deps.LogRepo,
		deps.Classifier,
		deps.Generator,
		deps.Miner,
		deps.Searcher,
		deps.ContextAnalyzer,
		pipeline.Config{
			Thresholds: pipeline.Thresholds{
				Confidence:   cfg.ConfidenceThreshold,
				AutoResponse: cfg.AutoResponseThreshold,
				AutoSend:     cfg.AutoSendThreshold,
			},
			MaxBatchSize:        cfg.MaxBatchSize,
			SimilarityThreshold: cfg.SimilarityThreshold,
			ProcessedLabel:      cfg.ProcessedLabel,
		},
	)

	logger.Info("Dependencies initialized")
	return deps, cleanup, nil
}
