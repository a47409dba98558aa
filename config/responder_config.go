package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	Environment string

	// Database
	DatabaseURL string
	MongoDBURL  string
	MongoDBName string
	RedisURL    string

	// LLM providers
	OpenAIAPIKey        string
	GeminiAPIKey        string
	LLMModel            string
	ClassifyTemperature float64
	ClassifyMaxTokens   int
	GenerateTemperature float64
	GenerateMaxTokens   int

	// OAuth - Google
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	GoogleTokenDir     string
	TokenEncryptionKey string

	// Monitored mailboxes
	MonitoredAccounts []string

	// Batch loop
	BatchInterval time.Duration
	MaxBatchSize  int

	// Learning
	PatternLookbackDays    int
	PatternMaxMessages     int
	SimilarityLookbackDays int
	SimilarityThreshold    float64
	PatternCacheTTL        time.Duration

	// Decision thresholds. Business tuning constants carried over as-is;
	// flagged for calibration, not derived.
	ConfidenceThreshold   float64
	AutoResponseThreshold float64
	AutoSendThreshold     float64

	// Pipeline
	ProcessedLabel string
}

func Load() (*Config, error) {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", ""),
		MongoDBURL:  getEnv("MONGODB_URL", ""),
		MongoDBName: getEnv("MONGODB_DATABASE", "replyagent"),
		RedisURL:    getEnv("REDIS_URL", ""),

		// LLM providers
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		LLMModel:            getEnv("LLM_MODEL", "gpt-4o-mini"),
		ClassifyTemperature: getEnvFloat("CLASSIFY_TEMPERATURE", 0.1),
		ClassifyMaxTokens:   getEnvInt("CLASSIFY_MAX_TOKENS", 500),
		GenerateTemperature: getEnvFloat("GENERATE_TEMPERATURE", 0.3),
		GenerateMaxTokens:   getEnvInt("GENERATE_MAX_TOKENS", 1500),

		// OAuth - Google
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
		GoogleTokenDir:     getEnv("GOOGLE_TOKEN_DIR", "tokens"),
		TokenEncryptionKey: getEnv("TOKEN_ENCRYPTION_KEY", ""),

		// Monitored mailboxes
		MonitoredAccounts: getEnvSlice("MONITORED_ACCOUNTS", []string{
			"contato@profdiogomoreira.com.br",
			"cursos@profdiogomoreira.com.br",
			"diogo@profdiogomoreira.com.br",
			"sac@profdiogomoreira.com.br",
		}),

		// Batch loop
		BatchInterval: time.Duration(getEnvInt("BATCH_INTERVAL_SEC", 300)) * time.Second,
		MaxBatchSize:  getEnvInt("MAX_BATCH_SIZE", 50),

		// Learning
		PatternLookbackDays:    getEnvInt("PATTERN_LOOKBACK_DAYS", 90),
		PatternMaxMessages:     getEnvInt("PATTERN_MAX_MESSAGES", 300),
		SimilarityLookbackDays: getEnvInt("SIMILARITY_LOOKBACK_DAYS", 180),
		SimilarityThreshold:    getEnvFloat("SIMILARITY_THRESHOLD", 0.3),
		PatternCacheTTL:        time.Duration(getEnvInt("PATTERN_CACHE_TTL_MIN", 30)) * time.Minute,

		// Decision thresholds
		ConfidenceThreshold:   getEnvFloat("CONFIDENCE_THRESHOLD", 0.7),
		AutoResponseThreshold: getEnvFloat("AUTO_RESPONSE_THRESHOLD", 0.85),
		AutoSendThreshold:     getEnvFloat("AUTO_SEND_THRESHOLD", 0.9),

		// Pipeline
		ProcessedLabel: getEnv("PROCESSED_LABEL", "AI-Processed"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
