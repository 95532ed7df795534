package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"casefile/pkg/logger"

	"github.com/go-playground/validator"
	"github.com/joho/godotenv"
)

// Config holds every setting the worker needs, populated once at startup.
// Required fields are validated eagerly so a misconfigured deployment fails
// before the first job is picked up.
type Config struct {
	DatabaseURL   string `validate:"required"`
	MigrationsDir string

	RabbitMQURL string `validate:"required"`

	AWSRegion    string `validate:"required"`
	AWSEndpoint  string
	AWSAccessKey string `validate:"required"`
	AWSSecretKey string `validate:"required"`
	AWSBucket    string `validate:"required"`

	AIAdapter        string
	AIChatURL        string
	AIChatKey        string
	AIAudioURL       string
	AIAudioKey       string
	ExtractionModel  string `validate:"required"`
	SummaryModel     string
	AudioModel       string `validate:"required"`
	TokenEncoder     string
	MaxSummaryTokens int

	IndexEndpoint string
	IndexAPIKey   string
	SearchService string

	MaxChunkBytes int64
	PollInterval  time.Duration

	Debug bool
}

// Load reads the environment (and an optional .env file), builds the Config
// and validates it. Missing required fields return an error instead of
// surfacing later mid-job.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using system environment variables")
	}

	cfg := &Config{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		MigrationsDir: getString("MIGRATIONS_DIR", "migrations"),

		RabbitMQURL: os.Getenv("RABBITMQ_URL"),

		AWSRegion:    os.Getenv("AWS_REGION"),
		AWSEndpoint:  os.Getenv("AWS_ENDPOINT"),
		AWSAccessKey: os.Getenv("AWS_ACCESS_KEY"),
		AWSSecretKey: os.Getenv("AWS_SECRET_KEY"),
		AWSBucket:    os.Getenv("AWS_BUCKET"),

		AIAdapter:        getString("AI_ADAPTER", "openai"),
		AIChatURL:        os.Getenv("AI_CHAT_URL"),
		AIChatKey:        os.Getenv("AI_CHAT_KEY"),
		AIAudioURL:       os.Getenv("AI_AUDIO_URL"),
		AIAudioKey:       os.Getenv("AI_AUDIO_KEY"),
		ExtractionModel:  os.Getenv("AI_CHAT_EXTRACT_MODEL"),
		SummaryModel:     os.Getenv("AI_CHAT_SUMMARY_MODEL"),
		AudioModel:       getString("AI_AUDIO_MODEL", "whisper-1"),
		TokenEncoder:     getString("AI_TOKEN_ENCODER", "o200k_base"),
		MaxSummaryTokens: getInt("AI_MAX_SUMMARY_TOKENS", 8000),

		IndexEndpoint: os.Getenv("INDEX_ENDPOINT"),
		IndexAPIKey:   os.Getenv("INDEX_API_KEY"),
		SearchService: os.Getenv("SEARCH_SERVICE_ENDPOINT"),

		MaxChunkBytes: int64(getInt("MAX_CHUNK_BYTES", 25*1024*1024)),
		PollInterval:  time.Duration(getInt("POLL_INTERVAL_SECONDS", 10)) * time.Second,

		Debug: getBool("DEBUG", false),
	}

	if cfg.SummaryModel == "" {
		cfg.SummaryModel = cfg.ExtractionModel
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.MaxChunkBytes <= 0 {
		return nil, fmt.Errorf("invalid configuration: MAX_CHUNK_BYTES must be positive")
	}

	return cfg, nil
}

// DebugFromEnv reads the DEBUG flag directly, so logging can be initialized
// before the full configuration is loaded and validated.
func DebugFromEnv() bool {
	return getBool("DEBUG", false)
}

func getString(key string, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	return value
}

func getInt(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getBool(key string, defaultValue bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	if value == "true" || value == "false" {
		return value == "true"
	}
	return defaultValue
}
