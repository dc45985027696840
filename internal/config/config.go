package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	// Storage
	RedisURL string
	SaveSlot string

	// Narrator
	LLMProvider     string
	AnthropicAPIKey string
	VeniceAPIKey    string
	ModelName       string
	RequestTimeout  time.Duration
	HistoryLimit    int
	ContentRating   string
	PregenFile      string

	// Enrichment
	ImageModel        string
	SpeechVoice       string
	NarrationEnabled  bool
	SceneImageChance  float64
	SceneImageMinLen  int
	EnrichConcurrency int
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		LogLevel:        parseLogLevel(getEnv("LOG_LEVEL", "info")),
		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379"),
		SaveSlot:        getEnv("SAVE_SLOT", "default"),
		LLMProvider:     strings.ToLower(getEnv("LLM_PROVIDER", "anthropic")),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		VeniceAPIKey:    os.Getenv("VENICE_API_KEY"),
		ModelName:       os.Getenv("MODEL_NAME"),
		ContentRating:   strings.ToUpper(getEnv("CONTENT_RATING", "PG13")),
		PregenFile:      os.Getenv("PREGEN_FILE"),
		ImageModel:      getEnv("IMAGE_MODEL", "flux-dev"),
		SpeechVoice:     getEnv("SPEECH_VOICE", "am_onyx"),
	}

	var err error
	if cfg.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", 90*time.Second); err != nil {
		return nil, err
	}
	if cfg.HistoryLimit, err = getInt("HISTORY_LIMIT", 20); err != nil {
		return nil, err
	}
	if cfg.NarrationEnabled, err = getBool("NARRATION_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.SceneImageChance, err = getFloat("SCENE_IMAGE_CHANCE", 0.3); err != nil {
		return nil, err
	}
	if cfg.SceneImageMinLen, err = getInt("SCENE_IMAGE_MIN_LENGTH", 400); err != nil {
		return nil, err
	}
	if cfg.EnrichConcurrency, err = getInt("ENRICH_CONCURRENCY", 4); err != nil {
		return nil, err
	}

	if cfg.ModelName == "" {
		cfg.ModelName = defaultModel(cfg.LLMProvider)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and provider credentials.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when LLM_PROVIDER is anthropic")
		}
	case "venice":
		if c.VeniceAPIKey == "" {
			return fmt.Errorf("VENICE_API_KEY is required when LLM_PROVIDER is venice")
		}
	case "mock":
	default:
		return fmt.Errorf("invalid LLM_PROVIDER %q, supported: anthropic, venice, mock", c.LLMProvider)
	}
	if c.SceneImageChance < 0 || c.SceneImageChance > 1 {
		return fmt.Errorf("SCENE_IMAGE_CHANCE must be between 0 and 1, got %v", c.SceneImageChance)
	}
	if c.EnrichConcurrency < 1 {
		return fmt.Errorf("ENRICH_CONCURRENCY must be at least 1, got %d", c.EnrichConcurrency)
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("HISTORY_LIMIT must not be negative, got %d", c.HistoryLimit)
	}
	if c.SaveSlot == "" {
		return fmt.Errorf("SAVE_SLOT must not be empty")
	}
	return nil
}

// MediaEnabled reports whether image and speech jobs have a backend.
func (c *Config) MediaEnabled() bool {
	return c.VeniceAPIKey != ""
}

func defaultModel(provider string) string {
	switch provider {
	case "venice":
		return "llama-3.3-70b"
	default:
		return "claude-sonnet-4-5"
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
