package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	CryptoPanicKey string
	CryptoPanicURL string
	OpenAIAPIKey   string
	OpenAIModel    string
	GeminiAPIKey   string
	GeminiModel    string
	TelegramToken  string
	TelegramChatID string
	RedisURL       string
	PollInterval   time.Duration
	FetchLimit     int
	SeenTTL        time.Duration
	ServerPort     string
	EnableMonitor  bool
	LogLevel       string
}

// Load reads configuration from the environment. Local .env files are applied
// first when present so development overrides work without exporting vars.
func Load() (*Config, error) {
	for _, file := range []string{".env", ".env.dev"} {
		if _, err := os.Stat(file); err == nil {
			_ = godotenv.Overload(file)
		}
	}

	cfg := &Config{
		CryptoPanicKey: getEnv("CRYPTOPANIC_KEY", ""),
		CryptoPanicURL: getEnv("CRYPTOPANIC_API_URL", "https://cryptopanic.com/api/v1/posts/"),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		TelegramToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID: getEnv("TELEGRAM_CHAT_ID", ""),
		RedisURL:       getEnv("REDIS_URL", ""),
		PollInterval:   getEnvAsDuration("POLL_INTERVAL", 90*time.Second),
		FetchLimit:     getEnvAsInt("FETCH_LIMIT", 15),
		SeenTTL:        getEnvAsDuration("SEEN_TTL", 168*time.Hour),
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		EnableMonitor:  getEnvAsBool("ENABLE_MONITORING", true),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}

	return cfg, cfg.Validate()
}

// Validate checks the credentials without which the worker cannot do its job.
// GEMINI_API_KEY is deliberately optional: without it the worker posts text-only.
func (c *Config) Validate() error {
	if c.CryptoPanicKey == "" {
		return fmt.Errorf("CRYPTOPANIC_KEY is required")
	}
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if c.TelegramChatID == "" {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if c.FetchLimit <= 0 {
		return fmt.Errorf("FETCH_LIMIT must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
