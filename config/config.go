// Package config loads service configuration from a .env file or the
// process environment.
package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port              string
	DatabaseURL       string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIModel       string
	ViatorAPIKey      string
	ViatorBaseURL     string
	ViatorAffiliateID string
	ChatHistoryLimit  int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, falling back to environment variables")
	}

	return &Config{
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		ViatorAPIKey:      getEnv("VIATOR_API_KEY", ""),
		ViatorBaseURL:     getEnv("VIATOR_BASE_URL", ""),
		ViatorAffiliateID: getEnv("VIATOR_AFFILIATE_ID", ""),
		ChatHistoryLimit:  getEnvInt("CHAT_HISTORY_LIMIT", 20),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Printf("Ignoring invalid value %q for %s", raw, key)
		return fallback
	}
	return n
}
