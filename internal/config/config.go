package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Port         string
	StoreDriver  string // sqlite, postgres or memory
	SQLitePath   string
	PostgresURL  string
	OpenAIAPIKey string
	Model        string
	LLMBaseURL   string
	RelayURL     string
}

type fileConfig struct {
	Port        string `toml:"port"`
	Store       string `toml:"store"`
	SQLitePath  string `toml:"sqlite_path"`
	PostgresURL string `toml:"postgres_url"`
	Model       string `toml:"model"`
	LLMBaseURL  string `toml:"llm_base_url"`
	RelayURL    string `toml:"relay_url"`
}

// Load resolves configuration from an optional TOML file (SEARCHCHAT_CONFIG)
// overridden by environment variables. The API key only ever comes from the
// environment.
func Load() (Config, error) {
	cfg := Config{
		Port:        "8080",
		StoreDriver: "sqlite",
		SQLitePath:  "searchchat.db",
		Model:       "gpt-4o",
	}

	if path := os.Getenv("SEARCHCHAT_CONFIG"); path != "" {
		var file fileConfig
		if _, err := toml.DecodeFile(path, &file); err != nil {
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
		applyFile(&cfg, file)
	}

	cfg.Port = getEnv("SEARCHCHAT_PORT", cfg.Port)
	cfg.StoreDriver = getEnv("SEARCHCHAT_STORE", cfg.StoreDriver)
	cfg.SQLitePath = getEnv("SEARCHCHAT_SQLITE_PATH", cfg.SQLitePath)
	cfg.PostgresURL = getEnv("POSTGRES_URL", cfg.PostgresURL)
	if cfg.PostgresURL == "" && cfg.StoreDriver == "postgres" {
		cfg.PostgresURL = buildPostgresURL()
	}
	cfg.OpenAIAPIKey = getEnv("OPENAI_API_KEY", "")
	cfg.Model = getEnv("LLM_MODEL", cfg.Model)
	cfg.LLMBaseURL = getEnv("LLM_BASE_URL", cfg.LLMBaseURL)
	cfg.RelayURL = getEnv("RELAY_URL", cfg.RelayURL)

	return cfg, nil
}

func applyFile(cfg *Config, file fileConfig) {
	if file.Port != "" {
		cfg.Port = file.Port
	}
	if file.Store != "" {
		cfg.StoreDriver = file.Store
	}
	if file.SQLitePath != "" {
		cfg.SQLitePath = file.SQLitePath
	}
	if file.PostgresURL != "" {
		cfg.PostgresURL = file.PostgresURL
	}
	if file.Model != "" {
		cfg.Model = file.Model
	}
	if file.LLMBaseURL != "" {
		cfg.LLMBaseURL = file.LLMBaseURL
	}
	if file.RelayURL != "" {
		cfg.RelayURL = file.RelayURL
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func buildPostgresURL() string {
	user := getEnv("POSTGRES_USER", "searchchat")
	password := getEnv("POSTGRES_PASSWORD", "searchchat")
	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	database := getEnv("POSTGRES_DB", "searchchat")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, database)
}
