package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// App
	Port string
	Env  string

	// Neo4j (all three must be set for the primary backend to be attempted)
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	// Fallback file store
	MemoryFilePath string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		Neo4jURI:       getEnv("NEO4J_URI", ""),
		Neo4jUser:      getEnv("NEO4J_USER", ""),
		Neo4jPassword:  getEnv("NEO4J_PASSWORD", ""),
		MemoryFilePath: getEnv("MEMORY_FILE_PATH", "memory.jsonl"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set.
// Neo4j credentials are optional: without them the store runs file-only.
func (c *Config) Validate() error {
	if c.MemoryFilePath == "" {
		return fmt.Errorf("MEMORY_FILE_PATH is required")
	}
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	return nil
}

// Neo4jConfigured returns true when every credential needed to attempt the
// primary backend is present.
func (c *Config) Neo4jConfigured() bool {
	return c.Neo4jURI != "" && c.Neo4jUser != "" && c.Neo4jPassword != ""
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
