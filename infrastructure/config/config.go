package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Store backends selectable through STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendBadger   = "badger"
	BackendDynamoDB = "dynamodb"
)

// Config holds all application configuration
type Config struct {
	Environment string

	// Persistence
	StoreBackend  string
	DynamoDBTable string
	IndexName     string // GSI1 - children by parent
	GSI2IndexName string // GSI2 - operations by discussion
	BadgerPath    string

	// AWS configuration
	AWSRegion    string
	EventBusName string

	// Logging
	LogLevel string

	// Feature flags
	EnableMetrics    bool
	EnableTracing    bool
	MetricsNamespace string

	// Domain overrides; zero keeps the domain default
	MaxTreeDepth     int
	CacheTTLSeconds  int
	DomainConfigFile string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),

		StoreBackend:  strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),
		DynamoDBTable: getEnv("TABLE_NAME", "calctree"),
		IndexName:     getEnv("INDEX_NAME", "GSI1"),
		GSI2IndexName: getEnv("GSI2_INDEX_NAME", "GSI2"),
		BadgerPath:    getEnv("BADGER_PATH", "./data/calctree"),

		AWSRegion:    getEnv("AWS_REGION", "us-west-2"),
		EventBusName: getEnv("EVENT_BUS_NAME", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		EnableMetrics:    getEnvBool("ENABLE_METRICS", false),
		EnableTracing:    getEnvBool("ENABLE_TRACING", false),
		MetricsNamespace: getEnv("METRICS_NAMESPACE", ""),

		MaxTreeDepth:     getEnvInt("MAX_TREE_DEPTH", 0),
		CacheTTLSeconds:  getEnvInt("CACHE_TTL_SECONDS", 0),
		DomainConfigFile: getEnv("DOMAIN_CONFIG_FILE", ""),
	}
	if cfg.MetricsNamespace == "" {
		cfg.MetricsNamespace = "CalcTree/" + cfg.Environment
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendBadger:
		if c.BadgerPath == "" {
			return fmt.Errorf("BADGER_PATH is required for the badger store")
		}
	case BackendDynamoDB:
		if c.DynamoDBTable == "" {
			return fmt.Errorf("TABLE_NAME is required for the dynamodb store")
		}
		if c.IndexName == "" || c.GSI2IndexName == "" {
			return fmt.Errorf("INDEX_NAME and GSI2_INDEX_NAME are required for the dynamodb store")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.MaxTreeDepth < 0 {
		return fmt.Errorf("MAX_TREE_DEPTH must not be negative")
	}
	if c.CacheTTLSeconds < 0 {
		return fmt.Errorf("CACHE_TTL_SECONDS must not be negative")
	}

	if c.IsProduction() && c.StoreBackend == BackendMemory {
		return fmt.Errorf("the memory store cannot be used in production")
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// UsesAWS reports whether any configured component talks to AWS.
func (c *Config) UsesAWS() bool {
	return c.StoreBackend == BackendDynamoDB || c.EventBusName != "" || c.EnableMetrics
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
