package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultMaxTreeDepth bounds how deep an operation tree may grow.
// Deployments have used both 10 and 50; 10 is the conservative default and
// MAX_TREE_DEPTH overrides it.
const DefaultMaxTreeDepth = 10

// MaxSafeInteger is the largest magnitude accepted for a starting value.
const MaxSafeInteger = 9007199254740991

// DomainConfig holds all configurable business rules and constraints
type DomainConfig struct {
	// Tree constraints
	MaxTreeDepth int `yaml:"max_tree_depth"`

	// Operation constraints
	MinOperationTitleLength int `yaml:"min_operation_title_length"`
	MaxOperationTitleLength int `yaml:"max_operation_title_length"`

	// Discussion constraints
	MinDiscussionTitleLength int   `yaml:"min_discussion_title_length"`
	MaxDiscussionTitleLength int   `yaml:"max_discussion_title_length"`
	MaxStartingMagnitude     int64 `yaml:"max_starting_magnitude"`

	// Read model
	RootSummaryTTL  time.Duration `yaml:"root_summary_ttl"`
	DefaultPageSize int           `yaml:"default_page_size"`
	MaxPageSize     int           `yaml:"max_page_size"`

	// Store limits
	MaxTransactItems int `yaml:"max_transact_items"`
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxTreeDepth: DefaultMaxTreeDepth,

		MinOperationTitleLength: 1,
		MaxOperationTitleLength: 200,

		MinDiscussionTitleLength: 3,
		MaxDiscussionTitleLength: 100,
		MaxStartingMagnitude:     MaxSafeInteger,

		RootSummaryTTL:  time.Hour,
		DefaultPageSize: 10,
		MaxPageSize:     100,

		// DynamoDB TransactWriteItems limit
		MaxTransactItems: 100,
	}
}

// ProductionDomainConfig returns production-specific configuration
func ProductionDomainConfig() *DomainConfig {
	return DefaultDomainConfig()
}

// DevelopmentDomainConfig returns development-specific configuration
func DevelopmentDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	// Deeper trees for local experiments
	config.MaxTreeDepth = 50
	config.RootSummaryTTL = time.Minute

	return config
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "production":
		return ProductionDomainConfig()
	case "development":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}

// LoadDomainConfigFile overlays the YAML document at path onto base.
// Keys absent from the file keep the values from base.
func LoadDomainConfigFile(path string, base *DomainConfig) (*DomainConfig, error) {
	if base == nil {
		base = DefaultDomainConfig()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read domain config %s: %w", path, err)
	}

	cfg := *base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse domain config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks if the configuration is valid
func (c *DomainConfig) Validate() error {
	if c.MaxTreeDepth < 1 {
		return fmt.Errorf("max_tree_depth must be at least 1, got %d", c.MaxTreeDepth)
	}
	if c.MinOperationTitleLength < 0 || c.MaxOperationTitleLength < c.MinOperationTitleLength {
		return fmt.Errorf("invalid operation title bounds [%d, %d]", c.MinOperationTitleLength, c.MaxOperationTitleLength)
	}
	if c.MinDiscussionTitleLength < 0 || c.MaxDiscussionTitleLength < c.MinDiscussionTitleLength {
		return fmt.Errorf("invalid discussion title bounds [%d, %d]", c.MinDiscussionTitleLength, c.MaxDiscussionTitleLength)
	}
	if c.MaxStartingMagnitude <= 0 {
		return fmt.Errorf("max_starting_magnitude must be positive")
	}
	if c.DefaultPageSize < 1 || c.MaxPageSize < c.DefaultPageSize {
		return fmt.Errorf("invalid page size bounds default=%d max=%d", c.DefaultPageSize, c.MaxPageSize)
	}
	if c.MaxTransactItems < 2 {
		return fmt.Errorf("max_transact_items must be at least 2, got %d", c.MaxTransactItems)
	}
	return nil
}
