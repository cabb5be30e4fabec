package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"warpmine/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Server       ServerConfig
	Engines      EngineConfig
	Router       RouterConfig
	Optimization OptimizationConfig
	Knowledge    KnowledgeConfig
	History      HistoryConfig
	Database     DatabaseConfig
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Host     string
	Port     int
	GinMode  string
	Debug    bool
	LogLevel string
}

// Addr is the host:port listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// EngineConfig holds per-engine toggles and defaults
type EngineConfig struct {
	ExtractionEnabled   bool
	ExplorationEnabled  bool
	OptimizationEnabled bool
	DefaultModel        string
	DefaultAlgorithm    string
	// Seed is used when a request carries none. Nil means a fresh seed per call.
	Seed *int64
}

// RouterConfig holds chat intent classification settings
type RouterConfig struct {
	ConfidenceThreshold float64
}

// OptimizationConfig holds run defaults and limits
type OptimizationConfig struct {
	PopulationSize int
	MaxIterations  int
	Tolerance      float64
	Patience       int
	MaxDuration    time.Duration
	Workers        int
	// MaxConcurrent caps simultaneous runs served over HTTP; zero disables the cap
	MaxConcurrent  int
}

// KnowledgeConfig selects and configures the question answering backend
type KnowledgeConfig struct {
	Backend     string // local | llm
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// HistoryConfig selects the audit log backend
type HistoryConfig struct {
	Backend string // file | postgres | memory | none
	Path    string

	// MemoryTail is how many recent file entries stay in memory; zero keeps all
	MemoryTail int
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL string
}

// Knowledge and history backends
const (
	KnowledgeLocal = "local"
	KnowledgeLLM   = "llm"

	HistoryFile     = "file"
	HistoryPostgres = "postgres"
	HistoryMemory   = "memory"
	HistoryNone     = "none"
)

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Server:       loadServerConfig(),
		Router:       loadRouterConfig(),
		Optimization: loadOptimizationConfig(),
		Knowledge:    loadKnowledgeConfig(),
		History:      loadHistoryConfig(),
		Database:     DatabaseConfig{URL: os.Getenv("DATABASE_URL")},
	}

	engines, err := loadEngineConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load engine configuration")
	}
	config.Engines = engines

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadServerConfig() ServerConfig {
	debug := getEnvBoolOrDefault("WARP_DEBUG", false)
	level := getEnvOrDefault("LOG_LEVEL", "info")
	if debug {
		level = "debug"
	}
	ginMode := getEnvOrDefault("GIN_MODE", "release")
	if debug && os.Getenv("GIN_MODE") == "" {
		ginMode = "debug"
	}
	return ServerConfig{
		Host:     getEnvOrDefault("WARP_HOST", "0.0.0.0"),
		Port:     getEnvIntOrDefault("WARP_PORT", 8080),
		GinMode:  ginMode,
		Debug:    debug,
		LogLevel: strings.ToLower(level),
	}
}

func loadEngineConfig() (EngineConfig, error) {
	cfg := EngineConfig{
		ExtractionEnabled:   getEnvBoolOrDefault("ENGINE_EXTRACTION_ENABLED", true),
		ExplorationEnabled:  getEnvBoolOrDefault("ENGINE_EXPLORATION_ENABLED", true),
		OptimizationEnabled: getEnvBoolOrDefault("ENGINE_OPTIMIZATION_ENABLED", true),
		DefaultModel:        strings.TrimSpace(os.Getenv("DEFAULT_EXTRACTION_MODEL")),
		DefaultAlgorithm:    strings.TrimSpace(os.Getenv("DEFAULT_OPTIMIZATION_ALGORITHM")),
	}
	if raw := strings.TrimSpace(os.Getenv("WARP_SEED")); raw != "" {
		seed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return cfg, errors.ConfigInvalid(fmt.Sprintf("WARP_SEED must be an integer, got %q", raw))
		}
		cfg.Seed = &seed
	}
	return cfg, nil
}

func loadRouterConfig() RouterConfig {
	return RouterConfig{
		ConfidenceThreshold: getEnvFloatOrDefault("ROUTER_CONFIDENCE_THRESHOLD", 0.5),
	}
}

func loadOptimizationConfig() OptimizationConfig {
	return OptimizationConfig{
		PopulationSize: getEnvIntOrDefault("OPTIMIZATION_POPULATION_SIZE", 30),
		MaxIterations:  getEnvIntOrDefault("OPTIMIZATION_MAX_ITERATIONS", 100),
		Tolerance:      getEnvFloatOrDefault("OPTIMIZATION_TOLERANCE", 1e-6),
		Patience:       getEnvIntOrDefault("OPTIMIZATION_PATIENCE", 20),
		MaxDuration:    getEnvDurationOrDefault("OPTIMIZATION_MAX_DURATION", 30*time.Second),
		Workers:        getEnvIntOrDefault("OPTIMIZATION_WORKERS", 0),
		MaxConcurrent:  getEnvIntOrDefault("OPTIMIZATION_MAX_CONCURRENT", 0),
	}
}

func loadKnowledgeConfig() KnowledgeConfig {
	return KnowledgeConfig{
		Backend:     strings.ToLower(getEnvOrDefault("KNOWLEDGE_BACKEND", KnowledgeLocal)),
		BaseURL:     getEnvOrDefault("KNOWLEDGE_BASE_URL", "http://localhost:11434/v1"),
		APIKey:      os.Getenv("KNOWLEDGE_API_KEY"),
		Model:       getEnvOrDefault("KNOWLEDGE_MODEL", "llama3"),
		MaxTokens:   getEnvIntOrDefault("KNOWLEDGE_MAX_TOKENS", 800),
		Temperature: getEnvFloatOrDefault("KNOWLEDGE_TEMPERATURE", 0.7),
		Timeout:     getEnvDurationOrDefault("KNOWLEDGE_TIMEOUT", 10*time.Second),
	}
}

func loadHistoryConfig() HistoryConfig {
	return HistoryConfig{
		Backend: strings.ToLower(getEnvOrDefault("HISTORY_BACKEND", HistoryFile)),
		Path:    getEnvOrDefault("HISTORY_PATH", "data/history.jsonl"),

		MemoryTail: getEnvIntOrDefault("HISTORY_MEMORY_TAIL", 1000),
	}
}

func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return errors.ConfigInvalid(fmt.Sprintf("WARP_PORT must be within 1-65535, got %d", config.Server.Port))
	}
	if t := config.Router.ConfidenceThreshold; t <= 0 || t > 1 {
		return errors.ConfigInvalid(fmt.Sprintf("ROUTER_CONFIDENCE_THRESHOLD must be within (0, 1], got %g", t))
	}
	opt := config.Optimization
	if opt.PopulationSize <= 0 || opt.MaxIterations <= 0 || opt.Patience <= 0 {
		return errors.ConfigInvalid("OPTIMIZATION_POPULATION_SIZE, OPTIMIZATION_MAX_ITERATIONS and OPTIMIZATION_PATIENCE must be positive")
	}
	if opt.Tolerance < 0 || opt.MaxDuration <= 0 || opt.Workers < 0 {
		return errors.ConfigInvalid("OPTIMIZATION_TOLERANCE, OPTIMIZATION_MAX_DURATION and OPTIMIZATION_WORKERS are out of range")
	}
	if opt.MaxConcurrent < 0 {
		return errors.ConfigInvalid(fmt.Sprintf("OPTIMIZATION_MAX_CONCURRENT must not be negative, got %d", opt.MaxConcurrent))
	}
	switch config.Knowledge.Backend {
	case KnowledgeLocal, KnowledgeLLM:
	default:
		return errors.ConfigInvalid(fmt.Sprintf("KNOWLEDGE_BACKEND must be local or llm, got %q", config.Knowledge.Backend))
	}
	if config.Knowledge.Timeout <= 0 {
		return errors.ConfigInvalid("KNOWLEDGE_TIMEOUT must be positive")
	}
	if config.History.MemoryTail < 0 {
		return errors.ConfigInvalid(fmt.Sprintf("HISTORY_MEMORY_TAIL must not be negative, got %d", config.History.MemoryTail))
	}
	switch config.History.Backend {
	case HistoryFile, HistoryMemory, HistoryNone:
	case HistoryPostgres:
		if config.Database.URL == "" {
			return errors.ConfigInvalid("DATABASE_URL is required when HISTORY_BACKEND=postgres")
		}
	default:
		return errors.ConfigInvalid(fmt.Sprintf("HISTORY_BACKEND must be file, postgres, memory or none, got %q", config.History.Backend))
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
