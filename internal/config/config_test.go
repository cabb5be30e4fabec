package config

import (
	"testing"
	"time"

	"warpmine/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.True(t, cfg.Engines.ExtractionEnabled)
	assert.True(t, cfg.Engines.ExplorationEnabled)
	assert.True(t, cfg.Engines.OptimizationEnabled)
	assert.Nil(t, cfg.Engines.Seed)
	assert.Equal(t, 0.5, cfg.Router.ConfidenceThreshold)
	assert.Equal(t, 30, cfg.Optimization.PopulationSize)
	assert.Equal(t, 30*time.Second, cfg.Optimization.MaxDuration)
	assert.Zero(t, cfg.Optimization.MaxConcurrent)
	assert.Equal(t, KnowledgeLocal, cfg.Knowledge.Backend)
	assert.Equal(t, 10*time.Second, cfg.Knowledge.Timeout)
	assert.Equal(t, HistoryFile, cfg.History.Backend)
	assert.Equal(t, 1000, cfg.History.MemoryTail)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("WARP_PORT", "9090")
	t.Setenv("WARP_DEBUG", "true")
	t.Setenv("WARP_SEED", "42")
	t.Setenv("ENGINE_OPTIMIZATION_ENABLED", "false")
	t.Setenv("DEFAULT_EXTRACTION_MODEL", "neural_network")
	t.Setenv("ROUTER_CONFIDENCE_THRESHOLD", "0.7")
	t.Setenv("OPTIMIZATION_MAX_DURATION", "5s")
	t.Setenv("HISTORY_BACKEND", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "debug", cfg.Server.GinMode)
	require.NotNil(t, cfg.Engines.Seed)
	assert.Equal(t, int64(42), *cfg.Engines.Seed)
	assert.False(t, cfg.Engines.OptimizationEnabled)
	assert.Equal(t, "neural_network", cfg.Engines.DefaultModel)
	assert.Equal(t, 0.7, cfg.Router.ConfidenceThreshold)
	assert.Equal(t, 5*time.Second, cfg.Optimization.MaxDuration)
	assert.Equal(t, HistoryMemory, cfg.History.Backend)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string][2]string{
		"bad seed":           {"WARP_SEED", "forty-two"},
		"threshold too high": {"ROUTER_CONFIDENCE_THRESHOLD", "1.5"},
		"unknown knowledge":  {"KNOWLEDGE_BACKEND", "oracle"},
		"unknown history":    {"HISTORY_BACKEND", "s3"},
		"postgres no url":    {"HISTORY_BACKEND", "postgres"},
		"zero port":          {"WARP_PORT", "0"},
		"negative slots":     {"OPTIMIZATION_MAX_CONCURRENT", "-1"},
		"negative tail":      {"HISTORY_MEMORY_TAIL", "-5"},
	}
	for name, kv := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}
}
