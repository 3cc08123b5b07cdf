package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextRoutes_LongestPrefixWins(t *testing.T) {
	t.Parallel()

	defaults := DefaultConfig().Context
	r := NewContextRoutes(defaults, map[string]ContextConfig{
		"gpt-4":       {MaxTurns: 10},
		"gpt-4o-mini": {MaxTurns: 4},
		"claude":      {MaxTokens: 8000},
	})

	assert.Equal(t, 4, r.For("gpt-4o-mini").MaxTurns)
	assert.Equal(t, 10, r.For("gpt-4-turbo").MaxTurns)
	assert.Equal(t, 8000, r.For("claude-sonnet").MaxTokens)
	assert.Equal(t, defaults, r.For("llama-70b"), "unmatched model gets the defaults")
}

func TestContextRoutes_UnsetFieldsInheritDefaults(t *testing.T) {
	t.Parallel()

	defaults := DefaultConfig().Context
	r := NewContextRoutes(defaults, map[string]ContextConfig{
		"gpt-4": {MaxTurns: 6, ReductionMode: "sliding_window"},
	})

	got := r.For("gpt-4o")
	assert.Equal(t, 6, got.MaxTurns)
	assert.Equal(t, "sliding_window", got.ReductionMode)
	assert.Equal(t, defaults.MaxTokens, got.MaxTokens)
	assert.Equal(t, defaults.TokenEstimator, got.TokenEstimator)
	assert.Equal(t, defaults.PreserveSystemMessage, got.PreserveSystemMessage)
}

func TestContextRoutes_NilRoutes(t *testing.T) {
	t.Parallel()

	defaults := DefaultConfig().Context
	r := NewContextRoutes(defaults, nil)
	assert.Equal(t, defaults, r.For("gpt-4o-mini"))
}

func TestValidate_RejectsBadModelRoute(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.ModelRoutes = map[string]ContextConfig{
		"gpt-4": {ReductionMode: "bogus"},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown reduction mode")

	cfg = DefaultConfig()
	cfg.ModelRoutes = map[string]ContextConfig{"": {MaxTurns: 3}}
	require.Error(t, cfg.Validate())
}
