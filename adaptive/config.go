package adaptive

import (
	"fmt"
	"time"

	"github.com/contextgate/contextgate/analysis"
	"github.com/contextgate/contextgate/scoring"
	"github.com/contextgate/contextgate/types"
)

// StrategyName selects one of the adaptive strategies.
type StrategyName string

const (
	StrategyHierarchical StrategyName = "hierarchical"
	StrategyIncremental  StrategyName = "incremental"
	StrategySelective    StrategyName = "selective"
)

func (s StrategyName) Valid() bool {
	switch s {
	case StrategyHierarchical, StrategyIncremental, StrategySelective:
		return true
	}
	return false
}

// LayerAction is what a hierarchical layer does with its messages.
type LayerAction string

const (
	ActionPreserve        LayerAction = "preserve"
	ActionDetailedSummary LayerAction = "detailed_summary"
	ActionBriefSummary    LayerAction = "brief_summary"
	ActionDiscard         LayerAction = "discard"
)

// Content-type triggers a layer can match on.
const (
	TriggerSystemMessages   = "system_messages"
	TriggerEntities         = "entities"
	TriggerCodeBlocks       = "code_blocks"
	TriggerURLs             = "urls"
	TriggerImportantMarkers = "important_markers"
	TriggerQuestions        = "questions"
	TriggerAnswers          = "answers"
	TriggerCustomRules      = "custom_rules"
)

// LayerConfig defines one hierarchical layer. MaxTokensPerMessage of zero
// means no per-message cap.
type LayerConfig struct {
	Name                string      `yaml:"name" json:"name"`
	Priority            int         `yaml:"priority" json:"priority"`
	ContentTypes        []string    `yaml:"content_types" json:"content_types"`
	Action              LayerAction `yaml:"action" json:"action"`
	MaxTokensPerMessage int         `yaml:"max_tokens_per_message,omitempty" json:"max_tokens_per_message,omitempty"`
}

// HierarchicalConfig holds the ordered layer definitions.
type HierarchicalConfig struct {
	Layers []LayerConfig `yaml:"layers" json:"layers"`
}

// Validate requires at least one layer and unique priorities.
func (c HierarchicalConfig) Validate() error {
	if len(c.Layers) == 0 {
		return types.NewError(types.ErrInvalidConfig, "hierarchical config must have at least one layer")
	}
	seen := make(map[int]string, len(c.Layers))
	for _, layer := range c.Layers {
		if other, ok := seen[layer.Priority]; ok {
			return types.NewError(types.ErrInvalidConfig,
				fmt.Sprintf("layers %q and %q share priority %d", other, layer.Name, layer.Priority))
		}
		seen[layer.Priority] = layer.Name
	}
	return nil
}

// DefaultHierarchicalConfig returns the standard three-layer setup.
func DefaultHierarchicalConfig() HierarchicalConfig {
	return HierarchicalConfig{Layers: []LayerConfig{
		{
			Name:     "critical",
			Priority: 1,
			ContentTypes: []string{
				TriggerSystemMessages, TriggerEntities, TriggerCodeBlocks,
				TriggerURLs, TriggerImportantMarkers,
			},
			Action: ActionPreserve,
		},
		{
			Name:                "important",
			Priority:            2,
			ContentTypes:        []string{TriggerQuestions, TriggerAnswers},
			Action:              ActionDetailedSummary,
			MaxTokensPerMessage: 200,
		},
		{
			Name:                "normal",
			Priority:            3,
			ContentTypes:        []string{},
			Action:              ActionBriefSummary,
			MaxTokensPerMessage: 50,
		},
	}}
}

// IncrementalConfig tunes the rolling-summary strategy.
type IncrementalConfig struct {
	SummaryWindow   int    `yaml:"summary_window" json:"summary_window"`       // new turns per summarization pass
	KeepRecent      int    `yaml:"keep_recent" json:"keep_recent"`             // turns kept verbatim
	MaxSummaryDepth int    `yaml:"max_summary_depth" json:"max_summary_depth"` // resets state when reached
	SummaryPrefix   string `yaml:"summary_prefix" json:"summary_prefix"`
}

func DefaultIncrementalConfig() IncrementalConfig {
	return IncrementalConfig{
		SummaryWindow:   10,
		KeepRecent:      5,
		MaxSummaryDepth: 3,
		SummaryPrefix:   "[摘要]",
	}
}

// SelectiveConfig holds the score thresholds. They must satisfy
// discard <= summarize <= preserve.
type SelectiveConfig struct {
	PreserveThreshold  float64 `yaml:"preserve_threshold" json:"preserve_threshold"`
	SummarizeThreshold float64 `yaml:"summarize_threshold" json:"summarize_threshold"`
	DiscardThreshold   float64 `yaml:"discard_threshold" json:"discard_threshold"`
}

func DefaultSelectiveConfig() SelectiveConfig {
	return SelectiveConfig{
		PreserveThreshold:  10.0,
		SummarizeThreshold: 5.0,
		DiscardThreshold:   2.0,
	}
}

func (c SelectiveConfig) Validate() error {
	if c.DiscardThreshold > c.SummarizeThreshold || c.SummarizeThreshold > c.PreserveThreshold {
		return types.NewError(types.ErrInvalidThresholds, fmt.Sprintf(
			"thresholds must be ordered discard (%.1f) <= summarize (%.1f) <= preserve (%.1f)",
			c.DiscardThreshold, c.SummarizeThreshold, c.PreserveThreshold))
	}
	return nil
}

// Config is the full adaptive summarization configuration.
type Config struct {
	Enabled  bool         `yaml:"enabled" json:"enabled"`
	Strategy StrategyName `yaml:"strategy" json:"strategy"`

	PreserveEntities bool `yaml:"preserve_entities" json:"preserve_entities"`
	PreserveCode     bool `yaml:"preserve_code" json:"preserve_code"`
	PreserveURLs     bool `yaml:"preserve_urls" json:"preserve_urls"`

	Hierarchical HierarchicalConfig `yaml:"hierarchical" json:"hierarchical"`
	Incremental  IncrementalConfig  `yaml:"incremental" json:"incremental"`
	Selective    SelectiveConfig    `yaml:"selective" json:"selective"`

	Analyzers   analysis.Config       `yaml:"analyzers" json:"analyzers"`
	Scoring     scoring.Config        `yaml:"scoring" json:"scoring"`
	CustomRules []analysis.CustomRule `yaml:"custom_rules" json:"custom_rules"`

	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	TargetTokens     int `yaml:"target_tokens,omitempty" json:"target_tokens,omitempty"`
	MinSummaryLength int `yaml:"min_summary_length" json:"min_summary_length"`
	MaxSummaryLength int `yaml:"max_summary_length" json:"max_summary_length"`

	SummarizationModel  string `yaml:"summarization_model,omitempty" json:"summarization_model,omitempty"`
	SummarizationPrompt string `yaml:"summarization_prompt,omitempty" json:"summarization_prompt,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:          false,
		Strategy:         StrategyHierarchical,
		PreserveEntities: true,
		PreserveCode:     true,
		PreserveURLs:     true,
		Hierarchical:     DefaultHierarchicalConfig(),
		Incremental:      DefaultIncrementalConfig(),
		Selective:        DefaultSelectiveConfig(),
		Analyzers:        analysis.DefaultConfig(),
		Scoring:          scoring.DefaultConfig(),
		Timeout:          30 * time.Second,
		MinSummaryLength: 50,
		MaxSummaryLength: 2000,
	}
}

// Validate checks cross-field consistency. A disabled config is always valid.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if !c.Strategy.Valid() {
		return types.NewError(types.ErrInvalidConfig, "unknown adaptive strategy: "+string(c.Strategy))
	}
	if err := c.Hierarchical.Validate(); err != nil {
		return err
	}
	if err := c.Selective.Validate(); err != nil {
		return err
	}
	if c.TargetTokens != 0 && c.TargetTokens < 100 {
		return types.NewError(types.ErrInvalidConfig, "target_tokens must be at least 100")
	}
	if c.MinSummaryLength > c.MaxSummaryLength {
		return types.NewError(types.ErrInvalidConfig, "min_summary_length must be <= max_summary_length")
	}
	if c.Timeout <= 0 {
		return types.NewError(types.ErrInvalidConfig, "timeout must be positive")
	}
	return nil
}
