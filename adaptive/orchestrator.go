package adaptive

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/contextgate/contextgate/analysis"
	"github.com/contextgate/contextgate/reduction"
	"github.com/contextgate/contextgate/scoring"
	"github.com/contextgate/contextgate/types"
)

// fallbackKeepRecent is how many non-system messages the fallback path
// keeps verbatim.
const fallbackKeepRecent = 5

// strategy is the contract the orchestrator runs. The returned string is
// the generated summary text, empty for strategies that only emit digests.
type strategy interface {
	Name() StrategyName
	Apply(ctx context.Context, msgs []types.Message, sessionID string) ([]types.Message, string, error)
}

// PreservedEntity is an entity retained across summarization for statistics
// and summary-string construction.
type PreservedEntity struct {
	Text        string     `json:"text"`
	Type        string     `json:"type"`
	MessageRole types.Role `json:"message_role"`
}

type PreservedCodeBlock struct {
	Language    string     `json:"language"`
	Lines       int        `json:"lines"`
	MessageRole types.Role `json:"message_role"`
}

type PreservedMatch struct {
	Text     string              `json:"text"`
	RuleType analysis.RuleType   `json:"rule_type"`
	Action   analysis.RuleAction `json:"action"`
}

// PreservedContent aggregates analysis results across the original
// messages, regardless of which reduction path ran.
type PreservedContent struct {
	Entities      []PreservedEntity    `json:"entities"`
	CodeBlocks    []PreservedCodeBlock `json:"code_blocks"`
	URLs          []string             `json:"urls"`
	CustomMatches []PreservedMatch     `json:"custom_matches"`
}

// Statistics describes one summarization operation.
type Statistics struct {
	OriginalTokens      int     `json:"original_tokens"`
	SummarizedTokens    int     `json:"summarized_tokens"`
	CompressionRatio    float64 `json:"compression_ratio"`
	EntitiesPreserved   int     `json:"entities_preserved"`
	CodeBlocksPreserved int     `json:"code_blocks_preserved"`
	URLsPreserved       int     `json:"urls_preserved"`
	ExecutionTimeMS     float64 `json:"execution_time_ms"`
}

// SummarizationResult is the orchestrator's always-successful outcome.
type SummarizationResult struct {
	Messages         []types.Message  `json:"messages"`
	Summary          string           `json:"summary,omitempty"`
	PreservedContent PreservedContent `json:"preserved_content"`
	Statistics       Statistics       `json:"statistics"`
	StrategyUsed     StrategyName     `json:"strategy_used"`
	FellBack         bool             `json:"fell_back"`
}

// Orchestrator runs the configured adaptive strategy under a timeout and a
// quality gate, falling back to plain truncation on any failure. Summarize
// never returns an error: context reduction must always complete.
type Orchestrator struct {
	config    Config
	analyzer  *analysis.Analyzer
	scorer    *scoring.Scorer
	estimator types.TokenEstimator

	strategies  map[StrategyName]strategy
	incremental *Incremental

	onFallback func(reason string)

	logger *zap.Logger
}

// Fallback reasons reported to the OnFallback hook.
const (
	FallbackStrategyError = "strategy_error"
	FallbackTimeout       = "timeout"
	FallbackQuality       = "quality"
)

func NewOrchestrator(
	config Config,
	source analysis.EntitySource,
	estimator types.TokenEstimator,
	summarize reduction.SummaryFunc,
	logger *zap.Logger,
) (*Orchestrator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if estimator == nil {
		estimator = types.NewHeuristicEstimator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "adaptive"))

	analyzer, err := analysis.NewAnalyzer(config.Analyzers, config.CustomRules, source, logger)
	if err != nil {
		return nil, err
	}
	scorer := scoring.NewScorer(config.Scoring)

	hierarchical, err := NewHierarchical(config.Hierarchical, analyzer, estimator)
	if err != nil {
		return nil, err
	}
	selective, err := NewSelective(config.Selective, scorer, analyzer)
	if err != nil {
		return nil, err
	}
	incremental := NewIncremental(config.Incremental, summarize)

	return &Orchestrator{
		config:    config,
		analyzer:  analyzer,
		scorer:    scorer,
		estimator: estimator,
		strategies: map[StrategyName]strategy{
			StrategyHierarchical: hierarchical,
			StrategyIncremental:  incremental,
			StrategySelective:    selective,
		},
		incremental: incremental,
		logger:      logger,
	}, nil
}

// Summarize reduces messages with the configured strategy. Disabled configs
// pass the input through with a compression ratio of 1.0.
func (o *Orchestrator) Summarize(ctx context.Context, msgs []types.Message, sessionID string) SummarizationResult {
	start := time.Now()
	originalTokens := o.estimator.EstimateMessages(msgs)

	if !o.config.Enabled {
		return SummarizationResult{
			Messages: msgs,
			Statistics: Statistics{
				OriginalTokens:   originalTokens,
				SummarizedTokens: originalTokens,
				CompressionRatio: 1.0,
			},
			StrategyUsed: o.config.Strategy,
		}
	}

	strat := o.strategies[o.config.Strategy]

	reduced, summary, fellBack := o.runStrategy(ctx, strat, msgs, sessionID)

	if !fellBack && !o.checkQuality(msgs, reduced) {
		o.logger.Warn("quality gate rejected strategy output, using fallback",
			zap.String("strategy", string(o.config.Strategy)),
			zap.String("session_id", sessionID))
		o.notifyFallback(FallbackQuality)
		reduced = fallbackReduce(msgs)
		summary = ""
		fellBack = true
	}

	// Preserved content always comes from the original messages, not the
	// possibly degraded output.
	preserved := o.preserveContent(msgs)

	summarizedTokens := o.estimator.EstimateMessages(reduced)
	ratio := 1.0
	if originalTokens > 0 {
		ratio = float64(summarizedTokens) / float64(originalTokens)
	}

	return SummarizationResult{
		Messages:         reduced,
		Summary:          summary,
		PreservedContent: preserved,
		Statistics: Statistics{
			OriginalTokens:      originalTokens,
			SummarizedTokens:    summarizedTokens,
			CompressionRatio:    ratio,
			EntitiesPreserved:   len(preserved.Entities),
			CodeBlocksPreserved: len(preserved.CodeBlocks),
			URLsPreserved:       len(preserved.URLs),
			ExecutionTimeMS:     float64(time.Since(start)) / float64(time.Millisecond),
		},
		StrategyUsed: o.config.Strategy,
		FellBack:     fellBack,
	}
}

type strategyOutcome struct {
	msgs    []types.Message
	summary string
	err     error
}

// runStrategy executes the strategy bounded by the configured timeout.
// Timeouts and errors both land on the fallback path.
func (o *Orchestrator) runStrategy(ctx context.Context, strat strategy, msgs []types.Message, sessionID string) ([]types.Message, string, bool) {
	runCtx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	done := make(chan strategyOutcome, 1)
	go func() {
		out, summary, err := strat.Apply(runCtx, msgs, sessionID)
		done <- strategyOutcome{msgs: out, summary: summary, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			o.logger.Warn("adaptive strategy failed, using fallback",
				zap.String("strategy", string(strat.Name())),
				zap.String("session_id", sessionID),
				zap.Error(out.err))
			o.notifyFallback(FallbackStrategyError)
			return fallbackReduce(msgs), "", true
		}
		return out.msgs, out.summary, false
	case <-runCtx.Done():
		o.logger.Warn("adaptive strategy timed out, using fallback",
			zap.String("strategy", string(strat.Name())),
			zap.String("session_id", sessionID),
			zap.Duration("timeout", o.config.Timeout))
		o.notifyFallback(FallbackTimeout)
		return fallbackReduce(msgs), "", true
	}
}

// OnFallback registers a hook invoked with the reason every time a
// strategy run degrades to the fallback path. Wired to the metrics
// collector.
func (o *Orchestrator) OnFallback(fn func(reason string)) {
	o.onFallback = fn
}

func (o *Orchestrator) notifyFallback(reason string) {
	if o.onFallback != nil {
		o.onFallback(reason)
	}
}

// checkQuality enforces the output length band, the optional token target,
// and strict token reduction.
func (o *Orchestrator) checkQuality(original, reduced []types.Message) bool {
	totalLength := 0
	for _, msg := range reduced {
		totalLength += len(msg.Content)
	}
	if totalLength < o.config.MinSummaryLength || totalLength > o.config.MaxSummaryLength {
		return false
	}

	reducedTokens := o.estimator.EstimateMessages(reduced)
	if o.config.TargetTokens > 0 && reducedTokens > o.config.TargetTokens {
		return false
	}

	return reducedTokens < o.estimator.EstimateMessages(original)
}

// fallbackReduce keeps all system messages plus the last few non-system
// messages verbatim. It cannot fail.
func fallbackReduce(msgs []types.Message) []types.Message {
	system, other := types.SplitSystem(msgs, true)
	if len(other) > fallbackKeepRecent {
		other = other[len(other)-fallbackKeepRecent:]
	}
	out := make([]types.Message, 0, len(system)+len(other))
	out = append(out, system...)
	return append(out, other...)
}

func (o *Orchestrator) preserveContent(msgs []types.Message) PreservedContent {
	var preserved PreservedContent
	for _, msg := range msgs {
		a := o.analyzer.Analyze(msg.Content)

		if o.config.PreserveEntities {
			for _, e := range a.Entities {
				preserved.Entities = append(preserved.Entities, PreservedEntity{
					Text:        e.Text,
					Type:        string(e.Type),
					MessageRole: msg.Role,
				})
			}
		}
		if o.config.PreserveCode {
			for _, cb := range a.CodeBlocks {
				preserved.CodeBlocks = append(preserved.CodeBlocks, PreservedCodeBlock{
					Language:    cb.Language,
					Lines:       cb.LineCount(),
					MessageRole: msg.Role,
				})
			}
		}
		if o.config.PreserveURLs {
			preserved.URLs = append(preserved.URLs, a.URLs...)
		}
		for _, m := range a.RuleMatches {
			preserved.CustomMatches = append(preserved.CustomMatches, PreservedMatch{
				Text:     m.MatchedText,
				RuleType: m.Rule.Type,
				Action:   m.Rule.Action,
			})
		}
	}
	return preserved
}

// StrategyInfo describes the named strategy's live configuration for
// diagnostics endpoints.
func (o *Orchestrator) StrategyInfo(name StrategyName) map[string]interface{} {
	if name == "" {
		name = o.config.Strategy
	}
	if _, ok := o.strategies[name]; !ok {
		return map[string]interface{}{"error": "strategy not found: " + string(name)}
	}

	info := map[string]interface{}{
		"name":    string(name),
		"enabled": o.config.Enabled,
	}
	switch name {
	case StrategyHierarchical:
		layers := make([]string, 0, len(o.config.Hierarchical.Layers))
		for _, layer := range o.config.Hierarchical.Layers {
			layers = append(layers, layer.Name)
		}
		info["layers"] = layers
	case StrategyIncremental:
		info["summary_window"] = o.config.Incremental.SummaryWindow
		info["keep_recent"] = o.config.Incremental.KeepRecent
		info["max_depth"] = o.config.Incremental.MaxSummaryDepth
	case StrategySelective:
		info["preserve_threshold"] = o.config.Selective.PreserveThreshold
		info["summarize_threshold"] = o.config.Selective.SummarizeThreshold
		info["discard_threshold"] = o.config.Selective.DiscardThreshold
	}
	return info
}

// SummaryInfo exposes the incremental state for a session, or nil.
func (o *Orchestrator) SummaryInfo(sessionID string) *SummaryState {
	return o.incremental.SummaryInfo(sessionID)
}

// ClearSession releases per-session strategy state. Wired to session
// deletion, reset, and the expiry sweep.
func (o *Orchestrator) ClearSession(sessionID string) {
	o.incremental.ClearSession(sessionID)
}
