package reduction

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/contextgate/contextgate/types"
)

// Dispatcher routes reduction requests to the registered strategy for the
// requested mode. The built-in strategies are registered at construction;
// the adaptive strategy is registered separately because it carries
// per-session state and its own dependencies.
type Dispatcher struct {
	strategies map[Mode]Strategy
	estimator  types.TokenEstimator
	logger     *zap.Logger
}

func NewDispatcher(estimator types.TokenEstimator, summarize SummaryFunc, logger *zap.Logger) *Dispatcher {
	if estimator == nil {
		estimator = types.NewHeuristicEstimator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "reduction"))

	d := &Dispatcher{
		strategies: make(map[Mode]Strategy),
		estimator:  estimator,
		logger:     logger,
	}
	d.Register(NewTruncation())
	d.Register(NewSlidingWindow(estimator))
	d.Register(NewSummarization(summarize, logger))
	return d
}

// Register installs a strategy under its mode, replacing any previous one.
func (d *Dispatcher) Register(s Strategy) {
	d.strategies[s.Mode()] = s
}

// ShouldReduce reports whether the conversation exceeds either the turn or
// the token budget.
func (d *Dispatcher) ShouldReduce(msgs []types.Message, maxTurns, maxTokens int) bool {
	if len(msgs) > maxTurns {
		return true
	}
	return d.estimator.EstimateMessages(msgs) > maxTokens
}

// Apply reduces the request's messages with the strategy for mode. Within
// budget the input is returned untouched. The adaptive strategy needs a
// session identity; without one the request is rejected rather than
// silently degraded.
func (d *Dispatcher) Apply(ctx context.Context, mode Mode, req Request) (Result, error) {
	if !mode.Valid() {
		return Result{}, types.NewError(types.ErrUnsupportedReductionMode,
			"unsupported reduction mode: "+string(mode))
	}

	if mode == ModeAdaptiveSummarization && req.SessionID == "" {
		return Result{}, types.NewError(types.ErrSessionIDRequired,
			"adaptive summarization requires a session id")
	}

	if !d.ShouldReduce(req.Messages, req.MaxTurns, req.MaxTokens) {
		return Result{Messages: req.Messages}, nil
	}

	if mode == ModeAdaptiveSummarization {
		if _, ok := d.strategies[ModeAdaptiveSummarization]; !ok {
			d.logger.Warn("adaptive strategy not configured, using summarization")
			mode = ModeSummarization
		}
	}

	strategy, ok := d.strategies[mode]
	if !ok {
		return Result{}, types.NewError(types.ErrUnsupportedReductionMode,
			"unsupported reduction mode: "+string(mode))
	}

	start := time.Now()
	before := len(req.Messages)
	res, err := strategy.Reduce(ctx, req)
	if err != nil {
		return Result{}, err
	}

	d.logger.Info("context reduced",
		zap.String("mode", string(mode)),
		zap.Int("messages_before", before),
		zap.Int("messages_after", len(res.Messages)),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

// Estimator exposes the dispatcher's token estimator so callers can report
// consistent token counts.
func (d *Dispatcher) Estimator() types.TokenEstimator { return d.estimator }
