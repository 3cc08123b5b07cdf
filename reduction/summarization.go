package reduction

import (
	"context"

	"go.uber.org/zap"

	"github.com/contextgate/contextgate/types"
)

// summaryPrefix marks the injected summary message so later reductions can
// recognize it.
const summaryPrefix = "[Previous conversation summary]: "

// minRecentKept is the floor on how many recent messages survive
// summarization regardless of the turn budget.
const minRecentKept = 2

// Summarization compresses older turns into a single synthetic system
// message and keeps the recent tail verbatim.
type Summarization struct {
	summarize SummaryFunc
	logger    *zap.Logger
}

func NewSummarization(summarize SummaryFunc, logger *zap.Logger) *Summarization {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarization{
		summarize: summarize,
		logger:    logger.With(zap.String("component", "summarization")),
	}
}

func (s *Summarization) Mode() Mode { return ModeSummarization }

func (s *Summarization) Reduce(ctx context.Context, req Request) (Result, error) {
	system, other := types.SplitSystem(req.Messages, req.PreserveSystem)

	keep := req.MaxTurns - len(system)
	if keep < minRecentKept {
		keep = minRecentKept
	}
	if keep >= len(other) {
		out := make([]types.Message, 0, len(system)+len(other))
		out = append(out, system...)
		return Result{Messages: append(out, other...)}, nil
	}

	older := other[:len(other)-keep]
	recent := other[len(other)-keep:]

	if s.summarize == nil {
		s.logger.Warn("no summarizer configured, dropping older messages")
		out := make([]types.Message, 0, len(system)+keep)
		out = append(out, system...)
		return Result{Messages: append(out, recent...)}, nil
	}

	summary, err := s.summarize(ctx, older)
	if err != nil {
		s.logger.Warn("summary generation failed, dropping older messages",
			zap.Int("older_count", len(older)),
			zap.Error(err))
		out := make([]types.Message, 0, len(system)+keep)
		out = append(out, system...)
		return Result{Messages: append(out, recent...)}, nil
	}

	out := make([]types.Message, 0, len(system)+1+keep)
	out = append(out, system...)
	out = append(out, types.NewSystemMessage(summaryPrefix+summary))
	return Result{Messages: append(out, recent...), Summary: summary}, nil
}
