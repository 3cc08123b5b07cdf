package reduction

import (
	"context"

	"github.com/contextgate/contextgate/types"
)

// SlidingWindow keeps the most recent messages that fit within the token
// budget remaining after system messages are accounted for.
type SlidingWindow struct {
	estimator types.TokenEstimator
}

func NewSlidingWindow(estimator types.TokenEstimator) *SlidingWindow {
	if estimator == nil {
		estimator = types.NewHeuristicEstimator()
	}
	return &SlidingWindow{estimator: estimator}
}

func (s *SlidingWindow) Mode() Mode { return ModeSlidingWindow }

func (s *SlidingWindow) Reduce(_ context.Context, req Request) (Result, error) {
	system, other := types.SplitSystem(req.Messages, req.PreserveSystem)

	budget := req.MaxTokens - s.estimator.EstimateMessages(system)

	// Walk backwards so the newest messages win the budget.
	var kept []types.Message
	used := 0
	for i := len(other) - 1; i >= 0; i-- {
		cost := s.estimator.EstimateMessage(other[i])
		if used+cost > budget {
			break
		}
		used += cost
		kept = append(kept, other[i])
	}

	out := make([]types.Message, 0, len(system)+len(kept))
	out = append(out, system...)
	for i := len(kept) - 1; i >= 0; i-- {
		out = append(out, kept[i])
	}
	return Result{Messages: out}, nil
}
