package adaptive

import (
	"context"

	"github.com/contextgate/contextgate/reduction"
)

// reductionAdapter lets the orchestrator serve as the dispatcher's
// adaptive_summarization strategy.
type reductionAdapter struct {
	orchestrator *Orchestrator
}

// AsReductionStrategy wraps the orchestrator for dispatcher registration.
func (o *Orchestrator) AsReductionStrategy() reduction.Strategy {
	return &reductionAdapter{orchestrator: o}
}

func (a *reductionAdapter) Mode() reduction.Mode {
	return reduction.ModeAdaptiveSummarization
}

func (a *reductionAdapter) Reduce(ctx context.Context, req reduction.Request) (reduction.Result, error) {
	res := a.orchestrator.Summarize(ctx, req.Messages, req.SessionID)
	return reduction.Result{Messages: res.Messages, Summary: res.Summary}, nil
}
