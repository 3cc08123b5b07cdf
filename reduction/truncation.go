package reduction

import (
	"context"

	"github.com/contextgate/contextgate/types"
)

// Truncation keeps system messages plus the most recent turns that fit
// within the turn budget. It is the cheapest strategy and the fallback of
// last resort.
type Truncation struct{}

func NewTruncation() *Truncation { return &Truncation{} }

func (t *Truncation) Mode() Mode { return ModeTruncation }

func (t *Truncation) Reduce(_ context.Context, req Request) (Result, error) {
	system, other := types.SplitSystem(req.Messages, req.PreserveSystem)

	keep := req.MaxTurns - len(system)
	if keep < 0 {
		keep = 0
	}
	if keep > len(other) {
		keep = len(other)
	}

	out := make([]types.Message, 0, len(system)+keep)
	out = append(out, system...)
	out = append(out, other[len(other)-keep:]...)
	return Result{Messages: out}, nil
}
