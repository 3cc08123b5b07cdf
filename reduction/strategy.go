package reduction

import (
	"context"

	"github.com/contextgate/contextgate/types"
)

// Mode selects a context reduction strategy. The set is closed: dispatch is
// by registry lookup, never by free-form string comparison.
type Mode string

const (
	ModeTruncation            Mode = "truncation"
	ModeSlidingWindow         Mode = "sliding_window"
	ModeSummarization         Mode = "summarization"
	ModeAdaptiveSummarization Mode = "adaptive_summarization"
)

// Valid reports whether the mode names a known strategy.
func (m Mode) Valid() bool {
	switch m {
	case ModeTruncation, ModeSlidingWindow, ModeSummarization, ModeAdaptiveSummarization:
		return true
	}
	return false
}

// Request carries one reduction invocation. SessionID is required only for
// the adaptive strategy, which keeps per-session state.
type Request struct {
	Messages  []types.Message
	SessionID string

	MaxTurns       int
	MaxTokens      int
	PreserveSystem bool
}

// Result is the outcome of one reduction. Summary is the generated summary
// text, empty for strategies that do not summarize; callers append it to the
// session's memory zone.
type Result struct {
	Messages []types.Message
	Summary  string
}

// Strategy reduces a conversation to fit the configured budget. Messages in
// the returned result keep their relative order; implementations never
// mutate the input slice.
type Strategy interface {
	Mode() Mode
	Reduce(ctx context.Context, req Request) (Result, error)
}

// SummaryFunc produces a summary of the given messages, typically by calling
// an upstream model.
type SummaryFunc func(ctx context.Context, msgs []types.Message) (string, error)
