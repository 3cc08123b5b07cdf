package adaptive

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/contextgate/contextgate/reduction"
	"github.com/contextgate/contextgate/types"
)

// SummaryState is the rolling summary kept per session. Depth counts how
// many times the summary has been folded into itself; when it reaches the
// configured maximum the state is discarded so summary text cannot compound
// without bound.
type SummaryState struct {
	SummaryText  string    `json:"summary_text"`
	Depth        int       `json:"depth"`
	CreatedAt    time.Time `json:"created_at"`
	MessageCount int       `json:"message_count"`
}

// Incremental maintains one SummaryState per session and folds older turns
// into it window by window. Per-session serialization of calls is the
// caller's responsibility; the internal map is still guarded for the sweep
// and clear paths that run concurrently.
type Incremental struct {
	config    IncrementalConfig
	summarize reduction.SummaryFunc

	mu     sync.Mutex
	states map[string]*SummaryState

	now func() time.Time
}

func NewIncremental(config IncrementalConfig, summarize reduction.SummaryFunc) *Incremental {
	return &Incremental{
		config:    config,
		summarize: summarize,
		states:    make(map[string]*SummaryState),
		now:       time.Now,
	}
}

func (s *Incremental) Name() StrategyName { return StrategyIncremental }

func (s *Incremental) Apply(ctx context.Context, msgs []types.Message, sessionID string) ([]types.Message, string, error) {
	if len(msgs) == 0 {
		return nil, "", nil
	}

	s.mu.Lock()
	state := s.states[sessionID]
	if state != nil && state.Depth >= s.config.MaxSummaryDepth {
		delete(s.states, sessionID)
		state = nil
	}
	var prevSummary string
	var prevDepth int
	trigger := s.shouldTrigger(msgs, state)
	if state != nil {
		prevSummary = state.SummaryText
		prevDepth = state.Depth
	}
	s.mu.Unlock()

	if !trigger {
		return msgs, "", nil
	}

	system, other := types.SplitSystem(msgs, true)

	if len(other) <= s.config.KeepRecent {
		return msgs, "", nil
	}
	recent := other[len(other)-s.config.KeepRecent:]
	older := other[:len(other)-s.config.KeepRecent]

	summary, err := s.generateSummary(ctx, older, prevSummary)
	if err != nil {
		// No state write on failure: a timed-out call leaves the previous
		// summary intact.
		return nil, "", err
	}

	depth := prevDepth + 1
	s.mu.Lock()
	s.states[sessionID] = &SummaryState{
		SummaryText:  summary,
		Depth:        depth,
		CreatedAt:    s.now(),
		MessageCount: len(msgs),
	}
	s.mu.Unlock()

	summaryMsg := types.NewSystemMessage(
		fmt.Sprintf("%s (Depth %d): %s", s.config.SummaryPrefix, depth, summary))

	out := make([]types.Message, 0, len(system)+1+len(recent))
	out = append(out, system...)
	out = append(out, summaryMsg)
	out = append(out, recent...)
	return out, summary, nil
}

// shouldTrigger reports whether enough new turns accumulated since the last
// pass. On first run the whole window plus the verbatim tail must exist.
func (s *Incremental) shouldTrigger(msgs []types.Message, state *SummaryState) bool {
	if state == nil {
		return len(msgs) > s.config.SummaryWindow+s.config.KeepRecent
	}
	return len(msgs)-state.MessageCount >= s.config.SummaryWindow
}

func (s *Incremental) generateSummary(ctx context.Context, msgs []types.Message, prevSummary string) (string, error) {
	if s.summarize == nil {
		return "", types.NewError(types.ErrProviderUnavailable, "no summarizer configured")
	}
	prompt := buildSummaryPrompt(msgs, prevSummary)
	return s.summarize(ctx, []types.Message{types.NewUserMessage(prompt)})
}

func buildSummaryPrompt(msgs []types.Message, prevSummary string) string {
	var conv strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			conv.WriteByte('\n')
		}
		conv.WriteString(string(msg.Role))
		conv.WriteString(": ")
		conv.WriteString(msg.Content)
	}

	if prevSummary != "" {
		return fmt.Sprintf(`You are summarizing a conversation incrementally.

Previous Summary:
%s

New Messages:
%s

Please create an updated summary that:
1. Incorporates key information from the new messages
2. Maintains important context from the previous summary
3. Removes redundant or less important details
4. Keeps the summary concise (max 500 words)

Updated Summary:`, prevSummary, conv.String())
	}

	return fmt.Sprintf(`You are summarizing a conversation.

Messages:
%s

Please create a concise summary that:
1. Captures the main topics and key points
2. Preserves important entities, decisions, and actions
3. Maintains chronological flow
4. Keeps the summary concise (max 500 words)

Summary:`, conv.String())
}

// SummaryInfo returns a copy of the session's summary state, or nil.
func (s *Incremental) SummaryInfo(sessionID string) *SummaryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.states[sessionID]
	if state == nil {
		return nil
	}
	copied := *state
	return &copied
}

// ClearSession discards the session's summary state.
func (s *Incremental) ClearSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, sessionID)
}
