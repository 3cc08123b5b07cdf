package adaptive

import (
	"context"
	"fmt"
	"strings"

	"github.com/contextgate/contextgate/analysis"
	"github.com/contextgate/contextgate/scoring"
	"github.com/contextgate/contextgate/types"
)

// SelectionAction is the per-message outcome of selective scoring.
type SelectionAction string

const (
	SelectPreserve  SelectionAction = "preserve"
	SelectSummarize SelectionAction = "summarize"
	SelectDiscard   SelectionAction = "discard"
)

type scoredMessage struct {
	message  types.Message
	score    float64
	action   SelectionAction
	analysis analysis.ContentAnalysis
}

// Selective scores every message and preserves, summarizes, or discards it
// by threshold. Summaries get a score-proportional content preview.
type Selective struct {
	config   SelectiveConfig
	scorer   *scoring.Scorer
	analyzer *analysis.Analyzer
}

func NewSelective(config SelectiveConfig, scorer *scoring.Scorer, analyzer *analysis.Analyzer) (*Selective, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Selective{config: config, scorer: scorer, analyzer: analyzer}, nil
}

func (s *Selective) Name() StrategyName { return StrategySelective }

func (s *Selective) Apply(_ context.Context, msgs []types.Message, _ string) ([]types.Message, string, error) {
	if len(msgs) == 0 {
		return nil, "", nil
	}

	out := make([]types.Message, 0, len(msgs))
	for _, sm := range s.scoreMessages(msgs) {
		switch sm.action {
		case SelectPreserve:
			out = append(out, sm.message)
		case SelectSummarize:
			out = append(out, s.summaryMessage(sm))
		case SelectDiscard:
		}
	}
	return out, "", nil
}

func (s *Selective) scoreMessages(msgs []types.Message) []scoredMessage {
	scored := make([]scoredMessage, 0, len(msgs))
	for _, msg := range msgs {
		a := s.analyzer.Analyze(msg.Content)
		score := s.scorer.Score(msg, a)
		scored = append(scored, scoredMessage{
			message:  msg,
			score:    score,
			action:   s.determineAction(score),
			analysis: a,
		})
	}
	return scored
}

// determineAction maps a score onto the threshold ladder. Scores between
// discard and summarize still get a (short) summary rather than dropping.
func (s *Selective) determineAction(score float64) SelectionAction {
	switch {
	case score >= s.config.PreserveThreshold:
		return SelectPreserve
	case score >= s.config.DiscardThreshold:
		return SelectSummarize
	default:
		return SelectDiscard
	}
}

func (s *Selective) summaryMessage(sm scoredMessage) types.Message {
	parts := []string{fmt.Sprintf("[%s, score=%.1f]", sm.message.Role, sm.score)}

	var indicators []string
	if len(sm.analysis.Entities) > 0 {
		names := make([]string, 0, 3)
		for _, e := range sm.analysis.Entities {
			names = append(names, e.Text)
			if len(names) == 3 {
				break
			}
		}
		indicators = append(indicators, "Entities: "+strings.Join(names, ", "))
	}
	if len(sm.analysis.CodeBlocks) > 0 {
		indicators = append(indicators, fmt.Sprintf("Code: %d block(s)", len(sm.analysis.CodeBlocks)))
	}
	if len(sm.analysis.URLs) > 0 {
		indicators = append(indicators, fmt.Sprintf("URLs: %d link(s)", len(sm.analysis.URLs)))
	}
	if len(indicators) > 0 {
		parts = append(parts, strings.Join(indicators, " | "))
	}

	previewLen := 50
	if sm.score >= s.config.SummarizeThreshold {
		previewLen = 150
	}
	parts = append(parts, "Content: "+preview(sm.message.Content, previewLen))

	return types.NewSystemMessage("[Selective Summary] " + strings.Join(parts, " | "))
}

// ScoreDistribution counts messages per action.
func (s *Selective) ScoreDistribution(msgs []types.Message) map[SelectionAction]int {
	dist := map[SelectionAction]int{
		SelectPreserve:  0,
		SelectSummarize: 0,
		SelectDiscard:   0,
	}
	for _, sm := range s.scoreMessages(msgs) {
		dist[sm.action]++
	}
	return dist
}

// TopMessages returns the k highest-scoring messages.
func (s *Selective) TopMessages(msgs []types.Message, k int) []scoring.ScoredMessage {
	scored := s.scoreMessages(msgs)
	scores := make([]float64, len(scored))
	for i, sm := range scored {
		scores[i] = sm.score
	}
	return scoring.TopK(msgs, scores, k)
}

// ScoreStatistics summarizes the score distribution.
func (s *Selective) ScoreStatistics(msgs []types.Message) scoring.Stats {
	scored := s.scoreMessages(msgs)
	scores := make([]float64, len(scored))
	for i, sm := range scored {
		scores[i] = sm.score
	}
	return scoring.Summarize(scores)
}
