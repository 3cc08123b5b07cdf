package adaptive

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/contextgate/contextgate/analysis"
	"github.com/contextgate/contextgate/types"
)

// Layer trigger weights.
const (
	systemTriggerScore    = 100
	entityTriggerWeight   = 10
	codeTriggerWeight     = 15
	urlTriggerWeight      = 5
	importantTriggerScore = 50
	questionTriggerScore  = 20
	answerTriggerScore    = 20
	ruleTriggerWeight     = 30
)

// messageLayer is a message with its assigned layer.
type messageLayer struct {
	message  types.Message
	layer    LayerConfig
	analysis analysis.ContentAnalysis
}

// Hierarchical classifies each message into the best-scoring layer and
// applies that layer's action. Output order follows input order.
type Hierarchical struct {
	config    HierarchicalConfig
	analyzer  *analysis.Analyzer
	estimator types.TokenEstimator
}

func NewHierarchical(config HierarchicalConfig, analyzer *analysis.Analyzer, estimator types.TokenEstimator) (*Hierarchical, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if estimator == nil {
		estimator = types.NewHeuristicEstimator()
	}
	return &Hierarchical{config: config, analyzer: analyzer, estimator: estimator}, nil
}

func (h *Hierarchical) Name() StrategyName { return StrategyHierarchical }

func (h *Hierarchical) Apply(_ context.Context, msgs []types.Message, _ string) ([]types.Message, string, error) {
	if len(msgs) == 0 {
		return nil, "", nil
	}

	out := make([]types.Message, 0, len(msgs))
	for _, msg := range msgs {
		ml := h.classify(msg, h.analyzer.Analyze(msg.Content))
		switch ml.layer.Action {
		case ActionPreserve:
			out = append(out, h.truncate(ml.message, ml.layer.MaxTokensPerMessage))
		case ActionDetailedSummary:
			out = append(out, h.truncate(detailedDigest(ml), ml.layer.MaxTokensPerMessage))
		case ActionBriefSummary:
			out = append(out, h.truncate(briefDigest(ml), ml.layer.MaxTokensPerMessage))
		case ActionDiscard:
		}
	}
	return out, "", nil
}

// classify scores the message against every layer and picks the best;
// ties go to the layer with the numerically higher priority.
func (h *Hierarchical) classify(msg types.Message, a analysis.ContentAnalysis) messageLayer {
	best := h.config.Layers[0]
	bestScore := -1

	for _, layer := range h.config.Layers {
		score := layerScore(msg, a, layer)
		if score > bestScore || (score == bestScore && layer.Priority > best.Priority) {
			best = layer
			bestScore = score
		}
	}

	return messageLayer{message: msg, layer: best, analysis: a}
}

func layerScore(msg types.Message, a analysis.ContentAnalysis, layer LayerConfig) int {
	score := 0
	for _, trigger := range layer.ContentTypes {
		switch trigger {
		case TriggerSystemMessages:
			if msg.IsSystem() {
				score += systemTriggerScore
			}
		case TriggerEntities:
			score += len(a.Entities) * entityTriggerWeight
		case TriggerCodeBlocks:
			score += len(a.CodeBlocks) * codeTriggerWeight
		case TriggerURLs:
			score += len(a.URLs) * urlTriggerWeight
		case TriggerImportantMarkers:
			if a.HasImportantMarker {
				score += importantTriggerScore
			}
		case TriggerQuestions:
			if a.IsQuestion {
				score += questionTriggerScore
			}
		case TriggerAnswers:
			if a.IsAnswer {
				score += answerTriggerScore
			}
		case TriggerCustomRules:
			for _, m := range a.RuleMatches {
				if m.Rule.Action == analysis.ActionPreserve {
					score += ruleTriggerWeight
				}
			}
		}
	}
	return score
}

// truncate caps a message's content at maxTokens; zero means no cap.
// The cut lands on a rune boundary so multi-byte content stays valid.
func (h *Hierarchical) truncate(msg types.Message, maxTokens int) types.Message {
	if maxTokens <= 0 {
		return msg
	}
	if h.estimator.EstimateText(msg.Content) <= maxTokens {
		return msg
	}
	maxChars := maxTokens * 4
	if maxChars >= utf8.RuneCountInString(msg.Content) {
		return msg
	}
	runes := []rune(msg.Content)
	msg.Content = string(runes[:maxChars]) + "... [truncated]"
	return msg
}

func detailedDigest(ml messageLayer) types.Message {
	a := ml.analysis
	parts := []string{fmt.Sprintf("[%s]", ml.message.Role)}

	if len(a.Entities) > 0 {
		names := make([]string, 0, 5)
		for _, e := range a.Entities {
			names = append(names, e.Text)
			if len(names) == 5 {
				break
			}
		}
		parts = append(parts, "Entities: "+strings.Join(names, ", "))
	}

	if len(a.CodeBlocks) > 0 {
		info := make([]string, 0, 3)
		for _, cb := range a.CodeBlocks {
			lang := cb.Language
			if lang == "" {
				lang = "code"
			}
			info = append(info, fmt.Sprintf("%s(%d lines)", lang, cb.LineCount()))
			if len(info) == 3 {
				break
			}
		}
		parts = append(parts, "Code: "+strings.Join(info, ", "))
	}

	if len(a.URLs) > 0 {
		parts = append(parts, fmt.Sprintf("URLs: %d link(s)", len(a.URLs)))
	}

	parts = append(parts, "Content: "+preview(ml.message.Content, 200))

	return types.NewSystemMessage("[Detailed Summary] " + strings.Join(parts, " | "))
}

func briefDigest(ml messageLayer) types.Message {
	a := ml.analysis
	parts := []string{fmt.Sprintf("[%s]", ml.message.Role)}

	var indicators []string
	if len(a.Entities) > 0 {
		indicators = append(indicators, fmt.Sprintf("%d entities", len(a.Entities)))
	}
	if len(a.CodeBlocks) > 0 {
		indicators = append(indicators, fmt.Sprintf("%d code blocks", len(a.CodeBlocks)))
	}
	if len(a.URLs) > 0 {
		indicators = append(indicators, fmt.Sprintf("%d URLs", len(a.URLs)))
	}
	if len(indicators) > 0 {
		parts = append(parts, strings.Join(indicators, ", "))
	}

	parts = append(parts, preview(ml.message.Content, 50))

	return types.NewSystemMessage("[Brief Summary] " + strings.Join(parts, " | "))
}

// preview returns the first max characters of content. Counted in runes,
// never cutting a multi-byte character in half.
func preview(content string, max int) string {
	if utf8.RuneCountInString(content) <= max {
		return content
	}
	runes := []rune(content)
	return string(runes[:max]) + "..."
}

// LayerStatistics reports how many messages each layer would receive.
func (h *Hierarchical) LayerStatistics(msgs []types.Message) map[string]int {
	counts := make(map[string]int, len(h.config.Layers))
	for _, layer := range h.config.Layers {
		counts[layer.Name] = 0
	}
	for _, msg := range msgs {
		ml := h.classify(msg, h.analyzer.Analyze(msg.Content))
		counts[ml.layer.Name]++
	}
	return counts
}
