package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contextgate/contextgate/analysis"
	"github.com/contextgate/contextgate/types"
)

func TestScorer_WeightedSum(t *testing.T) {
	t.Parallel()

	s := NewScorer(DefaultConfig())

	msg := types.NewUserMessage("0123456789") // 10 chars
	a := analysis.ContentAnalysis{
		Entities:           []analysis.Entity{{Text: "Go"}, {Text: "Redis"}},
		CodeBlocks:         []analysis.CodeBlock{{Content: "x := 1"}},
		URLs:               []string{"https://example.com"},
		HasImportantMarker: true,
		IsQuestion:         true,
	}

	b := s.Breakdown(msg, a)
	assert.Equal(t, 20.0, b.Entities)
	assert.Equal(t, 15.0, b.CodeBlocks)
	assert.Equal(t, 8.0, b.URLs)
	assert.Equal(t, 20.0, b.ImportantMarker)
	assert.Equal(t, 5.0, b.Question)
	assert.Equal(t, 0.0, b.Answer)
	assert.InDelta(t, 0.1, b.Length, 1e-9)
	assert.Equal(t, 2.0, b.Role)
	assert.InDelta(t, 70.1, b.Total, 1e-9)
	assert.Equal(t, b.Total, s.Score(msg, a))
}

func TestScorer_RoleBonuses(t *testing.T) {
	t.Parallel()

	s := NewScorer(DefaultConfig())
	var empty analysis.ContentAnalysis

	assert.Equal(t, 50.0, s.Score(types.NewSystemMessage(""), empty))
	assert.Equal(t, 2.0, s.Score(types.NewUserMessage(""), empty))
	assert.Equal(t, 0.0, s.Score(types.NewAssistantMessage(""), empty))
}

func TestScorer_ClampAndBreakdownUnclamped(t *testing.T) {
	t.Parallel()

	s := NewScorer(DefaultConfig())

	// Pile on enough components to exceed the maximum.
	a := analysis.ContentAnalysis{
		Entities:           make([]analysis.Entity, 10),
		CodeBlocks:         make([]analysis.CodeBlock, 5),
		HasImportantMarker: true,
	}
	msg := types.NewSystemMessage("x")

	b := s.Breakdown(msg, a)
	assert.Equal(t, 100.0, b.Total, "total is clamped")
	assert.Equal(t, 100.0, b.Entities, "components stay unclamped")
	assert.Equal(t, 75.0, b.CodeBlocks)
}

func TestScoreAll_LengthMismatch(t *testing.T) {
	t.Parallel()

	s := NewScorer(DefaultConfig())
	_, err := s.ScoreAll([]types.Message{types.NewUserMessage("a")}, nil)
	require.Error(t, err)
}

func TestTopK_OrderAndTies(t *testing.T) {
	t.Parallel()

	msgs := []types.Message{
		types.NewUserMessage("a"),
		types.NewUserMessage("b"),
		types.NewUserMessage("c"),
	}
	scores := []float64{5, 9, 5}

	top := TopK(msgs, scores, 2)
	require.Len(t, top, 2)
	assert.Equal(t, "b", top[0].Message.Content)
	assert.Equal(t, "a", top[1].Message.Content, "ties keep input order")

	assert.Len(t, TopK(msgs, scores, 10), 3)
	assert.Empty(t, TopK(msgs, scores, 0))
}

func TestPercentile(t *testing.T) {
	t.Parallel()

	all := []float64{1, 2, 3, 4}
	assert.Equal(t, 0.5, Percentile(2, all))
	assert.Equal(t, 1.0, Percentile(4, all))
	assert.Equal(t, 0.0, Percentile(0.5, all))
	assert.Equal(t, 0.0, Percentile(1, nil))
}

func TestSummarize_Statistics(t *testing.T) {
	t.Parallel()

	stats := Summarize([]float64{4, 1, 3, 2})
	assert.Equal(t, 1.0, stats.Min)
	assert.Equal(t, 4.0, stats.Max)
	assert.Equal(t, 2.5, stats.Mean)
	assert.Equal(t, 2.5, stats.Median)

	odd := Summarize([]float64{3, 1, 2})
	assert.Equal(t, 2.0, odd.Median)

	assert.Equal(t, Stats{}, Summarize(nil))
}
