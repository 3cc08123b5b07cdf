package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestAnalyzer(t *testing.T, rules []CustomRule) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(DefaultConfig(), rules, nil, zap.NewNop())
	require.NoError(t, err)
	return a
}

func TestAnalyzer_DerivedFlags(t *testing.T) {
	t.Parallel()

	a := newTestAnalyzer(t, nil)

	q := a.Analyze("How do I configure this?")
	assert.True(t, q.IsQuestion)

	q = a.Analyze("где находится файл") // no question mark, no configured word
	assert.False(t, q.IsQuestion)

	q = a.Analyze("为什么会这样")
	assert.True(t, q.IsQuestion, "secondary-language question word")

	marked := a.Analyze("[IMPORTANT] do not delete the prod database")
	assert.True(t, marked.HasImportantMarker)

	long := a.Analyze("This response spells out every configuration step in detail, well past the threshold.")
	assert.True(t, long.IsAnswer)

	short := a.Analyze("ok")
	assert.False(t, short.IsAnswer)
}

func TestEntityExtractor_PatternsAndDedupe(t *testing.T) {
	t.Parallel()

	a := newTestAnalyzer(t, nil)

	res := a.Analyze("We run Python 3.11 behind Redis on port: 8080")
	require.True(t, res.HasEntities)

	var haveTech, haveVersion, haveConfig bool
	for _, e := range res.Entities {
		switch e.Type {
		case EntityTech:
			haveTech = true
		case EntityVersion:
			haveVersion = true
		case EntityConfig:
			haveConfig = true
		}
		assert.InDelta(t, 0.9, e.Confidence, 1e-9)
	}
	assert.True(t, haveTech)
	assert.True(t, haveVersion)
	assert.True(t, haveConfig)

	// Same span must not be reported twice.
	seen := map[[2]int]map[string]bool{}
	for _, e := range res.Entities {
		span := [2]int{e.Start, e.End}
		if seen[span] == nil {
			seen[span] = map[string]bool{}
		}
		assert.False(t, seen[span][e.Text], "duplicate entity %q at %v", e.Text, span)
		seen[span][e.Text] = true
	}
}

func TestEntityExtractor_Disabled(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.EntityExtractionEnabled = false
	a, err := NewAnalyzer(cfg, nil, nil, zap.NewNop())
	require.NoError(t, err)

	res := a.Analyze("Python 3.11")
	assert.Empty(t, res.Entities)
	assert.False(t, res.HasEntities)
}

type staticSource struct{ entities []Entity }

func (s staticSource) Extract(string) []Entity { return s.entities }

func TestEntityExtractor_InjectedSource(t *testing.T) {
	t.Parallel()

	src := staticSource{entities: []Entity{
		{Text: "Alice", Type: EntityPerson, Start: 0, End: 5, Confidence: 1.0},
		{Text: "Berlin", Type: EntityGPE, Start: 10, End: 16, Confidence: 1.0},
	}}

	a, err := NewAnalyzer(DefaultConfig(), nil, src, zap.NewNop())
	require.NoError(t, err)

	res := a.Analyze("Alice was in meetings all week")
	var havePerson, haveGPE bool
	for _, e := range res.Entities {
		if e.Type == EntityPerson {
			havePerson = true
		}
		if e.Type == EntityGPE {
			haveGPE = true
		}
	}
	assert.True(t, havePerson, "injected PERSON entity kept")
	assert.False(t, haveGPE, "GPE filtered out: not in configured entity types")
}

func TestCodeBlockDetector_MinLinesAndTruncation(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.CodeMinLines = 2
	cfg.CodeMaxLines = 3
	cfg.PreserveInlineCode = false
	a, err := NewAnalyzer(cfg, nil, nil, zap.NewNop())
	require.NoError(t, err)

	// One line: below the minimum, dropped.
	res := a.Analyze("```go\nfmt.Println(1)\n```")
	assert.Empty(t, res.CodeBlocks)

	// Five lines: truncated to three plus marker.
	res = a.Analyze("```go\nl1\nl2\nl3\nl4\nl5\n```")
	require.Len(t, res.CodeBlocks, 1)
	cb := res.CodeBlocks[0]
	assert.Equal(t, "go", cb.Language)
	assert.Contains(t, cb.Content, "[TRUNCATED]")
	assert.Contains(t, cb.Content, "l3")
	assert.NotContains(t, cb.Content, "l4")
}

func TestCodeBlockDetector_InlineCode(t *testing.T) {
	t.Parallel()

	a := newTestAnalyzer(t, nil)

	res := a.Analyze("run `make build` and then `make test`")
	require.Len(t, res.CodeBlocks, 2)
	assert.True(t, res.CodeBlocks[0].IsInline)
	assert.Equal(t, "make build", res.CodeBlocks[0].Content)
}

func TestURLExtractor_DedupeAndShorten(t *testing.T) {
	t.Parallel()

	a := newTestAnalyzer(t, nil)
	res := a.Analyze("see https://example.com/a and https://example.com/b and https://example.com/a")
	require.Len(t, res.URLs, 2)
	assert.Equal(t, "https://example.com/a", res.URLs[0])

	cfg := DefaultConfig()
	cfg.URLShorten = true
	short, err := NewAnalyzer(cfg, nil, nil, zap.NewNop())
	require.NoError(t, err)

	long := "https://example.com/some/very/long/path/segment/that/keeps/going/forever/and/ever"
	res = short.Analyze("link: " + long)
	require.Len(t, res.URLs, 1)
	assert.Less(t, len(res.URLs[0]), len(long))
	assert.Contains(t, res.URLs[0], "https://example.com")
}

func TestRuleMatcher_KindsAndIsolation(t *testing.T) {
	t.Parallel()

	rules := []CustomRule{
		{Type: RuleRegex, Action: ActionPreserve, Pattern: `API-\d+`},
		{Type: RuleRegex, Action: ActionPreserve, Pattern: `([`}, // does not compile; disabled only
		{Type: RuleKeyword, Action: ActionHighlight, Keywords: []string{"deadline"}},
	}

	a := newTestAnalyzer(t, rules)

	res := a.Analyze("ticket API-42 has a Deadline tomorrow, second deadline next week")
	var regexHits, keywordHits int
	for _, m := range res.RuleMatches {
		switch m.Rule.Type {
		case RuleRegex:
			regexHits++
			assert.Equal(t, "API-42", m.MatchedText)
		case RuleKeyword:
			keywordHits++
		}
	}
	assert.Equal(t, 1, regexHits)
	assert.Equal(t, 2, keywordHits, "case-insensitive, all occurrences")
}

func TestRuleMatcher_KeywordOffsetsSurviveCaseFolding(t *testing.T) {
	t.Parallel()

	// Lowercasing 'İ' (U+0130, 2 bytes) yields 'i' (1 byte), shifting every
	// byte offset after it. Matches must still span the original text.
	rules := []CustomRule{
		{Type: RuleKeyword, Action: ActionHighlight, Keywords: []string{"istanbul"}},
	}
	m, err := NewRuleMatcher(rules, zap.NewNop())
	require.NoError(t, err)

	text := "İstanbul hosts the summit, see you in İSTANBUL"
	matches := m.Match(text)
	require.Len(t, matches, 2)

	assert.Equal(t, "İstanbul", matches[0].MatchedText)
	assert.Equal(t, "İSTANBUL", matches[1].MatchedText)
	for _, match := range matches {
		assert.Equal(t, match.MatchedText, text[match.Start:match.End], "offsets index the original text")
	}
}

func TestRuleMatcher_InvalidDefinitionRejected(t *testing.T) {
	t.Parallel()

	_, err := NewRuleMatcher([]CustomRule{{Type: RuleRegex, Action: ActionPreserve}}, zap.NewNop())
	require.Error(t, err, "regex rule without pattern is a configuration error")

	_, err = NewRuleMatcher([]CustomRule{{Type: RuleKeyword, Action: ActionPreserve}}, zap.NewNop())
	require.Error(t, err)

	_, err = NewRuleMatcher([]CustomRule{{Type: "bogus", Action: ActionPreserve}}, zap.NewNop())
	require.Error(t, err)
}

func TestRuleMatch_ApplyAction(t *testing.T) {
	t.Parallel()

	m := RuleMatch{Rule: CustomRule{Type: RuleKeyword, Action: ActionRedact}, MatchedText: "secret"}
	assert.Equal(t, "[REDACTED]", m.ApplyAction())

	m.Rule.Action = ActionHighlight
	assert.Equal(t, "[IMPORTANT] secret", m.ApplyAction())

	m.Rule.Action = ActionPreserve
	assert.Equal(t, "secret", m.ApplyAction())
}
