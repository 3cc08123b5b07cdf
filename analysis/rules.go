package analysis

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/contextgate/contextgate/types"
)

// RuleType identifies the kind of custom rule.
type RuleType string

const (
	RuleRegex     RuleType = "regex"
	RuleKeyword   RuleType = "keyword"
	RuleStructure RuleType = "structure"
)

// RuleAction is what downstream consumers do with a match.
type RuleAction string

const (
	ActionPreserve  RuleAction = "preserve"
	ActionHighlight RuleAction = "highlight"
	ActionRedact    RuleAction = "redact"
)

// CustomRule is a user-supplied preservation rule.
type CustomRule struct {
	Type        RuleType   `yaml:"type" json:"type"`
	Action      RuleAction `yaml:"action" json:"action"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`

	// Regex rules.
	Pattern string `yaml:"pattern,omitempty" json:"pattern,omitempty"`

	// Keyword rules.
	Keywords []string `yaml:"keywords,omitempty" json:"keywords,omitempty"`

	// Structure rules (reserved).
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
}

// Validate rejects structurally incomplete rule definitions. A regex pattern
// that fails to compile is NOT a validation error: it disables only that rule
// at match time.
func (r CustomRule) Validate() error {
	switch r.Type {
	case RuleRegex:
		if r.Pattern == "" {
			return types.NewError(types.ErrInvalidRule, "regex rule must have a pattern")
		}
	case RuleKeyword:
		if len(r.Keywords) == 0 {
			return types.NewError(types.ErrInvalidRule, "keyword rule must have keywords")
		}
	case RuleStructure:
		if r.Format == "" {
			return types.NewError(types.ErrInvalidRule, "structure rule must have a format")
		}
	default:
		return types.NewError(types.ErrInvalidRule, "unknown rule type: "+string(r.Type))
	}
	return nil
}

// RuleMatch is one occurrence of a rule in a message.
type RuleMatch struct {
	Rule        CustomRule `json:"rule"`
	MatchedText string     `json:"matched_text"`
	Start       int        `json:"start"`
	End         int        `json:"end"`
}

// ApplyAction renders the matched text according to the rule's action.
func (m RuleMatch) ApplyAction() string {
	switch m.Rule.Action {
	case ActionHighlight:
		return "[IMPORTANT] " + m.MatchedText
	case ActionRedact:
		return "[REDACTED]"
	default:
		return m.MatchedText
	}
}

type compiledRule struct {
	rule CustomRule
	re   *regexp.Regexp // nil unless a regex rule that compiled
}

// RuleMatcher evaluates custom rules against message text.
type RuleMatcher struct {
	rules  []compiledRule
	logger *zap.Logger
}

// NewRuleMatcher validates and compiles the rule set. An uncompilable regex
// pattern disables only that rule; all other rules still run.
func NewRuleMatcher(rules []CustomRule, logger *zap.Logger) (*RuleMatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			return nil, err
		}

		cr := compiledRule{rule: rule}
		if rule.Type == RuleRegex {
			re, err := regexp.Compile(rule.Pattern)
			if err != nil {
				logger.Warn("invalid regex pattern, rule disabled",
					zap.String("pattern", rule.Pattern),
					zap.Error(err))
				continue
			}
			cr.re = re
		}
		compiled = append(compiled, cr)
	}

	return &RuleMatcher{rules: compiled, logger: logger}, nil
}

// Match returns all rule matches in the text.
func (m *RuleMatcher) Match(text string) []RuleMatch {
	var matches []RuleMatch

	for _, cr := range m.rules {
		switch cr.rule.Type {
		case RuleRegex:
			matches = append(matches, matchRegex(text, cr)...)
		case RuleKeyword:
			matches = append(matches, matchKeywords(text, cr.rule)...)
		case RuleStructure:
			// Reserved: structure matching produces no matches yet.
		}
	}

	return matches
}

func matchRegex(text string, cr compiledRule) []RuleMatch {
	var matches []RuleMatch
	for _, idx := range cr.re.FindAllStringIndex(text, -1) {
		matches = append(matches, RuleMatch{
			Rule:        cr.rule,
			MatchedText: text[idx[0]:idx[1]],
			Start:       idx[0],
			End:         idx[1],
		})
	}
	return matches
}

// matchKeywords finds all non-overlapping case-insensitive occurrences.
// Lowercasing can change a rune's byte length, so match positions in the
// folded text are mapped back through a per-byte offset table instead of
// being reused as offsets into the original.
func matchKeywords(text string, rule CustomRule) []RuleMatch {
	var matches []RuleMatch
	lower, offsets := foldOffsets(text)

	for _, keyword := range rule.Keywords {
		kw, _ := foldOffsets(keyword)
		if kw == "" {
			continue
		}
		start := 0
		for {
			pos := strings.Index(lower[start:], kw)
			if pos < 0 {
				break
			}
			pos += start
			s, e := offsets[pos], offsets[pos+len(kw)]
			matches = append(matches, RuleMatch{
				Rule:        rule,
				MatchedText: text[s:e],
				Start:       s,
				End:         e,
			})
			start = pos + len(kw)
		}
	}

	return matches
}

// foldOffsets lowercases s rune by rune and records, for every byte index
// of the folded string plus its end, the corresponding byte index in s.
func foldOffsets(s string) (string, []int) {
	var b strings.Builder
	b.Grow(len(s))
	offsets := make([]int, 0, len(s)+1)
	for i, r := range s {
		lr := unicode.ToLower(r)
		for j := 0; j < utf8.RuneLen(lr); j++ {
			offsets = append(offsets, i)
		}
		b.WriteRune(lr)
	}
	offsets = append(offsets, len(s))
	return b.String(), offsets
}
