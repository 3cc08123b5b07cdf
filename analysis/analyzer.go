package analysis

import (
	"regexp"

	"go.uber.org/zap"
)

// ContentAnalysis is the combined result of all analyzers for one message.
// It is derived on demand and never persisted.
type ContentAnalysis struct {
	Entities    []Entity    `json:"entities"`
	CodeBlocks  []CodeBlock `json:"code_blocks"`
	URLs        []string    `json:"urls"`
	RuleMatches []RuleMatch `json:"rule_matches"`

	HasEntities        bool `json:"has_entities"`
	HasCode            bool `json:"has_code"`
	HasURLs            bool `json:"has_urls"`
	HasImportantMarker bool `json:"has_important_marker"`
	IsQuestion         bool `json:"is_question"`
	IsAnswer           bool `json:"is_answer"`
}

// Config controls all analyzers. Zero value is unusable; use DefaultConfig.
type Config struct {
	// Entity extraction
	EntityExtractionEnabled bool         `yaml:"entity_extraction_enabled"`
	EntityTypes             []EntityType `yaml:"entity_types"`

	// Code block detection
	CodeDetectionEnabled bool `yaml:"code_detection_enabled"`
	CodeMinLines         int  `yaml:"code_min_lines"`
	CodeMaxLines         int  `yaml:"code_max_lines"`
	PreserveInlineCode   bool `yaml:"preserve_inline_code"`

	// URL extraction
	URLExtractionEnabled bool `yaml:"url_extraction_enabled"`
	URLShorten           bool `yaml:"url_shorten"`
	URLVerifyAlive       bool `yaml:"url_verify_alive"`

	// Derived-flag heuristics. Question words are matched in two languages;
	// both lists are configurable.
	PrimaryQuestionWords   []string `yaml:"primary_question_words"`
	SecondaryQuestionWords []string `yaml:"secondary_question_words"`
	AnswerMinLength        int      `yaml:"answer_min_length"`
}

// DefaultConfig returns the analyzer configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		EntityExtractionEnabled: true,
		EntityTypes: []EntityType{
			EntityPerson, EntityOrg, EntityTech, EntityVersion, EntityConfig,
		},
		CodeDetectionEnabled: true,
		CodeMinLines:         2,
		CodeMaxLines:         50,
		PreserveInlineCode:   true,
		URLExtractionEnabled: true,
		URLShorten:           false,
		URLVerifyAlive:       false,
		PrimaryQuestionWords: []string{
			"what", "how", "why", "when", "where", "who", "which", "whose", "whom",
		},
		SecondaryQuestionWords: []string{
			"什么", "怎么", "为什么", "何时", "哪里", "谁", "哪个",
		},
		AnswerMinLength: 50,
	}
}

var importantMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\[IMPORTANT\]`),
	regexp.MustCompile(`\[重要\]`),
	regexp.MustCompile(`\[!!\]`),
	regexp.MustCompile(`⚠️`),
	regexp.MustCompile(`❗`),
}

// Analyzer coordinates the four independent analyzers into one
// ContentAnalysis per message. It is stateless and safe for concurrent use.
type Analyzer struct {
	config   Config
	entities *EntityExtractor
	code     *CodeBlockDetector
	urls     *URLExtractor
	rules    *RuleMatcher

	primaryQuestion   *regexp.Regexp
	secondaryQuestion *regexp.Regexp
}

// NewAnalyzer builds the analyzer coordinator. Invalid custom-rule
// definitions are rejected; a regex rule whose pattern fails to compile is
// logged and disabled without affecting the remaining rules.
func NewAnalyzer(config Config, rules []CustomRule, source EntitySource, logger *zap.Logger) (*Analyzer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "content_analyzer"))

	matcher, err := NewRuleMatcher(rules, logger)
	if err != nil {
		return nil, err
	}

	return &Analyzer{
		config:            config,
		entities:          NewEntityExtractor(config, source),
		code:              NewCodeBlockDetector(config),
		urls:              NewURLExtractor(config),
		rules:             matcher,
		primaryQuestion:   compileQuestionWords(config.PrimaryQuestionWords),
		secondaryQuestion: compileQuestionWords(config.SecondaryQuestionWords),
	}, nil
}

// Analyze runs every analyzer over the text and derives the boolean flags.
func (a *Analyzer) Analyze(text string) ContentAnalysis {
	entities := a.entities.Extract(text)
	codeBlocks := a.code.Detect(text)
	urls := a.urls.Extract(text)
	matches := a.rules.Match(text)

	return ContentAnalysis{
		Entities:           entities,
		CodeBlocks:         codeBlocks,
		URLs:               urls,
		RuleMatches:        matches,
		HasEntities:        len(entities) > 0,
		HasCode:            len(codeBlocks) > 0,
		HasURLs:            len(urls) > 0,
		HasImportantMarker: a.detectImportantMarker(text),
		IsQuestion:         a.detectQuestion(text),
		IsAnswer:           a.detectAnswer(text),
	}
}

func (a *Analyzer) detectImportantMarker(text string) bool {
	for _, marker := range importantMarkers {
		if marker.MatchString(text) {
			return true
		}
	}
	return false
}

func (a *Analyzer) detectQuestion(text string) bool {
	for _, r := range text {
		if r == '?' || r == '？' {
			return true
		}
	}
	if a.primaryQuestion != nil && a.primaryQuestion.MatchString(text) {
		return true
	}
	if a.secondaryQuestion != nil && a.secondaryQuestion.MatchString(text) {
		return true
	}
	return false
}

// detectAnswer is a coarse heuristic: substantial content reads as an answer.
func (a *Analyzer) detectAnswer(text string) bool {
	return len(text) > a.config.AnswerMinLength
}

func compileQuestionWords(words []string) *regexp.Regexp {
	if len(words) == 0 {
		return nil
	}
	pattern := `(?i)(^|[^\p{L}])(`
	for i, w := range words {
		if i > 0 {
			pattern += "|"
		}
		pattern += regexp.QuoteMeta(w)
	}
	pattern += `)($|[^\p{L}])`
	return regexp.MustCompile(pattern)
}
