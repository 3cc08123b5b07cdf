package analysis

import (
	"regexp"
	"strings"
)

// EntityType classifies an extracted entity.
type EntityType string

const (
	EntityPerson  EntityType = "PERSON"
	EntityOrg     EntityType = "ORG"
	EntityGPE     EntityType = "GPE"
	EntityProduct EntityType = "PRODUCT"
	EntityTech    EntityType = "TECH"
	EntityVersion EntityType = "VERSION"
	EntityConfig  EntityType = "CONFIG"
)

// Entity is a piece of text recognized by the entity extractor.
type Entity struct {
	Text       string     `json:"text"`
	Type       EntityType `json:"type"`
	Start      int        `json:"start"`
	End        int        `json:"end"`
	Confidence float64    `json:"confidence"`
}

// EntitySource is an optional additional source of entities, typically an
// NLP-based named-entity recognizer. It is selected by configuration, never
// probed at runtime; when absent, pattern extraction alone runs.
type EntitySource interface {
	Extract(text string) []Entity
}

// patternConfidence applies to every pattern-extracted entity.
const patternConfidence = 0.9

type techPattern struct {
	re            *regexp.Regexp
	primaryType   EntityType
	secondaryType EntityType
}

var techPatterns = []techPattern{
	// Languages paired with version numbers.
	{regexp.MustCompile(`(?i)\b(Python)\s*(\d+\.\d+(?:\.\d+)?)\b`), EntityTech, EntityVersion},
	{regexp.MustCompile(`(?i)\b(Java)\s*(\d+)\b`), EntityTech, EntityVersion},
	{regexp.MustCompile(`(?i)\b(Node\.?js)\s*v?(\d+\.\d+(?:\.\d+)?)\b`), EntityTech, EntityVersion},
	{regexp.MustCompile(`(?i)\b(Go)\s*(\d+\.\d+(?:\.\d+)?)\b`), EntityTech, EntityVersion},

	// Frameworks and libraries.
	{regexp.MustCompile(`(?i)\b(FastAPI|Django|Flask|Express|React|Vue|Angular|Spring)\b`), EntityTech, ""},

	// Databases, optionally versioned.
	{regexp.MustCompile(`(?i)\b(PostgreSQL|MySQL|MongoDB|Redis|SQLite|Oracle)\s*(\d+(?:\.\d+)?)?`), EntityTech, EntityVersion},

	// Standalone version numbers.
	{regexp.MustCompile(`(?i)\bv?(\d+\.\d+(?:\.\d+)?(?:-[a-z]+)?)\b`), EntityVersion, ""},

	// Configuration key/value mentions.
	{regexp.MustCompile(`(?i)\b(?:port|端口)[:：\s]+(\d+)\b`), EntityConfig, ""},
	{regexp.MustCompile(`(?i)\b(?:timeout|超时)[:：\s]+(\d+)\s*(?:s|秒|seconds?)?`), EntityConfig, ""},
}

// EntityExtractor finds technology names, version numbers and configuration
// mentions via regex patterns, optionally augmented by an injected NER source.
type EntityExtractor struct {
	config Config
	source EntitySource
	types  map[EntityType]bool
}

// NewEntityExtractor creates an extractor; source may be nil.
func NewEntityExtractor(config Config, source EntitySource) *EntityExtractor {
	allowed := make(map[EntityType]bool, len(config.EntityTypes))
	for _, t := range config.EntityTypes {
		allowed[t] = true
	}
	return &EntityExtractor{config: config, source: source, types: allowed}
}

// Extract returns deduplicated entities filtered to the configured types.
func (e *EntityExtractor) Extract(text string) []Entity {
	if !e.config.EntityExtractionEnabled {
		return nil
	}

	var entities []Entity
	if e.source != nil {
		entities = append(entities, e.source.Extract(text)...)
	}
	entities = append(entities, e.extractWithPatterns(text)...)

	entities = dedupeEntities(entities)

	filtered := entities[:0]
	for _, ent := range entities {
		if e.types[ent.Type] {
			filtered = append(filtered, ent)
		}
	}
	return filtered
}

func (e *EntityExtractor) extractWithPatterns(text string) []Entity {
	var entities []Entity

	for _, p := range techPatterns {
		for _, idx := range p.re.FindAllStringSubmatchIndex(text, -1) {
			// idx layout: [start end g1start g1end g2start g2end ...]
			if len(idx) >= 4 && idx[2] >= 0 {
				entities = append(entities, Entity{
					Text:       text[idx[2]:idx[3]],
					Type:       p.primaryType,
					Start:      idx[0],
					End:        idx[1],
					Confidence: patternConfidence,
				})
			}
			if p.secondaryType != "" && len(idx) >= 6 && idx[4] >= 0 {
				entities = append(entities, Entity{
					Text:       text[idx[4]:idx[5]],
					Type:       p.secondaryType,
					Start:      idx[4],
					End:        idx[5],
					Confidence: patternConfidence,
				})
			}
		}
	}

	return entities
}

type entityKey struct {
	text  string
	start int
	end   int
}

func dedupeEntities(entities []Entity) []Entity {
	seen := make(map[entityKey]bool, len(entities))
	unique := entities[:0]
	for _, ent := range entities {
		key := entityKey{strings.ToLower(ent.Text), ent.Start, ent.End}
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, ent)
	}
	return unique
}
