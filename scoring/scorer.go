// Package scoring turns a message and its content analysis into a bounded
// importance score. All operations are pure and order-independent; the
// selective reduction strategy is the main consumer.
package scoring

import (
	"sort"

	"github.com/contextgate/contextgate/analysis"
	"github.com/contextgate/contextgate/types"
)

// Role bonuses. System messages are always important; user messages edge out
// assistant ones.
const (
	systemRoleBonus = 50.0
	userRoleBonus   = 2.0
)

// Config holds the scoring weights.
type Config struct {
	EntityWeight    float64 `yaml:"entity_weight"`
	CodeBlockWeight float64 `yaml:"code_block_weight"`
	URLWeight       float64 `yaml:"url_weight"`
	MarkedImportant float64 `yaml:"marked_important"`
	QuestionBonus   float64 `yaml:"question_bonus"`
	AnswerBonus     float64 `yaml:"answer_bonus"`
	LengthBonus     float64 `yaml:"length_bonus"` // per character

	MinScore float64 `yaml:"min_score"`
	MaxScore float64 `yaml:"max_score"`
}

// DefaultConfig returns the standard scoring weights.
func DefaultConfig() Config {
	return Config{
		EntityWeight:    10.0,
		CodeBlockWeight: 15.0,
		URLWeight:       8.0,
		MarkedImportant: 20.0,
		QuestionBonus:   5.0,
		AnswerBonus:     5.0,
		LengthBonus:     0.01,
		MinScore:        0.0,
		MaxScore:        100.0,
	}
}

// Breakdown exposes the unclamped score components for diagnostics.
type Breakdown struct {
	Entities        float64 `json:"entities"`
	CodeBlocks      float64 `json:"code_blocks"`
	URLs            float64 `json:"urls"`
	ImportantMarker float64 `json:"important_marker"`
	Question        float64 `json:"is_question"`
	Answer          float64 `json:"is_answer"`
	Length          float64 `json:"length_bonus"`
	Role            float64 `json:"role_bonus"`
	Total           float64 `json:"total"` // clamped
}

// Scorer computes importance scores. It is stateless and safe for
// concurrent use.
type Scorer struct {
	config Config
}

func NewScorer(config Config) *Scorer {
	return &Scorer{config: config}
}

// Score returns the clamped importance score for one message.
func (s *Scorer) Score(msg types.Message, a analysis.ContentAnalysis) float64 {
	return s.Breakdown(msg, a).Total
}

// Breakdown returns every score component plus the clamped total.
func (s *Scorer) Breakdown(msg types.Message, a analysis.ContentAnalysis) Breakdown {
	b := Breakdown{
		Entities:   s.config.EntityWeight * float64(len(a.Entities)),
		CodeBlocks: s.config.CodeBlockWeight * float64(len(a.CodeBlocks)),
		URLs:       s.config.URLWeight * float64(len(a.URLs)),
		Length:     s.config.LengthBonus * float64(len(msg.Content)),
	}
	if a.HasImportantMarker {
		b.ImportantMarker = s.config.MarkedImportant
	}
	if a.IsQuestion {
		b.Question = s.config.QuestionBonus
	}
	if a.IsAnswer {
		b.Answer = s.config.AnswerBonus
	}
	switch msg.Role {
	case types.RoleSystem:
		b.Role = systemRoleBonus
	case types.RoleUser:
		b.Role = userRoleBonus
	}

	total := b.Entities + b.CodeBlocks + b.URLs + b.ImportantMarker +
		b.Question + b.Answer + b.Length + b.Role
	b.Total = s.clamp(total)
	return b
}

// ScoreAll scores a batch of messages against their analyses.
func (s *Scorer) ScoreAll(msgs []types.Message, analyses []analysis.ContentAnalysis) ([]float64, error) {
	if len(msgs) != len(analyses) {
		return nil, types.NewError(types.ErrInvalidRequest, "messages and analyses length mismatch")
	}
	scores := make([]float64, len(msgs))
	for i := range msgs {
		scores[i] = s.Score(msgs[i], analyses[i])
	}
	return scores, nil
}

func (s *Scorer) clamp(score float64) float64 {
	if score < s.config.MinScore {
		return s.config.MinScore
	}
	if score > s.config.MaxScore {
		return s.config.MaxScore
	}
	return score
}

// ScoredMessage pairs a message with its score for ranking helpers.
type ScoredMessage struct {
	Message types.Message
	Score   float64
}

// TopK returns the k highest-scoring messages, score descending. Ties keep
// input order.
func TopK(msgs []types.Message, scores []float64, k int) []ScoredMessage {
	n := len(msgs)
	if len(scores) < n {
		n = len(scores)
	}
	ranked := make([]ScoredMessage, n)
	for i := 0; i < n; i++ {
		ranked[i] = ScoredMessage{Message: msgs[i], Score: scores[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if k > len(ranked) {
		k = len(ranked)
	}
	if k < 0 {
		k = 0
	}
	return ranked[:k]
}

// Percentile returns the fraction of scores less than or equal to score.
func Percentile(score float64, all []float64) float64 {
	if len(all) == 0 {
		return 0.0
	}
	below := 0
	for _, s := range all {
		if s <= score {
			below++
		}
	}
	return float64(below) / float64(len(all))
}

// Stats summarizes a batch of scores.
type Stats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

// Summarize computes min/max/mean/median over scores.
func Summarize(scores []float64) Stats {
	if len(scores) == 0 {
		return Stats{}
	}

	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)

	sum := 0.0
	for _, s := range sorted {
		sum += s
	}

	n := len(sorted)
	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	return Stats{
		Min:    sorted[0],
		Max:    sorted[n-1],
		Mean:   sum / float64(n),
		Median: median,
	}
}
