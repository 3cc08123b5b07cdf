// Package tokenizer provides a model-accurate token estimator backed by
// tiktoken. It is a drop-in replacement for the fixed length/4 heuristic;
// if the encoding cannot be initialized the estimator degrades to the
// heuristic rather than failing requests.
package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/contextgate/contextgate/types"
)

// messageOverhead mirrors the per-message framing cost of chat encodings.
const messageOverhead = 4

var modelEncodings = map[string]string{
	"gpt-4o":        "o200k_base",
	"gpt-4o-mini":   "o200k_base",
	"gpt-4-turbo":   "cl100k_base",
	"gpt-4":         "cl100k_base",
	"gpt-3.5-turbo": "cl100k_base",
}

const defaultEncoding = "cl100k_base"

// EncodingForModel resolves a model name to its tiktoken encoding, with
// prefix matching for dated model variants.
func EncodingForModel(model string) string {
	if enc, ok := modelEncodings[model]; ok {
		return enc
	}
	for prefix, enc := range modelEncodings {
		if strings.HasPrefix(model, prefix) {
			return enc
		}
	}
	return defaultEncoding
}

// TiktokenEstimator implements types.TokenEstimator with a real BPE
// encoding. The encoding initializes lazily (first use may download data);
// until it succeeds, estimates come from the heuristic fallback.
type TiktokenEstimator struct {
	encoding string
	fallback types.TokenEstimator
	logger   *zap.Logger

	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

func NewTiktokenEstimator(model string, logger *zap.Logger) *TiktokenEstimator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TiktokenEstimator{
		encoding: EncodingForModel(model),
		fallback: types.NewHeuristicEstimator(),
		logger:   logger.With(zap.String("component", "tokenizer")),
	}
}

func (t *TiktokenEstimator) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			t.logger.Warn("tiktoken unavailable, using heuristic estimates",
				zap.String("encoding", t.encoding),
				zap.Error(err))
			return
		}
		t.enc = enc
	})
	return t.initErr
}

func (t *TiktokenEstimator) EstimateText(text string) int {
	if t.init() != nil {
		return t.fallback.EstimateText(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}

func (t *TiktokenEstimator) EstimateMessage(msg types.Message) int {
	if t.init() != nil {
		return t.fallback.EstimateMessage(msg)
	}
	return len(t.enc.Encode(msg.Content, nil, nil)) + messageOverhead
}

func (t *TiktokenEstimator) EstimateMessages(msgs []types.Message) int {
	total := 0
	for _, msg := range msgs {
		total += t.EstimateMessage(msg)
	}
	return total
}

func (t *TiktokenEstimator) Name() string {
	return "tiktoken[" + t.encoding + "]"
}
