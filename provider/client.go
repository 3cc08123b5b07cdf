// Package provider is the upstream LLM client. It speaks the
// OpenAI-compatible chat completion wire format and exposes the summary
// generation call the reduction strategies depend on.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/contextgate/contextgate/internal/pool"
	"github.com/contextgate/contextgate/types"
)

const defaultTimeout = 60 * time.Second

// Config holds upstream connection settings.
type Config struct {
	BaseURL string        `yaml:"base_url" json:"base_url"`
	APIKey  string        `yaml:"api_key" json:"api_key"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// SummaryModel is used for generateSummary calls; empty means the
	// request's own model.
	SummaryModel string `yaml:"summary_model" json:"summary_model"`

	// RequestsPerSecond throttles outbound calls; zero disables the
	// limiter.
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `yaml:"burst" json:"burst"`
}

// ChatRequest is the OpenAI-compatible completion request body. Tuning
// parameters are pointers so that unset values are not forwarded.
type ChatRequest struct {
	Model            string             `json:"model"`
	Messages         []types.Message    `json:"messages"`
	Temperature      *float64           `json:"temperature,omitempty"`
	TopP             *float64           `json:"top_p,omitempty"`
	N                int                `json:"n,omitempty"`
	Stop             []string           `json:"stop,omitempty"`
	MaxTokens        int                `json:"max_tokens,omitempty"`
	PresencePenalty  *float64           `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64           `json:"frequency_penalty,omitempty"`
	LogitBias        map[string]float64 `json:"logit_bias,omitempty"`
	User             string             `json:"user,omitempty"`
	Stream           bool               `json:"stream,omitempty"`
}

type ChatChoice struct {
	Index        int           `json:"index"`
	Message      types.Message `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the OpenAI-compatible completion response body.
type ChatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   Usage        `json:"usage"`
}

// Model is one entry in the upstream model listing.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created,omitempty"`
	OwnedBy string `json:"owned_by,omitempty"`
}

// ModelList is the OpenAI-compatible model listing body.
type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

// Client calls an OpenAI-compatible upstream.
type Client struct {
	config  Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewClient(config Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var limiter *rate.Limiter
	if config.RequestsPerSecond > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}

	return &Client{
		config:  config,
		http:    &http.Client{Timeout: timeout},
		limiter: limiter,
		logger:  logger.With(zap.String("component", "provider")),
	}
}

// ChatCompletion sends a completion request upstream.
func (c *Client) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, upstreamError("rate limit wait cancelled", err)
		}
	}

	buf := pool.Buffers.Get()
	defer pool.Buffers.Put(buf)
	if err := json.NewEncoder(buf).Encode(req); err != nil {
		return nil, types.NewError(types.ErrInternalError, "encode chat request").WithCause(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/v1/chat/completions", bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "build chat request").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, types.NewError(types.ErrUpstreamTimeout, "upstream request timed out").
				WithCause(err).WithRetryable(true)
		}
		return nil, upstreamError("upstream request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, upstreamError("read upstream response", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("upstream returned error",
			zap.Int("status", resp.StatusCode),
			zap.String("model", req.Model))
		e := types.NewError(types.ErrProviderUnavailable,
			fmt.Sprintf("upstream status %d", resp.StatusCode)).WithHTTPStatus(resp.StatusCode)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			e = e.WithRetryable(true)
		}
		return nil, e
	}

	var out ChatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, upstreamError("decode upstream response", err)
	}

	c.logger.Debug("chat completion",
		zap.String("model", req.Model),
		zap.Int("total_tokens", out.Usage.TotalTokens),
		zap.Duration("elapsed", time.Since(start)))
	return &out, nil
}

// GenerateSummary asks the upstream to summarize the given messages. It
// satisfies the summary-generation contract of the reduction strategies.
func (c *Client) GenerateSummary(ctx context.Context, msgs []types.Message) (string, error) {
	model := c.config.SummaryModel
	if model == "" {
		model = "gpt-4o-mini"
	}

	req := ChatRequest{
		Model: model,
		Messages: append([]types.Message{
			types.NewSystemMessage("Summarize the following conversation concisely, preserving key entities, decisions, and actions."),
		}, msgs...),
	}

	resp, err := c.ChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", types.NewError(types.ErrProviderUnavailable, "upstream returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// ListModels fetches the models available upstream.
func (c *Client) ListModels(ctx context.Context) (*ModelList, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.config.BaseURL+"/v1/models", nil)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "build models request").WithCause(err)
	}
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, upstreamError("upstream request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		e := types.NewError(types.ErrProviderUnavailable,
			fmt.Sprintf("upstream status %d", resp.StatusCode)).WithHTTPStatus(resp.StatusCode)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			e = e.WithRetryable(true)
		}
		return nil, e
	}

	var out ModelList
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, upstreamError("decode models response", err)
	}
	return &out, nil
}

func upstreamError(msg string, cause error) error {
	return types.NewError(types.ErrProviderUnavailable, msg).WithCause(cause).WithRetryable(true)
}
