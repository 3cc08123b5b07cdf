package handlers

import (
	"context"
	"fmt"
	"hash/fnv"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/contextgate/contextgate/api"
	"github.com/contextgate/contextgate/config"
	"github.com/contextgate/contextgate/internal/ctxkeys"
	"github.com/contextgate/contextgate/internal/metrics"
	"github.com/contextgate/contextgate/provider"
	"github.com/contextgate/contextgate/reduction"
	"github.com/contextgate/contextgate/session"
	"github.com/contextgate/contextgate/types"
)

// Upstream is the provider surface the chat handler depends on.
// *provider.Client satisfies it.
type Upstream interface {
	ChatCompletion(ctx context.Context, req provider.ChatRequest) (*provider.ChatResponse, error)
	ListModels(ctx context.Context) (*provider.ModelList, error)
}

// ChatHandler serves POST /v1/chat/completions. Each request merges the
// caller's messages into the session history, reduces the history to the
// budget resolved for the requested model, forwards the reduced context
// upstream, and persists the assistant reply.
type ChatHandler struct {
	sessions   *session.Manager
	dispatcher *reduction.Dispatcher
	upstream   Upstream
	routes     *config.ContextRoutes
	collector  *metrics.Collector
	logger     *zap.Logger
}

func NewChatHandler(sessions *session.Manager, dispatcher *reduction.Dispatcher, upstream Upstream, routes *config.ContextRoutes, collector *metrics.Collector, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{
		sessions:   sessions,
		dispatcher: dispatcher,
		upstream:   upstream,
		routes:     routes,
		collector:  collector,
		logger:     logger.With(zap.String("component", "chat_handler")),
	}
}

// HandleCompletion handles POST /v1/chat/completions.
func (h *ChatHandler) HandleCompletion(w http.ResponseWriter, r *http.Request) {
	var req api.ChatCompletionRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if err := validateChatRequest(&req); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	userID, sessionID := resolveSession(&req, r)
	ctx := ctxkeys.WithSessionID(r.Context(), sessionID)
	ctxCfg := h.routes.For(req.Model)
	mode := reduction.Mode(ctxCfg.ReductionMode)
	estimator := h.dispatcher.Estimator()

	// Merge, reduce, and persist under the session's lock so concurrent
	// requests for the same session cannot interleave.
	var reduced reduction.Result
	var tokensBefore, tokensAfter, messagesBefore int
	reduceStart := time.Now()
	_, err := h.sessions.Update(ctx, sessionID, userID, func(s *session.Session) error {
		mergeHistory(s, req.Messages)
		messagesBefore = len(s.ConversationHistory)
		tokensBefore = estimator.EstimateMessages(s.ConversationHistory)

		res, err := h.dispatcher.Apply(ctx, mode, reduction.Request{
			Messages:       s.ConversationHistory,
			SessionID:      s.Key(),
			MaxTurns:       ctxCfg.MaxTurns,
			MaxTokens:      ctxCfg.MaxTokens,
			PreserveSystem: ctxCfg.PreserveSystemMessage,
		})
		if err != nil {
			return err
		}

		if res.Summary != "" && ctxCfg.MemoryZoneEnabled {
			s.AppendSummary(res.Summary)
		}
		s.ConversationHistory = res.Messages
		reduced = res
		tokensAfter = estimator.EstimateMessages(res.Messages)
		return nil
	})
	if err != nil {
		h.recordReduction(string(mode), "error", time.Since(reduceStart), messagesBefore, messagesBefore, 0, 0)
		WriteError(w, err, h.logger)
		return
	}
	h.recordReduction(string(mode), "success", time.Since(reduceStart),
		messagesBefore, len(reduced.Messages), tokensBefore, tokensAfter)

	upstreamReq := provider.ChatRequest{
		Model:            req.Model,
		Messages:         reduced.Messages,
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		N:                req.N,
		Stop:             req.Stop,
		MaxTokens:        req.MaxTokens,
		PresencePenalty:  req.PresencePenalty,
		FrequencyPenalty: req.FrequencyPenalty,
		LogitBias:        req.LogitBias,
		User:             req.User,
	}

	start := time.Now()
	resp, err := h.upstream.ChatCompletion(ctx, upstreamReq)
	if err != nil {
		if h.collector != nil {
			h.collector.RecordUpstreamRequest(req.Model, "error", time.Since(start), 0, 0)
		}
		WriteError(w, err, h.logger)
		return
	}
	if h.collector != nil {
		h.collector.RecordUpstreamRequest(req.Model, "success", time.Since(start),
			resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}

	// The reply lands in the session history so the next request carries
	// it. A persistence failure is logged but the client still gets the
	// completion.
	if len(resp.Choices) > 0 {
		_, err := h.sessions.Update(ctx, sessionID, userID, func(s *session.Session) error {
			s.AppendMessages(resp.Choices[0].Message)
			s.TotalTokensUsed += resp.Usage.TotalTokens
			return nil
		})
		if err != nil {
			h.logger.Warn("failed to persist assistant reply",
				zap.String("session_id", sessionID), zap.Error(err))
		}
	}

	if resp.ID == "" {
		resp.ID = "chatcmpl-" + uuid.NewString()
	}

	requestID, _ := ctxkeys.RequestID(ctx)
	h.logger.Info("chat completion",
		zap.String("request_id", requestID),
		zap.String("model", req.Model),
		zap.String("session_id", sessionID),
		zap.Int("messages_in", messagesBefore),
		zap.Int("messages_forwarded", len(reduced.Messages)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("upstream_elapsed", time.Since(start)),
	)

	WriteJSON(w, http.StatusOK, resp)
}

func (h *ChatHandler) recordReduction(mode, status string, elapsed time.Duration, before, after, tokensBefore, tokensAfter int) {
	if h.collector == nil {
		return
	}
	h.collector.RecordReduction(mode, status, elapsed, before, after, tokensBefore, tokensAfter)
}

func validateChatRequest(req *api.ChatCompletionRequest) error {
	if req.Model == "" {
		return types.NewError(types.ErrInvalidRequest, "model is required")
	}
	if len(req.Messages) == 0 {
		return types.NewError(types.ErrInvalidRequest, "messages cannot be empty")
	}
	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 2) {
		return types.NewError(types.ErrInvalidRequest, "temperature must be between 0 and 2")
	}
	if req.TopP != nil && (*req.TopP < 0 || *req.TopP > 1) {
		return types.NewError(types.ErrInvalidRequest, "top_p must be between 0 and 1")
	}
	if req.Stream {
		return types.NewError(types.ErrInvalidRequest, "streaming is not supported")
	}
	return nil
}

// resolveSession extracts the session identity. The session id comes from
// the body, then the X-Session-ID header, and is finally derived from the
// user id so repeat callers keep hitting the same session.
func resolveSession(req *api.ChatCompletionRequest, r *http.Request) (userID, sessionID string) {
	userID = req.User
	if userID == "" {
		userID = "default"
	}

	sessionID = req.SessionID
	if sessionID == "" {
		sessionID = r.Header.Get("X-Session-ID")
	}
	if sessionID == "" {
		sessionID = deriveSessionID(userID)
	}
	return userID, sessionID
}

func deriveSessionID(userID string) string {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return fmt.Sprintf("session_%d", h.Sum32()%10000)
}

// mergeHistory appends the request messages that are not already present
// in the history, so clients resending the full transcript do not
// duplicate turns.
func mergeHistory(s *session.Session, msgs []types.Message) {
	for _, m := range msgs {
		if !containsMessage(s.ConversationHistory, m) {
			s.AppendMessages(m)
		}
	}
}

func containsMessage(history []types.Message, m types.Message) bool {
	for _, h := range history {
		if h.Role == m.Role && h.Content == m.Content {
			return true
		}
	}
	return false
}
