package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/contextgate/contextgate/api"
	"github.com/contextgate/contextgate/config"
	"github.com/contextgate/contextgate/provider"
	"github.com/contextgate/contextgate/reduction"
	"github.com/contextgate/contextgate/session"
	"github.com/contextgate/contextgate/types"
)

type stubUpstream struct {
	gotReq provider.ChatRequest
	resp   *provider.ChatResponse
	err    error
	models *provider.ModelList
}

func (s *stubUpstream) ChatCompletion(_ context.Context, req provider.ChatRequest) (*provider.ChatResponse, error) {
	s.gotReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func (s *stubUpstream) ListModels(context.Context) (*provider.ModelList, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.models, nil
}

func okResponse(content string, totalTokens int) *provider.ChatResponse {
	return &provider.ChatResponse{
		ID:    "chatcmpl-test",
		Model: "gpt-4o-mini",
		Choices: []provider.ChatChoice{{
			Message:      types.NewAssistantMessage(content),
			FinishReason: "stop",
		}},
		Usage: provider.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: totalTokens},
	}
}

type testEnv struct {
	handler  http.Handler
	sessions *session.Manager
	upstream *stubUpstream
}

func newTestEnv(t *testing.T, maxTurns int) *testEnv {
	return newRoutedTestEnv(t, maxTurns, nil)
}

func newRoutedTestEnv(t *testing.T, maxTurns int, modelRoutes map[string]config.ContextConfig) *testEnv {
	t.Helper()

	sessions := session.NewManager(session.NewMemoryStore(), session.ManagerConfig{TTL: time.Hour}, zap.NewNop())
	t.Cleanup(func() { sessions.Close() })

	dispatcher := reduction.NewDispatcher(nil, nil, zap.NewNop())
	upstream := &stubUpstream{
		resp:   okResponse("hello from upstream", 15),
		models: &provider.ModelList{Object: "list", Data: []provider.Model{{ID: "gpt-4o-mini"}}},
	}
	ctxCfg := config.ContextConfig{
		MaxTurns:              maxTurns,
		MaxTokens:             100000,
		ReductionMode:         string(reduction.ModeTruncation),
		PreserveSystemMessage: true,
		MemoryZoneEnabled:     true,
		TokenEstimator:        "heuristic",
	}

	chat := NewChatHandler(sessions, dispatcher, upstream, config.NewContextRoutes(ctxCfg, modelRoutes), nil, zap.NewNop())
	sessionsH := NewSessionHandler(sessions, zap.NewNop())
	modelsH := NewModelsHandler(upstream, zap.NewNop())
	healthH := NewHealthHandler(zap.NewNop())

	return &testEnv{
		handler:  NewRouter(chat, sessionsH, modelsH, healthH, nil, zap.NewNop()),
		sessions: sessions,
		upstream: upstream,
	}
}

func postCompletion(t *testing.T, handler http.Handler, body map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestChatHandler_CompletionFlow(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 20)
	rec := postCompletion(t, env.handler, map[string]interface{}{
		"model":      "gpt-4o-mini",
		"user":       "alice",
		"session_id": "s1",
		"messages": []map[string]string{
			{"role": "system", "content": "You are helpful."},
			{"role": "user", "content": "Hi there"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp provider.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "hello from upstream", resp.Choices[0].Message.Content)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	// Upstream saw both conversation turns.
	require.Len(t, env.upstream.gotReq.Messages, 2)
	assert.Equal(t, types.RoleSystem, env.upstream.gotReq.Messages[0].Role)

	// History now carries the assistant reply and the token count.
	sess, err := env.sessions.Get(context.Background(), "s1", "alice")
	require.NoError(t, err)
	require.Len(t, sess.ConversationHistory, 3)
	assert.Equal(t, types.RoleAssistant, sess.ConversationHistory[2].Role)
	assert.Equal(t, 15, sess.TotalTokensUsed)
}

func TestChatHandler_SessionContinuity(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 20)
	postCompletion(t, env.handler, map[string]interface{}{
		"model":      "gpt-4o-mini",
		"user":       "bob",
		"session_id": "s1",
		"messages":   []map[string]string{{"role": "user", "content": "first turn"}},
	})
	rec := postCompletion(t, env.handler, map[string]interface{}{
		"model":      "gpt-4o-mini",
		"user":       "bob",
		"session_id": "s1",
		"messages":   []map[string]string{{"role": "user", "content": "second turn"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// first turn, assistant reply, second turn
	require.Len(t, env.upstream.gotReq.Messages, 3)
	assert.Equal(t, "first turn", env.upstream.gotReq.Messages[0].Content)
	assert.Equal(t, "second turn", env.upstream.gotReq.Messages[2].Content)
}

func TestChatHandler_DuplicateMessagesNotAppended(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 20)
	body := map[string]interface{}{
		"model":      "gpt-4o-mini",
		"user":       "carol",
		"session_id": "s1",
		"messages": []map[string]string{
			{"role": "system", "content": "sys"},
			{"role": "user", "content": "same question"},
		},
	}
	postCompletion(t, env.handler, body)
	// Resending the identical transcript must not duplicate the turns.
	postCompletion(t, env.handler, body)

	sess, err := env.sessions.Get(context.Background(), "s1", "carol")
	require.NoError(t, err)
	// sys, user, and one assistant reply per request
	assert.Len(t, sess.ConversationHistory, 4)
}

func TestChatHandler_ReductionBoundsForwardedContext(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 4)
	msgs := []map[string]string{{"role": "system", "content": "sys"}}
	for i := 0; i < 9; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		msgs = append(msgs, map[string]string{"role": role, "content": string(rune('a' + i))})
	}
	rec := postCompletion(t, env.handler, map[string]interface{}{
		"model":      "gpt-4o-mini",
		"user":       "dan",
		"session_id": "s1",
		"messages":   msgs,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.LessOrEqual(t, len(env.upstream.gotReq.Messages), 4)
	assert.Equal(t, types.RoleSystem, env.upstream.gotReq.Messages[0].Role, "system survives truncation")
}

func TestChatHandler_ModelRouteOverridesBudget(t *testing.T) {
	t.Parallel()

	// The gpt-4 route keeps only 2 turns; every other model gets the
	// process-wide 20.
	env := newRoutedTestEnv(t, 20, map[string]config.ContextConfig{
		"gpt-4": {MaxTurns: 2},
	})

	msgs := make([]map[string]string, 0, 6)
	for i := 0; i < 6; i++ {
		msgs = append(msgs, map[string]string{"role": "user", "content": string(rune('a' + i))})
	}

	rec := postCompletion(t, env.handler, map[string]interface{}{
		"model":      "gpt-4o-mini",
		"user":       "frank",
		"session_id": "routed",
		"messages":   msgs,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.LessOrEqual(t, len(env.upstream.gotReq.Messages), 2, "prefix route bounds the forwarded context")

	rec = postCompletion(t, env.handler, map[string]interface{}{
		"model":      "claude-sonnet",
		"user":       "frank",
		"session_id": "unrouted",
		"messages":   msgs,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, env.upstream.gotReq.Messages, 6, "unmatched model keeps the defaults")
}

func TestChatHandler_Validation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 20)

	rec := postCompletion(t, env.handler, map[string]interface{}{
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "invalid_request_error", errResp.Error.Type)
	assert.Equal(t, string(types.ErrInvalidRequest), errResp.Error.Code)

	rec = postCompletion(t, env.handler, map[string]interface{}{
		"model":    "gpt-4o-mini",
		"messages": []map[string]string{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postCompletion(t, env.handler, map[string]interface{}{
		"model":       "gpt-4o-mini",
		"temperature": 3.5,
		"messages":    []map[string]string{{"role": "user", "content": "hi"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatHandler_UpstreamErrorMapped(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 20)
	env.upstream.err = types.NewError(types.ErrProviderUnavailable, "upstream down").WithRetryable(true)

	rec := postCompletion(t, env.handler, map[string]interface{}{
		"model":    "gpt-4o-mini",
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "internal_error", errResp.Error.Type)
	assert.Equal(t, string(types.ErrProviderUnavailable), errResp.Error.Code)
}

func TestResolveSession_Derivation(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	chatReq := func(user, sessionID string) *api.ChatCompletionRequest {
		return &api.ChatCompletionRequest{User: user, SessionID: sessionID}
	}

	// No user, no session: stable anonymous session.
	userID, first := resolveSession(chatReq("", ""), r)
	assert.Equal(t, "default", userID)
	_, second := resolveSession(chatReq("", ""), r)
	assert.Equal(t, first, second, "derived session id is deterministic")

	// Header wins over derivation, body wins over header.
	r.Header.Set("X-Session-ID", "from-header")
	_, sid := resolveSession(chatReq("eve", ""), r)
	assert.Equal(t, "from-header", sid)
	_, sid = resolveSession(chatReq("eve", "from-body"), r)
	assert.Equal(t, "from-body", sid)
}

func TestModelsHandler_List(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 20)
	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var models provider.ModelList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &models))
	require.Len(t, models.Data, 1)
	assert.Equal(t, "gpt-4o-mini", models.Data[0].ID)
}
