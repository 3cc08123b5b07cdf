package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/contextgate/contextgate/types"
)

func respondWith(t *testing.T, content string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ChatResponse{
			ID:    "chatcmpl-1",
			Model: "gpt-4o-mini",
			Choices: []ChatChoice{{
				Message:      types.NewAssistantMessage(content),
				FinishReason: "stop",
			}},
			Usage: Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		})
	}
}

func TestClient_ChatCompletion(t *testing.T) {
	t.Parallel()

	var gotAuth string
	var gotReq ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		respondWith(t, "hello there")(w, r)
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL, APIKey: "sk-test"}, zap.NewNop())
	resp, err := c.ChatCompletion(context.Background(), ChatRequest{
		Model:    "gpt-4o-mini",
		Messages: []types.Message{types.NewUserMessage("hi")},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "gpt-4o-mini", gotReq.Model)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "hello there", resp.Choices[0].Message.Content)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestClient_UpstreamErrorMapping(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL}, zap.NewNop())
	_, err := c.ChatCompletion(context.Background(), ChatRequest{Model: "gpt-4"})
	require.Error(t, err)
	assert.Equal(t, types.ErrProviderUnavailable, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err), "5xx is retryable")

	badReq := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer badReq.Close()

	c = NewClient(Config{BaseURL: badReq.URL}, zap.NewNop())
	_, err = c.ChatCompletion(context.Background(), ChatRequest{Model: "gpt-4"})
	require.Error(t, err)
	assert.False(t, types.IsRetryable(err), "4xx is not retryable")
}

func TestClient_GenerateSummary(t *testing.T) {
	t.Parallel()

	var gotReq ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		respondWith(t, "a compact recap")(w, r)
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL, SummaryModel: "gpt-4o-mini"}, zap.NewNop())
	summary, err := c.GenerateSummary(context.Background(), []types.Message{
		types.NewUserMessage("first"),
		types.NewAssistantMessage("second"),
	})
	require.NoError(t, err)

	assert.Equal(t, "a compact recap", summary)
	assert.Equal(t, "gpt-4o-mini", gotReq.Model)
	require.Len(t, gotReq.Messages, 3, "system instruction plus the conversation")
	assert.Equal(t, types.RoleSystem, gotReq.Messages[0].Role)
}

func TestClient_ListModels(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		json.NewEncoder(w).Encode(ModelList{
			Object: "list",
			Data:   []Model{{ID: "gpt-4o-mini", Object: "model"}},
		})
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL}, zap.NewNop())
	models, err := c.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models.Data, 1)
	assert.Equal(t, "gpt-4o-mini", models.Data[0].ID)
}

func TestClient_GenerateSummary_NoChoices(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(ChatResponse{})
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL}, zap.NewNop())
	_, err := c.GenerateSummary(context.Background(), []types.Message{types.NewUserMessage("x")})
	require.Error(t, err)
}
