package answer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/core"
)

func TestBuildUserPrompt(t *testing.T) {
	got := BuildUserPrompt("website", "Body text", "What is it?")
	want := "Here is the website content to analyze:\n\n=== DOCUMENT CONTENT ===\nBody text\n=== END CONTENT ===\n\nUser Question: What is it?\n\nPlease provide a thorough, accurate answer based on the content above."
	assert.Equal(t, want, got)
	assert.True(t, strings.HasPrefix(BuildUserPrompt("", "x", "y"), "Here is the document content"))
}

func chatServer(t *testing.T, status int, body string, check func(openai.ChatCompletionRequest)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if check != nil {
			check(req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func newTestResponder(serverURL string) *Responder {
	client := NewOpenAIClient(ClientConfig{APIKey: "sk-test", BaseURL: serverURL + "/v1/", HTTPClient: &http.Client{Timeout: 2 * time.Second}})
	return NewResponder(client, DefaultConfig(), nil)
}

func TestResponderAnswer(t *testing.T) {
	server := chatServer(t, http.StatusOK, `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"model": "gpt-4o-mini",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": " The threshold is ≥ 5. "}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 120, "completion_tokens": 8, "total_tokens": 128}
	}`, func(req openai.ChatCompletionRequest) {
		assert.Equal(t, openai.GPT4oMini, req.Model)
		assert.Equal(t, 1000, req.MaxTokens)
		assert.InDelta(t, 0.1, req.Temperature, 0.0001)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
		assert.Contains(t, req.Messages[1].Content, "--- a.txt ---\nLimit ≥ 5")
		assert.Contains(t, req.Messages[1].Content, "User Question: What is the limit?")
	})
	defer server.Close()

	ans, err := newTestResponder(server.URL).Answer(context.Background(), Request{
		Question:    "  What is the limit?  ",
		Context:     "--- a.txt ---\nLimit ≥ 5",
		ContentType: "document",
	})
	require.NoError(t, err)
	assert.Equal(t, "The threshold is ≥ 5.", ans.Text)
	assert.Equal(t, 120, ans.PromptTokens)
	assert.Equal(t, 8, ans.CompletionTokens)
}

func TestResponderErrors(t *testing.T) {
	t.Run("empty context", func(t *testing.T) {
		_, err := NewResponder(nil, Config{}, nil).Answer(context.Background(), Request{Question: "q", Context: "  \n"})
		assert.True(t, core.HasCode(err, core.ErrCodeContextEmpty), "got %v", err)
	})

	t.Run("empty question", func(t *testing.T) {
		_, err := NewResponder(nil, Config{}, nil).Answer(context.Background(), Request{Question: " ", Context: "ctx"})
		assert.ErrorIs(t, err, ErrEmptyQuestion)
	})

	t.Run("api error", func(t *testing.T) {
		server := chatServer(t, http.StatusUnauthorized, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`, nil)
		defer server.Close()

		_, err := newTestResponder(server.URL).Answer(context.Background(), Request{Question: "q", Context: "ctx"})
		assert.True(t, core.HasCode(err, core.ErrCodeService), "got %v", err)
		assert.Contains(t, err.Error(), "Incorrect API key")
	})

	t.Run("no choices", func(t *testing.T) {
		server := chatServer(t, http.StatusOK, `{"id":"x","choices":[]}`, nil)
		defer server.Close()

		_, err := newTestResponder(server.URL).Answer(context.Background(), Request{Question: "q", Context: "ctx"})
		assert.ErrorIs(t, err, ErrEmptyResponse)
	})
}

func TestConfigFromCore(t *testing.T) {
	cfg := ConfigFromCore(&core.Config{AnswerModel: "gpt-4o", AnswerMaxTokens: 500, AnswerTemperature: 0.3, ExternalTimeout: time.Second})
	assert.Equal(t, Config{Model: "gpt-4o", MaxTokens: 500, Temperature: 0.3, Timeout: time.Second}, cfg)
	assert.Equal(t, "http://localhost:8080/v1", ResolveBaseURL(" http://localhost:8080/v1/ "))
}
