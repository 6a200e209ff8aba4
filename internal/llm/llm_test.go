package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/comigor/joker/internal/config"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
)

func TestResolveCredential_Hosted(t *testing.T) {
	t.Setenv(EnvAPIKey, "sk-env")
	t.Setenv(EnvModel, "gpt-4.1-nano")
	t.Setenv(EnvOrgID, "org-1")

	got := ResolveCredential(config.LLMConfig{})
	require.Equal(t, "sk-env", got.APIKey)
	require.Equal(t, "gpt-4.1-nano", got.Model)
	require.Equal(t, "org-1", got.OrgID)

	explicit := ResolveCredential(config.LLMConfig{APIKey: "sk-explicit"})
	require.Equal(t, "sk-explicit", explicit.APIKey)
}

func TestResolveCredential_ExplicitEndpointUntouched(t *testing.T) {
	t.Setenv(EnvAPIKey, "sk-env")

	got := ResolveCredential(config.LLMConfig{BaseURL: "http://localhost:11434/v1"})
	require.Empty(t, got.APIKey)
	require.Empty(t, got.Model)
}

func TestNewClient_SendsToConfiguredEndpoint(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Model: "gpt-oss:20b",
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "arr"},
			}},
		})
	}))
	defer srv.Close()

	client := NewClient(config.LLMConfig{BaseURL: srv.URL + "/v1", APIKey: "none", Model: "gpt-oss:20b"})
	defer client.Close()

	resp, err := client.CreateChatCompletion(context.Background(), openai.ChatCompletionRequest{
		Model:    "gpt-oss:20b",
		Messages: []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	require.Equal(t, "arr", resp.Choices[0].Message.Content)
	require.Equal(t, "Bearer none", gotAuth)
	require.Equal(t, "/v1/chat/completions", gotPath)
}

func TestTransportClose_Idempotent(t *testing.T) {
	client := NewClient(config.LLMConfig{APIKey: "sk"})
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
}
