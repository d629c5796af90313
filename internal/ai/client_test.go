package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientGenerate(t *testing.T) {
	t.Parallel()

	var gotAuth string
	var gotBody chatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": `{"files":{"index.html":"<p>ok</p>"}}`}},
			},
			"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 34},
		})
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, "gpt-4o-mini")

	content, err := client.Generate(context.Background(), "system instructions", "user brief")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if content != `{"files":{"index.html":"<p>ok</p>"}}` {
		t.Errorf("content = %q", content)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if gotBody.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", gotBody.Model)
	}
	if len(gotBody.Messages) != 2 {
		t.Fatalf("expected system + user messages, got %d", len(gotBody.Messages))
	}
	if gotBody.Messages[0].Role != "system" || gotBody.Messages[0].Content != "system instructions" {
		t.Errorf("system message = %+v", gotBody.Messages[0])
	}
	if gotBody.Messages[1].Role != "user" || gotBody.Messages[1].Content != "user brief" {
		t.Errorf("user message = %+v", gotBody.Messages[1])
	}
	if gotBody.MaxTokens != 4000 {
		t.Errorf("max_tokens = %d", gotBody.MaxTokens)
	}
}

func TestClientGenerateHTTPError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient("k", server.URL, "gpt-4o-mini")
	if _, err := client.Generate(context.Background(), "s", "u"); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestClientGenerateAPIErrorBody(t *testing.T) {
	t.Parallel()

	// Some providers return 200 with an error object.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "model overloaded", "type": "server_error"},
		})
	}))
	defer server.Close()

	client := NewClient("k", server.URL, "gpt-4o-mini")
	_, err := client.Generate(context.Background(), "s", "u")
	if err == nil {
		t.Fatal("expected error from error body")
	}
}

func TestClientGenerateNoChoices(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	client := NewClient("k", server.URL, "gpt-4o-mini")
	if _, err := client.Generate(context.Background(), "s", "u"); err == nil {
		t.Fatal("expected error when no choices returned")
	}
}

func TestClientGenerateContextCancelled(t *testing.T) {
	t.Parallel()

	client := NewClient("k", "http://127.0.0.1:1", "gpt-4o-mini")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.Generate(ctx, "s", "u"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestNewClientDefaultEndpoint(t *testing.T) {
	t.Parallel()

	client := NewClient("k", "", "gpt-4o-mini")
	if client.baseURL != openAIDefaultURL {
		t.Errorf("baseURL = %q, want %q", client.baseURL, openAIDefaultURL)
	}
}
