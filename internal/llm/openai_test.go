package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *OpenAIGateway {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	gateway, err := NewOpenAIGateway(OpenAIConfig{
		APIKey:  "test-api-key",
		Model:   "gpt-4o",
		BaseURL: server.URL,
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	return gateway
}

func completionResponse(content string) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"choices": []map[string]any{
			{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
			},
		},
	}
}

func TestNewOpenAIGateway_MissingKey(t *testing.T) {
	_, err := NewOpenAIGateway(OpenAIConfig{Model: "gpt-4o"})
	if err == nil {
		t.Fatal("expected error for missing API key, got nil")
	}
	if err.Error() != "missing API key for model gateway" {
		t.Errorf("expected specific error message, got: %s", err.Error())
	}
}

func TestNewOpenAIGateway_DefaultModel(t *testing.T) {
	gateway, err := NewOpenAIGateway(OpenAIConfig{APIKey: "test-api-key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gateway.model != "gpt-4o" {
		t.Errorf("expected default model 'gpt-4o', got %s", gateway.model)
	}
}

func TestOpenAIGateway_Decide_TextOnly(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected path '/chat/completions', got %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-api-key" {
			t.Errorf("expected Authorization header 'Bearer test-api-key', got %s", auth)
		}

		var reqBody map[string]any
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		if reqBody["model"] != "gpt-4o" {
			t.Errorf("expected model 'gpt-4o', got %v", reqBody["model"])
		}
		tools, ok := reqBody["tools"].([]any)
		if !ok || len(tools) != 2 {
			t.Errorf("expected both catalog tools attached, got %v", reqBody["tools"])
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionResponse("Just an answer."))
	})

	decision, err := gateway.Decide(context.Background(), []Message{UserMessage("Hello")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Content != "Just an answer." {
		t.Errorf("unexpected content %q", decision.Content)
	}
	if len(decision.ToolCalls) != 0 {
		t.Errorf("expected no tool calls, got %d", len(decision.ToolCalls))
	}
}

func TestOpenAIGateway_Decide_ToolCalls(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		response := map[string]any{
			"id":     "chatcmpl-2",
			"object": "chat.completion",
			"choices": []map[string]any{
				{
					"index":         0,
					"finish_reason": "tool_calls",
					"message": map[string]any{
						"role":    "assistant",
						"content": "",
						"tool_calls": []map[string]any{
							{
								"id":   "call-1",
								"type": "function",
								"function": map[string]any{
									"name":      "web_search",
									"arguments": `{"query":"weather in Oslo"}`,
								},
							},
							{
								"id":   "call-2",
								"type": "function",
								"function": map[string]any{
									"name":      "fetch_webpage",
									"arguments": `{"url":"https://example.com"}`,
								},
							},
						},
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	})

	decision, err := gateway.Decide(context.Background(), []Message{UserMessage("look it up")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(decision.ToolCalls) != 2 {
		t.Fatalf("expected 2 tool calls, got %d", len(decision.ToolCalls))
	}
	first := decision.ToolCalls[0]
	if first.ID != "call-1" || first.Name != "web_search" || first.Arguments != `{"query":"weather in Oslo"}` {
		t.Errorf("unexpected first tool call: %+v", first)
	}
	if decision.ToolCalls[1].Name != "fetch_webpage" {
		t.Errorf("unexpected second tool call: %+v", decision.ToolCalls[1])
	}
}

func TestOpenAIGateway_Decide_ToolExchangeRoundTrip(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		var reqBody struct {
			Messages []map[string]any `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		if len(reqBody.Messages) != 3 {
			t.Fatalf("expected 3 wire messages, got %d", len(reqBody.Messages))
		}
		if reqBody.Messages[1]["role"] != "assistant" {
			t.Errorf("expected assistant role, got %v", reqBody.Messages[1]["role"])
		}
		if _, ok := reqBody.Messages[1]["tool_calls"]; !ok {
			t.Error("expected assistant message to carry tool_calls")
		}
		if reqBody.Messages[2]["role"] != "tool" {
			t.Errorf("expected tool role, got %v", reqBody.Messages[2]["role"])
		}
		if reqBody.Messages[2]["tool_call_id"] != "call-1" {
			t.Errorf("expected tool_call_id 'call-1', got %v", reqBody.Messages[2]["tool_call_id"])
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionResponse("Final answer."))
	})

	calls := []ToolCall{{ID: "call-1", Name: "web_search", Arguments: `{"query":"x"}`}}
	messages := []Message{
		UserMessage("look it up"),
		AssistantToolCalls("", calls),
		ToolResult("call-1", "search output"),
	}
	decision, err := gateway.Decide(context.Background(), messages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Content != "Final answer." {
		t.Errorf("unexpected content %q", decision.Content)
	}
}

func TestOpenAIGateway_StreamCompletion(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]any
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		if reqBody["stream"] != true {
			t.Errorf("expected stream:true, got %v", reqBody["stream"])
		}

		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{"Hel", "lo", " world"}
		for _, chunk := range chunks {
			payload, _ := json.Marshal(map[string]any{
				"id":     "chatcmpl-3",
				"object": "chat.completion.chunk",
				"choices": []map[string]any{
					{"index": 0, "delta": map[string]any{"content": chunk}},
				},
			})
			fmt.Fprintf(w, "data: %s\n\n", payload)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var deltas []string
	err := gateway.StreamCompletion(context.Background(), []Message{UserMessage("Hello")}, func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(deltas) != 3 {
		t.Fatalf("expected 3 deltas, got %d: %v", len(deltas), deltas)
	}
	if deltas[0]+deltas[1]+deltas[2] != "Hello world" {
		t.Errorf("unexpected accumulated text %q", deltas[0]+deltas[1]+deltas[2])
	}
}

func TestOpenAIGateway_StreamCompletion_EmitError(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for i := 0; i < 5; i++ {
			payload, _ := json.Marshal(map[string]any{
				"id":     "chatcmpl-4",
				"object": "chat.completion.chunk",
				"choices": []map[string]any{
					{"index": 0, "delta": map[string]any{"content": "x"}},
				},
			})
			fmt.Fprintf(w, "data: %s\n\n", payload)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	emitted := 0
	err := gateway.StreamCompletion(context.Background(), []Message{UserMessage("Hello")}, func(delta string) error {
		emitted++
		if emitted == 2 {
			return context.Canceled
		}
		return nil
	})
	if err == nil {
		t.Fatal("expected emit error to be returned, got nil")
	}
	if emitted != 2 {
		t.Errorf("expected streaming to stop after the failing emit, got %d emits", emitted)
	}
}

func TestOpenAIGateway_SummarizeTitle(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]any
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		if reqBody["max_tokens"] != float64(titleMaxTokens) {
			t.Errorf("expected max_tokens %d, got %v", titleMaxTokens, reqBody["max_tokens"])
		}
		messages := reqBody["messages"].([]any)
		content := messages[0].(map[string]any)["content"].(string)
		if content != `Generate a short, descriptive title (max 6 words) for a chat that starts with: "What is Go?"` {
			t.Errorf("unexpected title prompt: %s", content)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionResponse("About the Go Language"))
	})

	title, err := gateway.SummarizeTitle(context.Background(), "What is Go?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if title != "About the Go Language" {
		t.Errorf("unexpected title %q", title)
	}
}

func TestOpenAIGateway_Generate_TrimsWhitespace(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionResponse("  padded answer \n"))
	})

	result, err := gateway.Generate(context.Background(), []Message{UserMessage("Hello")}, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "padded answer" {
		t.Errorf("expected trimmed result, got %q", result)
	}
}

func TestOpenAIGateway_Generate_EmptyContentIsNotAnError(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionResponse(""))
	})

	result, err := gateway.Generate(context.Background(), []Message{UserMessage("Hello")}, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "" {
		t.Errorf("expected empty result, got %q", result)
	}
}

func TestOpenAIGateway_Generate_NoChoices(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": "chatcmpl-5", "object": "chat.completion", "choices": []any{}})
	})

	_, err := gateway.Generate(context.Background(), []Message{UserMessage("Hello")}, 100)
	if err == nil {
		t.Fatal("expected error for empty choices, got nil")
	}
}

func TestMessageConstructors(t *testing.T) {
	if msg := SystemMessage("s"); msg.Role != RoleSystem || msg.Content != "s" {
		t.Errorf("unexpected system message: %+v", msg)
	}
	if msg := UserMessage("u"); msg.Role != RoleUser || msg.Content != "u" {
		t.Errorf("unexpected user message: %+v", msg)
	}
	if msg := AssistantMessage("a"); msg.Role != RoleAssistant || msg.Content != "a" {
		t.Errorf("unexpected assistant message: %+v", msg)
	}
	if msg := ToolResult("call-1", "out"); msg.Role != RoleTool || msg.ToolCallID != "call-1" || msg.Content != "out" {
		t.Errorf("unexpected tool message: %+v", msg)
	}
	calls := []ToolCall{{ID: "call-1", Name: "web_search", Arguments: "{}"}}
	msg := AssistantToolCalls("thinking", calls)
	if msg.Role != RoleAssistant || msg.Content != "thinking" || len(msg.ToolCalls) != 1 {
		t.Errorf("unexpected assistant tool-call message: %+v", msg)
	}
}
