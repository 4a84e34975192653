package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const titleMaxTokens = 20

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// OpenAIGateway wraps the three kinds of calls the turn orchestrator makes
// against an OpenAI-compatible chat-completion API.
type OpenAIGateway struct {
	client openai.Client
	model  string
}

func NewOpenAIGateway(cfg OpenAIConfig) (*OpenAIGateway, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing API key for model gateway")
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o"
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIGateway{
		client: openai.NewClient(opts...),
		model:  model,
	}, nil
}

// toolCatalog is the fixed two-function catalog offered on every decide call.
var toolCatalog = []openai.ChatCompletionToolUnionParam{
	openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
		Name:        ToolWebSearch,
		Description: openai.String("Search the web for current information, news, or real-time data on any topic"),
		Parameters: openai.FunctionParameters{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query to find current information",
				},
			},
			"required": []string{"query"},
		},
	}),
	openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
		Name:        ToolFetchWebpage,
		Description: openai.String("Fetch and analyze the content of a specific website URL"),
		Parameters: openai.FunctionParameters{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "The URL of the webpage to fetch and analyze",
				},
			},
			"required": []string{"url"},
		},
	}),
}

// Decide issues the non-streaming first call of a turn with the tool catalog
// attached. The model may answer with text, tool-call requests, or both.
func (g *OpenAIGateway) Decide(ctx context.Context, messages []Message) (*Decision, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(g.model),
		Messages: toOpenAIMessages(messages),
		Tools:    toolCatalog,
	})
	if err != nil {
		return nil, fmt.Errorf("decide request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("decide response had no choices")
	}
	choice := resp.Choices[0].Message
	decision := Decision{Content: choice.Content}
	for _, call := range choice.ToolCalls {
		decision.ToolCalls = append(decision.ToolCalls, ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return &decision, nil
}

// StreamCompletion issues the streaming second call and invokes emit for
// every content delta in arrival order. It stops early when emit fails or
// ctx is cancelled, closing the upstream request.
func (g *OpenAIGateway) StreamCompletion(ctx context.Context, messages []Message, emit func(delta string) error) error {
	stream := g.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(g.model),
		Messages: toOpenAIMessages(messages),
	})
	defer stream.Close()
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		if err := emit(chunk.Choices[0].Delta.Content); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("completion stream: %w", err)
	}
	return nil
}

// SummarizeTitle asks for a short chat title seeded with the first user
// message. Called at most once per chat.
func (g *OpenAIGateway) SummarizeTitle(ctx context.Context, seed string) (string, error) {
	prompt := fmt.Sprintf("Generate a short, descriptive title (max 6 words) for a chat that starts with: %q", seed)
	return g.Generate(ctx, []Message{UserMessage(prompt)}, titleMaxTokens)
}

// Generate runs one bounded, non-streaming completion. The tool executors
// use it for search simulation and page summarization. An empty completion
// is returned as an empty string, not an error.
func (g *OpenAIGateway) Generate(ctx context.Context, messages []Message, maxTokens int64) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(g.model),
		Messages: toOpenAIMessages(messages),
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(maxTokens)
	}
	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion response had no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			if len(msg.ToolCalls) > 0 {
				result = append(result, assistantToolCallParam(msg))
				continue
			}
			result = append(result, openai.AssistantMessage(msg.Content))
		case RoleTool:
			result = append(result, openai.ToolMessage(msg.Content, msg.ToolCallID))
		default:
			result = append(result, openai.UserMessage(msg.Content))
		}
	}
	return result
}

func assistantToolCallParam(msg Message) openai.ChatCompletionMessageParamUnion {
	calls := make([]openai.ChatCompletionMessageToolCallUnionParam, len(msg.ToolCalls))
	for i, call := range msg.ToolCalls {
		calls[i] = openai.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
				ID: call.ID,
				Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			},
		}
	}
	assistant := openai.ChatCompletionAssistantMessageParam{ToolCalls: calls}
	if msg.Content != "" {
		assistant.Content.OfString = openai.String(msg.Content)
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant}
}
