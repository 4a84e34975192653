package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/searchchat/searchchat/internal/llm"
)

// Generator is the slice of the model gateway the executors need.
type Generator interface {
	Generate(ctx context.Context, messages []llm.Message, maxTokens int64) (string, error)
}

// Name identifies a catalog function. Dispatch is over this closed set; any
// other value resolves to an "unsupported tool" result.
type Name string

const (
	NameWebSearch    Name = llm.ToolWebSearch
	NameFetchWebpage Name = llm.ToolFetchWebpage
)

const defaultRelayURL = "https://api.allorigins.win/get"

type Config struct {
	// RelayURL is the CORS relay used by fetch_webpage. The target URL is
	// passed as the url query parameter.
	RelayURL     string
	FetchTimeout time.Duration
}

// Executor resolves tool calls issued by the decide phase. Every path
// returns user-facing text; executors never fail a turn.
type Executor struct {
	gateway    Generator
	relayURL   string
	httpClient *http.Client
}

func NewExecutor(gateway Generator, cfg Config) *Executor {
	relayURL := cfg.RelayURL
	if relayURL == "" {
		relayURL = defaultRelayURL
	}
	timeout := cfg.FetchTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Executor{
		gateway:    gateway,
		relayURL:   relayURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Execute runs one tool call and returns its result as a tool-role message
// correlated by the call id.
func (e *Executor) Execute(ctx context.Context, call llm.ToolCall) llm.Message {
	switch Name(call.Name) {
	case NameWebSearch:
		var args struct {
			Query string `json:"query"`
		}
		_ = json.Unmarshal([]byte(call.Arguments), &args)
		return llm.ToolResult(call.ID, e.searchWeb(ctx, args.Query))
	case NameFetchWebpage:
		var args struct {
			URL string `json:"url"`
		}
		_ = json.Unmarshal([]byte(call.Arguments), &args)
		return llm.ToolResult(call.ID, e.fetchWebpage(ctx, args.URL))
	default:
		return llm.ToolResult(call.ID, fmt.Sprintf("The tool %q is not supported.", call.Name))
	}
}
