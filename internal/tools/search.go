package tools

import (
	"context"
	"fmt"

	"github.com/searchchat/searchchat/internal/llm"
)

const searchMaxTokens = 500

// The search tool performs no real retrieval. It asks the model to shape an
// answer like search results, with an explicit disclaimer that the text
// comes from training data.
const searchSystemPrompt = "You are a helpful assistant that provides current information. " +
	"When asked about recent events, news, or current data, provide the most up-to-date information " +
	"you can based on your training, but acknowledge the limitations of not having real-time access."

func (e *Executor) searchWeb(ctx context.Context, query string) string {
	prompt := fmt.Sprintf(
		"Based on the search query %q, provide current, relevant information as if you had access to "+
			"real-time web search results. Include recent developments, news, or current data where "+
			"applicable. Format the response as if it came from web search results.",
		query,
	)
	result, err := e.gateway.Generate(ctx, []llm.Message{
		llm.SystemMessage(searchSystemPrompt),
		llm.UserMessage(prompt),
	}, searchMaxTokens)
	if err != nil {
		return fmt.Sprintf(
			"I'm unable to perform web search at the moment. For current information about %q, "+
				"I recommend checking recent news sources or search engines directly.",
			query,
		)
	}
	if result == "" {
		result = "No search results found."
	}
	return fmt.Sprintf(
		"🔍 **Web Search Results for %q:**\n\n%s\n\n*Note: This information is based on my training data. "+
			"For the most current information, please verify with recent sources.*",
		query,
		result,
	)
}
