package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/searchchat/searchchat/internal/llm"
)

const (
	fetchMaxChars    = 3000
	fetchMinChars    = 50
	summaryMaxTokens = 400
)

var (
	scriptRe     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe      = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	tagRe        = regexp.MustCompile(`<[^>]*>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

func (e *Executor) fetchWebpage(ctx context.Context, pageURL string) string {
	relay := fmt.Sprintf("%s?url=%s", e.relayURL, url.QueryEscape(pageURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, relay, nil)
	if err != nil {
		return unreachableMessage(pageURL)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return unreachableMessage(pageURL)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Sprintf(
			"I couldn't access the page at %s. The site might have restrictions or be temporarily unavailable.",
			pageURL,
		)
	}

	// The relay wraps the raw page body in a JSON envelope.
	var envelope struct {
		Contents string `json:"contents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return unreachableMessage(pageURL)
	}
	if envelope.Contents == "" {
		return fmt.Sprintf("I was able to reach %s but couldn't extract any content from the page.", pageURL)
	}

	text := stripHTML(envelope.Contents)
	if runes := []rune(text); len(runes) > fetchMaxChars {
		text = string(runes[:fetchMaxChars])
	}
	if len([]rune(text)) < fetchMinChars {
		return fmt.Sprintf(
			"I was able to access %s but the page appears to have minimal text content or may be loading content dynamically.",
			pageURL,
		)
	}

	prompt := fmt.Sprintf(
		"Please analyze this webpage content and provide a comprehensive summary of what this page is about. "+
			"Include the main topics, purpose, and key information:\n\nURL: %s\n\nContent:\n%s",
		pageURL,
		text,
	)
	summary, err := e.gateway.Generate(ctx, []llm.Message{llm.UserMessage(prompt)}, summaryMaxTokens)
	if err != nil {
		return unreachableMessage(pageURL)
	}
	if summary == "" {
		return fmt.Sprintf(
			"I was able to access %s and found content, but couldn't generate a proper summary. "+
				"The page appears to contain information but may require direct viewing for full understanding.",
			pageURL,
		)
	}
	return fmt.Sprintf("🌐 **Analysis of %s:**\n\n%s", pageURL, summary)
}

func stripHTML(html string) string {
	text := scriptRe.ReplaceAllString(html, "")
	text = styleRe.ReplaceAllString(text, "")
	text = tagRe.ReplaceAllString(text, " ")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func unreachableMessage(pageURL string) string {
	return fmt.Sprintf(
		"I couldn't access the page at %s. This might be due to:\n"+
			"- The site blocking automated requests\n"+
			"- Network connectivity issues\n"+
			"- The URL being invalid or the page being unavailable\n\n"+
			"For the most accurate information, please visit the URL directly in your browser.",
		pageURL,
	)
}
