package llm

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Names of the two functions in the fixed tool catalog.
const (
	ToolWebSearch    = "web_search"
	ToolFetchWebpage = "fetch_webpage"
)

// Message is one entry of the role-tagged list sent to the model. Assistant
// messages may carry tool-call requests; tool messages correlate back to
// their originating call via ToolCallID. Neither of those two forms is ever
// persisted.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolCall is a model-issued request to invoke a catalog function.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON-encoded
}

// Decision is the outcome of the non-streaming first call of a turn: plain
// text, tool-call requests, or both.
type Decision struct {
	Content   string
	ToolCalls []ToolCall
}

func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// AssistantToolCalls is the assistant message echoing the model's tool-call
// requests, appended to the in-memory list ahead of the tool results.
func AssistantToolCalls(content string, calls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolResult is the tool-role message carrying one executor's output.
func ToolResult(toolCallID string, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: toolCallID}
}
