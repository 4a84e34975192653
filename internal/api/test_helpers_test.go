package api

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/searchchat/searchchat/internal/config"
	"github.com/searchchat/searchchat/internal/events"
	"github.com/searchchat/searchchat/internal/llm"
	"github.com/searchchat/searchchat/internal/store"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateChat(ctx context.Context, chat store.Chat) error {
	args := m.Called(ctx, chat)
	return args.Error(0)
}

func (m *MockStore) GetChat(ctx context.Context, chatID string) (*store.Chat, error) {
	args := m.Called(ctx, chatID)
	if value := args.Get(0); value != nil {
		return value.(*store.Chat), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) ListChats(ctx context.Context) ([]store.ChatSummary, error) {
	args := m.Called(ctx)
	var result []store.ChatSummary
	if value := args.Get(0); value != nil {
		result = value.([]store.ChatSummary)
	}
	return result, args.Error(1)
}

func (m *MockStore) DeleteChat(ctx context.Context, chatID string) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

func (m *MockStore) AddMessage(ctx context.Context, msg store.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockStore) SetChatTitle(ctx context.Context, chatID string, title string) error {
	args := m.Called(ctx, chatID, title)
	return args.Error(0)
}

// recordingBroker keeps published events for assertions and hands
// subscribers a shared channel.
type recordingBroker struct {
	mu        sync.Mutex
	published []events.ChatEvent
}

func (b *recordingBroker) Publish(event events.ChatEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, event)
}

func (b *recordingBroker) Subscribe(ctx context.Context) <-chan events.ChatEvent {
	ch := make(chan events.ChatEvent)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}

func (b *recordingBroker) eventTypes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	types := make([]string, 0, len(b.published))
	for _, event := range b.published {
		types = append(types, event.Type)
	}
	return types
}

type fakeGateway struct {
	decide func(ctx context.Context, messages []llm.Message) (*llm.Decision, error)
	stream func(ctx context.Context, messages []llm.Message, emit func(delta string) error) error
	title  func(ctx context.Context, seed string) (string, error)
}

func (g *fakeGateway) Decide(ctx context.Context, messages []llm.Message) (*llm.Decision, error) {
	if g.decide == nil {
		return &llm.Decision{}, nil
	}
	return g.decide(ctx, messages)
}

func (g *fakeGateway) StreamCompletion(ctx context.Context, messages []llm.Message, emit func(delta string) error) error {
	if g.stream == nil {
		return nil
	}
	return g.stream(ctx, messages, emit)
}

func (g *fakeGateway) SummarizeTitle(ctx context.Context, seed string) (string, error) {
	if g.title == nil {
		return "", nil
	}
	return g.title(ctx, seed)
}

type fakeToolRunner struct {
	mu     sync.Mutex
	calls  []llm.ToolCall
	result func(call llm.ToolCall) string
}

func (r *fakeToolRunner) Execute(ctx context.Context, call llm.ToolCall) llm.Message {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
	content := "result for " + call.Name
	if r.result != nil {
		content = r.result(call)
	}
	return llm.ToolResult(call.ID, content)
}

func newTestServer(t *testing.T, st store.Store, gateway Gateway, runner ToolRunner, broker Broker) *httptest.Server {
	t.Helper()
	if gateway == nil {
		gateway = &fakeGateway{}
	}
	if runner == nil {
		runner = &fakeToolRunner{}
	}
	if broker == nil {
		broker = &recordingBroker{}
	}
	server := httptest.NewServer(NewServer(st, gateway, runner, broker, config.Config{}).Router())
	t.Cleanup(server.Close)
	return server
}
