package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/searchchat/searchchat/internal/store"
)

// MemoryStore keeps chats and messages in process memory. It backs tests and
// the "memory" store driver.
type MemoryStore struct {
	mu       sync.RWMutex
	chats    map[string]store.Chat
	messages map[string][]store.Message
	seq      map[string]int64
}

func New() *MemoryStore {
	return &MemoryStore{
		chats:    map[string]store.Chat{},
		messages: map[string][]store.Message{},
		seq:      map[string]int64{},
	}
}

func (m *MemoryStore) CreateChat(ctx context.Context, chat store.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat.Messages = nil
	m.chats[chat.ID] = chat
	return nil
}

func (m *MemoryStore) GetChat(ctx context.Context, chatID string) (*store.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	chat, ok := m.chats[chatID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cloned := chat
	cloned.Messages = append([]store.Message{}, m.messages[chatID]...)
	return &cloned, nil
}

func (m *MemoryStore) ListChats(ctx context.Context) ([]store.ChatSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := make([]store.ChatSummary, 0, len(m.chats))
	for _, chat := range m.chats {
		results = append(results, store.ChatSummary{
			ID:           chat.ID,
			Title:        chat.Title,
			CreatedAt:    chat.CreatedAt,
			UpdatedAt:    chat.UpdatedAt,
			MessageCount: int64(len(m.messages[chat.ID])),
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return parseTime(results[i].UpdatedAt).After(parseTime(results[j].UpdatedAt))
	})
	return results, nil
}

func (m *MemoryStore) DeleteChat(ctx context.Context, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chats, chatID)
	delete(m.messages, chatID)
	delete(m.seq, chatID)
	return nil
}

func (m *MemoryStore) AddMessage(ctx context.Context, msg store.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat, ok := m.chats[msg.ChatID]
	if !ok {
		return store.ErrNotFound
	}
	m.seq[msg.ChatID]++
	msg.Sequence = m.seq[msg.ChatID]
	m.messages[msg.ChatID] = append(m.messages[msg.ChatID], msg)
	chat.UpdatedAt = msg.CreatedAt
	m.chats[msg.ChatID] = chat
	return nil
}

func (m *MemoryStore) SetChatTitle(ctx context.Context, chatID string, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat, ok := m.chats[chatID]
	if !ok {
		return store.ErrNotFound
	}
	chat.Title = title
	m.chats[chatID] = chat
	return nil
}

func parseTime(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
