package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a chat id does not resolve.
var ErrNotFound = errors.New("chat not found")

type Chat struct {
	ID        string
	Title     string
	CreatedAt string
	UpdatedAt string
	Messages  []Message
}

type ChatSummary struct {
	ID           string
	Title        string
	CreatedAt    string
	UpdatedAt    string
	MessageCount int64
}

// Message is one persisted utterance. Only user and assistant roles reach
// the store; tool exchanges stay in memory for the duration of a turn.
type Message struct {
	ID        string
	ChatID    string
	Role      string
	Content   string
	Sequence  int64
	CreatedAt string
}

type Store interface {
	CreateChat(ctx context.Context, chat Chat) error
	// GetChat returns the chat with messages in creation order, or ErrNotFound.
	GetChat(ctx context.Context, chatID string) (*Chat, error)
	// ListChats returns summaries ordered by most recently updated.
	ListChats(ctx context.Context) ([]ChatSummary, error)
	DeleteChat(ctx context.Context, chatID string) error
	// AddMessage assigns the next per-chat sequence, bumps the chat's
	// updated_at and returns ErrNotFound when the chat does not exist.
	// msg.Sequence is ignored on input.
	AddMessage(ctx context.Context, msg Message) error
	SetChatTitle(ctx context.Context, chatID string, title string) error
}
