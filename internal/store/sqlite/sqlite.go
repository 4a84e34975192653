package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"

	"github.com/searchchat/searchchat/internal/store"
)

// SQLiteStore is the default store. It needs no external services; the
// schema is created on open.
type SQLiteStore struct {
	db *sql.DB
}

var openDB = sql.Open

const schema = `
CREATE TABLE IF NOT EXISTS chats (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	chat_id TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	sequence INTEGER NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_chat_seq ON messages(chat_id, sequence);
`

func New(path string) (*SQLiteStore, error) {
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, err
	}
	// modernc's driver is not safe for concurrent writes on one file
	// through multiple connections.
	db.SetMaxOpenConns(1)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateChat(ctx context.Context, chat store.Chat) error {
	_, err := s.db.ExecContext(
		ctx,
		"INSERT INTO chats (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)",
		chat.ID,
		chat.Title,
		chat.CreatedAt,
		chat.UpdatedAt,
	)
	return err
}

func (s *SQLiteStore) GetChat(ctx context.Context, chatID string) (*store.Chat, error) {
	chat := store.Chat{}
	err := s.db.QueryRowContext(
		ctx,
		"SELECT id, title, created_at, updated_at FROM chats WHERE id = ?",
		chatID,
	).Scan(&chat.ID, &chat.Title, &chat.CreatedAt, &chat.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(
		ctx,
		"SELECT id, chat_id, role, content, sequence, created_at FROM messages WHERE chat_id = ? ORDER BY sequence ASC",
		chatID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		msg := store.Message{}
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.Role, &msg.Content, &msg.Sequence, &msg.CreatedAt); err != nil {
			return nil, err
		}
		chat.Messages = append(chat.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &chat, nil
}

func (s *SQLiteStore) ListChats(ctx context.Context) ([]store.ChatSummary, error) {
	const query = `
		SELECT c.id, c.title, c.created_at, c.updated_at, COUNT(m.id)
		FROM chats c
		LEFT JOIN messages m ON m.chat_id = c.id
		GROUP BY c.id, c.title, c.created_at, c.updated_at
		ORDER BY c.updated_at DESC, c.id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []store.ChatSummary{}
	for rows.Next() {
		summary := store.ChatSummary{}
		if err := rows.Scan(&summary.ID, &summary.Title, &summary.CreatedAt, &summary.UpdatedAt, &summary.MessageCount); err != nil {
			return nil, err
		}
		results = append(results, summary)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) DeleteChat(ctx context.Context, chatID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM chats WHERE id = ?", chatID)
	return err
}

func (s *SQLiteStore) AddMessage(ctx context.Context, msg store.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, "UPDATE chats SET updated_at = ? WHERE id = ?", msg.CreatedAt, msg.ChatID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO messages (id, chat_id, role, content, sequence, created_at)
		 VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(sequence), 0) + 1 FROM messages WHERE chat_id = ?), ?)`,
		msg.ID,
		msg.ChatID,
		msg.Role,
		msg.Content,
		msg.ChatID,
		msg.CreatedAt,
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) SetChatTitle(ctx context.Context, chatID string, title string) error {
	result, err := s.db.ExecContext(ctx, "UPDATE chats SET title = ? WHERE id = ?", title, chatID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
