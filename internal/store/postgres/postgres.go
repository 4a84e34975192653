package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/searchchat/searchchat/internal/store"
)

type PostgresStore struct {
	db *sql.DB
}

var openDB = sql.Open

func New(conn string) (*PostgresStore, error) {
	db, err := openDB("pgx", conn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := verifySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func verifySchema(ctx context.Context, db *sql.DB) error {
	required := []string{
		"chats",
		"messages",
	}
	for _, table := range required {
		var regclass sql.NullString
		if err := db.QueryRowContext(ctx, "SELECT to_regclass($1)", fmt.Sprintf("public.%s", table)).Scan(&regclass); err != nil {
			return err
		}
		if !regclass.Valid {
			return fmt.Errorf("database schema missing: %s table not found (run migrations/001_init.sql)", table)
		}
	}
	return nil
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

func (p *PostgresStore) CreateChat(ctx context.Context, chat store.Chat) error {
	_, err := p.db.ExecContext(
		ctx,
		"INSERT INTO chats (id, title, created_at, updated_at) VALUES ($1, $2, $3, $4)",
		chat.ID,
		chat.Title,
		chat.CreatedAt,
		chat.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) GetChat(ctx context.Context, chatID string) (*store.Chat, error) {
	chat := store.Chat{}
	err := p.db.QueryRowContext(
		ctx,
		"SELECT id, title, created_at, updated_at FROM chats WHERE id = $1",
		chatID,
	).Scan(&chat.ID, &chat.Title, &chat.CreatedAt, &chat.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(
		ctx,
		"SELECT id, chat_id, role, content, sequence, created_at FROM messages WHERE chat_id = $1 ORDER BY sequence ASC",
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

func (p *PostgresStore) ListChats(ctx context.Context) ([]store.ChatSummary, error) {
	const query = `
		SELECT c.id, c.title, c.created_at, c.updated_at, COUNT(m.id)
		FROM chats c
		LEFT JOIN messages m ON m.chat_id = c.id
		GROUP BY c.id, c.title, c.created_at, c.updated_at
		ORDER BY c.updated_at DESC, c.id
	`
	rows, err := p.db.QueryContext(ctx, query)
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

func (p *PostgresStore) DeleteChat(ctx context.Context, chatID string) error {
	_, err := p.db.ExecContext(ctx, "DELETE FROM chats WHERE id = $1", chatID)
	return err
}

func (p *PostgresStore) AddMessage(ctx context.Context, msg store.Message) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, "UPDATE chats SET updated_at = $1 WHERE id = $2", msg.CreatedAt, msg.ChatID)
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
		 VALUES ($1, $2, $3, $4, (SELECT COALESCE(MAX(sequence), 0) + 1 FROM messages WHERE chat_id = $5), $6)`,
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

func (p *PostgresStore) SetChatTitle(ctx context.Context, chatID string, title string) error {
	result, err := p.db.ExecContext(ctx, "UPDATE chats SET title = $1 WHERE id = $2", title, chatID)
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
