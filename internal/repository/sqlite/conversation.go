package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brightsteps/assistant/internal/domain"
)

// ConversationRepository implements domain.ConversationRepository
type ConversationRepository struct {
	db *DB
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) Create(ctx context.Context, conversation *domain.Conversation) error {
	query := `
		INSERT INTO conversations (id, user_id, role, title, last_message, last_message_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.conn.ExecContext(ctx, query,
		conversation.ID.String(),
		conversation.UserID.String(),
		string(conversation.Role),
		conversation.Title,
		conversation.LastMessage,
		conversation.LastMessageTime,
		conversation.CreatedAt,
		conversation.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

func (r *ConversationRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	query := `
		SELECT id, user_id, role, title, last_message, last_message_at, created_at, updated_at
		FROM conversations
		WHERE id = ?
	`
	conv, err := scanConversation(r.db.conn.QueryRowContext(ctx, query, id.String()))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conv, nil
}

func (r *ConversationRepository) ListByOwner(ctx context.Context, userID uuid.UUID, role domain.Role, limit, offset int) ([]domain.Conversation, error) {
	query := `
		SELECT id, user_id, role, title, last_message, last_message_at, created_at, updated_at
		FROM conversations
		WHERE user_id = ? AND role = ?
		ORDER BY updated_at DESC
		LIMIT ? OFFSET ?
	`
	rows, err := r.db.conn.QueryContext(ctx, query, userID.String(), string(role), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []domain.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, *conv)
	}
	return conversations, rows.Err()
}

func (r *ConversationRepository) UpdatePreview(ctx context.Context, id uuid.UUID, lastMessage string, at time.Time) error {
	query := `
		UPDATE conversations
		SET last_message = ?, last_message_at = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.conn.ExecContext(ctx, query, lastMessage, at, at, id.String())
	if err != nil {
		return fmt.Errorf("failed to update conversation preview: %w", err)
	}
	return nil
}

func (r *ConversationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.conn.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*domain.Conversation, error) {
	var (
		conv          domain.Conversation
		id, userID    string
		role          string
		lastMessageAt sql.NullTime
	)
	if err := row.Scan(&id, &userID, &role, &conv.Title, &conv.LastMessage, &lastMessageAt, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
		return nil, err
	}

	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid conversation id: %w", err)
	}
	parsedUser, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}

	conv.ID = parsedID
	conv.UserID = parsedUser
	conv.Role = domain.Role(role)
	if lastMessageAt.Valid {
		conv.LastMessageTime = lastMessageAt.Time
	}
	return &conv, nil
}
