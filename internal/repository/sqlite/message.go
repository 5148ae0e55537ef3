package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/brightsteps/assistant/internal/domain"
)

// MessageRepository implements domain.MessageRepository
type MessageRepository struct {
	db *DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, message *domain.Message) error {
	query := `
		INSERT INTO messages (id, conversation_id, sender, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.conn.ExecContext(ctx, query,
		message.ID.String(),
		message.ConversationID.String(),
		string(message.Sender),
		message.Content,
		message.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// ListByConversation returns the transcript oldest first. limit <= 0 means
// no limit; a positive limit returns the most recent messages, still in
// chronological order.
func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]domain.Message, error) {
	query := `
		SELECT id, conversation_id, sender, content, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.conn.QueryContext(ctx, query, conversationID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var (
			m      domain.Message
			id     string
			convID string
			sender string
		)
		if err := rows.Scan(&id, &convID, &sender, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		parsedID, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid message id: %w", err)
		}
		parsedConv, err := uuid.Parse(convID)
		if err != nil {
			return nil, fmt.Errorf("invalid conversation id: %w", err)
		}
		m.ID = parsedID
		m.ConversationID = parsedConv
		m.Sender = domain.Sender(sender)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}
