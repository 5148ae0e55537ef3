package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by repositories when a record does not exist.
var ErrNotFound = errors.New("not found")

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Role is the platform role a user chats as. Conversations are scoped by
// (user, role) so the same account sees separate threads per role.
type Role string

const (
	RoleParent Role = "parent"
	RoleChild  Role = "child"
	RoleDoctor Role = "doctor"
	RoleSchool Role = "school"
)

// Valid reports whether r is one of the known platform roles.
func (r Role) Valid() bool {
	switch r {
	case RoleParent, RoleChild, RoleDoctor, RoleSchool:
		return true
	}
	return false
}

// Identity is a resolved chat identity: who is talking and as what role.
type Identity struct {
	UserID uuid.UUID `json:"userId"`
	Role   Role      `json:"role"`
	Name   string    `json:"name,omitempty"`
}

// Conversation is the list-level view of an assistant chat thread.
type Conversation struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"-"`
	Role            Role      `json:"-"`
	Title           string    `json:"title"`
	LastMessage     string    `json:"lastMessage"`
	LastMessageTime time.Time `json:"lastMessageTime"`
	CreatedAt       time.Time `json:"-"`
	UpdatedAt       time.Time `json:"-"`
}

// Message is a single entry in a conversation transcript. IsTyping is only
// ever true on the client for a placeholder or an in-flight typing reveal;
// persisted messages always carry it as false.
type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"-"`
	Sender         Sender    `json:"sender"`
	Content        string    `json:"content"`
	IsTyping       bool      `json:"isTyping"`
	Timestamp      time.Time `json:"timestamp"`
}

// ConversationRepository defines the interface for conversation storage
type ConversationRepository interface {
	Create(ctx context.Context, conversation *Conversation) error
	Get(ctx context.Context, id uuid.UUID) (*Conversation, error)
	ListByOwner(ctx context.Context, userID uuid.UUID, role Role, limit, offset int) ([]Conversation, error)
	UpdatePreview(ctx context.Context, id uuid.UUID, lastMessage string, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// MessageRepository defines the interface for message storage
type MessageRepository interface {
	Create(ctx context.Context, message *Message) error
	ListByConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]Message, error)
}
