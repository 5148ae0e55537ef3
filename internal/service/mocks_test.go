package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/brightsteps/assistant/internal/domain"
)

// MockConversationRepository mocks the ConversationRepository interface
type MockConversationRepository struct {
	mock.Mock
}

func (m *MockConversationRepository) Create(ctx context.Context, conversation *domain.Conversation) error {
	args := m.Called(ctx, conversation)
	return args.Error(0)
}

func (m *MockConversationRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversationRepository) ListByOwner(ctx context.Context, userID uuid.UUID, role domain.Role, limit, offset int) ([]domain.Conversation, error) {
	args := m.Called(ctx, userID, role, limit, offset)
	return args.Get(0).([]domain.Conversation), args.Error(1)
}

func (m *MockConversationRepository) UpdatePreview(ctx context.Context, id uuid.UUID, lastMessage string, at time.Time) error {
	args := m.Called(ctx, id, lastMessage, at)
	return args.Error(0)
}

func (m *MockConversationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockMessageRepository mocks the MessageRepository interface
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, message *domain.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockMessageRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]domain.Message, error) {
	args := m.Called(ctx, conversationID, limit)
	return args.Get(0).([]domain.Message), args.Error(1)
}

// MockUserRepository mocks the UserRepository interface
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

// MockProvider mocks the assistant.Provider interface
type MockProvider struct {
	mock.Mock
	name       string
	configured bool
}

func NewMockProvider(name string, configured bool) *MockProvider {
	return &MockProvider{name: name, configured: configured}
}

func (m *MockProvider) Name() string { return m.name }

func (m *MockProvider) IsConfigured() bool { return m.configured }

func (m *MockProvider) Reply(ctx context.Context, identity domain.Identity, history []domain.Message, prompt string) (string, error) {
	args := m.Called(ctx, identity, history, prompt)
	return args.String(0), args.Error(1)
}
