package session

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/brightsteps/assistant/internal/domain"
	"github.com/brightsteps/assistant/internal/gateway"
)

// MockGateway mocks the gateway.ConversationGateway interface
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) ListConversations(ctx context.Context, identity domain.Identity) ([]domain.Conversation, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Conversation), args.Error(1)
}

func (m *MockGateway) ListMessages(ctx context.Context, identity domain.Identity, conversationID string) ([]domain.Message, error) {
	args := m.Called(ctx, identity, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Message), args.Error(1)
}

func (m *MockGateway) SendMessage(ctx context.Context, identity domain.Identity, conversationID, text string) (*gateway.SendResult, error) {
	args := m.Called(ctx, identity, conversationID, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.SendResult), args.Error(1)
}

func (m *MockGateway) DeleteConversation(ctx context.Context, identity domain.Identity, conversationID string) error {
	args := m.Called(ctx, identity, conversationID)
	return args.Error(0)
}

// MockIdentityGateway mocks the gateway.IdentityGateway interface
type MockIdentityGateway struct {
	mock.Mock
}

func (m *MockIdentityGateway) CurrentIdentity(ctx context.Context) (*domain.Identity, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Identity), args.Error(1)
}
