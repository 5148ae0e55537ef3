package service

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/brightsteps/assistant/internal/assistant"
	"github.com/brightsteps/assistant/internal/domain"
	"github.com/brightsteps/assistant/internal/repository/redis"
)

const (
	// historyLimit bounds how much transcript is handed to the provider.
	historyLimit = 10

	maxTitleRunes = 30
)

// SendReply is the outcome of a chat turn
type SendReply struct {
	Response       string
	ConversationID uuid.UUID
}

// ChatService handles conversation and message operations
type ChatService struct {
	convRepo  domain.ConversationRepository
	msgRepo   domain.MessageRepository
	providers *assistant.Router
	fallback  assistant.Provider
	history   *redis.HistoryCache
}

// NewChatService creates a new chat service. history may be nil when Redis
// is disabled; fallback answers when the configured provider fails.
func NewChatService(
	convRepo domain.ConversationRepository,
	msgRepo domain.MessageRepository,
	providers *assistant.Router,
	fallback assistant.Provider,
	history *redis.HistoryCache,
) *ChatService {
	return &ChatService{
		convRepo:  convRepo,
		msgRepo:   msgRepo,
		providers: providers,
		fallback:  fallback,
		history:   history,
	}
}

// SendMessage runs one chat turn: persist the user's message, generate the
// assistant's reply and persist it, creating the conversation first when
// conversationID is nil.
func (s *ChatService) SendMessage(ctx context.Context, identity domain.Identity, conversationID uuid.UUID, text string) (*SendReply, error) {
	now := time.Now()

	if conversationID == uuid.Nil {
		conversationID = uuid.New()
		conv := &domain.Conversation{
			ID:        conversationID,
			UserID:    identity.UserID,
			Role:      identity.Role,
			Title:     deriveTitle(text),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.convRepo.Create(ctx, conv); err != nil {
			return nil, fmt.Errorf("failed to create conversation: %w", err)
		}
	} else {
		if _, err := s.ownedConversation(ctx, identity, conversationID); err != nil {
			return nil, err
		}
	}

	// History is captured before the new message is persisted so the
	// provider does not see the prompt twice.
	history := s.recentHistory(ctx, conversationID)

	userMsg := &domain.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Sender:         domain.SenderUser,
		Content:        text,
		Timestamp:      now,
	}
	if err := s.msgRepo.Create(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	response := s.generateReply(ctx, identity, history, text)

	replyAt := time.Now()
	assistantMsg := &domain.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Sender:         domain.SenderAssistant,
		Content:        response,
		Timestamp:      replyAt,
	}
	if err := s.msgRepo.Create(ctx, assistantMsg); err != nil {
		return nil, fmt.Errorf("failed to save reply: %w", err)
	}

	if err := s.convRepo.UpdatePreview(ctx, conversationID, response, replyAt); err != nil {
		log.Error().Err(err).Str("conversation_id", conversationID.String()).Msg("failed to update conversation preview")
	}

	if s.history != nil {
		if err := s.history.Invalidate(ctx, conversationID); err != nil {
			log.Warn().Err(err).Msg("failed to invalidate history cache")
		}
	}

	return &SendReply{Response: response, ConversationID: conversationID}, nil
}

// ListConversations returns the caller's conversations for the active role,
// most recently updated first.
func (s *ChatService) ListConversations(ctx context.Context, identity domain.Identity, limit, offset int) ([]domain.Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	conversations, err := s.convRepo.ListByOwner(ctx, identity.UserID, identity.Role, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return conversations, nil
}

// History returns the full transcript of one of the caller's conversations.
func (s *ChatService) History(ctx context.Context, identity domain.Identity, conversationID uuid.UUID) ([]domain.Message, error) {
	if _, err := s.ownedConversation(ctx, identity, conversationID); err != nil {
		return nil, err
	}
	messages, err := s.msgRepo.ListByConversation(ctx, conversationID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

// DeleteConversation removes one of the caller's conversations and its
// transcript.
func (s *ChatService) DeleteConversation(ctx context.Context, identity domain.Identity, conversationID uuid.UUID) error {
	if _, err := s.ownedConversation(ctx, identity, conversationID); err != nil {
		return err
	}
	if err := s.convRepo.Delete(ctx, conversationID); err != nil {
		return err
	}
	if s.history != nil {
		if err := s.history.Invalidate(ctx, conversationID); err != nil {
			log.Warn().Err(err).Msg("failed to invalidate history cache")
		}
	}
	return nil
}

// ownedConversation loads the conversation and hides other owners' data
// behind ErrNotFound. Ownership is the (user, role) pair; the same account
// acting under a different role does not see the thread.
func (s *ChatService) ownedConversation(ctx context.Context, identity domain.Identity, conversationID uuid.UUID) (*domain.Conversation, error) {
	conv, err := s.convRepo.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != identity.UserID || conv.Role != identity.Role {
		return nil, domain.ErrNotFound
	}
	return conv, nil
}

// recentHistory fetches the last few messages, preferring the cache.
// Failures degrade to an empty history rather than failing the turn.
func (s *ChatService) recentHistory(ctx context.Context, conversationID uuid.UUID) []domain.Message {
	if s.history != nil {
		cached, err := s.history.Get(ctx, conversationID)
		if err == nil && cached != nil {
			return tail(cached, historyLimit)
		}
	}

	messages, err := s.msgRepo.ListByConversation(ctx, conversationID, historyLimit)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch chat history")
		return nil
	}

	if s.history != nil {
		if err := s.history.Set(ctx, conversationID, messages); err != nil {
			log.Warn().Err(err).Msg("failed to cache history")
		}
	}
	return messages
}

func (s *ChatService) generateReply(ctx context.Context, identity domain.Identity, history []domain.Message, prompt string) string {
	provider, err := s.providers.GetProvider("")
	if err != nil {
		log.Error().Err(err).Msg("no assistant provider available")
		provider = s.fallback
	}

	response, err := provider.Reply(ctx, identity, history, prompt)
	if err != nil && provider != s.fallback {
		log.Error().Err(err).Str("provider", provider.Name()).Msg("provider failed, using fallback")
		response, err = s.fallback.Reply(ctx, identity, history, prompt)
	}
	if err != nil {
		log.Error().Err(err).Msg("fallback provider failed")
		return "I'm sorry, I can't respond right now. Please try again shortly."
	}
	return response
}

func tail(messages []domain.Message, limit int) []domain.Message {
	if limit > 0 && len(messages) > limit {
		return messages[len(messages)-limit:]
	}
	return messages
}

// deriveTitle names a conversation after its opening message.
func deriveTitle(text string) string {
	if utf8.RuneCountInString(text) <= maxTitleRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxTitleRunes]) + "..."
}
