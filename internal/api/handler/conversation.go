package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/brightsteps/assistant/internal/api/response"
	"github.com/brightsteps/assistant/internal/domain"
	"github.com/brightsteps/assistant/internal/service"
)

// ConversationHandler serves the conversation endpoints of the chat client
// contract
type ConversationHandler struct {
	chatService *service.ChatService
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(chatService *service.ChatService) *ConversationHandler {
	return &ConversationHandler{chatService: chatService}
}

// identityFromQuery reads the role and userId query parameters that scope
// every conversation request.
func identityFromQuery(r *http.Request) (domain.Identity, error) {
	role := domain.Role(r.URL.Query().Get("role"))
	if !role.Valid() {
		return domain.Identity{}, errors.New("invalid or missing role")
	}

	userID, err := uuid.Parse(r.URL.Query().Get("userId"))
	if err != nil {
		return domain.Identity{}, errors.New("invalid or missing userId")
	}

	return domain.Identity{UserID: userID, Role: role}, nil
}

// List returns the caller's conversations for one role
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromQuery(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	limit := 50
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			limit = v
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			offset = v
		}
	}

	conversations, err := h.chatService.ListConversations(r.Context(), identity, limit, offset)
	if err != nil {
		response.InternalError(w, "failed to list conversations")
		return
	}
	if conversations == nil {
		conversations = []domain.Conversation{}
	}

	response.Raw(w, http.StatusOK, map[string]any{
		"conversations": conversations,
	})
}

// Messages returns the transcript of one conversation
func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromQuery(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	conversationID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		response.BadRequest(w, "invalid conversation id")
		return
	}

	messages, err := h.chatService.History(r.Context(), identity, conversationID)
	if errors.Is(err, domain.ErrNotFound) {
		response.NotFound(w, "conversation not found")
		return
	}
	if err != nil {
		response.InternalError(w, "failed to list messages")
		return
	}
	if messages == nil {
		messages = []domain.Message{}
	}

	response.Raw(w, http.StatusOK, map[string]any{
		"messages": messages,
	})
}

// Delete removes a conversation and its transcript
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromQuery(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	conversationID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		response.BadRequest(w, "invalid conversation id")
		return
	}

	err = h.chatService.DeleteConversation(r.Context(), identity, conversationID)
	if errors.Is(err, domain.ErrNotFound) {
		response.NotFound(w, "conversation not found")
		return
	}
	if err != nil {
		response.InternalError(w, "failed to delete conversation")
		return
	}

	response.NoContent(w)
}
