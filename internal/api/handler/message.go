package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/brightsteps/assistant/internal/api/response"
	"github.com/brightsteps/assistant/internal/domain"
	"github.com/brightsteps/assistant/internal/service"
)

// MessageHandler serves the send-message endpoint of the chat client
// contract
type MessageHandler struct {
	chatService *service.ChatService
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(chatService *service.ChatService) *MessageHandler {
	return &MessageHandler{chatService: chatService}
}

type sendMessageRequest struct {
	Message        string `json:"message" validate:"required"`
	UserType       string `json:"userType" validate:"required"`
	UserID         string `json:"userId" validate:"required"`
	ConversationID string `json:"conversationId"`
}

// Send runs one chat turn and returns the assistant's reply together with
// the conversation id, newly assigned when the request omitted one.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var input sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	role := domain.Role(input.UserType)
	if !role.Valid() {
		response.BadRequest(w, "invalid userType")
		return
	}
	userID, err := uuid.Parse(input.UserID)
	if err != nil {
		response.BadRequest(w, "invalid userId")
		return
	}

	conversationID := uuid.Nil
	if input.ConversationID != "" {
		conversationID, err = uuid.Parse(input.ConversationID)
		if err != nil {
			response.BadRequest(w, "invalid conversationId")
			return
		}
	}

	identity := domain.Identity{UserID: userID, Role: role}
	reply, err := h.chatService.SendMessage(r.Context(), identity, conversationID, input.Message)
	if errors.Is(err, domain.ErrNotFound) {
		response.NotFound(w, "conversation not found")
		return
	}
	if err != nil {
		response.InternalError(w, "failed to process message")
		return
	}

	response.Raw(w, http.StatusOK, map[string]any{
		"response":       reply.Response,
		"conversationId": reply.ConversationID,
	})
}
