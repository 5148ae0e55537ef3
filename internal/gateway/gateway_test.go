package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightsteps/assistant/internal/config"
	"github.com/brightsteps/assistant/internal/domain"
)

func testClient(serverURL string) *Client {
	return NewClient(config.ClientConfig{
		BaseURL: serverURL,
		Timeout: 5 * time.Second,
		Token:   "test-token",
	})
}

func testIdentity() domain.Identity {
	return domain.Identity{UserID: uuid.New(), Role: domain.RoleParent}
}

func TestListConversations(t *testing.T) {
	identity := testIdentity()
	convID := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/conversations", r.URL.Path)
		assert.Equal(t, "parent", r.URL.Query().Get("role"))
		assert.Equal(t, identity.UserID.String(), r.URL.Query().Get("userId"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]any{
			"conversations": []map[string]any{
				{"id": convID, "title": "Hello", "lastMessage": "Hi there!", "lastMessageTime": time.Now()},
			},
		})
	}))
	defer srv.Close()

	conversations, err := testClient(srv.URL).ListConversations(context.Background(), identity)
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	assert.Equal(t, convID, conversations[0].ID)
	assert.Equal(t, "Hello", conversations[0].Title)
	assert.Equal(t, "Hi there!", conversations[0].LastMessage)
}

func TestListMessages(t *testing.T) {
	identity := testIdentity()
	convID := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/conversations/"+convID.String()+"/messages", r.URL.Path)

		json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]any{
				{"id": uuid.New(), "content": "Hello", "sender": "user", "timestamp": time.Now(), "isTyping": false},
				{"id": uuid.New(), "content": "Hi there!", "sender": "assistant", "timestamp": time.Now(), "isTyping": false},
			},
		})
	}))
	defer srv.Close()

	messages, err := testClient(srv.URL).ListMessages(context.Background(), identity, convID.String())
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, domain.SenderUser, messages[0].Sender)
	assert.Equal(t, domain.SenderAssistant, messages[1].Sender)
}

func TestSendMessage_NewConversation(t *testing.T) {
	identity := testIdentity()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/messages", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Hello", req["message"])
		assert.Equal(t, "parent", req["userType"])
		assert.Equal(t, identity.UserID.String(), req["userId"])
		// No conversationId on a draft send.
		_, hasConvID := req["conversationId"]
		assert.False(t, hasConvID)

		json.NewEncoder(w).Encode(map[string]string{
			"response":       "Hi there!",
			"conversationId": "c1",
		})
	}))
	defer srv.Close()

	result, err := testClient(srv.URL).SendMessage(context.Background(), identity, "", "Hello")
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", result.Response)
	assert.Equal(t, "c1", result.ConversationID)
}

func TestSendMessage_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).SendMessage(context.Background(), testIdentity(), "c1", "Hello")
	require.Error(t, err)

	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, http.StatusInternalServerError, netErr.StatusCode)
}

func TestSendMessage_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	_, err := testClient(srv.URL).SendMessage(context.Background(), testIdentity(), "", "Hello")
	require.Error(t, err)

	var netErr *NetworkError
	assert.True(t, errors.As(err, &netErr))
}

func TestDeleteConversation_NotFoundIsSuccess(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodDelete, r.Method)
		if calls == 1 {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := testClient(srv.URL)
	identity := testIdentity()

	assert.NoError(t, client.DeleteConversation(context.Background(), identity, "c1"))
	// Second delete hits 404 and is still success.
	assert.NoError(t, client.DeleteConversation(context.Background(), identity, "c1"))
}

func TestDeleteConversation_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := testClient(srv.URL).DeleteConversation(context.Background(), testIdentity(), "c1")
	require.Error(t, err)
}

func TestCurrentIdentity(t *testing.T) {
	userID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/me", r.URL.Path)
		json.NewEncoder(w).Encode(domain.Identity{UserID: userID, Role: domain.RoleDoctor, Name: "Dr. Lee"})
	}))
	defer srv.Close()

	identity, err := testClient(srv.URL).CurrentIdentity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, userID, identity.UserID)
	assert.Equal(t, domain.RoleDoctor, identity.Role)
}

func TestLogin_InstallsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"data":    domain.TokenPair{AccessToken: "fresh-token", RefreshToken: "r", ExpiresIn: 900},
			})
		case "/auth/me":
			assert.Equal(t, "Bearer fresh-token", r.Header.Get("Authorization"))
			json.NewEncoder(w).Encode(domain.Identity{UserID: uuid.New(), Role: domain.RoleParent})
		}
	}))
	defer srv.Close()

	client := NewClient(config.ClientConfig{BaseURL: srv.URL, Timeout: 5 * time.Second})

	pair, err := client.Login(context.Background(), "parent@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", pair.AccessToken)

	_, err = client.CurrentIdentity(context.Background())
	assert.NoError(t, err)
}
