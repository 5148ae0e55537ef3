package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightsteps/assistant/internal/api"
	"github.com/brightsteps/assistant/internal/config"
	"github.com/brightsteps/assistant/internal/repository/sqlite"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.MiddlewareTimeout = 30 * time.Second
	cfg.Auth.JWTSecret = "handler-test-secret"
	cfg.Auth.AccessTokenTTL = 15 * time.Minute
	cfg.Auth.RefreshTokenTTL = 7 * 24 * time.Hour
	cfg.Assistant.Provider = "builtin"

	db, err := sqlite.NewDB(context.Background(), config.StorageConfig{
		Path: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return api.NewRouter(cfg, db, nil)
}

func doJSON(t *testing.T, srv http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
}

func TestReadyCheck(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthFlow(t *testing.T) {
	srv := newTestServer(t)

	// Register
	rec := doJSON(t, srv, http.MethodPost, "/auth/register", "", map[string]any{
		"email":        "parent@example.com",
		"password":     "secret-password",
		"role":         "parent",
		"display_name": "Sam",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Duplicate registration is rejected
	rec = doJSON(t, srv, http.MethodPost, "/auth/register", "", map[string]any{
		"email":    "parent@example.com",
		"password": "secret-password",
		"role":     "parent",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Login
	rec = doJSON(t, srv, http.MethodPost, "/auth/login", "", map[string]any{
		"email":    "parent@example.com",
		"password": "secret-password",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	token, _ := data["access_token"].(string)
	require.NotEmpty(t, token)

	// Me resolves the identity behind the token
	rec = doJSON(t, srv, http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	identity := decodeBody(t, rec)
	assert.Equal(t, "parent", identity["role"])
	assert.Equal(t, "Sam", identity["name"])
	assert.NotEmpty(t, identity["userId"])

	// Without a token /auth/me is unauthorized
	rec = doJSON(t, srv, http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_WrongPassword(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/auth/register", "", map[string]any{
		"email":    "parent@example.com",
		"password": "secret-password",
		"role":     "parent",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/auth/login", "", map[string]any{
		"email":    "parent@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChatFlow(t *testing.T) {
	srv := newTestServer(t)
	userID := uuid.New().String()

	// First message creates a conversation
	rec := doJSON(t, srv, http.MethodPost, "/messages", "", map[string]any{
		"message":  "Hello there",
		"userType": "parent",
		"userId":   userID,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	conversationID, _ := body["conversationId"].(string)
	require.NotEmpty(t, conversationID)
	require.NotEmpty(t, body["response"])

	// Second message continues it
	rec = doJSON(t, srv, http.MethodPost, "/messages", "", map[string]any{
		"message":        "My child won't sleep",
		"userType":       "parent",
		"userId":         userID,
		"conversationId": conversationID,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, conversationID, decodeBody(t, rec)["conversationId"])

	// The conversation shows up in the list with a preview
	rec = doJSON(t, srv, http.MethodGet, "/conversations?role=parent&userId="+userID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	list := decodeBody(t, rec)
	conversations, ok := list["conversations"].([]any)
	require.True(t, ok)
	require.Len(t, conversations, 1)
	first := conversations[0].(map[string]any)
	assert.Equal(t, conversationID, first["id"])
	assert.Equal(t, "Hello there", first["title"])
	assert.NotEmpty(t, first["lastMessage"])

	// The transcript holds both turns plus replies, oldest first
	rec = doJSON(t, srv, http.MethodGet, "/conversations/"+conversationID+"/messages?role=parent&userId="+userID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	transcript := decodeBody(t, rec)
	messages, ok := transcript["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 4)
	firstMsg := messages[0].(map[string]any)
	assert.Equal(t, "Hello there", firstMsg["content"])
	assert.Equal(t, "user", firstMsg["sender"])
	assert.Equal(t, "assistant", messages[1].(map[string]any)["sender"])

	// Another user cannot see it
	rec = doJSON(t, srv, http.MethodGet, "/conversations/"+conversationID+"/messages?role=parent&userId="+uuid.New().String(), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Delete, then the list is empty and a second delete is a 404
	rec = doJSON(t, srv, http.MethodDelete, "/conversations/"+conversationID+"?role=parent&userId="+userID, "", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/conversations?role=parent&userId="+userID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["conversations"], 0)

	rec = doJSON(t, srv, http.MethodDelete, "/conversations/"+conversationID+"?role=parent&userId="+userID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendMessage_Validation(t *testing.T) {
	srv := newTestServer(t)

	// Missing message
	rec := doJSON(t, srv, http.MethodPost, "/messages", "", map[string]any{
		"userType": "parent",
		"userId":   uuid.New().String(),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown role
	rec = doJSON(t, srv, http.MethodPost, "/messages", "", map[string]any{
		"message":  "hi",
		"userType": "admin",
		"userId":   uuid.New().String(),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Bad conversation id
	rec = doJSON(t, srv, http.MethodPost, "/messages", "", map[string]any{
		"message":        "hi",
		"userType":       "parent",
		"userId":         uuid.New().String(),
		"conversationId": "not-a-uuid",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListConversations_BadIdentity(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/conversations", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/conversations?role=wizard&userId="+uuid.New().String(), "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
