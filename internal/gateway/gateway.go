// Package gateway is the only component that performs network I/O for
// conversation data. It wraps the conversation service's HTTP/JSON contract:
// list conversations, list messages, send a message, delete a conversation,
// and identity resolution.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/brightsteps/assistant/internal/config"
	"github.com/brightsteps/assistant/internal/domain"
)

// NetworkError wraps a transport failure or a non-success HTTP status.
// Callers treat it as "service unavailable", never as fatal.
type NetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// SendResult is the outcome of a successful send: the assistant's reply and
// the (possibly newly assigned) conversation id.
type SendResult struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversationId"`
}

// ConversationGateway is the remote boundary the session controller talks to.
type ConversationGateway interface {
	ListConversations(ctx context.Context, identity domain.Identity) ([]domain.Conversation, error)
	ListMessages(ctx context.Context, identity domain.Identity, conversationID string) ([]domain.Message, error)
	SendMessage(ctx context.Context, identity domain.Identity, conversationID, text string) (*SendResult, error)
	DeleteConversation(ctx context.Context, identity domain.Identity, conversationID string) error
}

// IdentityGateway resolves the caller's chat identity at startup.
type IdentityGateway interface {
	CurrentIdentity(ctx context.Context) (*domain.Identity, error)
}

// Client talks to the conversation service over HTTP.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a gateway client from client configuration.
func NewClient(cfg config.ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetToken replaces the bearer token, e.g. after an interactive login.
func (c *Client) SetToken(token string) { c.token = token }

func identityQuery(identity domain.Identity) url.Values {
	q := url.Values{}
	q.Set("role", string(identity.Role))
	q.Set("userId", identity.UserID.String())
	return q
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// do executes the request and decodes a 2xx body into out (when non-nil).
// Transport errors and non-2xx statuses become *NetworkError.
func (c *Client) do(op string, req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &NetworkError{Op: op, StatusCode: resp.StatusCode}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &NetworkError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
		}
	}
	return nil
}

// ListConversations fetches the caller's conversation list.
func (c *Client) ListConversations(ctx context.Context, identity domain.Identity) ([]domain.Conversation, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/conversations", identityQuery(identity), nil)
	if err != nil {
		return nil, err
	}

	var body struct {
		Conversations []domain.Conversation `json:"conversations"`
	}
	if err := c.do("list conversations", req, &body); err != nil {
		return nil, err
	}
	return body.Conversations, nil
}

// ListMessages fetches the transcript of one conversation.
func (c *Client) ListMessages(ctx context.Context, identity domain.Identity, conversationID string) ([]domain.Message, error) {
	path := fmt.Sprintf("/conversations/%s/messages", url.PathEscape(conversationID))
	req, err := c.newRequest(ctx, http.MethodGet, path, identityQuery(identity), nil)
	if err != nil {
		return nil, err
	}

	var body struct {
		Messages []domain.Message `json:"messages"`
	}
	if err := c.do("list messages", req, &body); err != nil {
		return nil, err
	}
	return body.Messages, nil
}

type sendMessageRequest struct {
	Message        string `json:"message"`
	UserType       string `json:"userType"`
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId,omitempty"`
}

// SendMessage submits a user message. An empty conversationID asks the
// service to create a new conversation; the returned id is always set.
// Failures are single-attempt: retrying an interactive send is the user's
// call, not the gateway's.
func (c *Client) SendMessage(ctx context.Context, identity domain.Identity, conversationID, text string) (*SendResult, error) {
	payload := sendMessageRequest{
		Message:        text,
		UserType:       string(identity.Role),
		UserID:         identity.UserID.String(),
		ConversationID: conversationID,
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/messages", nil, payload)
	if err != nil {
		return nil, err
	}

	var result SendResult
	if err := c.do("send message", req, &result); err != nil {
		return nil, err
	}
	if result.ConversationID == "" {
		return nil, &NetworkError{Op: "send message", Err: fmt.Errorf("response missing conversation id")}
	}
	return &result, nil
}

// DeleteConversation removes a conversation. A 404 means it is already gone
// and is reported as success, so callers can treat deletion as idempotent.
func (c *Client) DeleteConversation(ctx context.Context, identity domain.Identity, conversationID string) error {
	path := "/conversations/" + url.PathEscape(conversationID)
	req, err := c.newRequest(ctx, http.MethodDelete, path, identityQuery(identity), nil)
	if err != nil {
		return err
	}

	err = c.do("delete conversation", req, nil)
	var netErr *NetworkError
	if errors.As(err, &netErr) && netErr.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}

// CurrentIdentity resolves the bearer token into a chat identity.
func (c *Client) CurrentIdentity(ctx context.Context) (*domain.Identity, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/auth/me", nil, nil)
	if err != nil {
		return nil, err
	}

	var identity domain.Identity
	if err := c.do("current identity", req, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// Login exchanges credentials for a token pair and installs the access token
// on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.TokenPair, error) {
	payload := domain.UserLogin{Email: email, Password: password}
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/login", nil, payload)
	if err != nil {
		return nil, err
	}

	var body struct {
		Success bool             `json:"success"`
		Data    domain.TokenPair `json:"data"`
	}
	if err := c.do("login", req, &body); err != nil {
		return nil, err
	}
	c.token = body.Data.AccessToken
	return &body.Data, nil
}
