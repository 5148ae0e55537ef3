// Package session orchestrates user-visible chat actions: draft creation,
// optimistic sends, draft promotion once the service assigns an id, typing
// reveals, and conversation lifecycle against the remote gateway.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/brightsteps/assistant/internal/domain"
	"github.com/brightsteps/assistant/internal/gateway"
	"github.com/brightsteps/assistant/internal/store"
	"github.com/brightsteps/assistant/internal/typewriter"
)

// draftKey is the store bucket for the single unpersisted draft conversation.
// It never leaves this package; selection state is the public model.
const draftKey = "__draft__"

// FallbackReply is shown in place of the assistant's answer when a send
// fails. The conversation itself is kept intact.
const FallbackReply = "Sorry, I'm having trouble responding right now. Please try again in a moment."

const maxTitleRunes = 30

var (
	// ErrIdentityUnavailable blocks chat actions until an identity resolves.
	ErrIdentityUnavailable = errors.New("chat identity unavailable")
	// ErrNoSelection is returned when sending with no draft or active chat.
	ErrNoSelection = errors.New("no conversation selected")
)

// guestIdentity is used only when the guest fallback is explicitly enabled.
var guestIdentity = domain.Identity{
	UserID: uuid.MustParse("00000000-0000-0000-0000-000000000001"),
	Role:   domain.RoleParent,
	Name:   "Guest",
}

// SelectionKind enumerates the active-chat slot states.
type SelectionKind int

const (
	// NoSelection means no conversation is open.
	NoSelection SelectionKind = iota
	// DraftSelection means an unpersisted new chat is open.
	DraftSelection
	// ActiveSelection means a persisted conversation is open.
	ActiveSelection
)

// Selection is the tagged active-chat state. ConversationID is set only for
// ActiveSelection.
type Selection struct {
	Kind           SelectionKind
	ConversationID string
}

// RevealObserver is notified as a typing reveal progresses, letting a view
// render incremental output. done is true exactly once per completed reveal.
type RevealObserver func(conversationKey string, messageID uuid.UUID, partial string, done bool)

// Option configures a Controller.
type Option func(*Controller)

// WithGuestFallback substitutes a fixed guest identity when identity
// resolution fails. Meant for demo environments only.
func WithGuestFallback() Option {
	return func(c *Controller) { c.allowGuest = true }
}

// WithRevealObserver installs a view callback for typing reveals.
func WithRevealObserver(fn RevealObserver) Option {
	return func(c *Controller) { c.observer = fn }
}

// WithIdentity sets a pre-resolved identity.
func WithIdentity(identity domain.Identity) Option {
	return func(c *Controller) { c.identity = &identity }
}

// Controller owns the conversation session state. All exported methods are
// safe for concurrent use; the store is the only thing the view reads.
type Controller struct {
	gw gateway.ConversationGateway
	st *store.ConversationStore
	tw *typewriter.Typewriter

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu         sync.Mutex
	identity   *domain.Identity
	selection  Selection
	loading    bool
	allowGuest bool
	observer   RevealObserver
	reveals    map[string]map[uuid.UUID]context.CancelFunc
}

// NewController creates a session controller over the given gateway, store
// and typewriter.
func NewController(gw gateway.ConversationGateway, st *store.ConversationStore, tw *typewriter.Typewriter, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		gw:         gw,
		st:         st,
		tw:         tw,
		baseCtx:    ctx,
		baseCancel: cancel,
		reveals:    make(map[string]map[uuid.UUID]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResolveIdentity fetches the caller's identity. On failure the controller
// stays identity-less and chat actions return ErrIdentityUnavailable, unless
// the guest fallback was enabled.
func (c *Controller) ResolveIdentity(ctx context.Context, ig gateway.IdentityGateway) error {
	identity, err := ig.CurrentIdentity(ctx)
	if err != nil {
		if c.allowGuest {
			log.Warn().Err(err).Msg("identity unavailable, continuing as guest")
			c.mu.Lock()
			id := guestIdentity
			c.identity = &id
			c.mu.Unlock()
			return nil
		}
		log.Warn().Err(err).Msg("identity unavailable, chat actions blocked")
		return fmt.Errorf("resolve identity: %w", err)
	}

	c.mu.Lock()
	c.identity = identity
	c.mu.Unlock()
	return nil
}

// Identity returns the resolved identity, if any.
func (c *Controller) Identity() (domain.Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil {
		return domain.Identity{}, false
	}
	return *c.identity, true
}

func (c *Controller) currentIdentity() (domain.Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil {
		return domain.Identity{}, ErrIdentityUnavailable
	}
	return *c.identity, nil
}

// CreateNewChat opens a fresh draft, discarding any previous draft buffer.
// Only one draft exists at a time.
func (c *Controller) CreateNewChat() {
	c.mu.Lock()
	c.selection = Selection{Kind: DraftSelection}
	c.mu.Unlock()
	c.st.RemoveConversation(draftKey)
}

// SelectChat opens a persisted conversation, hydrates its transcript from
// the service and clears its unread count. A fetch failure leaves whatever
// transcript was already loaded untouched.
func (c *Controller) SelectChat(ctx context.Context, conversationID string) error {
	identity, err := c.currentIdentity()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.selection = Selection{Kind: ActiveSelection, ConversationID: conversationID}
	c.mu.Unlock()

	messages, err := c.gw.ListMessages(ctx, identity, conversationID)
	if err != nil {
		log.Warn().Err(err).Str("conversation", conversationID).Msg("failed to load transcript, keeping prior state")
	} else {
		c.st.SetMessages(conversationID, messages)
	}

	c.st.MarkRead(conversationID)
	return nil
}

// Refresh reloads the chat list. A fetch failure leaves the prior list
// untouched; unread counts survive a successful refresh.
func (c *Controller) Refresh(ctx context.Context) error {
	identity, err := c.currentIdentity()
	if err != nil {
		return err
	}

	conversations, err := c.gw.ListConversations(ctx, identity)
	if err != nil {
		log.Warn().Err(err).Msg("failed to refresh conversation list, keeping prior state")
		return nil
	}

	entries := make([]store.Entry, 0, len(conversations))
	for _, conv := range conversations {
		entry := store.Entry{
			ID:              conv.ID.String(),
			Title:           conv.Title,
			LastMessage:     conv.LastMessage,
			LastMessageTime: conv.LastMessageTime,
		}
		if prev, ok := c.st.Entry(entry.ID); ok {
			entry.UnreadCount = prev.UnreadCount
		}
		entries = append(entries, entry)
	}
	c.st.SetEntries(entries)
	return nil
}

// SendMessage runs the optimistic send flow: append the user message and a
// typing placeholder immediately, call the service, then either promote the
// draft and reveal the reply, or swap the placeholder for the fallback
// message. Gateway failure degrades locally and is not returned as an error.
func (c *Controller) SendMessage(ctx context.Context, text string) error {
	identity, err := c.currentIdentity()
	if err != nil {
		return err
	}

	c.mu.Lock()
	sel := c.selection
	if sel.Kind == NoSelection {
		c.mu.Unlock()
		return ErrNoSelection
	}
	key := draftKey
	remoteID := ""
	if sel.Kind == ActiveSelection {
		key = sel.ConversationID
		remoteID = sel.ConversationID
	}
	c.loading = true
	c.mu.Unlock()

	now := time.Now()
	userMsg := domain.Message{
		ID:        uuid.New(),
		Sender:    domain.SenderUser,
		Content:   text,
		Timestamp: now,
	}
	c.st.AppendMessage(key, userMsg)
	if sel.Kind == ActiveSelection {
		c.st.UpdateEntry(key, func(e *store.Entry) {
			e.LastMessage = text
			e.LastMessageTime = now
		})
	}

	placeholder := domain.Message{
		ID:        uuid.New(),
		Sender:    domain.SenderAssistant,
		IsTyping:  true,
		Timestamp: now,
	}
	c.st.AppendMessage(key, placeholder)

	result, err := c.gw.SendMessage(ctx, identity, remoteID, text)
	if err != nil {
		log.Warn().Err(err).Msg("send failed, substituting fallback reply")
		c.st.ReplaceMessage(key, placeholder.ID, func(m *domain.Message) {
			m.Content = FallbackReply
			m.IsTyping = false
		})
		c.st.UpdateEntry(key, func(e *store.Entry) {
			e.LastMessage = FallbackReply
			e.LastMessageTime = time.Now()
		})
		c.mu.Lock()
		c.loading = false
		c.mu.Unlock()
		return nil
	}

	c.mu.Lock()
	if sel.Kind == DraftSelection {
		newKey := result.ConversationID
		c.st.PromoteDraft(draftKey, store.Entry{
			ID:              newKey,
			Title:           deriveTitle(text),
			LastMessage:     text,
			LastMessageTime: now,
		})
		// Retarget the visible selection only if the user still has the
		// draft open; they may have switched chats while the send was in
		// flight.
		if c.selection.Kind == DraftSelection {
			c.selection = Selection{Kind: ActiveSelection, ConversationID: newKey}
		}
		key = newKey
	}
	c.loading = false
	c.mu.Unlock()

	c.st.ReplaceMessage(key, placeholder.ID, func(m *domain.Message) {
		m.Content = ""
		m.IsTyping = true
	})
	c.startReveal(key, placeholder.ID, result.Response)
	return nil
}

// DeleteChat removes a conversation remotely and locally. A remote failure
// is surfaced and leaves the conversation in place.
func (c *Controller) DeleteChat(ctx context.Context, conversationID string) error {
	identity, err := c.currentIdentity()
	if err != nil {
		return err
	}

	if err := c.gw.DeleteConversation(ctx, identity, conversationID); err != nil {
		log.Error().Err(err).Str("conversation", conversationID).Msg("failed to delete conversation")
		return fmt.Errorf("delete conversation: %w", err)
	}

	c.cancelReveals(conversationID)
	c.st.RemoveConversation(conversationID)

	c.mu.Lock()
	if c.selection.Kind == ActiveSelection && c.selection.ConversationID == conversationID {
		c.selection = Selection{Kind: NoSelection}
	}
	c.mu.Unlock()
	return nil
}

// RenameChat updates a conversation's title in the local list. No backend
// call; the next list refresh restores the server's title.
func (c *Controller) RenameChat(conversationID, title string) {
	c.st.Rename(conversationID, title)
}

// Selection returns the current active-chat state.
func (c *Controller) Selection() Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection
}

// IsLoading reports whether a send is awaiting the service.
func (c *Controller) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Entries returns the chat list in display order.
func (c *Controller) Entries() []store.Entry {
	return c.st.Entries()
}

// Messages returns the transcript of the current selection.
func (c *Controller) Messages() []domain.Message {
	c.mu.Lock()
	sel := c.selection
	c.mu.Unlock()

	switch sel.Kind {
	case DraftSelection:
		return c.st.Messages(draftKey)
	case ActiveSelection:
		return c.st.Messages(sel.ConversationID)
	default:
		return nil
	}
}

// Close cancels all in-flight typing reveals.
func (c *Controller) Close() {
	c.baseCancel()
	c.mu.Lock()
	c.reveals = make(map[string]map[uuid.UUID]context.CancelFunc)
	c.mu.Unlock()
}

// startReveal begins a typing reveal for the message, superseding any reveal
// still running in the same conversation.
func (c *Controller) startReveal(key string, messageID uuid.UUID, text string) {
	c.cancelReveals(key)

	obs := c.observer
	tick := func(partial string) {
		c.st.ReplaceMessage(key, messageID, func(m *domain.Message) {
			m.Content = partial
		})
		if obs != nil {
			obs(key, messageID, partial, false)
		}
	}
	done := func(full string) {
		c.mu.Lock()
		active := c.selection.Kind == ActiveSelection && c.selection.ConversationID == key
		if m, ok := c.reveals[key]; ok {
			delete(m, messageID)
			if len(m) == 0 {
				delete(c.reveals, key)
			}
		}
		c.mu.Unlock()

		now := time.Now()
		c.st.UpdateEntry(key, func(e *store.Entry) {
			e.LastMessage = full
			e.LastMessageTime = now
			if !active {
				e.UnreadCount++
			}
		})
		c.st.ReplaceMessage(key, messageID, func(m *domain.Message) {
			m.Content = full
			m.IsTyping = false
		})
		if obs != nil {
			obs(key, messageID, full, true)
		}
	}

	cancel := c.tw.Start(c.baseCtx, text, tick, done)

	c.mu.Lock()
	if c.reveals[key] == nil {
		c.reveals[key] = make(map[uuid.UUID]context.CancelFunc)
	}
	c.reveals[key][messageID] = cancel
	c.mu.Unlock()
}

// cancelReveals stops every reveal still running in the conversation and
// removes the superseded messages from the transcript. A superseded reveal
// must never leave a frozen partial behind.
func (c *Controller) cancelReveals(key string) {
	c.mu.Lock()
	cancels := c.reveals[key]
	delete(c.reveals, key)
	c.mu.Unlock()

	for messageID, cancel := range cancels {
		cancel()
		c.st.RemoveMessage(key, messageID)
	}
}

// deriveTitle builds a list title from the first user message.
func deriveTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= maxTitleRunes {
		return text
	}
	return string(runes[:maxTitleRunes]) + "..."
}
