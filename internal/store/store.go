// Package store holds the client-side chat state: per-conversation message
// sequences plus the chat-list metadata the view renders. It is the single
// source of truth for the transcript and list views; the session controller
// and the typing renderer are its only writers.
package store

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/brightsteps/assistant/internal/domain"
)

// Entry is the chat-list metadata for one conversation.
type Entry struct {
	ID              string
	Title           string
	LastMessage     string
	LastMessageTime time.Time
	UnreadCount     int
}

// bucket keeps a conversation's messages in insertion order with an id index,
// so typing-reveal updates replace by id in O(1) instead of scanning.
type bucket struct {
	order []uuid.UUID
	byID  map[uuid.UUID]*domain.Message
}

func newBucket() *bucket {
	return &bucket{byID: make(map[uuid.UUID]*domain.Message)}
}

// ConversationStore is the in-memory conversation state. All methods are safe
// for concurrent use; every mutation is visible to readers as soon as the
// method returns.
type ConversationStore struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
	entries []*Entry // display order, most recent first
	index   map[string]*Entry
}

// New creates an empty conversation store.
func New() *ConversationStore {
	return &ConversationStore{
		buckets: make(map[string]*bucket),
		index:   make(map[string]*Entry),
	}
}

// AppendMessage inserts a message at the end of the conversation's sequence,
// creating the sequence if absent.
func (s *ConversationStore) AppendMessage(key string, msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok {
		b = newBucket()
		s.buckets[key] = b
	}
	m := msg
	b.order = append(b.order, m.ID)
	b.byID[m.ID] = &m
}

// ReplaceMessage applies update to the message with the given id. It is a
// no-op when the conversation or message is unknown; a stale reveal ticking
// against a removed placeholder must not fail.
func (s *ConversationStore) ReplaceMessage(key string, id uuid.UUID, update func(*domain.Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok {
		return
	}
	if m, ok := b.byID[id]; ok {
		update(m)
	}
}

// RemoveMessage deletes a single message from a conversation. No-op when
// absent.
func (s *ConversationStore) RemoveMessage(key string, id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok {
		return
	}
	if _, ok := b.byID[id]; !ok {
		return
	}
	delete(b.byID, id)
	for i, mid := range b.order {
		if mid == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// SetMessages replaces a conversation's sequence wholesale, used when
// hydrating a transcript from the server.
func (s *ConversationStore) SetMessages(key string, msgs []domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := newBucket()
	for i := range msgs {
		m := msgs[i]
		b.order = append(b.order, m.ID)
		b.byID[m.ID] = &m
	}
	s.buckets[key] = b
}

// Messages returns a copy of the conversation's messages in insertion order.
func (s *ConversationStore) Messages(key string) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.buckets[key]
	if !ok {
		return nil
	}
	out := make([]domain.Message, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, *b.byID[id])
	}
	return out
}

// MigrateConversation moves an entire message sequence from one key to
// another. Used once per conversation, when a draft is assigned its server
// id. A missing source bucket is a normal state (draft deleted before the
// send resolved), not an error.
func (s *ConversationStore) MigrateConversation(fromKey, toKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.migrateLocked(fromKey, toKey)
}

func (s *ConversationStore) migrateLocked(fromKey, toKey string) {
	b, ok := s.buckets[fromKey]
	if !ok {
		log.Debug().Str("from", fromKey).Str("to", toKey).Msg("migrate: no messages under source key")
		return
	}
	delete(s.buckets, fromKey)
	s.buckets[toKey] = b
}

// PromoteDraft migrates the draft bucket to its server-assigned id and
// inserts the chat-list entry at the front, in one lock region so the view
// never observes a half-promoted conversation.
func (s *ConversationStore) PromoteDraft(fromKey string, entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.migrateLocked(fromKey, entry.ID)
	s.insertFrontLocked(entry)
}

// RemoveConversation deletes a conversation's messages and list entry.
func (s *ConversationStore) RemoveConversation(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.buckets, key)
	if _, ok := s.index[key]; !ok {
		return
	}
	delete(s.index, key)
	for i, e := range s.entries {
		if e.ID == key {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			break
		}
	}
}

// UpsertEntryFront inserts a chat-list entry at the front of the list, or
// updates it in place when already present.
func (s *ConversationStore) UpsertEntryFront(entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertFrontLocked(entry)
}

func (s *ConversationStore) insertFrontLocked(entry Entry) {
	if existing, ok := s.index[entry.ID]; ok {
		*existing = entry
		return
	}
	e := entry
	s.entries = append([]*Entry{&e}, s.entries...)
	s.index[e.ID] = &e
}

// SetEntries replaces the chat list wholesale, preserving nothing. Used when
// hydrating the list from the server.
func (s *ConversationStore) SetEntries(entries []Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = s.entries[:0]
	s.index = make(map[string]*Entry, len(entries))
	for i := range entries {
		e := entries[i]
		s.entries = append(s.entries, &e)
		s.index[e.ID] = &e
	}
}

// UpdateEntry applies update to the chat-list entry for key. No-op when the
// entry is unknown.
func (s *ConversationStore) UpdateEntry(key string, update func(*Entry)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.index[key]; ok {
		update(e)
	}
}

// MarkRead resets a conversation's unread count.
func (s *ConversationStore) MarkRead(key string) {
	s.UpdateEntry(key, func(e *Entry) { e.UnreadCount = 0 })
}

// Rename updates a conversation's display title. Local-only; the list is the
// authority for titles between refreshes.
func (s *ConversationStore) Rename(key, title string) {
	s.UpdateEntry(key, func(e *Entry) { e.Title = title })
}

// Entries returns a copy of the chat list in display order.
func (s *ConversationStore) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	return out
}

// Entry returns the chat-list entry for key.
func (s *ConversationStore) Entry(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.index[key]; ok {
		return *e, true
	}
	return Entry{}, false
}

// HasConversation reports whether any messages exist under key.
func (s *ConversationStore) HasConversation(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.buckets[key]
	return ok
}
