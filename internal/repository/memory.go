package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nyirinkindi/eshuri-messaging/internal/domain"
)

// MemoryStore is an in-process MessageStore with the same semantics as the
// Mongo implementation. Used by tests and local development.
type MemoryStore struct {
	mu       sync.Mutex
	messages []*domain.Message // insertion order
	byID     map[string]*domain.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*domain.Message)}
}

func (s *MemoryStore) Create(_ context.Context, m *domain.Message) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *m
	stored.ID = uuid.NewString()
	stored.CreatedAt = time.Now().UTC()
	stored.IsRead = false
	stored.ReadAt = nil
	stored.IsDeleted = false
	stored.DeletedBy = append([]string(nil), m.DeletedBy...)

	s.messages = append(s.messages, &stored)
	s.byID[stored.ID] = &stored

	out := stored
	return &out, nil
}

func (s *MemoryStore) FetchWindow(_ context.Context, conversationID string, limit, skip int64, includeDeleted bool) ([]*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := s.collect(func(m *domain.Message) bool {
		if m.ConversationID != conversationID {
			return false
		}
		return includeDeleted || !m.IsDeleted
	})
	return page(matched, limit, skip), nil
}

func (s *MemoryStore) UnreadCount(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, m := range s.messages {
		if m.RecipientID == userID && !m.IsRead && !m.IsDeleted {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) MarkRead(_ context.Context, conversationID, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var n int64
	for _, m := range s.messages {
		if m.ConversationID == conversationID && m.RecipientID == userID && !m.IsRead {
			m.IsRead = true
			at := now
			m.ReadAt = &at
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) MarkMessageRead(_ context.Context, messageID, recipientID string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byID[messageID]
	if !ok || m.RecipientID != recipientID {
		return nil, fmt.Errorf("%w: message %s", domain.ErrNotFound, messageID)
	}
	if !m.IsRead {
		m.IsRead = true
		at := time.Now().UTC()
		m.ReadAt = &at
	}
	out := *m
	return &out, nil
}

func (s *MemoryStore) SoftDelete(_ context.Context, messageID, userID string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byID[messageID]
	if !ok {
		return nil, fmt.Errorf("%w: message %s", domain.ErrNotFound, messageID)
	}
	if !m.DeletedFor(userID) {
		m.DeletedBy = append(m.DeletedBy, userID)
	}
	if m.DeletedFor(m.SenderID) && m.DeletedFor(m.RecipientID) {
		m.IsDeleted = true
	}
	out := *m
	out.DeletedBy = append([]string(nil), m.DeletedBy...)
	return &out, nil
}

func (s *MemoryStore) Search(_ context.Context, userID, term string, limit, skip int64) ([]*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	needle := strings.ToLower(term)
	matched := s.collect(func(m *domain.Message) bool {
		if m.IsDeleted {
			return false
		}
		if m.SenderID != userID && m.RecipientID != userID {
			return false
		}
		return strings.Contains(strings.ToLower(m.Body), needle)
	})
	return page(matched, limit, skip), nil
}

func (s *MemoryStore) ListConversations(_ context.Context, userID string) ([]*ConversationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	groups := map[string]*ConversationSummary{}
	for _, m := range s.messages {
		if m.IsDeleted || (m.SenderID != userID && m.RecipientID != userID) {
			continue
		}
		cs, ok := groups[m.ConversationID]
		if !ok {
			cs = &ConversationSummary{ConversationID: m.ConversationID}
			groups[m.ConversationID] = cs
		}
		// Later insertion wins ties on created_at.
		if cs.LastMessage == nil || !m.CreatedAt.Before(cs.LastMessage.CreatedAt) {
			copied := *m
			cs.LastMessage = &copied
		}
		if m.RecipientID == userID && !m.IsRead {
			cs.UnreadCount++
		}
	}

	out := make([]*ConversationSummary, 0, len(groups))
	for _, cs := range groups {
		out = append(out, cs)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessage.CreatedAt.After(out[j].LastMessage.CreatedAt)
	})
	return out, nil
}

// collect returns copies of matching messages, newest-first with later
// insertions first on equal timestamps.
func (s *MemoryStore) collect(match func(*domain.Message) bool) []*domain.Message {
	out := []*domain.Message{}
	for i := len(s.messages) - 1; i >= 0; i-- {
		if match(s.messages[i]) {
			copied := *s.messages[i]
			copied.DeletedBy = append([]string(nil), s.messages[i].DeletedBy...)
			out = append(out, &copied)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func page(msgs []*domain.Message, limit, skip int64) []*domain.Message {
	if skip >= int64(len(msgs)) {
		return []*domain.Message{}
	}
	msgs = msgs[skip:]
	if limit > 0 && limit < int64(len(msgs)) {
		msgs = msgs[:limit]
	}
	return msgs
}
