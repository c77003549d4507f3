// Package service holds the shared message use case: the single code path
// through which both the REST API and the real-time gateway create and
// mutate messages.
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nyirinkindi/eshuri-messaging/internal/directory"
	"github.com/nyirinkindi/eshuri-messaging/internal/domain"
	"github.com/nyirinkindi/eshuri-messaging/internal/metrics"
	"github.com/nyirinkindi/eshuri-messaging/internal/repository"
)

// EventSink receives lifecycle notifications after durable writes. May be nil.
type EventSink interface {
	MessageCreated(ctx context.Context, m *domain.Message) error
	MessageRead(ctx context.Context, conversationID, userID string, count int64) error
}

// ConversationEntry is one row of a user's conversation list.
type ConversationEntry struct {
	ConversationID string             `json:"conversation_id"`
	LastMessage    *domain.Message    `json:"last_message"`
	UnreadCount    int64              `json:"unread_count"`
	Participant    *directory.Profile `json:"participant,omitempty"`
}

type MessageService struct {
	store  repository.MessageStore
	dir    directory.Directory
	events EventSink
	log    *zap.SugaredLogger
}

func NewMessageService(store repository.MessageStore, dir directory.Directory, events EventSink, log *zap.SugaredLogger) *MessageService {
	return &MessageService{store: store, dir: dir, events: events, log: log}
}

// SendMessage validates the draft, checks both participants against the user
// directory, derives the conversation id and persists the message. This is
// the only path that constructs a persisted message; every transport calls
// it so validation and identity derivation never diverge.
func (s *MessageService) SendMessage(ctx context.Context, d domain.Draft) (*domain.Message, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.dir.GetUser(ctx, d.SenderID); err != nil {
		return nil, fmt.Errorf("sender: %w", err)
	}
	if _, err := s.dir.GetUser(ctx, d.RecipientID); err != nil {
		return nil, fmt.Errorf("recipient: %w", err)
	}

	convID, err := domain.ConversationID(d.SenderID, d.RecipientID)
	if err != nil {
		return nil, err
	}

	m, err := s.store.Create(ctx, &domain.Message{
		ConversationID: convID,
		SenderID:       d.SenderID,
		RecipientID:    d.RecipientID,
		Body:           d.Body,
		Type:           d.Type,
		Attachment:     d.Attachment,
	})
	if err != nil {
		return nil, err
	}
	metrics.MessagesCreated.Inc()

	if s.events != nil {
		if err := s.events.MessageCreated(ctx, m); err != nil {
			s.log.Warnw("publish message.created", "message_id", m.ID, "error", err)
		}
	}
	return m, nil
}

// Window returns one page of a conversation, newest-first. Page numbers
// start at 1.
func (s *MessageService) Window(ctx context.Context, conversationID string, page, limit int64, includeDeleted bool) ([]*domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	return s.store.FetchWindow(ctx, conversationID, limit, (page-1)*limit, includeDeleted)
}

func (s *MessageService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.store.UnreadCount(ctx, userID)
}

// MarkConversationRead marks all unread messages addressed to userID in the
// conversation. Idempotent; returns how many messages were affected.
func (s *MessageService) MarkConversationRead(ctx context.Context, conversationID, userID string) (int64, error) {
	n, err := s.store.MarkRead(ctx, conversationID, userID)
	if err != nil {
		return 0, err
	}
	if n > 0 && s.events != nil {
		if err := s.events.MessageRead(ctx, conversationID, userID, n); err != nil {
			s.log.Warnw("publish message.read", "conversation_id", conversationID, "error", err)
		}
	}
	return n, nil
}

// MarkMessageRead marks a single message read on behalf of readerID
// (real-time read receipts). ErrNotFound when the message does not exist or
// readerID is not its recipient.
func (s *MessageService) MarkMessageRead(ctx context.Context, messageID, readerID string) (*domain.Message, error) {
	return s.store.MarkMessageRead(ctx, messageID, readerID)
}

// Delete soft-deletes a message for userID.
func (s *MessageService) Delete(ctx context.Context, messageID, userID string) (*domain.Message, error) {
	return s.store.SoftDelete(ctx, messageID, userID)
}

func (s *MessageService) Search(ctx context.Context, userID, term string, page, limit int64) ([]*domain.Message, error) {
	if limit <= 0 {
		limit = 20
	}
	if page <= 0 {
		page = 1
	}
	return s.store.Search(ctx, userID, term, limit, (page-1)*limit)
}

// ListConversations aggregates the user's conversations and resolves the
// other participant's profile. A missing profile does not fail the listing.
func (s *MessageService) ListConversations(ctx context.Context, userID string) ([]ConversationEntry, error) {
	summaries, err := s.store.ListConversations(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]ConversationEntry, 0, len(summaries))
	for _, cs := range summaries {
		entry := ConversationEntry{
			ConversationID: cs.ConversationID,
			LastMessage:    cs.LastMessage,
			UnreadCount:    cs.UnreadCount,
		}
		other := cs.LastMessage.OtherParticipant(userID)
		profile, err := s.dir.GetUser(ctx, other)
		if err != nil {
			s.log.Warnw("resolve participant", "user_id", other, "error", err)
		} else {
			entry.Participant = profile
		}
		out = append(out, entry)
	}
	return out, nil
}
