package repository

import (
	"context"

	"github.com/nyirinkindi/eshuri-messaging/internal/domain"
)

// ConversationSummary is one entry of a per-user conversation list: the most
// recent non-deleted message plus the user's unread count for that thread.
type ConversationSummary struct {
	ConversationID string          `bson:"_id" json:"conversation_id"`
	LastMessage    *domain.Message `bson:"last_message" json:"last_message"`
	UnreadCount    int64           `bson:"unread_count" json:"unread_count"`
}

// MessageStore persists messages and their read/delete state. Implemented by
// the Mongo repository in production and by the in-memory store in tests.
type MessageStore interface {
	// Create persists m, assigning ID and CreatedAt. No partial writes:
	// on error nothing is stored.
	Create(ctx context.Context, m *domain.Message) (*domain.Message, error)

	// FetchWindow returns messages of a conversation newest-first,
	// paginated by limit/skip. Fully-deleted messages are excluded unless
	// includeDeleted is set.
	FetchWindow(ctx context.Context, conversationID string, limit, skip int64, includeDeleted bool) ([]*domain.Message, error)

	// UnreadCount counts non-deleted unread messages addressed to userID.
	UnreadCount(ctx context.Context, userID string) (int64, error)

	// MarkRead atomically marks every unread message addressed to userID
	// in the conversation as read. Idempotent; returns the number of
	// messages affected.
	MarkRead(ctx context.Context, conversationID, userID string) (int64, error)

	// MarkMessageRead marks a single message addressed to recipientID as
	// read and returns it. ErrNotFound when the message does not exist or
	// recipientID is not its recipient.
	MarkMessageRead(ctx context.Context, messageID, recipientID string) (*domain.Message, error)

	// SoftDelete adds userID to the message's deleted_by set. Once both
	// participants are present the message becomes fully deleted. Returns
	// the updated message.
	SoftDelete(ctx context.Context, messageID, userID string) (*domain.Message, error)

	// Search matches term case-insensitively against bodies of non-deleted
	// messages where userID is a participant, newest-first.
	Search(ctx context.Context, userID, term string, limit, skip int64) ([]*domain.Message, error)

	// ListConversations groups the user's non-deleted messages by
	// conversation, newest conversation first.
	ListConversations(ctx context.Context, userID string) ([]*ConversationSummary, error)
}
