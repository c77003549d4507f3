package domain

import (
	"fmt"
	"strings"
	"time"
)

// MessageType enumerates supported message payload kinds.
type MessageType string

const (
	TypeText  MessageType = "text"
	TypeImage MessageType = "image"
	TypeFile  MessageType = "file"
	TypeVideo MessageType = "video"
	TypeAudio MessageType = "audio"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case TypeText, TypeImage, TypeFile, TypeVideo, TypeAudio:
		return true
	}
	return false
}

// MaxBodyLen is the maximum message body length in characters.
const MaxBodyLen = 5000

// Message is a single direct message between two users. Immutable after
// creation except for read state and the soft-delete markers.
type Message struct {
	ID             string      `bson:"_id,omitempty" json:"id"`
	ConversationID string      `bson:"conversation_id" json:"conversation_id"`
	SenderID       string      `bson:"sender_id" json:"sender_id"`
	RecipientID    string      `bson:"recipient_id" json:"recipient_id"`
	Body           string      `bson:"body" json:"body"`
	Type           MessageType `bson:"type" json:"type"`
	Attachment     string      `bson:"attachment,omitempty" json:"attachment,omitempty"`
	IsRead         bool        `bson:"is_read" json:"is_read"`
	ReadAt         *time.Time  `bson:"read_at,omitempty" json:"read_at,omitempty"`
	IsDeleted      bool        `bson:"is_deleted" json:"is_deleted"`
	DeletedBy      []string    `bson:"deleted_by" json:"deleted_by,omitempty"`
	CreatedAt      time.Time   `bson:"created_at" json:"created_at"`
}

// Draft is an unvalidated message submission, shared by both transports.
type Draft struct {
	SenderID    string
	RecipientID string
	Body        string
	Type        MessageType
	Attachment  string
}

// Validate normalizes the draft and checks every creation-time rule. Non-text
// messages must reference an attachment; text messages must not.
func (d *Draft) Validate() error {
	d.SenderID = strings.TrimSpace(d.SenderID)
	d.RecipientID = strings.TrimSpace(d.RecipientID)
	d.Body = strings.TrimSpace(d.Body)
	d.Attachment = strings.TrimSpace(d.Attachment)
	if d.Type == "" {
		d.Type = TypeText
	}

	if d.SenderID == "" {
		return fmt.Errorf("%w: sender id is required", ErrValidation)
	}
	if d.RecipientID == "" {
		return fmt.Errorf("%w: recipient id is required", ErrValidation)
	}
	if d.SenderID == d.RecipientID {
		return fmt.Errorf("%w: sender and recipient must differ", ErrValidation)
	}
	if d.Body == "" {
		return fmt.Errorf("%w: message body is empty", ErrValidation)
	}
	if len([]rune(d.Body)) > MaxBodyLen {
		return fmt.Errorf("%w: message body exceeds %d characters", ErrValidation, MaxBodyLen)
	}
	if !d.Type.Valid() {
		return fmt.Errorf("%w: unknown message type %q", ErrValidation, d.Type)
	}
	if d.Type != TypeText && d.Attachment == "" {
		return fmt.Errorf("%w: %s message requires an attachment", ErrValidation, d.Type)
	}
	if d.Type == TypeText && d.Attachment != "" {
		return fmt.Errorf("%w: text message must not carry an attachment", ErrValidation)
	}
	return nil
}

// OtherParticipant returns the counterpart of userID in this message.
func (m *Message) OtherParticipant(userID string) string {
	if m.SenderID == userID {
		return m.RecipientID
	}
	return m.SenderID
}

// DeletedFor reports whether userID has soft-deleted this message.
func (m *Message) DeletedFor(userID string) bool {
	for _, id := range m.DeletedBy {
		if id == userID {
			return true
		}
	}
	return false
}
