package ws

import (
	"encoding/json"
	"time"

	"github.com/nyirinkindi/eshuri-messaging/internal/domain"
)

// Client → server event types.
const (
	EventJoin        = "join"
	EventLeave       = "leave"
	EventNewMessage  = "new_message"
	EventTyping      = "typing"
	EventStopTyping  = "stop_typing"
	EventMessageRead = "message_read"
)

// Server → client event types. EventNewMessage is reused for delivery to the
// recipient.
const (
	EventMsgSent     = "msg_sent"
	EventMsgFailed   = "msg_failed"
	EventUserTyping  = "user_typing"
	EventReadReceipt = "message_read_receipt"
)

// Envelope is the wire format for every gateway event. Payloads are decoded
// per event type at the boundary; unknown types are rejected before they can
// reach the message use case.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// --- client → server payloads ---

type JoinPayload struct {
	MyID string `json:"myID"`
}

type NewMessagePayload struct {
	From        string `json:"from"`
	Dest        string `json:"dest"`
	Msg         string `json:"msg"`
	MessageType string `json:"messageType,omitempty"`
	Attachment  string `json:"attachment,omitempty"`
}

type TypingPayload struct {
	From string `json:"from"`
	Dest string `json:"dest"`
}

// ReadPayload reports a message as read. ReadBy is overwritten with the
// authenticated subject before it is acted on.
type ReadPayload struct {
	MessageID string `json:"messageId"`
	ReadBy    string `json:"readBy"`
}

// --- server → client payloads ---

type MessagePayload struct {
	*domain.Message
}

// FailedPayload echoes the rejected submission with the failure reason, so
// the client can retry or surface the error.
type FailedPayload struct {
	NewMessagePayload
	Error string `json:"error"`
}

type UserTypingPayload struct {
	From     string `json:"from"`
	IsTyping bool   `json:"isTyping"`
}

type ReadReceiptPayload struct {
	MessageID string     `json:"messageId"`
	ReadBy    string     `json:"readBy"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
}

func newEvent(eventType string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: eventType, Payload: b}, nil
}
