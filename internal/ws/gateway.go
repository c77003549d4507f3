// Package ws is the real-time gateway: per-user push channels over
// websockets. Message sends arriving here go through the same use case as
// the REST path; fan-out happens only after durable persistence.
package ws

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/nyirinkindi/eshuri-messaging/internal/domain"
	"github.com/nyirinkindi/eshuri-messaging/internal/metrics"
	"github.com/nyirinkindi/eshuri-messaging/internal/presence"
	"github.com/nyirinkindi/eshuri-messaging/internal/service"
)

const eventTimeout = 5 * time.Second

type Gateway struct {
	hub      *Hub
	svc      *service.MessageService
	presence *presence.Store // optional
	log      *zap.SugaredLogger

	// connected is advisory: metrics only, reset on restart.
	connected atomic.Int64
}

func NewGateway(svc *service.MessageService, pres *presence.Store, log *zap.SugaredLogger) *Gateway {
	return &Gateway{
		hub:      NewHub(),
		svc:      svc,
		presence: pres,
		log:      log,
	}
}

// ConnectedClients returns the advisory connected-client count.
func (g *Gateway) ConnectedClients() int64 { return g.connected.Load() }

// Connected reports whether userID has a joined channel on this instance.
func (g *Gateway) Connected(userID string) bool { return g.hub.Connected(userID) }

// Handle runs a connection's lifecycle. userID is the subject of the
// validated handshake token. Blocks until the connection drops.
func (g *Gateway) Handle(conn *websocket.Conn, userID string) {
	c := newClient(conn, userID)
	go c.writePump()
	c.readPump(g)
}

// NotifyNewMessage fans a persisted message out to its recipient. Used by
// the REST path after a successful send.
func (g *Gateway) NotifyNewMessage(m *domain.Message) bool {
	ev, err := newEvent(EventNewMessage, MessagePayload{m})
	if err != nil {
		return false
	}
	if g.hub.Send(m.RecipientID, ev) {
		metrics.MessagesDelivered.Inc()
		return true
	}
	return false
}

func (g *Gateway) handle(c *Client, env Envelope) {
	switch env.Type {
	case EventJoin:
		g.join(c, env.Payload)
	case EventLeave:
		g.leave(c)
	case EventNewMessage:
		g.newMessage(c, env.Payload)
	case EventTyping:
		g.typing(c, env.Payload, true)
	case EventStopTyping:
		g.typing(c, env.Payload, false)
	case EventMessageRead:
		g.messageRead(c, env.Payload)
	default:
		g.log.Debugw("unknown ws event", "type", env.Type, "user_id", c.userID)
	}
}

func (g *Gateway) join(c *Client, raw json.RawMessage) {
	var p JoinPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.MyID == "" {
		g.log.Warnw("join without myID", "user_id", c.userID)
		return
	}
	if p.MyID != c.userID {
		g.log.Warnw("join id does not match token subject", "claimed", p.MyID, "subject", c.userID)
		return
	}
	if !c.joined.CompareAndSwap(false, true) {
		return
	}
	// A reconnect displaces the previous binding. Release its slot here:
	// once unjoined, the displaced connection's own leave is a no-op.
	if prev := g.hub.Add(c.userID, c); prev != nil && prev.joined.CompareAndSwap(true, false) {
		g.connected.Add(-1)
		metrics.WSConnections.Dec()
	}
	g.connected.Add(1)
	metrics.WSConnections.Inc()

	if g.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()
		if err := g.presence.SetOnline(ctx, c.userID); err != nil {
			g.log.Warnw("presence online", "user_id", c.userID, "error", err)
		}
	}
}

func (g *Gateway) leave(c *Client) {
	if !c.joined.CompareAndSwap(true, false) {
		return
	}
	g.hub.Remove(c.userID, c)
	g.connected.Add(-1)
	metrics.WSConnections.Dec()

	if g.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()
		if err := g.presence.SetOffline(ctx, c.userID); err != nil {
			g.log.Warnw("presence offline", "user_id", c.userID, "error", err)
		}
	}
}

func (g *Gateway) disconnect(c *Client) {
	g.leave(c)
}

func (g *Gateway) refreshPresence(c *Client) {
	if g.presence == nil || !c.joined.Load() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	_ = g.presence.Refresh(ctx, c.userID)
}

// newMessage routes a send through the shared use case. Fan-out to the
// recipient happens only after the message is durably persisted; on any
// failure the sender gets msg_failed with the original payload and nothing
// reaches the recipient.
func (g *Gateway) newMessage(c *Client, raw json.RawMessage) {
	var p NewMessagePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		g.fail(c, p, "malformed new_message payload")
		return
	}
	// The authenticated subject always wins over the claimed sender.
	p.From = c.userID
	if p.Dest == "" || p.Msg == "" {
		g.fail(c, p, "missing required fields (from, dest, msg)")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	m, err := g.svc.SendMessage(ctx, domain.Draft{
		SenderID:    p.From,
		RecipientID: p.Dest,
		Body:        p.Msg,
		Type:        domain.MessageType(p.MessageType),
		Attachment:  p.Attachment,
	})
	if err != nil {
		g.fail(c, p, err.Error())
		return
	}

	g.NotifyNewMessage(m)
	if ack, err := newEvent(EventMsgSent, MessagePayload{m}); err == nil {
		c.sendEvent(ack)
	}
}

func (g *Gateway) typing(c *Client, raw json.RawMessage, isTyping bool) {
	var p TypingPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.Dest == "" {
		return
	}
	ev, err := newEvent(EventUserTyping, UserTypingPayload{From: c.userID, IsTyping: isTyping})
	if err != nil {
		return
	}
	// Ephemeral: not persisted, no ack, no retry.
	g.hub.Send(p.Dest, ev)
}

// messageRead marks a single message read on behalf of the authenticated
// subject. The store only matches messages addressed to that subject, so a
// connection cannot clear read state it does not own. The receipt goes to
// the message's sender.
func (g *Gateway) messageRead(c *Client, raw json.RawMessage) {
	var p ReadPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.MessageID == "" {
		return
	}
	// The authenticated subject always wins over the claimed reader.
	p.ReadBy = c.userID

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	m, err := g.svc.MarkMessageRead(ctx, p.MessageID, p.ReadBy)
	if err != nil {
		g.log.Warnw("mark message read", "message_id", p.MessageID, "read_by", p.ReadBy, "error", err)
		return
	}
	ev, err := newEvent(EventReadReceipt, ReadReceiptPayload{
		MessageID: m.ID,
		ReadBy:    p.ReadBy,
		ReadAt:    m.ReadAt,
	})
	if err != nil {
		return
	}
	g.hub.Send(m.SenderID, ev)
}

func (g *Gateway) fail(c *Client, p NewMessagePayload, reason string) {
	ev, err := newEvent(EventMsgFailed, FailedPayload{NewMessagePayload: p, Error: reason})
	if err != nil {
		return
	}
	c.sendEvent(ev)
}
