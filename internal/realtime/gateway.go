package realtime

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"waypost.app/internal/auth"
	"waypost.app/internal/messaging"
	"waypost.app/internal/notify"
	"waypost.app/internal/obs"
	"waypost.app/internal/registry"
)

// Namespace names, used for registries and metrics labels.
const (
	NamespaceChat          = "chat"
	NamespaceNotifications = "notifications"
)

var (
	// ErrNoIdentity rejects actions on a connection that never attached an
	// authenticated identity.
	ErrNoIdentity = errors.New("realtime: connection has no authenticated identity")

	// ErrNoSubject means the verified token carried no usable subject claim.
	ErrNoSubject = errors.New("realtime: token has no subject")
)

// TokenVerifier is the slice of the session service the gateway needs.
type TokenVerifier interface {
	Validate(ctx context.Context, token string) (*auth.Claims, error)
}

// Conn is one authenticated realtime connection.
type Conn struct {
	ID        string
	UserID    string
	Namespace string
	Events    <-chan Envelope
}

// Gateway authenticates realtime connections, keeps the per-namespace
// registries, and routes events. Message and notification durability
// belong to the collaborators; the gateway's push is best-effort.
type Gateway struct {
	verifier      TokenVerifier
	chatHub       *Hub
	notifHub      *Hub
	chat          *registry.Registry
	notifications *registry.Registry
	messages      messaging.Store
	notifyStore   notify.Store
	devNotifyAuth bool
	log           *zap.Logger
}

// Option configures the Gateway.
type Option func(*Gateway)

// WithDevNotificationAuth permits notification registration by raw user
// id, without a token. Acceptable for local development only.
func WithDevNotificationAuth() Option {
	return func(g *Gateway) { g.devNotifyAuth = true }
}

// WithLogger attaches a logger.
func WithLogger(log *zap.Logger) Option {
	return func(g *Gateway) {
		if log != nil {
			g.log = log
		}
	}
}

// NewGateway wires the gateway to its collaborators.
func NewGateway(verifier TokenVerifier, messages messaging.Store, notifyStore notify.Store, opts ...Option) *Gateway {
	g := &Gateway{
		verifier:      verifier,
		chatHub:       NewHub(),
		notifHub:      NewHub(),
		chat:          registry.New(),
		notifications: registry.New(),
		messages:      messages,
		notifyStore:   notifyStore,
		log:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Connect authenticates a chat connection. Verification failure (bad
// signature, expired, revoked, or an unreachable revocation cache)
// terminates the connect with no further processing. user:online is
// broadcast only on the offline-to-online transition, mirroring the
// wentOffline guard in Disconnect: a fast reconnect is not news.
func (g *Gateway) Connect(ctx context.Context, token string) (*Conn, error) {
	claims, err := g.verifier.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	subject := claims.PrimarySubject()
	if subject == "" {
		return nil, ErrNoSubject
	}

	connID := uuid.NewString()
	events := g.chatHub.Subscribe(ctx, connID)
	cameOnline := g.chat.Register(subject, connID)
	obs.RealtimeConnections.WithLabelValues(NamespaceChat).Inc()

	if cameOnline {
		g.chatHub.Broadcast(Envelope{Event: EventUserOnline, Data: PresencePayload{UserID: subject}})
	}
	g.log.Debug("realtime connect",
		zap.String("namespace", NamespaceChat), zap.String("user_id", subject))

	return &Conn{ID: connID, UserID: subject, Namespace: NamespaceChat, Events: events}, nil
}

// Disconnect tears down a chat connection. Connections that never carried
// an identity produce no side effects. A stale disconnect whose registry
// entry was already replaced by a fast reconnect does not announce the
// user offline: they are still online on the newer connection.
func (g *Gateway) Disconnect(conn *Conn) {
	if conn == nil {
		return
	}
	obs.RealtimeConnections.WithLabelValues(conn.Namespace).Dec()
	if conn.UserID == "" {
		return
	}
	switch conn.Namespace {
	case NamespaceChat:
		if g.chat.Unregister(conn.UserID, conn.ID) {
			g.chatHub.Broadcast(Envelope{Event: EventUserOffline, Data: PresencePayload{UserID: conn.UserID}})
		}
	case NamespaceNotifications:
		g.notifications.Unregister(conn.UserID, conn.ID)
	}
}

// SendMessage handles message:send. Persist first, then push to the
// recipient if connected, and always return the stored record so the
// sender acks against the authoritative copy, not an optimistic one.
// Domain errors from the message store pass through unchanged.
func (g *Gateway) SendMessage(ctx context.Context, senderID string, p SendMessagePayload) (*messaging.Message, error) {
	if strings.TrimSpace(senderID) == "" {
		return nil, ErrNoIdentity
	}
	if strings.TrimSpace(p.ReceiverID) == "" {
		return nil, &PayloadError{Field: "receiverId", Reason: "is required"}
	}
	if strings.TrimSpace(p.Content) == "" {
		return nil, &PayloadError{Field: "content", Reason: "is required"}
	}

	msg, err := g.messages.CreateMessage(ctx, senderID, p.ReceiverID, p.Content)
	if err != nil {
		return nil, err
	}
	if connID, ok := g.chat.Lookup(msg.ReceiverID); ok {
		g.chatHub.SendTo(connID, Envelope{Event: EventMessageReceive, Data: msg})
	}
	return msg, nil
}

// Typing routes a typing indicator to the recipient's current connection.
// Fire-and-forget: offline recipients simply miss it.
func (g *Gateway) Typing(senderID, receiverID string, start bool) error {
	if strings.TrimSpace(senderID) == "" {
		return ErrNoIdentity
	}
	if strings.TrimSpace(receiverID) == "" {
		return &PayloadError{Field: "receiverId", Reason: "is required"}
	}
	event := EventTypingStart
	if !start {
		event = EventTypingStop
	}
	if connID, ok := g.chat.Lookup(receiverID); ok {
		g.chatHub.SendTo(connID, Envelope{Event: event, Data: TypingPayload{SenderID: senderID}})
	}
	return nil
}

// Read forwards a read receipt to the message author's current
// connection. No persistence, silently dropped when they are offline.
func (g *Gateway) Read(readerID, authorID, messageID string) error {
	if strings.TrimSpace(readerID) == "" {
		return ErrNoIdentity
	}
	if strings.TrimSpace(authorID) == "" {
		return &PayloadError{Field: "senderId", Reason: "is required"}
	}
	if connID, ok := g.chat.Lookup(authorID); ok {
		g.chatHub.SendTo(connID, Envelope{Event: EventMessageRead, Data: ReadPayload{
			MessageID: messageID,
			ReaderID:  readerID,
		}})
	}
	return nil
}

// ConnectNotifications joins the notification room for the verified
// subject. When dev auth is enabled a raw user id is accepted instead of
// a token; never rely on that in production.
func (g *Gateway) ConnectNotifications(ctx context.Context, token, rawUserID string) (*Conn, error) {
	var subject string
	switch {
	case strings.TrimSpace(token) != "":
		claims, err := g.verifier.Validate(ctx, token)
		if err != nil {
			return nil, err
		}
		subject = claims.PrimarySubject()
		if subject == "" {
			return nil, ErrNoSubject
		}
	case g.devNotifyAuth && strings.TrimSpace(rawUserID) != "":
		subject = strings.TrimSpace(rawUserID)
		g.log.Warn("notification room joined via raw user id fallback",
			zap.String("user_id", subject))
	default:
		return nil, auth.ErrUnauthorized
	}

	connID := uuid.NewString()
	events := g.notifHub.Subscribe(ctx, connID)
	g.notifications.Register(subject, connID)
	obs.RealtimeConnections.WithLabelValues(NamespaceNotifications).Inc()

	return &Conn{ID: connID, UserID: subject, Namespace: NamespaceNotifications, Events: events}, nil
}

// Push delivers a typed event to the user's notification room, if joined.
func (g *Gateway) Push(userID, event string, data any) bool {
	connID, ok := g.notifications.Lookup(userID)
	if !ok {
		return false
	}
	return g.notifHub.SendTo(connID, Envelope{Event: event, Data: data})
}

// NotifyAsync persists a notification and pushes it to the recipient's
// room, off the caller's request path. Failures are logged and dropped;
// nothing retries the durable record.
func (g *Gateway) NotifyAsync(userID, typ, entityID string, metadata map[string]string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		n, err := g.notifyStore.Create(ctx, userID, typ, entityID, metadata)
		if err != nil {
			g.log.Warn("notification create failed, dropping",
				zap.String("user_id", userID), zap.String("type", typ), zap.Error(err))
			return
		}
		g.Push(userID, EventNotification, n)
	}()
}
