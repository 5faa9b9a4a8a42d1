package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"waypost.app/internal/auth"
	"waypost.app/internal/messaging"
	"waypost.app/internal/notify"
)

// stubVerifier accepts tokens it was seeded with and maps them to a
// subject; everything else is rejected as invalid.
type stubVerifier struct {
	subjects map[string]string
	err      error
}

func (v *stubVerifier) Validate(_ context.Context, token string) (*auth.Claims, error) {
	if v.err != nil {
		return nil, v.err
	}
	subject, ok := v.subjects[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: subject}}, nil
}

type memMessages struct {
	mu     sync.Mutex
	stored []*messaging.Message
	err    error
}

func (m *memMessages) CreateMessage(_ context.Context, senderID, receiverID, content string) (*messaging.Message, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := &messaging.Message{
		ID:         "msg-1",
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  time.Now(),
	}
	m.stored = append(m.stored, msg)
	return msg, nil
}

func (m *memMessages) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stored)
}

type memNotify struct {
	mu      sync.Mutex
	created []*notify.Notification
	err     error
	done    chan struct{}
}

func (n *memNotify) Create(_ context.Context, userID, typ, entityID string, metadata map[string]string) (*notify.Notification, error) {
	defer func() {
		if n.done != nil {
			close(n.done)
		}
	}()
	if n.err != nil {
		return nil, n.err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	rec := &notify.Notification{
		ID:        "notif-1",
		UserID:    userID,
		Type:      typ,
		EntityID:  entityID,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
	n.created = append(n.created, rec)
	return rec, nil
}

func newTestGateway(opts ...Option) (*Gateway, *memMessages, *memNotify) {
	verifier := &stubVerifier{subjects: map[string]string{
		"token-alice": "alice",
		"token-bob":   "bob",
	}}
	messages := &memMessages{}
	notifications := &memNotify{}
	return NewGateway(verifier, messages, notifications, opts...), messages, notifications
}

// connectChat joins the chat namespace and drains the connection's own
// user:online broadcast so tests only see events about other users.
func connectChat(t *testing.T, g *Gateway, ctx context.Context, token string) *Conn {
	t.Helper()
	conn, err := g.Connect(ctx, token)
	require.NoError(t, err)
	evt := recvEnvelope(t, conn.Events)
	require.Equal(t, EventUserOnline, evt.Event)
	require.Equal(t, PresencePayload{UserID: conn.UserID}, evt.Data)
	return conn
}

func TestConnectRejectsBadToken(t *testing.T) {
	g, _, _ := newTestGateway()

	_, err := g.Connect(context.Background(), "token-forged")
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestConnectFailsClosedOnVerifierError(t *testing.T) {
	messages := &memMessages{}
	g := NewGateway(&stubVerifier{err: errors.New("revocation check: cache down")}, messages, &memNotify{})

	_, err := g.Connect(context.Background(), "token-alice")
	require.Error(t, err)
	require.NotErrorIs(t, err, auth.ErrInvalidToken)
}

func TestConnectBroadcastsPresence(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, _, _ := newTestGateway()

	alice := connectChat(t, g, ctx, "token-alice")
	require.Equal(t, "alice", alice.UserID)

	bob := connectChat(t, g, ctx, "token-bob")

	// Alice sees bob come online.
	evt := recvEnvelope(t, alice.Events)
	require.Equal(t, EventUserOnline, evt.Event)
	require.Equal(t, PresencePayload{UserID: "bob"}, evt.Data)

	g.Disconnect(bob)
	evt = recvEnvelope(t, alice.Events)
	require.Equal(t, EventUserOffline, evt.Event)
	require.Equal(t, PresencePayload{UserID: "bob"}, evt.Data)
}

func TestStaleDisconnectKeepsUserOnline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, _, _ := newTestGateway()

	alice := connectChat(t, g, ctx, "token-alice")

	bobOld := connectChat(t, g, ctx, "token-bob")
	recvEnvelope(t, alice.Events) // bob online

	// Reconnect while still online: no rebroadcast.
	bobNew, err := g.Connect(ctx, "token-bob")
	require.NoError(t, err)
	requireNoEnvelope(t, alice.Events)

	// The old connection tears down after the reconnect already replaced it.
	g.Disconnect(bobOld)
	requireNoEnvelope(t, alice.Events)

	g.Disconnect(bobNew)
	evt := recvEnvelope(t, alice.Events)
	require.Equal(t, EventUserOffline, evt.Event)
}

func TestReconnectDoesNotRebroadcastOnline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, _, _ := newTestGateway()

	alice := connectChat(t, g, ctx, "token-alice")
	connectChat(t, g, ctx, "token-bob")
	recvEnvelope(t, alice.Events) // bob online

	for i := 0; i < 2; i++ {
		_, err := g.Connect(ctx, "token-bob")
		require.NoError(t, err)
		requireNoEnvelope(t, alice.Events)
	}
}

func TestSendMessagePushesToConnectedRecipient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, messages, _ := newTestGateway()

	alice := connectChat(t, g, ctx, "token-alice")
	bob := connectChat(t, g, ctx, "token-bob")
	recvEnvelope(t, alice.Events) // bob online

	msg, err := g.SendMessage(ctx, alice.UserID, SendMessagePayload{ReceiverID: "bob", Content: "hello"})
	require.NoError(t, err)
	require.Equal(t, "alice", msg.SenderID)
	require.Equal(t, 1, messages.count())

	evt := recvEnvelope(t, bob.Events)
	require.Equal(t, EventMessageReceive, evt.Event)
	pushed, ok := evt.Data.(*messaging.Message)
	require.True(t, ok)
	require.Equal(t, msg.ID, pushed.ID)
	require.Equal(t, "hello", pushed.Content)
}

func TestSendMessagePersistsForOfflineRecipient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, messages, _ := newTestGateway()

	alice := connectChat(t, g, ctx, "token-alice")

	msg, err := g.SendMessage(ctx, alice.UserID, SendMessagePayload{ReceiverID: "bob", Content: "hello"})
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.Equal(t, 1, messages.count())
}

func TestSendMessageValidation(t *testing.T) {
	g, messages, _ := newTestGateway()
	ctx := context.Background()

	_, err := g.SendMessage(ctx, "", SendMessagePayload{ReceiverID: "bob", Content: "x"})
	require.ErrorIs(t, err, ErrNoIdentity)

	var payloadErr *PayloadError
	_, err = g.SendMessage(ctx, "alice", SendMessagePayload{Content: "x"})
	require.ErrorAs(t, err, &payloadErr)
	require.Equal(t, "receiverId", payloadErr.Field)

	_, err = g.SendMessage(ctx, "alice", SendMessagePayload{ReceiverID: "bob"})
	require.ErrorAs(t, err, &payloadErr)
	require.Equal(t, "content", payloadErr.Field)

	require.Equal(t, 0, messages.count())
}

func TestSendMessagePassesDomainErrorsThrough(t *testing.T) {
	verifier := &stubVerifier{subjects: map[string]string{"token-alice": "alice"}}
	messages := &memMessages{err: messaging.ErrReceiverNotFound}
	g := NewGateway(verifier, messages, &memNotify{})

	_, err := g.SendMessage(context.Background(), "alice", SendMessagePayload{ReceiverID: "ghost", Content: "x"})
	require.ErrorIs(t, err, messaging.ErrReceiverNotFound)
}

func TestTypingRoutedToRecipient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, _, _ := newTestGateway()

	bob := connectChat(t, g, ctx, "token-bob")

	require.NoError(t, g.Typing("alice", "bob", true))
	evt := recvEnvelope(t, bob.Events)
	require.Equal(t, EventTypingStart, evt.Event)
	require.Equal(t, TypingPayload{SenderID: "alice"}, evt.Data)

	require.NoError(t, g.Typing("alice", "bob", false))
	evt = recvEnvelope(t, bob.Events)
	require.Equal(t, EventTypingStop, evt.Event)

	// Offline recipient: silently dropped, still no error.
	require.NoError(t, g.Typing("alice", "carol", true))
}

func TestReadReceiptRoutedToAuthor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, _, _ := newTestGateway()

	alice := connectChat(t, g, ctx, "token-alice")

	require.NoError(t, g.Read("bob", "alice", "msg-1"))
	evt := recvEnvelope(t, alice.Events)
	require.Equal(t, EventMessageRead, evt.Event)
	require.Equal(t, ReadPayload{MessageID: "msg-1", ReaderID: "bob"}, evt.Data)
}

func TestConnectNotificationsWithToken(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, _, _ := newTestGateway()

	conn, err := g.ConnectNotifications(ctx, "token-alice", "")
	require.NoError(t, err)
	require.Equal(t, "alice", conn.UserID)
	require.Equal(t, NamespaceNotifications, conn.Namespace)

	require.True(t, g.Push("alice", EventNotification, "ping"))
	evt := recvEnvelope(t, conn.Events)
	require.Equal(t, EventNotification, evt.Event)

	require.False(t, g.Push("nobody", EventNotification, "ping"))
}

func TestConnectNotificationsDevFallback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	strict, _, _ := newTestGateway()
	_, err := strict.ConnectNotifications(ctx, "", "alice")
	require.ErrorIs(t, err, auth.ErrUnauthorized)

	dev, _, _ := newTestGateway(WithDevNotificationAuth())
	conn, err := dev.ConnectNotifications(ctx, "", "alice")
	require.NoError(t, err)
	require.Equal(t, "alice", conn.UserID)
}

func TestNotificationRoomIsolatedFromChat(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, _, _ := newTestGateway()

	chat := connectChat(t, g, ctx, "token-alice")

	require.False(t, g.Push("alice", EventNotification, "ping"))
	requireNoEnvelope(t, chat.Events)
}

func TestNotifyAsyncPersistsAndPushes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	verifier := &stubVerifier{subjects: map[string]string{"token-alice": "alice"}}
	notifications := &memNotify{done: make(chan struct{})}
	g := NewGateway(verifier, &memMessages{}, notifications)

	conn, err := g.ConnectNotifications(ctx, "token-alice", "")
	require.NoError(t, err)

	g.NotifyAsync("alice", "new_follower", "user-9", map[string]string{"followerName": "Bob"})

	select {
	case <-notifications.done:
	case <-time.After(time.Second):
		t.Fatalf("notification store was never called")
	}
	evt := recvEnvelope(t, conn.Events)
	require.Equal(t, EventNotification, evt.Event)
	pushed, ok := evt.Data.(*notify.Notification)
	require.True(t, ok)
	require.Equal(t, "new_follower", pushed.Type)
}

func TestNotifyAsyncDropsOnStoreFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	verifier := &stubVerifier{subjects: map[string]string{"token-alice": "alice"}}
	notifications := &memNotify{err: errors.New("insert failed"), done: make(chan struct{})}
	g := NewGateway(verifier, &memMessages{}, notifications)

	conn, err := g.ConnectNotifications(ctx, "token-alice", "")
	require.NoError(t, err)

	g.NotifyAsync("alice", "new_follower", "user-9", nil)

	select {
	case <-notifications.done:
	case <-time.After(time.Second):
		t.Fatalf("notification store was never called")
	}
	requireNoEnvelope(t, conn.Events)
}
