package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func recvEnvelope(t *testing.T, ch <-chan Envelope) Envelope {
	t.Helper()
	select {
	case evt, ok := <-ch:
		require.True(t, ok, "channel closed while waiting for event")
		return evt
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
		return Envelope{}
	}
}

func requireNoEnvelope(t *testing.T, ch <-chan Envelope) {
	t.Helper()
	select {
	case evt := <-ch:
		t.Fatalf("unexpected event %q", evt.Event)
	default:
	}
}

func TestHubSendTo(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub()

	alice := h.Subscribe(ctx, "conn-a")
	bob := h.Subscribe(ctx, "conn-b")

	require.True(t, h.SendTo("conn-a", Envelope{Event: EventNotification, Data: "hi"}))
	evt := recvEnvelope(t, alice)
	require.Equal(t, EventNotification, evt.Event)
	requireNoEnvelope(t, bob)

	require.False(t, h.SendTo("conn-missing", Envelope{Event: EventNotification}))
}

func TestHubBroadcast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub()

	alice := h.Subscribe(ctx, "conn-a")
	bob := h.Subscribe(ctx, "conn-b")

	h.Broadcast(Envelope{Event: EventUserOnline, Data: PresencePayload{UserID: "carol"}})

	for _, ch := range []<-chan Envelope{alice, bob} {
		evt := recvEnvelope(t, ch)
		require.Equal(t, EventUserOnline, evt.Event)
	}
}

func TestHubDropsWhenSubscriberFull(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub()

	ch := h.Subscribe(ctx, "conn-a")
	for i := 0; i < subscriberBuffer; i++ {
		require.True(t, h.SendTo("conn-a", Envelope{Event: EventNotification}))
	}
	require.False(t, h.SendTo("conn-a", Envelope{Event: EventNotification}))

	// Broadcast must not block on the full subscriber either.
	done := make(chan struct{})
	go func() {
		h.Broadcast(Envelope{Event: EventUserOnline})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Broadcast blocked on a full subscriber")
	}
	require.Len(t, ch, subscriberBuffer)
}

func TestHubSendToDuringTeardown(t *testing.T) {
	h := NewHub()

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					h.SendTo("conn-a", Envelope{Event: EventNotification})
				}
			}
		}()
	}

	// Churn the same connection through subscribe and teardown while the
	// senders hammer it. A send landing on a just-closed channel would
	// panic the process.
	for i := 0; i < 200; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		h.Subscribe(ctx, "conn-a")
		cancel()
		time.Sleep(100 * time.Microsecond)
	}

	close(done)
	wg.Wait()
}

func TestHubUnsubscribesOnContextEnd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub()

	ch := h.Subscribe(ctx, "conn-a")
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				require.False(t, h.SendTo("conn-a", Envelope{Event: EventNotification}))
				return
			}
		case <-deadline:
			t.Fatalf("channel not closed after context cancel")
		}
	}
}
