// Package messaging is the durable store for chat messages. The realtime
// gateway treats it as the source of truth: a message is delivered once
// it is persisted here, whether or not the recipient was online to see
// the push.
package messaging

import (
	"context"
	"errors"
	"time"
)

// Message is a persisted chat message.
type Message struct {
	ID         string     `json:"id"`
	SenderID   string     `json:"senderId"`
	ReceiverID string     `json:"receiverId"`
	Content    string     `json:"content"`
	CreatedAt  time.Time  `json:"createdAt"`
	ReadAt     *time.Time `json:"readAt,omitempty"`
}

// Domain errors. These surface to the client as error payloads on the
// realtime channel, never as server errors.
var (
	ErrReceiverNotFound = errors.New("messaging: receiver not found")
	ErrSenderSuspended  = errors.New("messaging: sender account is suspended")
)

// Store persists messages.
type Store interface {
	CreateMessage(ctx context.Context, senderID, receiverID, content string) (*Message, error)
}
