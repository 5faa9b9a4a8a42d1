// Package notify persists user notifications. Content and durability are
// owned here; the realtime gateway only handles room membership and the
// best-effort push.
package notify

import (
	"context"
	"time"
)

// Notification is a persisted typed event addressed to one user.
type Notification struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	Type      string            `json:"type"`
	EntityID  string            `json:"entityId,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Store persists notifications.
type Store interface {
	Create(ctx context.Context, userID, typ, entityID string, metadata map[string]string) (*Notification, error)
}
