package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"waypost.app/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, userID, typ, entityID string, metadata map[string]string) (*Notification, error) {
	n := &Notification{
		ID:        ids.New(),
		UserID:    userID,
		Type:      typ,
		EntityID:  entityID,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	meta, _ := json.Marshal(n.Metadata)
	_, err := s.db.ExecContext(ctx,
		`insert into notifications(id, user_id, type, entity_id, metadata, created_at)
		 values($1,$2,$3,$4,$5,$6)`,
		n.ID, n.UserID, n.Type, n.EntityID, meta, n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return n, nil
}
