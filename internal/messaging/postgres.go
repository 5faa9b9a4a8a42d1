package messaging

import (
	"context"
	"database/sql"
	"strings"
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

func (s *PGStore) CreateMessage(ctx context.Context, senderID, receiverID, content string) (*Message, error) {
	var senderStatus string
	err := s.db.QueryRowContext(ctx,
		`select status from users where id=$1`, senderID).Scan(&senderStatus)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSenderSuspended
		}
		return nil, err
	}
	if !strings.EqualFold(senderStatus, "active") {
		return nil, ErrSenderSuspended
	}

	var receiverExists bool
	err = s.db.QueryRowContext(ctx,
		`select exists(select 1 from users where id=$1)`, receiverID).Scan(&receiverExists)
	if err != nil {
		return nil, err
	}
	if !receiverExists {
		return nil, ErrReceiverNotFound
	}

	msg := &Message{
		ID:         ids.New(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx,
		`insert into messages(id, sender_id, receiver_id, content, created_at)
		 values($1,$2,$3,$4,$5)`,
		msg.ID, msg.SenderID, msg.ReceiverID, msg.Content, msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return msg, nil
}
