// README: Message store backed by PostgreSQL; a message and its match event commit together.
package messaging

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"agrimatch/internal/modules/match"
	"agrimatch/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Send(ctx context.Context, msg *Message, ev *match.Event) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
        INSERT INTO messages (id, match_id, sender_id, recipient_id, body, is_read, created_at)
        VALUES ($1, $2, $3, $4, $5, false, $6)
        RETURNING seq`,
		string(msg.ID), string(msg.MatchID), string(msg.SenderID), string(msg.RecipientID), msg.Body, msg.CreatedAt,
	).Scan(&msg.Seq)
	if err != nil {
		return err
	}
	if err := match.AppendEventTx(ctx, tx, ev); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) Thread(ctx context.Context, matchID types.ID) ([]*Message, error) {
	rows, err := s.db.Query(ctx, `
        SELECT seq, id, match_id, sender_id, recipient_id, body, is_read, read_at, created_at
        FROM messages WHERE match_id = $1 ORDER BY seq ASC`, string(matchID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Seq, &m.ID, &m.MatchID, &m.SenderID, &m.RecipientID, &m.Body, &m.IsRead, &m.ReadAt, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// MarkRead flags every unread message addressed to readerID in the match.
func (s *Store) MarkRead(ctx context.Context, matchID, readerID types.ID, now time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE messages SET is_read = true, read_at = $3
        WHERE match_id = $1 AND recipient_id = $2 AND NOT is_read`,
		string(matchID), string(readerID), now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
