// README: Review store backed by PostgreSQL; the review, the match rating, the event and the
// reviewee's running rating commit together.
package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"agrimatch/internal/modules/actor"
	"agrimatch/internal/modules/match"
	"agrimatch/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, r *Review, ratedFarmer bool, ev *match.Event) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
        INSERT INTO reviews (id, match_id, reviewer_id, reviewee_id, rating, comment, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(r.ID), string(r.MatchID), string(r.ReviewerID), string(r.RevieweeID), r.Rating, r.Comment, r.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s already reviewed match %s", types.ErrConflict, r.ReviewerID, r.MatchID)
		}
		return err
	}
	if err := match.SetRatingTx(ctx, tx, r.MatchID, ratedFarmer, r.Rating, r.CreatedAt); err != nil {
		return err
	}
	if err := match.AppendEventTx(ctx, tx, ev); err != nil {
		return err
	}
	if err := actor.UpdateRatingTx(ctx, tx, r.RevieweeID, r.Rating); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) ListForActor(ctx context.Context, revieweeID types.ID, limit int) ([]*Review, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
        SELECT id, match_id, reviewer_id, reviewee_id, rating, comment, created_at
        FROM reviews WHERE reviewee_id = $1
        ORDER BY created_at DESC, id ASC LIMIT $2`, string(revieweeID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Review
	for rows.Next() {
		var r Review
		if err := rows.Scan(&r.ID, &r.MatchID, &r.ReviewerID, &r.RevieweeID, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
