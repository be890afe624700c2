// README: Actor store backed by PostgreSQL.
package actor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"agrimatch/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const actorColumns = `id, external_id, name, phone, roles, primary_role, verification,
       rating_avg, rating_count, county, lat, lng, created_at, updated_at`

func (s *Store) Get(ctx context.Context, id types.ID) (*Actor, error) {
	row := s.db.QueryRow(ctx, `SELECT `+actorColumns+` FROM actors WHERE id = $1`, string(id))
	a, err := scanActor(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: actor %s", types.ErrNotFound, id)
	}
	return a, err
}

// FindOrCreateByExternalID inserts a unless an actor with the same external id
// exists, and returns the stored row either way.
func (s *Store) FindOrCreateByExternalID(ctx context.Context, a *Actor) (*Actor, error) {
	_, err := s.db.Exec(ctx, `
        INSERT INTO actors (
            id, external_id, name, phone, roles, primary_role, verification,
            rating_avg, rating_count, county, lat, lng, created_at, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 0, $8, $9, $10, $11, $11)
        ON CONFLICT (external_id) DO NOTHING`,
		string(a.ID), a.ExternalID, a.Name, a.Phone, rolesToStrings(a.Roles), string(a.PrimaryRole),
		string(a.Verification), a.Location.County, a.Location.Point.Lat, a.Location.Point.Lng, a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRow(ctx, `SELECT `+actorColumns+` FROM actors WHERE external_id = $1`, a.ExternalID)
	return scanActor(row)
}

func (s *Store) Update(ctx context.Context, a *Actor) error {
	tag, err := s.db.Exec(ctx, `
        UPDATE actors
        SET name = $2, phone = $3, roles = $4, primary_role = $5, verification = $6,
            county = $7, lat = $8, lng = $9, updated_at = $10
        WHERE id = $1`,
		string(a.ID), a.Name, a.Phone, rolesToStrings(a.Roles), string(a.PrimaryRole), string(a.Verification),
		a.Location.County, a.Location.Point.Lat, a.Location.Point.Lng, a.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: actor %s", types.ErrNotFound, a.ID)
	}
	return nil
}

// GetMany loads the actors in ids; missing ids are skipped.
func (s *Store) GetMany(ctx context.Context, ids []types.ID) (map[types.ID]*Actor, error) {
	out := make(map[types.ID]*Actor, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}
	rows, err := s.db.Query(ctx, `SELECT `+actorColumns+` FROM actors WHERE id = ANY($1)`, raw)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		a, err := scanActor(rows)
		if err != nil {
			return nil, err
		}
		out[a.ID] = a
	}
	return out, rows.Err()
}

// UpdateRatingTx folds rating into the stored average inside tx, locking the row.
func UpdateRatingTx(ctx context.Context, tx pgx.Tx, id types.ID, rating int) error {
	var avg float64
	var count int
	err := tx.QueryRow(ctx, `SELECT rating_avg, rating_count FROM actors WHERE id = $1 FOR UPDATE`, string(id)).
		Scan(&avg, &count)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: actor %s", types.ErrNotFound, id)
	}
	if err != nil {
		return err
	}
	avg, count = NextRating(avg, count, rating)
	_, err = tx.Exec(ctx, `UPDATE actors SET rating_avg = $2, rating_count = $3, updated_at = $4 WHERE id = $1`,
		string(id), avg, count, time.Now())
	return err
}

func scanActor(row pgx.Row) (*Actor, error) {
	var a Actor
	var roles []string
	var primary, verification string
	err := row.Scan(
		&a.ID, &a.ExternalID, &a.Name, &a.Phone, &roles, &primary, &verification,
		&a.RatingAverage, &a.RatingCount, &a.Location.County, &a.Location.Point.Lat, &a.Location.Point.Lng,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.PrimaryRole = Role(primary)
	a.Verification = Verification(verification)
	a.Roles = make([]Role, len(roles))
	for i, r := range roles {
		a.Roles[i] = Role(r)
	}
	return &a, nil
}

func rolesToStrings(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}
