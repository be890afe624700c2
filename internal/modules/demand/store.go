// README: Demand store backed by PostgreSQL.
package demand

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"agrimatch/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const demandColumns = `id, buyer_id, crop, quantity, quantity_fulfilled, price_offer::text, currency, urgency,
       description, county, lat, lng, status, created_at, updated_at, expires_at`

func (s *Store) Create(ctx context.Context, d *Demand) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO demands (
            id, buyer_id, crop, crop_key, quantity, quantity_fulfilled, price_offer, currency, urgency,
            description, county, lat, lng, status, created_at, updated_at, expires_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		string(d.ID), string(d.BuyerID), d.Crop, types.NormalizeCrop(d.Crop), d.Quantity, d.QuantityFulfilled,
		types.DecimalString(d.PriceOffer), d.Currency, string(d.Urgency), d.Description, d.Location.County,
		d.Location.Point.Lat, d.Location.Point.Lng, string(d.Status), d.CreatedAt, d.UpdatedAt, d.ExpiresAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Demand, error) {
	row := s.db.QueryRow(ctx, `SELECT `+demandColumns+` FROM demands WHERE id = $1`, string(id))
	d, err := scanDemand(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: demand %s", types.ErrNotFound, id)
	}
	return d, err
}

// UpdateMetadata writes owner-editable fields only; quantities and status are engine-owned.
func (s *Store) UpdateMetadata(ctx context.Context, d *Demand) error {
	tag, err := s.db.Exec(ctx, `
        UPDATE demands
        SET price_offer = $2::numeric, urgency = $3, description = $4, expires_at = $5, updated_at = $6
        WHERE id = $1 AND status = 'open'`,
		string(d.ID), types.DecimalString(d.PriceOffer), string(d.Urgency), d.Description, d.ExpiresAt, d.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: demand %s is no longer open", types.ErrInvalidState, d.ID)
	}
	return nil
}

// Cancel withdraws an open demand on behalf of its owner.
func (s *Store) Cancel(ctx context.Context, id types.ID, now time.Time) error {
	tag, err := s.db.Exec(ctx, `UPDATE demands SET status = 'cancelled', updated_at = $2 WHERE id = $1 AND status = 'open'`,
		string(id), now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: demand %s is no longer open", types.ErrInvalidState, id)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id types.ID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM demands WHERE id = $1`, string(id))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("%w: demand %s is referenced by a match", types.ErrConflict, id)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: demand %s", types.ErrNotFound, id)
	}
	return nil
}

func (s *Store) List(ctx context.Context, f Filter) ([]*Demand, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Crop != "" {
		add("crop_key = $%d", types.NormalizeCrop(f.Crop))
	}
	if f.County != "" {
		add("lower(county) = lower($%d)", f.County)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.Urgency != "" {
		add("urgency = $%d", string(f.Urgency))
	}
	if f.BuyerID != "" {
		add("buyer_id = $%d", string(f.BuyerID))
	}
	if f.Since != nil {
		add("created_at >= $%d", *f.Since)
	}
	if f.Until != nil {
		add("created_at < $%d", *f.Until)
	}
	q := `SELECT ` + demandColumns + ` FROM demands`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id ASC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Demand
	for rows.Next() {
		d, err := scanDemand(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ExpireDue cancels open demands whose expiry has passed. Re-running is a no-op.
func (s *Store) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE demands SET status = 'cancelled', updated_at = $1
        WHERE status = 'open' AND expires_at IS NOT NULL AND expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// SettleTx adds qty to the fulfilled quantity inside a match transaction and
// marks the demand fulfilled once nothing remains.
func SettleTx(ctx context.Context, tx pgx.Tx, id types.ID, qty float64, now time.Time) error {
	tag, err := tx.Exec(ctx, `
        UPDATE demands
        SET quantity_fulfilled = quantity_fulfilled + $2,
            status = CASE WHEN quantity_fulfilled + $2 >= quantity - 1e-9 THEN 'fulfilled' ELSE status END,
            updated_at = $3
        WHERE id = $1 AND quantity_fulfilled + $2 <= quantity + 1e-9`,
		string(id), qty, now,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: demand %s cannot absorb %.2f", types.ErrConflict, id, qty)
	}
	return nil
}

func scanDemand(row pgx.Row) (*Demand, error) {
	var d Demand
	var price *string
	var status, urgency string
	err := row.Scan(
		&d.ID, &d.BuyerID, &d.Crop, &d.Quantity, &d.QuantityFulfilled, &price, &d.Currency, &urgency,
		&d.Description, &d.Location.County, &d.Location.Point.Lat, &d.Location.Point.Lng, &status,
		&d.CreatedAt, &d.UpdatedAt, &d.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	d.Status = Status(status)
	d.Urgency = Urgency(urgency)
	if d.PriceOffer, err = types.ParseDecimal(price); err != nil {
		return nil, err
	}
	return &d, nil
}
