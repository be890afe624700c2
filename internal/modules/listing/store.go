// README: Listing store backed by PostgreSQL.
package listing

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

const listingColumns = `id, farmer_id, crop, quantity, quantity_fulfilled, price::text, currency, negotiable,
       description, county, lat, lng, promoted, status, created_at, updated_at, expires_at`

func (s *Store) Create(ctx context.Context, l *Listing) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO listings (
            id, farmer_id, crop, crop_key, quantity, quantity_fulfilled, price, currency, negotiable,
            description, county, lat, lng, promoted, status, created_at, updated_at, expires_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		string(l.ID), string(l.FarmerID), l.Crop, types.NormalizeCrop(l.Crop), l.Quantity, l.QuantityFulfilled,
		types.DecimalString(l.Price), l.Currency, l.Negotiable, l.Description, l.Location.County,
		l.Location.Point.Lat, l.Location.Point.Lng, l.Promoted, string(l.Status), l.CreatedAt, l.UpdatedAt, l.ExpiresAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Listing, error) {
	row := s.db.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, string(id))
	l, err := scanListing(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: listing %s", types.ErrNotFound, id)
	}
	return l, err
}

// UpdateMetadata writes owner-editable fields only; quantities and status are engine-owned.
func (s *Store) UpdateMetadata(ctx context.Context, l *Listing) error {
	tag, err := s.db.Exec(ctx, `
        UPDATE listings
        SET price = $2::numeric, negotiable = $3, description = $4, promoted = $5, expires_at = $6, updated_at = $7
        WHERE id = $1 AND status = 'available'`,
		string(l.ID), types.DecimalString(l.Price), l.Negotiable, l.Description, l.Promoted, l.ExpiresAt, l.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: listing %s is no longer available", types.ErrInvalidState, l.ID)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id types.ID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM listings WHERE id = $1`, string(id))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("%w: listing %s is referenced by a match", types.ErrConflict, id)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: listing %s", types.ErrNotFound, id)
	}
	return nil
}

func (s *Store) List(ctx context.Context, f Filter) ([]*Listing, error) {
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
	if f.FarmerID != "" {
		add("farmer_id = $%d", string(f.FarmerID))
	}
	if f.Since != nil {
		add("created_at >= $%d", *f.Since)
	}
	if f.Until != nil {
		add("created_at < $%d", *f.Until)
	}
	q := `SELECT ` + listingColumns + ` FROM listings`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY promoted DESC, created_at DESC, id ASC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ExpireDue flips available listings whose expiry has passed. Re-running is a no-op.
func (s *Store) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE listings SET status = 'expired', updated_at = $1
        WHERE status = 'available' AND expires_at IS NOT NULL AND expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// SettleTx adds qty to the fulfilled quantity inside a match transaction and
// moves the listing to sold once nothing remains.
func SettleTx(ctx context.Context, tx pgx.Tx, id types.ID, qty float64, now time.Time) error {
	tag, err := tx.Exec(ctx, `
        UPDATE listings
        SET quantity_fulfilled = quantity_fulfilled + $2,
            status = CASE WHEN quantity_fulfilled + $2 >= quantity - 1e-9 THEN 'sold' ELSE status END,
            updated_at = $3
        WHERE id = $1 AND quantity_fulfilled + $2 <= quantity + 1e-9`,
		string(id), qty, now,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: listing %s cannot absorb %.2f", types.ErrConflict, id, qty)
	}
	return nil
}

func scanListing(row pgx.Row) (*Listing, error) {
	var l Listing
	var price *string
	var status string
	err := row.Scan(
		&l.ID, &l.FarmerID, &l.Crop, &l.Quantity, &l.QuantityFulfilled, &price, &l.Currency, &l.Negotiable,
		&l.Description, &l.Location.County, &l.Location.Point.Lat, &l.Location.Point.Lng, &l.Promoted, &status,
		&l.CreatedAt, &l.UpdatedAt, &l.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	l.Status = Status(status)
	if l.Price, err = types.ParseDecimal(price); err != nil {
		return nil, err
	}
	return &l, nil
}
