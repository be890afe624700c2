// README: Transport offer store backed by PostgreSQL.
package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"agrimatch/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const offerColumns = `id, driver_id, vehicle_type, capacity_kg, price_per_km::text, currency, origin_county,
       destination_county, serviced_regions, available_from, available_to, status, created_at, updated_at`

func (s *Store) Create(ctx context.Context, o *Offer) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO transport_offers (
            id, driver_id, vehicle_type, capacity_kg, price_per_km, currency, origin_county,
            destination_county, serviced_regions, available_from, available_to, status, created_at, updated_at
        ) VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		string(o.ID), string(o.DriverID), o.VehicleType, o.CapacityKg, o.PricePerKm.String(), o.Currency,
		o.OriginCounty, o.DestinationCounty, o.ServicedRegions, o.AvailableFrom, o.AvailableTo,
		string(o.Status), o.CreatedAt, o.UpdatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Offer, error) {
	row := s.db.QueryRow(ctx, `SELECT `+offerColumns+` FROM transport_offers WHERE id = $1`, string(id))
	o, err := scanOffer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: transport offer %s", types.ErrNotFound, id)
	}
	return o, err
}

// SetStatus moves an offer between driver-controlled states; booked and
// in-transit offers belong to a match and are left alone.
func (s *Store) SetStatus(ctx context.Context, id types.ID, status Status, now time.Time) error {
	tag, err := s.db.Exec(ctx, `
        UPDATE transport_offers SET status = $2, updated_at = $3
        WHERE id = $1 AND status IN ('available', 'unavailable')`,
		string(id), string(status), now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: transport offer %s is committed to a match", types.ErrInvalidState, id)
	}
	return nil
}

func (s *Store) List(ctx context.Context, f Filter) ([]*Offer, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.DriverID != "" {
		add("driver_id = $%d", string(f.DriverID))
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.County != "" {
		n := len(args) + 1
		args = append(args, f.County)
		where = append(where, fmt.Sprintf(
			"(lower(origin_county) = lower($%d) OR lower(destination_county) = lower($%d) OR EXISTS (SELECT 1 FROM unnest(serviced_regions) r WHERE lower(r) = lower($%d)))",
			n, n, n))
	}
	q := `SELECT ` + offerColumns + ` FROM transport_offers`
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
	var out []*Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// SetStatusTx is used by the match engine to book and release offers in the
// same transaction as the match transition.
func SetStatusTx(ctx context.Context, tx pgx.Tx, id types.ID, from []Status, to Status, now time.Time) error {
	allowed := make([]string, len(from))
	for i, st := range from {
		allowed[i] = string(st)
	}
	tag, err := tx.Exec(ctx, `
        UPDATE transport_offers SET status = $2, updated_at = $3
        WHERE id = $1 AND status = ANY($4)`,
		string(id), string(to), now, allowed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: transport offer %s is not in %v", types.ErrConflict, id, from)
	}
	return nil
}

func scanOffer(row pgx.Row) (*Offer, error) {
	var o Offer
	var price, status string
	err := row.Scan(
		&o.ID, &o.DriverID, &o.VehicleType, &o.CapacityKg, &price, &o.Currency, &o.OriginCounty,
		&o.DestinationCounty, &o.ServicedRegions, &o.AvailableFrom, &o.AvailableTo, &status,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = Status(status)
	if o.PricePerKm, err = decimal.NewFromString(price); err != nil {
		return nil, err
	}
	return &o, nil
}
