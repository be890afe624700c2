// README: Match store backed by PostgreSQL. Every transition is one transaction guarded by the version column.
package match

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"agrimatch/internal/modules/demand"
	"agrimatch/internal/modules/listing"
	"agrimatch/internal/modules/transport"
	"agrimatch/internal/types"
)

// Settlement moves fulfilled quantity onto the listing and demand on completion.
type Settlement struct {
	ListingID types.ID
	DemandID  types.ID
	Quantity  float64
}

// OfferChange books or releases a transport offer alongside a transition.
type OfferChange struct {
	OfferID types.ID
	From    []transport.Status
	To      transport.Status
}

// Change is everything one transition writes. Match carries the new state;
// the write only lands if the stored version still equals ExpectedVersion.
type Change struct {
	Match           *Match
	ExpectedVersion int
	Event           Event
	Settlement      *Settlement
	Offers          []OfferChange
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const matchColumns = `id, listing_id, demand_id, farmer_id, buyer_id, agreed_price::text, currency, agreed_quantity,
       initiated_by, accepted_by, driver_id, transport_offer_id, driver_assignment, driver_cancel_status,
       driver_cancel_reason, driver_cancel_requested_at, quantity_fulfilled, is_partial, farmer_rating,
       buyer_rating, status, version, cancel_reason, created_at, updated_at, expires_at, accepted_at,
       driver_assigned_at, driver_accepted_at, driver_rejected_at, in_transit_at, completed_at, cancelled_at`

func (s *Store) Create(ctx context.Context, m *Match, ev *Event) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
        INSERT INTO matches (
            id, listing_id, demand_id, farmer_id, buyer_id, agreed_price, currency, agreed_quantity,
            initiated_by, driver_assignment, driver_cancel_status, status, version, created_at, updated_at, expires_at
        ) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		string(m.ID), string(m.ListingID), string(m.DemandID), string(m.FarmerID), string(m.BuyerID),
		types.DecimalString(m.AgreedPrice), m.Currency, m.AgreedQuantity, string(m.InitiatedBy),
		string(m.DriverAssignment), string(m.DriverCancellation.Status), string(m.Status), m.Version,
		m.CreatedAt, m.UpdatedAt, m.ExpiresAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: a match already exists for listing %s and demand %s", types.ErrConflict, m.ListingID, m.DemandID)
		}
		return err
	}
	if err := AppendEventTx(ctx, tx, ev); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Match, error) {
	row := s.db.QueryRow(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, string(id))
	m, err := scanMatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: match %s", types.ErrNotFound, id)
	}
	return m, err
}

// Apply persists one transition with its side effects and event, or nothing.
func (s *Store) Apply(ctx context.Context, ch *Change) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	m := ch.Match
	tag, err := tx.Exec(ctx, `
        UPDATE matches SET
            agreed_price = $3::numeric, agreed_quantity = $4, accepted_by = $5, driver_id = $6,
            transport_offer_id = $7, driver_assignment = $8, driver_cancel_status = $9,
            driver_cancel_reason = $10, driver_cancel_requested_at = $11, quantity_fulfilled = $12,
            is_partial = $13, status = $14, version = $15, cancel_reason = $16, updated_at = $17,
            accepted_at = $18, driver_assigned_at = $19, driver_accepted_at = $20, driver_rejected_at = $21,
            in_transit_at = $22, completed_at = $23, cancelled_at = $24
        WHERE id = $1 AND version = $2`,
		string(m.ID), ch.ExpectedVersion, types.DecimalString(m.AgreedPrice), m.AgreedQuantity,
		string(m.AcceptedBy), string(m.DriverID), string(m.TransportOfferID), string(m.DriverAssignment),
		string(m.DriverCancellation.Status), m.DriverCancellation.Reason, m.DriverCancellation.RequestedAt,
		m.QuantityFulfilled, m.IsPartialFulfillment, string(m.Status), m.Version, m.CancelReason, m.UpdatedAt,
		m.AcceptedAt, m.DriverAssignedAt, m.DriverAcceptedAt, m.DriverRejectedAt, m.InTransitAt,
		m.CompletedAt, m.CancelledAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: match %s changed since version %d", types.ErrConflict, m.ID, ch.ExpectedVersion)
	}
	if st := ch.Settlement; st != nil && st.Quantity > 0 {
		if err := listing.SettleTx(ctx, tx, st.ListingID, st.Quantity, m.UpdatedAt); err != nil {
			return err
		}
		if err := demand.SettleTx(ctx, tx, st.DemandID, st.Quantity, m.UpdatedAt); err != nil {
			return err
		}
	}
	for _, oc := range ch.Offers {
		if err := transport.SetStatusTx(ctx, tx, oc.OfferID, oc.From, oc.To, m.UpdatedAt); err != nil {
			return err
		}
	}
	if err := AppendEventTx(ctx, tx, &ch.Event); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) Events(ctx context.Context, matchID types.ID) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
        SELECT seq, match_id, actor_id, kind, note, payload, created_at
        FROM match_events WHERE match_id = $1 ORDER BY seq ASC`, string(matchID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var ev Event
		var kind string
		var raw []byte
		if err := rows.Scan(&ev.Seq, &ev.MatchID, &ev.ActorID, &kind, &ev.Note, &raw, &ev.At); err != nil {
			return nil, err
		}
		ev.Kind = EventKind(kind)
		if ev.Payload, err = DecodePayload(ev.Kind, raw); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *Store) List(ctx context.Context, f Filter) ([]*Match, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.ParticipantID != "" {
		n := len(args) + 1
		args = append(args, string(f.ParticipantID))
		where = append(where, fmt.Sprintf("(farmer_id = $%d OR buyer_id = $%d OR driver_id = $%d)", n, n, n))
	}
	if f.ListingID != "" {
		add("listing_id = $%d", string(f.ListingID))
	}
	if f.DemandID != "" {
		add("demand_id = $%d", string(f.DemandID))
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	q := `SELECT ` + matchColumns + ` FROM matches`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id ASC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return s.query(ctx, q, args...)
}

// ListExpirable returns non-terminal matches whose expiry is before now.
func (s *Store) ListExpirable(ctx context.Context, now time.Time, limit int) ([]*Match, error) {
	return s.query(ctx, `SELECT `+matchColumns+` FROM matches
        WHERE status NOT IN ('completed', 'cancelled', 'expired')
          AND expires_at IS NOT NULL AND expires_at < $1
        ORDER BY expires_at ASC, id ASC
        LIMIT $2`, now, limit)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]*Match, error) {
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AppendEventTx writes ev inside tx and fills in its sequence number.
func AppendEventTx(ctx context.Context, tx pgx.Tx, ev *Event) error {
	raw, err := EncodePayload(ev.Payload)
	if err != nil {
		return err
	}
	return tx.QueryRow(ctx, `
        INSERT INTO match_events (match_id, actor_id, kind, note, payload, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING seq`,
		string(ev.MatchID), string(ev.ActorID), string(ev.Kind), ev.Note, raw, ev.At,
	).Scan(&ev.Seq)
}

// SetRatingTx records a review's rating on the completed match, once per side.
func SetRatingTx(ctx context.Context, tx pgx.Tx, matchID types.ID, ratedFarmer bool, rating int, now time.Time) error {
	col := "buyer_rating"
	if ratedFarmer {
		col = "farmer_rating"
	}
	tag, err := tx.Exec(ctx, `
        UPDATE matches SET `+col+` = $2, version = version + 1, updated_at = $3
        WHERE id = $1 AND status = 'completed' AND `+col+` IS NULL`,
		string(matchID), rating, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: match %s already rated", types.ErrConflict, matchID)
	}
	return nil
}

func scanMatch(row pgx.Row) (*Match, error) {
	var m Match
	var price *string
	var assignment, cancelStatus, status string
	err := row.Scan(
		&m.ID, &m.ListingID, &m.DemandID, &m.FarmerID, &m.BuyerID, &price, &m.Currency, &m.AgreedQuantity,
		&m.InitiatedBy, &m.AcceptedBy, &m.DriverID, &m.TransportOfferID, &assignment, &cancelStatus,
		&m.DriverCancellation.Reason, &m.DriverCancellation.RequestedAt, &m.QuantityFulfilled,
		&m.IsPartialFulfillment, &m.FarmerRating, &m.BuyerRating, &status, &m.Version, &m.CancelReason,
		&m.CreatedAt, &m.UpdatedAt, &m.ExpiresAt, &m.AcceptedAt, &m.DriverAssignedAt, &m.DriverAcceptedAt,
		&m.DriverRejectedAt, &m.InTransitAt, &m.CompletedAt, &m.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	m.DriverAssignment = DriverAssignment(assignment)
	m.DriverCancellation.Status = CancellationStatus(cancelStatus)
	m.Status = Status(status)
	if m.AgreedPrice, err = types.ParseDecimal(price); err != nil {
		return nil, err
	}
	return &m, nil
}
