package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"courier-dispatch/internal/core/domain"
	"courier-dispatch/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

const deliveryColumns = `id, sender_id, customer_name, pickup_address, dropoff_address, items, status, priority,
	distance_km, duration_min, price, fare_breakdown, rider, progress, history, cancel_reason, created_at, updated_at`

const uniqueViolation = "23505"

// DeliveryRepo implements ports.DeliveryRepository. List-valued and nested
// fields are stored as jsonb.
type DeliveryRepo struct {
	pool Pool
	log  zerolog.Logger
}

// NewDeliveryRepo creates a new DeliveryRepo.
func NewDeliveryRepo(pool Pool, log zerolog.Logger) *DeliveryRepo {
	return &DeliveryRepo{pool: pool, log: log}
}

func (r *DeliveryRepo) Create(ctx context.Context, d *domain.Delivery) error {
	doc, err := encodeDelivery(d)
	if err != nil {
		return err
	}

	query := `INSERT INTO deliveries (` + deliveryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = r.pool.Exec(ctx, query,
		d.ID, d.SenderID, d.CustomerName, d.PickupAddress, d.DropoffAddress, doc.items,
		string(d.Status), string(d.Priority), d.DistanceKm, d.DurationMin, d.Price,
		doc.fare, doc.rider, d.Progress, doc.history, d.CancelReason, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("create %s: %w", d.ID, ports.ErrDuplicateDelivery)
		}
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

func (r *DeliveryRepo) GetByID(ctx context.Context, id string) (*domain.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE id = $1`

	d, err := scanDelivery(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if errors.Is(err, errCorruptRecord) {
			r.log.Warn().Err(err).Str("delivery_id", id).Msg("treating corrupt delivery as absent")
			return nil, nil
		}
		return nil, fmt.Errorf("get delivery: %w", err)
	}
	return d, nil
}

// Update writes the mutable lifecycle fields.
func (r *DeliveryRepo) Update(ctx context.Context, d *domain.Delivery) error {
	doc, err := encodeDelivery(d)
	if err != nil {
		return err
	}

	query := `UPDATE deliveries
		SET status = $2, progress = $3, history = $4, rider = $5, cancel_reason = $6, updated_at = $7
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query,
		d.ID, string(d.Status), d.Progress, doc.history, doc.rider, d.CancelReason, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update delivery: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update %s: %w", d.ID, ports.ErrDeliveryNotFound)
	}
	return nil
}

func (r *DeliveryRepo) List(ctx context.Context) ([]*domain.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query)
}

func (r *DeliveryRepo) ListBySender(ctx context.Context, senderID string) ([]*domain.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE sender_id = $1 ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query, senderID)
}

func (r *DeliveryRepo) list(ctx context.Context, query string, args ...any) ([]*domain.Delivery, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	out := []*domain.Delivery{}
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			if errors.Is(err, errCorruptRecord) {
				r.log.Warn().Err(err).Msg("skipping corrupt delivery")
				continue
			}
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deliveries: %w", err)
	}
	return out, nil
}

var errCorruptRecord = errors.New("corrupt delivery record")

type deliveryDoc struct {
	items   []byte
	fare    []byte
	rider   []byte
	history []byte
}

func encodeDelivery(d *domain.Delivery) (deliveryDoc, error) {
	var doc deliveryDoc
	var err error

	items := d.Items
	if items == nil {
		items = []string{}
	}
	if doc.items, err = json.Marshal(items); err != nil {
		return doc, fmt.Errorf("encode items: %w", err)
	}
	if doc.history, err = json.Marshal(d.History); err != nil {
		return doc, fmt.Errorf("encode history: %w", err)
	}
	if d.FareBreakdown != nil {
		if doc.fare, err = json.Marshal(d.FareBreakdown); err != nil {
			return doc, fmt.Errorf("encode fare: %w", err)
		}
	}
	if d.Rider != nil {
		if doc.rider, err = json.Marshal(d.Rider); err != nil {
			return doc, fmt.Errorf("encode rider: %w", err)
		}
	}
	return doc, nil
}

func scanDelivery(row pgx.Row) (*domain.Delivery, error) {
	d := &domain.Delivery{}
	var status, priority string
	var doc deliveryDoc

	err := row.Scan(
		&d.ID, &d.SenderID, &d.CustomerName, &d.PickupAddress, &d.DropoffAddress, &doc.items,
		&status, &priority, &d.DistanceKm, &d.DurationMin, &d.Price,
		&doc.fare, &doc.rider, &d.Progress, &doc.history, &d.CancelReason, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if d.Status, err = domain.ParseDeliveryStatus(status); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errCorruptRecord, d.ID, err)
	}
	d.Priority = domain.Priority(priority)
	d.Distance = domain.FormatDistance(d.DistanceKm)
	d.EstTime = domain.FormatDuration(d.DurationMin)

	if err := json.Unmarshal(doc.items, &d.Items); err != nil {
		return nil, fmt.Errorf("%w: %s: items: %v", errCorruptRecord, d.ID, err)
	}
	if err := json.Unmarshal(doc.history, &d.History); err != nil {
		return nil, fmt.Errorf("%w: %s: history: %v", errCorruptRecord, d.ID, err)
	}
	if len(doc.fare) > 0 {
		d.FareBreakdown = &domain.FareBreakdown{}
		if err := json.Unmarshal(doc.fare, d.FareBreakdown); err != nil {
			return nil, fmt.Errorf("%w: %s: fare: %v", errCorruptRecord, d.ID, err)
		}
	}
	if len(doc.rider) > 0 {
		d.Rider = &domain.RiderStamp{}
		if err := json.Unmarshal(doc.rider, d.Rider); err != nil {
			return nil, fmt.Errorf("%w: %s: rider: %v", errCorruptRecord, d.ID, err)
		}
	}
	return d, nil
}
