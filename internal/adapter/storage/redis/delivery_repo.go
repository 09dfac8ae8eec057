package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"courier-dispatch/internal/core/domain"
	"courier-dispatch/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DeliveryRepo implements ports.DeliveryRepository. Each delivery is a JSON
// document; a list holds the ids newest first.
type DeliveryRepo struct {
	client  *goredis.Client
	prefix  string
	listKey string
	log     zerolog.Logger
}

// NewDeliveryRepo creates a Redis-backed delivery repository.
func NewDeliveryRepo(client *goredis.Client, log zerolog.Logger) *DeliveryRepo {
	return &DeliveryRepo{
		client:  client,
		prefix:  keyPrefix + "delivery:",
		listKey: keyPrefix + "deliveries",
		log:     log,
	}
}

func (r *DeliveryRepo) Create(ctx context.Context, d *domain.Delivery) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode delivery %s: %w", d.ID, err)
	}

	_, err = r.client.SetArgs(ctx, r.prefix+d.ID, payload, goredis.SetArgs{Mode: "NX"}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return fmt.Errorf("create %s: %w", d.ID, ports.ErrDuplicateDelivery)
		}
		return fmt.Errorf("redis delivery set: %w", err)
	}
	if err := r.client.LPush(ctx, r.listKey, d.ID).Err(); err != nil {
		return fmt.Errorf("redis delivery index: %w", err)
	}
	return nil
}

func (r *DeliveryRepo) GetByID(ctx context.Context, id string) (*domain.Delivery, error) {
	raw, err := r.client.Get(ctx, r.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis delivery get: %w", err)
	}
	return r.decode(id, raw), nil
}

func (r *DeliveryRepo) Update(ctx context.Context, d *domain.Delivery) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode delivery %s: %w", d.ID, err)
	}

	_, err = r.client.SetArgs(ctx, r.prefix+d.ID, payload, goredis.SetArgs{Mode: "XX"}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return fmt.Errorf("update %s: %w", d.ID, ports.ErrDeliveryNotFound)
		}
		return fmt.Errorf("redis delivery update: %w", err)
	}
	return nil
}

func (r *DeliveryRepo) List(ctx context.Context) ([]*domain.Delivery, error) {
	return r.list(ctx, func(*domain.Delivery) bool { return true })
}

func (r *DeliveryRepo) ListBySender(ctx context.Context, senderID string) ([]*domain.Delivery, error) {
	return r.list(ctx, func(d *domain.Delivery) bool { return d.SenderID == senderID })
}

func (r *DeliveryRepo) list(ctx context.Context, keep func(*domain.Delivery) bool) ([]*domain.Delivery, error) {
	ids, err := r.client.LRange(ctx, r.listKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis delivery list: %w", err)
	}
	out := make([]*domain.Delivery, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.prefix + id
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis delivery mget: %w", err)
	}

	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if d := r.decode(ids[i], []byte(s)); d != nil && keep(d) {
			out = append(out, d)
		}
	}
	return out, nil
}

// decode treats a corrupt document as absent.
func (r *DeliveryRepo) decode(id string, raw []byte) *domain.Delivery {
	var d domain.Delivery
	if err := json.Unmarshal(raw, &d); err != nil {
		r.log.Warn().Err(err).Str("delivery_id", id).Msg("skipping corrupt delivery record")
		return nil
	}
	return &d
}
