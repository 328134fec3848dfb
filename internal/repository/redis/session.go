package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
)

const keyPrefix = "session:"

// Hash fields of a stored session.
const (
	fieldCart            = "cart"
	fieldDarkMode        = "darkMode"
	fieldUserInfo        = "userInfo"
	fieldShippingAddress = "shippingAddress"
	fieldPaymentMethod   = "paymentMethod"
	fieldUpdatedAt       = "updatedAt"
)

const (
	darkModeOn  = "ON"
	darkModeOff = "OFF"
)

// SessionStore implements repository.SessionStore using one Redis hash per
// session.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewSessionStore creates a new Redis-backed session store.
func NewSessionStore(client *redis.Client, ttl time.Duration, logger *slog.Logger) *SessionStore {
	return &SessionStore{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Load reads the session hash. A missing key yields a fresh session and a
// field that fails to parse falls back to its default; only a failed Redis
// call is an error.
func (r *SessionStore) Load(ctx context.Context, id string) (*domain.Session, error) {
	fields, err := r.client.HGetAll(ctx, keyPrefix+id).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall session: %w: %w", repository.ErrStorageUnavailable, err)
	}

	s := domain.NewSession(id)
	if len(fields) == 0 {
		return &s, nil
	}

	if raw, ok := fields[fieldCart]; ok {
		var items []domain.CartLineItem
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			r.corrupt(ctx, id, fieldCart, err)
		} else if len(items) > 0 {
			s.Cart.Items = items
		}
	}

	switch v := fields[fieldDarkMode]; v {
	case darkModeOn:
		s.DarkMode = true
	case darkModeOff, "":
	default:
		r.corrupt(ctx, id, fieldDarkMode, fmt.Errorf("unexpected value %q", v))
	}

	if raw, ok := fields[fieldUserInfo]; ok {
		var u domain.UserInfo
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			r.corrupt(ctx, id, fieldUserInfo, err)
		} else {
			s.UserInfo = &u
		}
	}

	if raw, ok := fields[fieldShippingAddress]; ok {
		var a domain.Address
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			r.corrupt(ctx, id, fieldShippingAddress, err)
		} else {
			s.ShippingAddress = &a
		}
	}

	s.PaymentMethod = fields[fieldPaymentMethod]

	if raw, ok := fields[fieldUpdatedAt]; ok {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			r.corrupt(ctx, id, fieldUpdatedAt, err)
		} else {
			s.UpdatedAt = t
		}
	}

	return &s, nil
}

// Save replaces the stored hash with s and resets its TTL.
func (r *SessionStore) Save(ctx context.Context, s *domain.Session) error {
	fields, err := encodeSession(s)
	if err != nil {
		return err
	}

	key := keyPrefix + s.ID
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save session: %w: %w", repository.ErrStorageUnavailable, err)
	}

	return nil
}

// Delete removes a session from Redis.
func (r *SessionStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("redis del session: %w: %w", repository.ErrStorageUnavailable, err)
	}
	return nil
}

func encodeSession(s *domain.Session) (map[string]any, error) {
	items := s.Cart.Items
	if items == nil {
		items = []domain.CartLineItem{}
	}
	cart, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal cart: %w", err)
	}

	fields := map[string]any{
		fieldCart:     cart,
		fieldDarkMode: darkModeOff,
	}
	if s.DarkMode {
		fields[fieldDarkMode] = darkModeOn
	}

	if s.UserInfo != nil {
		data, err := json.Marshal(s.UserInfo)
		if err != nil {
			return nil, fmt.Errorf("marshal user info: %w", err)
		}
		fields[fieldUserInfo] = data
	}
	if s.ShippingAddress != nil {
		data, err := json.Marshal(s.ShippingAddress)
		if err != nil {
			return nil, fmt.Errorf("marshal shipping address: %w", err)
		}
		fields[fieldShippingAddress] = data
	}
	if s.PaymentMethod != "" {
		fields[fieldPaymentMethod] = s.PaymentMethod
	}
	if !s.UpdatedAt.IsZero() {
		fields[fieldUpdatedAt] = s.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}

	return fields, nil
}

func (r *SessionStore) corrupt(ctx context.Context, id, field string, err error) {
	r.logger.WarnContext(ctx, "discarding unreadable session field",
		slog.String("session_id", id),
		slog.String("field", field),
		slog.String("error", err.Error()),
	)
}
