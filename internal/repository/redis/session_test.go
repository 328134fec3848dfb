package redis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
)

func setupTestRedis(t *testing.T) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := NewSessionStore(client, 24*time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return store, mr
}

func sampleSession() *domain.Session {
	return &domain.Session{
		ID:       "sess-001",
		DarkMode: true,
		UserInfo: &domain.UserInfo{Token: "jwt", ID: "u-1", Name: "Ada", Email: "ada@example.com", IsAdmin: true},
		Cart: domain.CartState{Items: []domain.CartLineItem{
			{ProductID: "p-1", Name: "Mug", Slug: "mug", Price: 1200, Image: "/img/mug.jpg", Category: "Kitchen", Quantity: 2, CountInStock: 5},
			{ProductID: "p-2", Name: "Lamp", Slug: "lamp", Price: 4500, Quantity: 1, CountInStock: 1},
		}},
		ShippingAddress: &domain.Address{FullName: "Ada Lovelace", Address: "1 Main St", City: "London", PostalCode: "N1", Country: "UK"},
		PaymentMethod:   domain.PaymentMethodPayPal,
		UpdatedAt:       time.Now().UTC(),
	}
}

func TestSessionStore_RoundTrip(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	sessions := []*domain.Session{
		sampleSession(),
		{ID: "sess-empty"},
		{ID: "sess-cart-only", Cart: domain.CartState{Items: []domain.CartLineItem{{ProductID: "p-1", Quantity: 1}}}},
	}

	for _, s := range sessions {
		require.NoError(t, store.Save(ctx, s))
		got, err := store.Load(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, s, got, s.ID)
	}
}

func TestSessionStore_SaveIsIdempotentAndOverwrites(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	s := sampleSession()
	require.NoError(t, store.Save(ctx, s))
	require.NoError(t, store.Save(ctx, s))

	s.UserInfo = nil
	s.ShippingAddress = nil
	s.PaymentMethod = ""
	require.NoError(t, store.Save(ctx, s))

	assert.Empty(t, mr.HGet("session:"+s.ID, fieldUserInfo), "fields absent from the new state must not survive")
	got, err := store.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestSessionStore_StoredLayout(t *testing.T) {
	store, mr := setupTestRedis(t)
	s := sampleSession()
	require.NoError(t, store.Save(context.Background(), s))

	key := "session:" + s.ID
	assert.Equal(t, "ON", mr.HGet(key, "darkMode"))
	assert.Equal(t, "PayPal", mr.HGet(key, "paymentMethod"))
	assert.Contains(t, mr.HGet(key, "cart"), `"product_id":"p-1"`)
	assert.Equal(t, 24*time.Hour, mr.TTL(key))
}

func TestSessionStore_LoadMissingReturnsDefaults(t *testing.T) {
	store, _ := setupTestRedis(t)

	got, err := store.Load(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Equal(t, "never-seen", got.ID)
	assert.False(t, got.DarkMode)
	assert.Nil(t, got.UserInfo)
	assert.True(t, got.Cart.IsEmpty())
}

func TestSessionStore_CorruptFieldsFallBackToDefaults(t *testing.T) {
	store, mr := setupTestRedis(t)
	key := "session:sess-bad"
	mr.HSet(key, "cart", "{not json")
	mr.HSet(key, "darkMode", "MAYBE")
	mr.HSet(key, "userInfo", `{"token":"t","name":"Ada"}`)
	mr.HSet(key, "shippingAddress", "[]")
	mr.HSet(key, "updatedAt", "yesterday")

	got, err := store.Load(context.Background(), "sess-bad")
	require.NoError(t, err)
	assert.True(t, got.Cart.IsEmpty())
	assert.False(t, got.DarkMode)
	require.NotNil(t, got.UserInfo, "readable fields are kept")
	assert.Equal(t, "Ada", got.UserInfo.Name)
	assert.Nil(t, got.ShippingAddress)
	assert.True(t, got.UpdatedAt.IsZero())
}

func TestSessionStore_Delete(t *testing.T) {
	store, mr := setupTestRedis(t)
	s := sampleSession()
	require.NoError(t, store.Save(context.Background(), s))

	require.NoError(t, store.Delete(context.Background(), s.ID))
	assert.False(t, mr.Exists("session:"+s.ID))
}

func TestSessionStore_UnavailableRedis(t *testing.T) {
	store, mr := setupTestRedis(t)
	mr.Close()
	ctx := context.Background()

	_, err := store.Load(ctx, "sess-001")
	assert.True(t, errors.Is(err, repository.ErrStorageUnavailable))

	err = store.Save(ctx, sampleSession())
	assert.True(t, errors.Is(err, repository.ErrStorageUnavailable))

	err = store.Delete(ctx, "sess-001")
	assert.True(t, errors.Is(err, repository.ErrStorageUnavailable))
}
