package cartstate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
)

// memoryStore is a SessionStore double that can be switched off.
type memoryStore struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	down     bool
	loads    int
	saves    int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{sessions: make(map[string]domain.Session)}
}

func (m *memoryStore) Load(_ context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if m.down {
		return nil, fmt.Errorf("load session: %w", repository.ErrStorageUnavailable)
	}
	s, ok := m.sessions[id]
	if !ok {
		s = domain.NewSession(id)
	}
	return &s, nil
}

func (m *memoryStore) Save(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return fmt.Errorf("save session: %w", repository.ErrStorageUnavailable)
	}
	m.saves++
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *memoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memoryStore) setDown(down bool) {
	m.mu.Lock()
	m.down = down
	m.mu.Unlock()
}

func (m *memoryStore) stored(id string) (domain.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistry_HydratesFromStore(t *testing.T) {
	store := newMemoryStore()
	store.sessions["s1"] = domain.Session{
		ID:       "s1",
		DarkMode: true,
		Cart:     domain.CartState{Items: []domain.CartLineItem{{ProductID: "p-mug", Quantity: 2}}},
	}
	reg := NewRegistry(store, time.Minute, quietLogger())

	c := reg.Get(context.Background(), "s1")
	state := c.State()
	assert.True(t, state.DarkMode)
	assert.Equal(t, 2, state.Cart.QuantityOf("p-mug"))

	assert.Same(t, c, reg.Get(context.Background(), "s1"))
	assert.Equal(t, 1, store.loads)
}

func TestRegistry_ConcurrentFirstUseLoadsOnce(t *testing.T) {
	store := newMemoryStore()
	reg := NewRegistry(store, time.Minute, quietLogger())

	var wg sync.WaitGroup
	got := make([]*Container, 20)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = reg.Get(context.Background(), "s1")
		}(i)
	}
	wg.Wait()

	for _, c := range got {
		assert.Same(t, got[0], c)
	}
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_CommitMirrorsIntoStore(t *testing.T) {
	store := newMemoryStore()
	reg := NewRegistry(store, time.Minute, quietLogger())
	c := reg.Get(context.Background(), "s1")

	state := reg.Commit(context.Background(), c, AddItem{Item: mug(5), Quantity: 1})
	assert.Equal(t, 1, state.Cart.QuantityOf("p-mug"))
	assert.False(t, state.UpdatedAt.IsZero())

	stored, ok := store.stored("s1")
	require.True(t, ok)
	assert.Equal(t, 1, stored.Cart.QuantityOf("p-mug"))
}

func TestRegistry_CommitSurvivesCancelledContext(t *testing.T) {
	store := newMemoryStore()
	reg := NewRegistry(store, time.Minute, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	c := reg.Get(ctx, "s1")
	cancel()

	reg.Commit(ctx, c, SetTheme{Dark: true})

	stored, ok := store.stored("s1")
	require.True(t, ok)
	assert.True(t, stored.DarkMode)
}

func TestRegistry_StorageOutageIsMemoryOnly(t *testing.T) {
	store := newMemoryStore()
	store.setDown(true)
	reg := NewRegistry(store, time.Minute, quietLogger())

	c := reg.Get(context.Background(), "s1")
	assert.True(t, c.State().Cart.IsEmpty())

	reg.Commit(context.Background(), c, AddItem{Item: mug(5), Quantity: 1})
	state := reg.Commit(context.Background(), c, AddItem{Item: mug(5), Quantity: 1})

	assert.Equal(t, 2, state.Cart.QuantityOf("p-mug"))
	_, ok := store.stored("s1")
	assert.False(t, ok)
}

func TestRegistry_SweepEvictsIdleContainers(t *testing.T) {
	store := newMemoryStore()
	reg := NewRegistry(store, time.Minute, quietLogger())
	c := reg.Get(context.Background(), "s1")
	reg.Commit(context.Background(), c, AddItem{Item: mug(5), Quantity: 3})

	assert.Equal(t, 0, reg.Sweep(context.Background()), "fresh containers stay")

	reg.now = func() time.Time { return time.Now().Add(time.Hour) }
	assert.Equal(t, 1, reg.Sweep(context.Background()))
	assert.Equal(t, 0, reg.Len())

	rehydrated := reg.Get(context.Background(), "s1")
	assert.NotSame(t, c, rehydrated)
	assert.Equal(t, 3, rehydrated.State().Cart.QuantityOf("p-mug"))
}

func TestRegistry_SweepKeepsUnsavedContainers(t *testing.T) {
	store := newMemoryStore()
	reg := NewRegistry(store, time.Minute, quietLogger())
	reg.now = func() time.Time { return time.Now().Add(time.Hour) }

	c := reg.Get(context.Background(), "s1")
	store.setDown(true)
	reg.Commit(context.Background(), c, AddItem{Item: mug(5), Quantity: 2})

	assert.Equal(t, 0, reg.Sweep(context.Background()))
	assert.Equal(t, 1, reg.Len())

	store.setDown(false)
	assert.Equal(t, 1, reg.Sweep(context.Background()))
	stored, ok := store.stored("s1")
	require.True(t, ok)
	assert.Equal(t, 2, stored.Cart.QuantityOf("p-mug"))
}

func TestRegistry_FlushAllRetriesUnsavedContainers(t *testing.T) {
	store := newMemoryStore()
	reg := NewRegistry(store, time.Hour, quietLogger())

	c := reg.Get(context.Background(), "s1")
	store.setDown(true)
	reg.Commit(context.Background(), c, AddItem{Item: mug(5), Quantity: 3})
	assert.Equal(t, 1, reg.FlushAll(context.Background()))

	store.setDown(false)
	assert.Equal(t, 0, reg.FlushAll(context.Background()))
	stored, ok := store.stored("s1")
	require.True(t, ok)
	assert.Equal(t, 3, stored.Cart.QuantityOf("p-mug"))
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_Remove(t *testing.T) {
	store := newMemoryStore()
	reg := NewRegistry(store, time.Minute, quietLogger())
	c := reg.Get(context.Background(), "s1")
	reg.Commit(context.Background(), c, SetTheme{Dark: true})

	require.NoError(t, reg.Remove(context.Background(), "s1"))
	assert.Equal(t, 0, reg.Len())
	_, ok := store.stored("s1")
	assert.False(t, ok)
}

func TestRegistry_CommitAfterRemoveIsNotPersisted(t *testing.T) {
	store := newMemoryStore()
	reg := NewRegistry(store, time.Minute, quietLogger())
	ctx := context.Background()

	// A request that fetched the container before the session was destroyed.
	held := reg.Get(ctx, "s1")
	reg.Commit(ctx, held, SetTheme{Dark: true})
	require.NoError(t, reg.Remove(ctx, "s1"))

	reg.Commit(ctx, held, AddItem{Item: mug(5), Quantity: 1})

	_, ok := store.stored("s1")
	assert.False(t, ok)
	assert.Equal(t, 0, reg.FlushAll(ctx))
	_, ok = store.stored("s1")
	assert.False(t, ok)

	fresh := reg.Get(ctx, "s1")
	assert.NotSame(t, held, fresh)
	assert.True(t, fresh.State().Cart.IsEmpty())
}

func TestRegistry_CommitIf(t *testing.T) {
	ctx := context.Background()

	t.Run("applies at the snapshot version", func(t *testing.T) {
		store := newMemoryStore()
		reg := NewRegistry(store, time.Minute, quietLogger())
		c := reg.Get(ctx, "s1")
		reg.Commit(ctx, c, AddItem{Item: mug(5), Quantity: 2})

		_, version := c.Snapshot()
		ran := false
		state, err := reg.CommitIf(ctx, c, version, Clear{}, func() error {
			ran = true
			return nil
		})

		require.NoError(t, err)
		assert.True(t, ran)
		assert.True(t, state.Cart.IsEmpty())
		stored, ok := store.stored("s1")
		require.True(t, ok)
		assert.True(t, stored.Cart.IsEmpty())
	})

	t.Run("rejects a stale version", func(t *testing.T) {
		reg := NewRegistry(newMemoryStore(), time.Minute, quietLogger())
		c := reg.Get(ctx, "s1")
		reg.Commit(ctx, c, AddItem{Item: mug(5), Quantity: 2})
		_, version := c.Snapshot()

		reg.Commit(ctx, c, AddItem{Item: mug(5), Quantity: 1})
		ran := false
		_, err := reg.CommitIf(ctx, c, version, Clear{}, func() error {
			ran = true
			return nil
		})

		require.ErrorIs(t, err, ErrStale)
		assert.False(t, ran)
		assert.Equal(t, 3, c.State().Cart.QuantityOf("p-mug"))
	})

	t.Run("precommit error aborts", func(t *testing.T) {
		reg := NewRegistry(newMemoryStore(), time.Minute, quietLogger())
		c := reg.Get(ctx, "s1")
		reg.Commit(ctx, c, AddItem{Item: mug(5), Quantity: 2})
		_, version := c.Snapshot()

		boom := fmt.Errorf("broker down")
		_, err := reg.CommitIf(ctx, c, version, Clear{}, func() error { return boom })

		require.ErrorIs(t, err, boom)
		state, after := c.Snapshot()
		assert.Equal(t, version, after)
		assert.Equal(t, 2, state.Cart.QuantityOf("p-mug"))
	})
}

func TestContainer_ConcurrentDispatchesAreSerialized(t *testing.T) {
	c := NewContainer(domain.NewSession("s1"))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Dispatch(AddItem{Item: mug(1000), Quantity: 1})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, c.State().Cart.QuantityOf("p-mug"))
}

func TestContainer_StateIsASnapshot(t *testing.T) {
	c := NewContainer(domain.NewSession("s1"))
	c.Dispatch(AddItem{Item: mug(5), Quantity: 1})

	snap := c.State()
	snap.Cart.Items[0].Quantity = 99

	assert.Equal(t, 1, c.State().Cart.QuantityOf("p-mug"))
	assert.Equal(t, "s1", c.ID())
}
