package cartstate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
)

// ErrStale means the session changed after the snapshot a conditional commit
// was based on.
var ErrStale = errors.New("session changed since it was read")

// Registry maps session ids to their live containers. A container is
// hydrated from the store on first use and its state is written back after
// every committed transition. The store is only ever a mirror.
type Registry struct {
	store   repository.SessionStore
	idleTTL time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu         sync.Mutex
	containers map[string]*Container
	hydrate    singleflight.Group
}

// NewRegistry creates a registry backed by store. Containers unused for
// idleTTL are dropped by Sweep.
func NewRegistry(store repository.SessionStore, idleTTL time.Duration, logger *slog.Logger) *Registry {
	return &Registry{
		store:      store,
		idleTTL:    idleTTL,
		logger:     logger,
		now:        time.Now,
		containers: make(map[string]*Container),
	}
}

// Get returns the live container for id, loading it from the store when
// needed. An unreachable or corrupt store yields a fresh session.
func (r *Registry) Get(ctx context.Context, id string) *Container {
	if c := r.lookup(id); c != nil {
		return c
	}

	// Concurrent first requests for one session share a single load. The load
	// must not be cut short by whichever caller happened to start it.
	v, _, _ := r.hydrate.Do(id, func() (any, error) {
		if c := r.lookup(id); c != nil {
			return c, nil
		}
		return r.insert(r.load(context.WithoutCancel(ctx), id)), nil
	})
	return v.(*Container)
}

// Commit dispatches a on c and mirrors the result into the store. A store
// failure is logged and counted; the transition stands either way.
func (r *Registry) Commit(ctx context.Context, c *Container, a Action) domain.Session {
	state, version := c.dispatch(a)
	r.persist(context.WithoutCancel(ctx), c, state, version)
	return state
}

// CommitIf dispatches a on c only if c is still at version, the version
// returned by Snapshot. Otherwise it returns ErrStale and changes nothing.
// precommit, when set, runs while the container is locked; an error from it
// aborts the transition and is returned as is.
func (r *Registry) CommitIf(ctx context.Context, c *Container, version uint64, a Action, precommit func() error) (domain.Session, error) {
	state, next, err := c.dispatchIf(version, a, precommit)
	if err != nil {
		return state, err
	}
	r.persist(context.WithoutCancel(ctx), c, state, next)
	return state, nil
}

// Remove drops the container and its stored record. Requests still holding
// the container may commit to it afterwards, but nothing more is written.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	c, ok := r.containers[id]
	if ok {
		delete(r.containers, id)
		liveSessions.Dec()
	}
	r.mu.Unlock()

	if ok {
		c.persistMu.Lock()
		c.removed.Store(true)
		c.persistMu.Unlock()
	}

	return r.store.Delete(ctx, id)
}

// Len reports how many containers are live.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.containers)
}

// Sweep evicts containers idle for longer than the idle TTL. A container whose
// last write-back failed gets one more save attempt and stays live if that
// fails too, so memory-only state is not thrown away.
func (r *Registry) Sweep(ctx context.Context) int {
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	var idle []*Container
	for _, c := range r.containers {
		if c.idleSince().Before(cutoff) {
			idle = append(idle, c)
		}
	}
	r.mu.Unlock()

	evicted := 0
	for _, c := range idle {
		if !r.flush(ctx, c) {
			continue
		}
		r.mu.Lock()
		// Skip containers used again while we were flushing.
		if c.idleSince().Before(cutoff) {
			delete(r.containers, c.ID())
			liveSessions.Dec()
			evicted++
		}
		r.mu.Unlock()
	}

	if evicted > 0 {
		r.logger.DebugContext(ctx, "evicted idle sessions", slog.Int("count", evicted))
	}
	return evicted
}

// FlushAll retries the write-back of every container whose last save
// failed and returns how many are still unsaved.
func (r *Registry) FlushAll(ctx context.Context) int {
	r.mu.Lock()
	live := make([]*Container, 0, len(r.containers))
	for _, c := range r.containers {
		live = append(live, c)
	}
	r.mu.Unlock()

	unsaved := 0
	for _, c := range live {
		if !r.flush(ctx, c) {
			unsaved++
		}
	}
	return unsaved
}

// Run sweeps idle containers until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	interval := r.idleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

func (r *Registry) lookup(id string) *Container {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.containers[id]
	if ok {
		c.touch()
	}
	return c
}

func (r *Registry) insert(c *Container) *Container {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := c.ID()
	if existing, ok := r.containers[id]; ok {
		return existing
	}
	r.containers[id] = c
	liveSessions.Inc()
	return c
}

func (r *Registry) load(ctx context.Context, id string) *Container {
	s, err := r.store.Load(ctx, id)
	if err != nil {
		storageDegradedTotal.WithLabelValues("load").Inc()
		r.logger.WarnContext(ctx, "session store unavailable, starting memory-only session",
			slog.String("session_id", id),
			slog.String("error", err.Error()),
		)
		return NewContainer(domain.NewSession(id))
	}
	s.ID = id
	return NewContainer(*s)
}

func (r *Registry) persist(ctx context.Context, c *Container, state domain.Session, version uint64) {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	if c.removed.Load() {
		return
	}

	// A later transition already reached the store; writing this one would
	// roll the mirror back.
	if version <= c.persisted {
		return
	}
	c.persisted = version

	if err := r.store.Save(ctx, &state); err != nil {
		c.dirty = true
		storageDegradedTotal.WithLabelValues("save").Inc()
		r.logger.WarnContext(ctx, "session store unavailable, continuing in memory",
			slog.String("session_id", state.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	c.dirty = false
}

func (r *Registry) flush(ctx context.Context, c *Container) bool {
	if c.removed.Load() {
		return true
	}
	c.persistMu.Lock()
	dirty := c.dirty
	c.persistMu.Unlock()
	if !dirty {
		return true
	}

	c.mu.Lock()
	state, version := c.state.Clone(), c.version
	c.mu.Unlock()

	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	if c.removed.Load() {
		return true
	}
	if version < c.persisted {
		return false
	}
	if err := r.store.Save(ctx, &state); err != nil {
		storageDegradedTotal.WithLabelValues("save").Inc()
		return false
	}
	c.persisted = version
	c.dirty = false
	return true
}
