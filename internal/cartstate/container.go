package cartstate

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/utafrali/storefront/internal/domain"
)

// Container owns the live state of one session. Every transition goes
// through Dispatch, which serializes them under a mutex.
type Container struct {
	id string

	mu      sync.Mutex
	state   domain.Session
	version uint64
	now     func() time.Time

	lastUsed atomic.Int64
	removed  atomic.Bool

	persistMu sync.Mutex
	persisted uint64
	dirty     bool
}

// NewContainer starts a container from initial.
func NewContainer(initial domain.Session) *Container {
	c := &Container{id: initial.ID, state: initial.Clone(), now: time.Now}
	c.touch()
	return c
}

// ID returns the session id the container serves.
func (c *Container) ID() string {
	return c.id
}

// State returns a snapshot of the current session.
func (c *Container) State() domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	return c.state.Clone()
}

// Snapshot returns the current session together with its version. Pass the
// version to Registry.CommitIf to act on exactly this state.
func (c *Container) Snapshot() (domain.Session, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	return c.state.Clone(), c.version
}

// Dispatch applies a and returns the resulting session.
func (c *Container) Dispatch(a Action) domain.Session {
	s, _ := c.dispatch(a)
	return s
}

func (c *Container) dispatch(a Action) (domain.Session, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := Reduce(c.state, a)
	next.UpdatedAt = c.now().UTC()
	c.state = next
	c.version++
	c.touch()
	dispatchTotal.WithLabelValues(a.Kind()).Inc()
	return next.Clone(), c.version
}

// dispatchIf applies a only while the container is still at version.
// precommit runs under the lock first; its error leaves the state untouched.
func (c *Container) dispatchIf(version uint64, a Action, precommit func() error) (domain.Session, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.version != version {
		return c.state.Clone(), c.version, ErrStale
	}
	if precommit != nil {
		if err := precommit(); err != nil {
			return c.state.Clone(), c.version, err
		}
	}

	next := Reduce(c.state, a)
	next.UpdatedAt = c.now().UTC()
	c.state = next
	c.version++
	c.touch()
	dispatchTotal.WithLabelValues(a.Kind()).Inc()
	return next.Clone(), c.version, nil
}

func (c *Container) touch() {
	c.lastUsed.Store(time.Now().UnixNano())
}

func (c *Container) idleSince() time.Time {
	return time.Unix(0, c.lastUsed.Load())
}
