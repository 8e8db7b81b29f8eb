package player

import (
	"sync"
	"time"

	"github.com/voyagen/worldtv/internal/models"
)

// Manager owns one sink and the single session allowed to drive it.
type Manager struct {
	opts Options

	mu      sync.Mutex
	current *Session
}

// NewManager creates a Manager; opts.Sink is the shared playback sink.
func NewManager(opts Options) *Manager {
	opts.defaults()
	return &Manager{opts: opts}
}

// Open closes the current session, releasing its engine, and opens ch on a
// new one. Re-opening the channel that is already loading or playing returns
// the existing session unchanged, so repeated requests for the same open do
// not reload the stream or report it twice.
func (m *Manager) Open(ch models.Channel) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur := m.current; cur != nil {
		snap := cur.Snapshot()
		if snap.ChannelKey == ch.StreamKey() && snap.State != StateError && snap.State != StateClosed {
			return cur, nil
		}
		cur.Close()
	}
	s := NewSession(m.opts)
	m.current = s
	if err := s.Open(ch); err != nil {
		return nil, err
	}
	return s, nil
}

// Current returns the open session, or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Close closes the open session, if any.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.Close()
		m.current = nil
	}
}

// DefaultIdleTimeout is how long a user's manager survives without requests.
const DefaultIdleTimeout = 30 * time.Minute

// Registry keeps one Manager per user, each with its own sink. Managers
// unused for the idle timeout are closed and dropped when new users arrive.
type Registry struct {
	newManager func(userID string) *Manager
	idle       time.Duration
	now        func() time.Time

	mu       sync.Mutex
	managers map[string]*registryEntry
}

type registryEntry struct {
	m    *Manager
	used time.Time
}

// NewRegistry creates a Registry that builds managers lazily with newManager.
func NewRegistry(newManager func(userID string) *Manager) *Registry {
	return &Registry{
		newManager: newManager,
		idle:       DefaultIdleTimeout,
		now:        time.Now,
		managers:   map[string]*registryEntry{},
	}
}

// For returns the user's manager, creating it on first use.
func (r *Registry) For(userID string) *Manager {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if e, ok := r.managers[userID]; ok {
		e.used = now
		return e.m
	}
	r.sweepLocked(now)
	e := &registryEntry{m: r.newManager(userID), used: now}
	r.managers[userID] = e
	return e.m
}

// Lookup returns the user's manager without creating one.
func (r *Registry) Lookup(userID string) (*Manager, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.managers[userID]
	if !ok {
		return nil, false
	}
	e.used = r.now()
	return e.m, true
}

// Release closes the user's session and forgets the manager.
func (r *Registry) Release(userID string) {
	r.mu.Lock()
	e, ok := r.managers[userID]
	delete(r.managers, userID)
	r.mu.Unlock()
	if ok {
		e.m.Close()
	}
}

// Len returns the number of live managers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.managers)
}

func (r *Registry) sweepLocked(now time.Time) {
	for id, e := range r.managers {
		if now.Sub(e.used) >= r.idle {
			e.m.Close()
			delete(r.managers, id)
		}
	}
}

// CloseAll closes every open session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.managers {
		e.m.Close()
	}
}
