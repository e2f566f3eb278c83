package scene

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// HandleID is an opaque reference to a live engine entity.
type HandleID string

// ErrUnknownHandle is returned for operations on disposed or foreign handles.
var ErrUnknownHandle = errors.New("scene: unknown handle")

// Engine is the 3D engine's entity collection as seen by the reconciler.
type Engine interface {
	Create(e Entity) (HandleID, error)
	Update(h HandleID, e Entity) error
	Dispose(h HandleID) error
	// Track locks the camera to h; Untrack releases it.
	Track(h HandleID) error
	Untrack() error
}

// MemoryEngine is a headless Engine. It is the backing store for the
// streaming engine and doubles as a recording fake in tests.
type MemoryEngine struct {
	mu       sync.Mutex
	entities map[HandleID]Entity
	tracked  HandleID

	Created  int
	Updated  int
	Disposed int
}

func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{entities: map[HandleID]Entity{}}
}

func (m *MemoryEngine) Create(e Entity) (HandleID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := HandleID(uuid.NewString())
	m.entities[h] = e
	m.Created++
	return h, nil
}

func (m *MemoryEngine) Update(h HandleID, e Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entities[h]; !ok {
		return ErrUnknownHandle
	}
	m.entities[h] = e
	m.Updated++
	return nil
}

func (m *MemoryEngine) Dispose(h HandleID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entities[h]; !ok {
		return ErrUnknownHandle
	}
	delete(m.entities, h)
	if m.tracked == h {
		m.tracked = ""
	}
	m.Disposed++
	return nil
}

func (m *MemoryEngine) Track(h HandleID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entities[h]; !ok {
		return ErrUnknownHandle
	}
	m.tracked = h
	return nil
}

func (m *MemoryEngine) Untrack() error {
	m.mu.Lock()
	m.tracked = ""
	m.mu.Unlock()
	return nil
}

// Tracked returns the handle the camera is locked to, if any.
func (m *MemoryEngine) Tracked() HandleID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracked
}

// Len returns the number of live entities.
func (m *MemoryEngine) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entities)
}

// Get returns the entity behind h.
func (m *MemoryEngine) Get(h HandleID) (Entity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[h]
	return e, ok
}

// List returns every live entity with its handle, ordered by key.
func (m *MemoryEngine) List() []Handle {
	m.mu.Lock()
	out := make([]Handle, 0, len(m.entities))
	for h, e := range m.entities {
		out = append(out, Handle{ID: h, Entity: e})
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Entity.Key < out[j].Entity.Key })
	return out
}

// Counts returns the create/update/dispose totals.
func (m *MemoryEngine) Counts() (created, updated, disposed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Created, m.Updated, m.Disposed
}
