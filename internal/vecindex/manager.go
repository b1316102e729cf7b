package vecindex

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/facegate/facegate/internal/store"
)

// State of the index lifecycle.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoading       State = "loading"
	StateReady         State = "ready"
	// StateDegraded means the persisted index was corrupt and an empty
	// index was substituted. Recognition works but knows nobody until an
	// operator triggers a rebuild.
	StateDegraded   State = "degraded"
	StateRebuilding State = "rebuilding"
)

// ErrRebuildSource wraps identity store failures during rebuild. The
// pre-rebuild index remains authoritative when this is returned.
var ErrRebuildSource = errors.New("identity store unavailable for rebuild")

// Manager owns the live index: load on start, autosave on a write cadence,
// and full rebuild from the identity store with an atomic swap. Searches
// in flight during a swap complete against whichever index they started
// with; the manager never exposes a half-built structure.
type Manager struct {
	dim           int
	path          string // base path for persistence; empty keeps the index in memory only
	autosaveEvery int

	// mut serializes the mutators (Add, Save, Rebuild) against each other.
	// An acknowledged Add must land in whichever index is live after a
	// rebuild swap, so adds wait for an in-flight rebuild instead of
	// racing it. Searches only take mu and are never blocked by mut.
	mut sync.Mutex

	mu            sync.RWMutex
	idx           *Flat
	state         State
	addsSinceSave int
}

// NewManager creates an uninitialized manager. Call Start before use.
func NewManager(dim int, path string, autosaveEvery int) *Manager {
	if autosaveEvery <= 0 {
		autosaveEvery = 10
	}
	return &Manager{
		dim:           dim,
		path:          path,
		autosaveEvery: autosaveEvery,
		state:         StateUninitialized,
	}
}

// Start loads the persisted index, or creates an empty one. A corrupt
// index is replaced by an empty one in the degraded state: a recognition
// outage is preferable to a boot failure, and a rebuild recovers fully.
// Start never fails.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = StateLoading

	if m.path == "" {
		m.idx = NewFlat(m.dim)
		m.state = StateReady
		log.Printf("[index] in-memory index created (dim=%d)", m.dim)
		return
	}

	idx, err := Load(m.path, m.dim)
	switch {
	case err == nil:
		m.idx = idx
		m.state = StateReady
		log.Printf("[index] loaded %d identities from %s", idx.Count(), m.path)
	case errors.Is(err, ErrIndexMissing):
		m.idx = NewFlat(m.dim)
		m.state = StateReady
		log.Printf("[index] no persisted index at %s, starting empty", m.path)
	default:
		m.idx = NewFlat(m.dim)
		m.state = StateDegraded
		log.Printf("[index] load failed (%v), starting empty in degraded state; run a rebuild", err)
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Count returns the number of indexed identities.
func (m *Manager) Count() int {
	m.mu.RLock()
	idx := m.idx
	m.mu.RUnlock()
	if idx == nil {
		return 0
	}
	return idx.Count()
}

// Add indexes one identity embedding and autosaves after every
// autosaveEvery successful adds. Up to autosaveEvery-1 additions can be
// lost on an unclean shutdown; rebuild from the identity store recovers
// them. Add blocks while a rebuild is in flight.
func (m *Manager) Add(personID int64, embedding []float32) error {
	m.mut.Lock()
	defer m.mut.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.idx == nil {
		return fmt.Errorf("index not started")
	}
	if err := m.idx.Add(personID, embedding); err != nil {
		return err
	}

	m.addsSinceSave++
	if m.path != "" && m.addsSinceSave >= m.autosaveEvery {
		if err := m.idx.Save(m.path); err != nil {
			log.Printf("[index] autosave failed: %v", err)
		} else {
			m.addsSinceSave = 0
		}
	}
	return nil
}

// Search runs a read-only scan against the current index. Concurrent with
// other searches; never blocked by a rebuild in progress.
func (m *Manager) Search(query []float32, k int, floor float64) []SearchResult {
	m.mu.RLock()
	idx := m.idx
	m.mu.RUnlock()
	if idx == nil {
		return nil
	}
	return idx.Search(query, k, floor)
}

// Rebuild constructs a fresh index from the identity store and swaps it in
// atomically. The old index keeps serving searches during the build and
// remains authoritative if the source is unreachable or the build fails.
// Other mutators wait until the swap is done. Returns the number of
// identities indexed.
func (m *Manager) Rebuild(ctx context.Context, source store.IdentitySource) (int, error) {
	m.mut.Lock()
	defer m.mut.Unlock()

	prev := m.State()
	m.setState(StateRebuilding)

	records, err := source.ListActive(ctx)
	if err != nil {
		m.setState(prev)
		return 0, fmt.Errorf("%w: %v", ErrRebuildSource, err)
	}

	fresh := NewFlat(m.dim)
	for _, rec := range records {
		if err := fresh.Add(rec.PersonID, rec.Embedding); err != nil {
			// One bad record must not block recovery of the rest.
			log.Printf("[index] rebuild skipping person %d: %v", rec.PersonID, err)
			continue
		}
	}

	// A completed rebuild always clears degradation: the fresh index came
	// from the source of truth.
	m.mu.Lock()
	m.idx = fresh
	m.addsSinceSave = 0
	m.state = StateReady
	m.mu.Unlock()

	if m.path != "" {
		if err := fresh.Save(m.path); err != nil {
			log.Printf("[index] persisting rebuilt index failed: %v", err)
		}
	}

	log.Printf("[index] rebuild complete: %d identities indexed", fresh.Count())
	return fresh.Count(), nil
}

// Save persists the current index, used on graceful shutdown.
func (m *Manager) Save() error {
	m.mut.Lock()
	defer m.mut.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.path == "" || m.idx == nil {
		return nil
	}
	if err := m.idx.Save(m.path); err != nil {
		return fmt.Errorf("saving index: %w", err)
	}
	m.addsSinceSave = 0
	return nil
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}
