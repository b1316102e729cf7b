// Package mock provides mock implementations of storage interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/facegate/facegate/internal/store"
)

// MockIdentityStore is a mock implementation of store.IdentityStore.
type MockIdentityStore struct {
	mu         sync.RWMutex
	identities map[int64]store.IdentityRecord
	nextID     int64

	// Error injection
	ListActiveError error
	GetError        error
	SaveError       error
	DeactivateError error
	CountError      error
}

// NewMockIdentityStore creates a new mock identity store.
func NewMockIdentityStore() *MockIdentityStore {
	return &MockIdentityStore{
		identities: make(map[int64]store.IdentityRecord),
		nextID:     1,
	}
}

// AddIdentity seeds an identity, assigning an id when the record has none.
func (m *MockIdentityStore) AddIdentity(rec store.IdentityRecord) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.PersonID == 0 {
		rec.PersonID = m.nextID
	}
	if rec.Status == "" {
		rec.Status = store.StatusActive
	}
	if rec.PersonID >= m.nextID {
		m.nextID = rec.PersonID + 1
	}
	m.identities[rec.PersonID] = rec
	return rec.PersonID
}

// ListActive returns all identities with status "active", ordered by id.
func (m *MockIdentityStore) ListActive(ctx context.Context) ([]store.IdentityRecord, error) {
	if m.ListActiveError != nil {
		return nil, m.ListActiveError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []store.IdentityRecord
	for _, rec := range m.identities {
		if rec.Status == store.StatusActive {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].PersonID < records[j].PersonID })
	return records, nil
}

// Get retrieves an identity by person id.
func (m *MockIdentityStore) Get(ctx context.Context, personID int64) (*store.IdentityRecord, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.identities[personID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Save inserts or replaces an identity record.
func (m *MockIdentityStore) Save(ctx context.Context, rec store.IdentityRecord) (int64, error) {
	if m.SaveError != nil {
		return 0, m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec.PersonID == 0 {
		rec.PersonID = m.nextID
		m.nextID++
	} else if _, ok := m.identities[rec.PersonID]; !ok {
		return 0, fmt.Errorf("identity %d not found", rec.PersonID)
	}
	rec.Status = store.StatusActive
	m.identities[rec.PersonID] = rec
	return rec.PersonID, nil
}

// Deactivate flips an identity to inactive.
func (m *MockIdentityStore) Deactivate(ctx context.Context, personID int64) error {
	if m.DeactivateError != nil {
		return m.DeactivateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.identities[personID]
	if !ok {
		return fmt.Errorf("identity %d not found", personID)
	}
	rec.Status = store.StatusInactive
	m.identities[personID] = rec
	return nil
}

// Count returns the number of identities, active or not.
func (m *MockIdentityStore) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.identities), nil
}

// MockAttendanceWriter is a mock implementation of store.AttendanceWriter.
type MockAttendanceWriter struct {
	mu      sync.Mutex
	Records []store.AttendanceRecord

	// Error injection
	RecordError error
}

// NewMockAttendanceWriter creates a new mock attendance writer.
func NewMockAttendanceWriter() *MockAttendanceWriter {
	return &MockAttendanceWriter{}
}

// RecordAttendance appends a check-in record.
func (m *MockAttendanceWriter) RecordAttendance(ctx context.Context, rec store.AttendanceRecord) error {
	if m.RecordError != nil {
		return m.RecordError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.UID == "" {
		rec.UID = uuid.NewString()
	}
	m.Records = append(m.Records, rec)
	return nil
}

// Recorded returns a copy of all recorded check-ins.
func (m *MockAttendanceWriter) Recorded() []store.AttendanceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.AttendanceRecord, len(m.Records))
	copy(out, m.Records)
	return out
}
