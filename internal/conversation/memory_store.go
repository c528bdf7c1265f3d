package conversation

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps dialogs in process memory and forgets them after ttl.
type MemoryStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	states map[int64]State
}

// NewMemoryStore creates a store; a zero ttl keeps dialogs forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:    ttl,
		now:    time.Now,
		states: make(map[int64]State),
	}
}

func (m *MemoryStore) Get(_ context.Context, userID int64) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[userID]
	if !ok {
		return nil, nil
	}
	if m.ttl > 0 && m.now().Sub(st.UpdatedAt) > m.ttl {
		delete(m.states, userID)
		return nil, nil
	}
	return &st, nil
}

func (m *MemoryStore) Save(_ context.Context, userID int64, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := *state
	st.UpdatedAt = m.now()
	m.states[userID] = st
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.states, userID)
	return nil
}
