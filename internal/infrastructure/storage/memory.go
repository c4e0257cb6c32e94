package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/vitos/binary_mg_bot/internal/domain"
)

// MemoryStore keeps the ledger in process memory. Nothing survives a restart.
type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]*domain.Session
	order     []string
	sequences map[string][]*domain.Sequence
	seqIDs    map[string]struct{}
	alerts    map[string][]*domain.Alert
	lastAlert int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:  make(map[string]*domain.Session),
		sequences: make(map[string][]*domain.Sequence),
		seqIDs:    make(map[string]struct{}),
		alerts:    make(map[string][]*domain.Alert),
	}
}

func (m *MemoryStore) CreateSession(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	cp := *s
	m.sessions[s.ID] = &cp
	m.order = append(m.order, s.ID)
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, id string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) LatestSession(ctx context.Context) (*domain.Session, error) {
	m.mu.RLock()
	n := len(m.order)
	var id string
	if n > 0 {
		id = m.order[n-1]
	}
	m.mu.RUnlock()
	if n == 0 {
		return nil, domain.ErrSessionNotFound
	}
	return m.GetSession(ctx, id)
}

func (m *MemoryStore) AppendSequence(_ context.Context, seq *domain.Sequence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[seq.SessionID]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, seq.SessionID)
	}
	if _, dup := m.seqIDs[seq.ID]; dup {
		return fmt.Errorf("sequence %s already recorded", seq.ID)
	}
	m.seqIDs[seq.ID] = struct{}{}
	m.sequences[seq.SessionID] = append(m.sequences[seq.SessionID], copySequence(seq))
	return nil
}

func (m *MemoryStore) ListSequences(_ context.Context, sessionID string) ([]*domain.Sequence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.sequences[sessionID]
	out := make([]*domain.Sequence, len(src))
	for i, s := range src {
		out[i] = copySequence(s)
	}
	return out, nil
}

func (m *MemoryStore) AppendAlert(_ context.Context, a *domain.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastAlert++
	a.ID = m.lastAlert
	cp := *a
	m.alerts[a.SessionID] = append(m.alerts[a.SessionID], &cp)
	return nil
}

func (m *MemoryStore) nextAlertID() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastAlert + 1
}

func (m *MemoryStore) restoreAlert(a *domain.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID > m.lastAlert {
		m.lastAlert = a.ID
	}
	cp := *a
	m.alerts[a.SessionID] = append(m.alerts[a.SessionID], &cp)
	return nil
}

func (m *MemoryStore) ListAlerts(_ context.Context, sessionID string) ([]*domain.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Alert, 0, len(m.alerts[sessionID]))
	for _, a := range m.alerts[sessionID] {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

func copySequence(s *domain.Sequence) *domain.Sequence {
	cp := *s
	cp.Levels = append([]domain.Level(nil), s.Levels...)
	return &cp
}
