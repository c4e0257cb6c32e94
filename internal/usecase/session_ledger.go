package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/vitos/binary_mg_bot/internal/domain"
	"go.uber.org/zap"
)

// SessionLedger owns the append-only record of completed sequences and the
// aggregates derived from it. Append is the only place aggregates change.
type SessionLedger struct {
	store  domain.LedgerStore
	logger *zap.Logger

	mu      sync.RWMutex
	session *domain.Session
	agg     domain.SessionAggregates
}

func NewSessionLedger(store domain.LedgerStore, logger *zap.Logger) *SessionLedger {
	return &SessionLedger{store: store, logger: logger}
}

// Start opens a new session with empty aggregates.
func (l *SessionLedger) Start(ctx context.Context, s *domain.Session) error {
	if err := l.store.CreateSession(ctx, s); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	l.mu.Lock()
	l.session = s
	l.agg = domain.NewAggregates(s)
	l.mu.Unlock()

	l.logger.Info("Session started",
		zap.String("session_id", s.ID),
		zap.Float64("starting_balance", s.StartingBalance))
	return nil
}

// Resume loads a stored session and rebuilds its aggregates by replay.
func (l *SessionLedger) Resume(ctx context.Context, sessionID string) error {
	s, err := l.store.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	seqs, err := l.store.ListSequences(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load sequences: %w", err)
	}
	agg := Replay(s, seqs)

	l.mu.Lock()
	l.session = s
	l.agg = agg
	l.mu.Unlock()

	l.logger.Info("Session resumed",
		zap.String("session_id", s.ID),
		zap.Int("sequences", agg.TotalSequences),
		zap.Float64("balance", agg.CurrentBalance))
	return nil
}

// Append durably records a terminal sequence and returns the updated aggregates.
// Aggregates are left unchanged when the store fails.
func (l *SessionLedger) Append(ctx context.Context, seq *domain.Sequence) (domain.SessionAggregates, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.session == nil {
		return l.agg.Clone(), fmt.Errorf("ledger has no open session")
	}
	seq.SessionID = l.session.ID
	if err := l.store.AppendSequence(ctx, seq); err != nil {
		return l.agg.Clone(), fmt.Errorf("failed to append sequence %s: %w", seq.ID, err)
	}
	l.agg = l.agg.Apply(seq)
	return l.agg.Clone(), nil
}

// RecordAlert appends a protection alert for the open session.
func (l *SessionLedger) RecordAlert(ctx context.Context, alert *domain.Alert) error {
	l.mu.RLock()
	if l.session != nil && alert.SessionID == "" {
		alert.SessionID = l.session.ID
	}
	l.mu.RUnlock()
	return l.store.AppendAlert(ctx, alert)
}

// CurrentAggregates returns a copy of the aggregates.
func (l *SessionLedger) CurrentAggregates() domain.SessionAggregates {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.agg.Clone()
}

func (l *SessionLedger) Session() *domain.Session {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.session
}

// Sequences returns the recorded sequences of the open session, newest last.
func (l *SessionLedger) Sequences(ctx context.Context) ([]*domain.Sequence, error) {
	s := l.Session()
	if s == nil {
		return nil, nil
	}
	return l.store.ListSequences(ctx, s.ID)
}

// Alerts returns the alerts of the open session.
func (l *SessionLedger) Alerts(ctx context.Context) ([]*domain.Alert, error) {
	s := l.Session()
	if s == nil {
		return nil, nil
	}
	return l.store.ListAlerts(ctx, s.ID)
}

// Replay derives aggregates from a session header and its sequences in order.
func Replay(s *domain.Session, seqs []*domain.Sequence) domain.SessionAggregates {
	agg := domain.NewAggregates(s)
	for _, seq := range seqs {
		agg = agg.Apply(seq)
	}
	return agg
}
