package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/binary_mg_bot/internal/domain"
	"go.uber.org/zap"
)

func testSequence(id, session string, outcome domain.SequenceOutcome, profits ...float64) *domain.Sequence {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	seq := &domain.Sequence{
		ID:        id,
		SessionID: session,
		Signal:    domain.Signal{Asset: "EURUSD_otc", Direction: domain.DirectionCall, Duration: 60, Source: domain.SourceManual},
		Outcome:   outcome,
		StartedAt: start,
		EndedAt:   start.Add(time.Minute),
	}
	for i, p := range profits {
		o := domain.OutcomeWin
		if p < 0 {
			o = domain.OutcomeLoss
		}
		seq.Levels = append(seq.Levels, domain.Level{Index: i, Stake: 10, Payout: 0.85, Outcome: o, Profit: p})
	}
	return seq
}

func runStoreContract(t *testing.T, store domain.LedgerStore) {
	ctx := context.Background()
	sess := &domain.Session{
		ID:              "s-1",
		StartedAt:       time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		StartingBalance: 1000,
		AccountMode:     domain.AccountPractice,
		Source:          domain.SourceManual,
	}
	require.NoError(t, store.CreateSession(ctx, sess))

	got, err := store.GetSession(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, got.StartingBalance)
	assert.True(t, sess.StartedAt.Equal(got.StartedAt))

	_, err = store.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	require.NoError(t, store.AppendSequence(ctx, testSequence("q-1", "s-1", domain.SequenceWin, 8.5)))
	require.NoError(t, store.AppendSequence(ctx, testSequence("q-2", "s-1", domain.SequenceWin, -10, 12.8)))
	require.NoError(t, store.AppendSequence(ctx, testSequence("q-3", "s-1", domain.SequenceLoss, -10, -21.76, -49.7)))

	seqs, err := store.ListSequences(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, seqs, 3)
	assert.Equal(t, "q-1", seqs[0].ID)
	assert.Equal(t, "q-3", seqs[2].ID)
	assert.Len(t, seqs[2].Levels, 3)
	assert.InDelta(t, -81.46, seqs[2].Profit(), 1e-9)

	alert := &domain.Alert{
		SessionID: "s-1",
		Timestamp: time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC),
		Reason:    domain.ReasonLossStreak,
		Message:   "5 consecutive losses",
		Snapshot:  domain.SessionAggregates{SessionID: "s-1", ConsecutiveLosses: 5},
	}
	require.NoError(t, store.AppendAlert(ctx, alert))
	assert.NotZero(t, alert.ID)

	alerts, err := store.ListAlerts(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.ReasonLossStreak, alerts[0].Reason)
	assert.Equal(t, 5, alerts[0].Snapshot.ConsecutiveLosses)

	latest, err := store.LatestSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s-1", latest.ID)
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer store.Close()
	runStoreContract(t, store)
}

func TestSQLiteStore_DuplicateSequenceRejected(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.CreateSession(ctx, &domain.Session{ID: "s-1", AccountMode: domain.AccountPractice}))
	require.NoError(t, store.AppendSequence(ctx, testSequence("q-1", "s-1", domain.SequenceWin, 8.5)))
	assert.Error(t, store.AppendSequence(ctx, testSequence("q-1", "s-1", domain.SequenceWin, 8.5)))
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestJSONLStore(t *testing.T) {
	store, err := NewJSONLStore(filepath.Join(t.TempDir(), "ledger.jsonl"), zap.NewNop())
	require.NoError(t, err)
	defer store.Close()
	runStoreContract(t, store)
}

func TestJSONLStore_ReopenReplaysAndDropsTornRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	ctx := context.Background()

	store, err := NewJSONLStore(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.CreateSession(ctx, &domain.Session{ID: "s-1", StartingBalance: 500, AccountMode: domain.AccountPractice}))
	require.NoError(t, store.AppendSequence(ctx, testSequence("q-1", "s-1", domain.SequenceWin, 8.5)))
	require.NoError(t, store.Close())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"type":"sequence","sequence":{"id":"q-2","sess`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	store, err = NewJSONLStore(path, zap.NewNop())
	require.NoError(t, err)
	seqs, err := store.ListSequences(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, seqs, 1)
	assert.Equal(t, "q-1", seqs[0].ID)

	require.NoError(t, store.AppendSequence(ctx, testSequence("q-3", "s-1", domain.SequenceDoji, -10, 0)))
	require.NoError(t, store.Close())

	store, err = NewJSONLStore(path, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()
	seqs, err = store.ListSequences(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, seqs, 2)
	assert.Equal(t, "q-3", seqs[1].ID)
}

// faultyFile tears the next write in half or fails the next sync.
type faultyFile struct {
	*os.File
	tearWrite bool
	failSync  bool
}

func (f *faultyFile) Write(p []byte) (int, error) {
	if f.tearWrite {
		f.tearWrite = false
		n, _ := f.File.Write(p[:len(p)/2])
		return n, errors.New("no space left on device")
	}
	return f.File.Write(p)
}

func (f *faultyFile) Sync() error {
	if f.failSync {
		f.failSync = false
		return errors.New("input/output error")
	}
	return f.File.Sync()
}

func TestJSONLStore_FailedWriteIsRolledBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	ctx := context.Background()

	osFile, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	f := &faultyFile{File: osFile}
	store, err := newJSONLStore(f, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, store.CreateSession(ctx, &domain.Session{ID: "s-1", StartingBalance: 500, AccountMode: domain.AccountPractice}))
	require.NoError(t, store.AppendSequence(ctx, testSequence("q-1", "s-1", domain.SequenceWin, 8.5)))
	before, err := os.Stat(path)
	require.NoError(t, err)

	f.tearWrite = true
	require.Error(t, store.AppendSequence(ctx, testSequence("q-2", "s-1", domain.SequenceLoss, -10, -21.76)))
	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, before.Size(), after.Size())

	f.failSync = true
	require.Error(t, store.AppendSequence(ctx, testSequence("q-3", "s-1", domain.SequenceLoss, -10, -21.76)))

	require.NoError(t, store.AppendSequence(ctx, testSequence("q-4", "s-1", domain.SequenceWin, -10, 18.5)))
	seqs, err := store.ListSequences(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, seqs, 2)
	require.NoError(t, store.Close())

	store, err = NewJSONLStore(path, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()
	seqs, err = store.ListSequences(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, seqs, 2)
	assert.Equal(t, "q-1", seqs[0].ID)
	assert.Equal(t, "q-4", seqs[1].ID)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "", "", zap.NewNop())
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestPlaceholderRebind(t *testing.T) {
	s := &sqlStore{d: postgresDialect}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", s.q("SELECT * FROM t WHERE a = ? AND b = ?"))
	s = &sqlStore{d: sqliteDialect}
	assert.Equal(t, "a = ?", s.q("a = ?"))
}
