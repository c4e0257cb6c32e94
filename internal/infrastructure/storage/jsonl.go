package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/vitos/binary_mg_bot/internal/domain"
	"go.uber.org/zap"
)

type record struct {
	Type     string           `json:"type"`
	Session  *domain.Session  `json:"session,omitempty"`
	Sequence *domain.Sequence `json:"sequence,omitempty"`
	Alert    *domain.Alert    `json:"alert,omitempty"`
}

// ledgerFile is the part of *os.File the JSONL store writes through.
type ledgerFile interface {
	io.ReadWriteSeeker
	Truncate(size int64) error
	Sync() error
	Close() error
}

// JSONLStore appends one JSON record per line and fsyncs every write.
// A torn trailing record from a crash is cut off when the file is opened,
// and a failed write is cut off before the call returns.
type JSONLStore struct {
	mu     sync.Mutex
	f      ledgerFile
	end    int64
	mem    *MemoryStore
	logger *zap.Logger
}

func NewJSONLStore(path string, logger *zap.Logger) (*JSONLStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	return newJSONLStore(f, logger)
}

func newJSONLStore(f ledgerFile, logger *zap.Logger) (*JSONLStore, error) {
	s := &JSONLStore{f: f, mem: NewMemoryStore(), logger: logger}
	if err := s.load(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func (s *JSONLStore) load() error {
	ctx := context.Background()
	r := bufio.NewReader(s.f)
	var good int64
	for {
		line, err := r.ReadBytes('\n')
		if err == io.EOF {
			if len(bytes.TrimSpace(line)) > 0 {
				s.logger.Warn("Truncating incomplete ledger record", zap.Int64("offset", good))
			}
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read ledger: %w", err)
		}
		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			s.logger.Warn("Truncating corrupt ledger record", zap.Int64("offset", good), zap.Error(err))
			break
		}
		if err := s.apply(ctx, rec); err != nil {
			return err
		}
		good += int64(len(line))
	}
	if err := s.f.Truncate(good); err != nil {
		return fmt.Errorf("failed to truncate ledger: %w", err)
	}
	if _, err := s.f.Seek(good, io.SeekStart); err != nil {
		return err
	}
	s.end = good
	return nil
}

func (s *JSONLStore) apply(ctx context.Context, rec record) error {
	switch {
	case rec.Type == "session" && rec.Session != nil:
		return s.mem.CreateSession(ctx, rec.Session)
	case rec.Type == "sequence" && rec.Sequence != nil:
		return s.mem.AppendSequence(ctx, rec.Sequence)
	case rec.Type == "alert" && rec.Alert != nil:
		return s.mem.restoreAlert(rec.Alert)
	}
	return fmt.Errorf("unknown ledger record %q", rec.Type)
}

func (s *JSONLStore) write(rec record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	if _, err := s.f.Write(line); err != nil {
		return s.rollback(fmt.Errorf("failed to write ledger record: %w", err))
	}
	if err := s.f.Sync(); err != nil {
		return s.rollback(fmt.Errorf("failed to sync ledger: %w", err))
	}
	s.end += int64(len(line))
	return nil
}

// rollback cuts the file back to the last complete record after a failed write.
func (s *JSONLStore) rollback(cause error) error {
	if err := s.f.Truncate(s.end); err != nil {
		s.logger.Error("Ledger rollback failed", zap.Int64("offset", s.end), zap.Error(err))
		return fmt.Errorf("%w (rollback: %v)", cause, err)
	}
	if _, err := s.f.Seek(s.end, io.SeekStart); err != nil {
		s.logger.Error("Ledger rollback failed", zap.Int64("offset", s.end), zap.Error(err))
		return fmt.Errorf("%w (rollback: %v)", cause, err)
	}
	s.logger.Warn("Ledger write rolled back", zap.Int64("offset", s.end), zap.Error(cause))
	return cause
}

func (s *JSONLStore) CreateSession(ctx context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(record{Type: "session", Session: sess}); err != nil {
		return err
	}
	return s.mem.CreateSession(ctx, sess)
}

func (s *JSONLStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	return s.mem.GetSession(ctx, id)
}

func (s *JSONLStore) LatestSession(ctx context.Context) (*domain.Session, error) {
	return s.mem.LatestSession(ctx)
}

func (s *JSONLStore) AppendSequence(ctx context.Context, seq *domain.Sequence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(record{Type: "sequence", Sequence: seq}); err != nil {
		return err
	}
	return s.mem.AppendSequence(ctx, seq)
}

func (s *JSONLStore) ListSequences(ctx context.Context, sessionID string) ([]*domain.Sequence, error) {
	return s.mem.ListSequences(ctx, sessionID)
}

func (s *JSONLStore) AppendAlert(ctx context.Context, a *domain.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.mem.nextAlertID()
	if err := s.write(record{Type: "alert", Alert: a}); err != nil {
		return err
	}
	return s.mem.restoreAlert(a)
}

func (s *JSONLStore) ListAlerts(ctx context.Context, sessionID string) ([]*domain.Alert, error) {
	return s.mem.ListAlerts(ctx, sessionID)
}

func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
