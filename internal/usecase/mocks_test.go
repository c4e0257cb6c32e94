package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vitos/binary_mg_bot/internal/domain"
)

// fakeClock advances its own time whenever something waits on it.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type stepKind int

const (
	stepWin stepKind = iota
	stepLoss
	stepDoji
	stepTimeout
	stepBlock
)

// outcomeStep scripts one AwaitOutcome call.
type outcomeStep struct {
	kind    stepKind
	entered chan struct{}
	release chan struct{}
}

type placement struct {
	Asset     string
	Direction domain.Direction
	Amount    float64
	Duration  int
}

// MockBroker plays back scripted outcomes. ConnectDelay stalls Connect
// without watching ctx, like a hung handshake.
type MockBroker struct {
	mu           sync.Mutex
	Balance      float64
	Payout       float64
	PayoutErr    error
	PlaceErr     error
	ConnectErrs  []error
	ConnectDelay time.Duration
	Steps        []outcomeStep
	Candles      []domain.Candle
	History      map[string][]domain.Candle
	Assets       []domain.Asset

	Connects int
	Closes   int
	Placed   []placement
}

func (m *MockBroker) Connect(ctx context.Context, creds domain.Credentials, mode domain.AccountMode) error {
	m.mu.Lock()
	delay := m.ConnectDelay
	m.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Connects++
	if len(m.ConnectErrs) == 0 {
		return nil
	}
	err := m.ConnectErrs[0]
	m.ConnectErrs = m.ConnectErrs[1:]
	return err
}

func (m *MockBroker) Close() error {
	m.mu.Lock()
	m.Closes++
	m.mu.Unlock()
	return nil
}

func (m *MockBroker) GetBalance(ctx context.Context, mode domain.AccountMode) (float64, error) {
	return m.Balance, nil
}

func (m *MockBroker) ListAssets(ctx context.Context) ([]domain.Asset, error) {
	return m.Assets, nil
}

func (m *MockBroker) GetPayout(ctx context.Context, asset string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Payout, m.PayoutErr
}

func (m *MockBroker) PlaceTrade(ctx context.Context, asset string, dir domain.Direction, amount float64, duration int) (*domain.TradeHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PlaceErr != nil {
		return nil, m.PlaceErr
	}
	m.Placed = append(m.Placed, placement{Asset: asset, Direction: dir, Amount: amount, Duration: duration})
	return &domain.TradeHandle{ID: fmt.Sprintf("%s-%d", asset, len(m.Placed)), Amount: amount}, nil
}

func (m *MockBroker) AwaitOutcome(ctx context.Context, handle *domain.TradeHandle, timeout time.Duration) (*domain.TradeResult, error) {
	m.mu.Lock()
	if len(m.Steps) == 0 {
		m.mu.Unlock()
		return nil, errors.New("no scripted outcome")
	}
	step := m.Steps[0]
	m.Steps = m.Steps[1:]
	payout := m.Payout
	m.mu.Unlock()

	if step.entered != nil {
		close(step.entered)
	}
	if step.release != nil {
		select {
		case <-step.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	switch step.kind {
	case stepBlock:
		<-ctx.Done()
		return nil, ctx.Err()
	case stepTimeout:
		return nil, domain.ErrOutcomeTimeout
	case stepWin:
		return &domain.TradeResult{Won: true, Profit: domain.RoundMoney(handle.Amount * payout / 100)}, nil
	case stepDoji:
		return &domain.TradeResult{}, nil
	}
	return &domain.TradeResult{Profit: -handle.Amount}, nil
}

func (m *MockBroker) GetCandles(ctx context.Context, asset string, duration, count int, timeout time.Duration) ([]domain.Candle, error) {
	if m.History != nil {
		candles, ok := m.History[asset]
		if !ok {
			return nil, fmt.Errorf("no history for %s", asset)
		}
		return candles, nil
	}
	return m.Candles, nil
}

func (m *MockBroker) PlacedAmounts() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]float64, 0, len(m.Placed))
	for _, p := range m.Placed {
		out = append(out, p.Amount)
	}
	return out
}

// MockSource hands out a fixed list of signals and then reports exhaustion.
type MockSource struct {
	mu      sync.Mutex
	Signals []*domain.Signal
}

func (s *MockSource) Next(ctx context.Context) (*domain.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Signals) == 0 {
		return nil, domain.ErrSourceExhausted
	}
	sig := s.Signals[0]
	s.Signals = s.Signals[1:]
	return sig, nil
}

func (s *MockSource) Kind() domain.SourceKind { return domain.SourceManual }

// MockStore keeps the ledger in memory and can be told to fail appends.
type MockStore struct {
	mu         sync.Mutex
	Sessions   map[string]*domain.Session
	Seqs       []*domain.Sequence
	AlertList  []*domain.Alert
	AppendErr  error
	lastCreate *domain.Session
}

func NewMockStore() *MockStore {
	return &MockStore{Sessions: map[string]*domain.Session{}}
}

func (s *MockStore) CreateSession(ctx context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Sessions[sess.ID] = sess
	s.lastCreate = sess
	return nil
}

func (s *MockStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.Sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

func (s *MockStore) LatestSession(ctx context.Context) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastCreate == nil {
		return nil, domain.ErrSessionNotFound
	}
	return s.lastCreate, nil
}

func (s *MockStore) AppendSequence(ctx context.Context, seq *domain.Sequence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AppendErr != nil {
		return s.AppendErr
	}
	cp := *seq
	s.Seqs = append(s.Seqs, &cp)
	return nil
}

func (s *MockStore) ListSequences(ctx context.Context, sessionID string) ([]*domain.Sequence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Sequence
	for _, seq := range s.Seqs {
		if seq.SessionID == sessionID {
			out = append(out, seq)
		}
	}
	return out, nil
}

func (s *MockStore) AppendAlert(ctx context.Context, alert *domain.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert.ID = int64(len(s.AlertList) + 1)
	s.AlertList = append(s.AlertList, alert)
	return nil
}

func (s *MockStore) ListAlerts(ctx context.Context, sessionID string) ([]*domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.AlertList, nil
}

func (s *MockStore) Close() error { return nil }

func (s *MockStore) Sequences() []*domain.Sequence {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.Sequence(nil), s.Seqs...)
}

// MockNotifier records every event.
type MockNotifier struct {
	mu     sync.Mutex
	Events []domain.Event
}

func (n *MockNotifier) Notify(ctx context.Context, ev domain.Event) {
	n.mu.Lock()
	n.Events = append(n.Events, ev)
	n.mu.Unlock()
}

func (n *MockNotifier) Count(kind domain.EventKind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, ev := range n.Events {
		if ev.Kind == kind {
			c++
		}
	}
	return c
}
