package domain

import (
	"context"
	"time"
)

// Credentials authenticate a broker session.
type Credentials struct {
	Email    string
	Password string
	Token    string
}

// TradeHandle identifies a placed trade at the broker.
type TradeHandle struct {
	ID       string    `json:"id"`
	Asset    string    `json:"asset"`
	Amount   float64   `json:"amount"`
	Duration int       `json:"duration"`
	PlacedAt time.Time `json:"placed_at"`
}

// TradeResult is what the broker reports once a trade expires.
type TradeResult struct {
	Won    bool
	Profit float64
}

// BrokerGateway defines the interface for interacting with a binary-options broker.
type BrokerGateway interface {
	Connect(ctx context.Context, creds Credentials, mode AccountMode) error
	Close() error
	GetBalance(ctx context.Context, mode AccountMode) (float64, error)
	ListAssets(ctx context.Context) ([]Asset, error)
	GetPayout(ctx context.Context, asset string) (float64, error)
	PlaceTrade(ctx context.Context, asset string, dir Direction, amount float64, duration int) (*TradeHandle, error)
	// AwaitOutcome blocks until the trade expires, ctx is done or timeout elapses.
	// It returns ErrOutcomeTimeout when no result arrived in time.
	AwaitOutcome(ctx context.Context, handle *TradeHandle, timeout time.Duration) (*TradeResult, error)
	GetCandles(ctx context.Context, asset string, duration, count int, timeout time.Duration) ([]Candle, error)
}

// SignalSource produces candidate signals.
// Next returns (nil, nil) when no signal is available this round and
// ErrSourceExhausted when the source will never produce another one.
type SignalSource interface {
	Next(ctx context.Context) (*Signal, error)
	Kind() SourceKind
}

// StrategyMeta is exposed by sources backed by a candle strategy.
type StrategyMeta struct {
	MinCandles          int
	RecommendedDuration int
}

// MetaProvider is implemented by signal sources that carry strategy metadata.
type MetaProvider interface {
	Meta() StrategyMeta
}

// Strategy turns a candle history into a direction, or nothing.
type Strategy interface {
	Name() string
	MinCandles() int
	RecommendedDuration() int
	Evaluate(candles []Candle, cfg Config) (*Direction, string)
}

// LedgerStore persists the append-only session ledger.
type LedgerStore interface {
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	LatestSession(ctx context.Context) (*Session, error)
	// AppendSequence must be durable when it returns nil.
	AppendSequence(ctx context.Context, seq *Sequence) error
	ListSequences(ctx context.Context, sessionID string) ([]*Sequence, error)
	AppendAlert(ctx context.Context, alert *Alert) error
	ListAlerts(ctx context.Context, sessionID string) ([]*Alert, error)
	Close() error
}

// Notifier receives human-facing orchestrator events.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// Clock abstracts wall time so suspension points can be tested.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type Candle struct {
	Time  int64   `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

func (c Candle) Range() float64 { return c.High - c.Low }

func (c Candle) Body() float64 {
	if c.Close > c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

func (c Candle) IsGreen() bool { return c.Close > c.Open }

func (c Candle) IsRed() bool { return c.Close < c.Open }
