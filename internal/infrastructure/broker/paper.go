package broker

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vitos/binary_mg_bot/internal/domain"
)

// PaperConfig tunes the simulated market.
type PaperConfig struct {
	Balance  float64
	WinRate  float64
	DojiRate float64
	// Payout is the base payout percent; assets spread around it.
	Payout float64
	// TimeScale > 1 makes expiries elapse faster than real time.
	TimeScale float64
	Seed      int64
	Clock     domain.Clock
}

var paperAssets = []struct {
	name   string
	spread float64
	open   bool
}{
	{"EURUSD_otc", 0, true},
	{"GBPUSD_otc", -2, true},
	{"USDJPY_otc", -4, true},
	{"EURUSD", 3, true},
	{"AUDCAD", -6, false},
	{"BTCUSD_otc", -1, true},
	{"ETHUSD_otc", -8, true},
	{"XAUUSD_otc", -3, true},
	{"UKBrent_otc", -12, true},
	{"AAPL_otc", -5, true},
}

type paperTrade struct {
	handle domain.TradeHandle
	dir    domain.Direction
	payout float64
}

// PaperBroker is an in-process simulated broker for dry runs and tests.
type PaperBroker struct {
	cfg   PaperConfig
	clock domain.Clock

	mu        sync.Mutex
	rng       *rand.Rand
	connected bool
	balance   float64
	trades    map[string]*paperTrade
	prices    map[string]float64
}

func NewPaperBroker(cfg PaperConfig) *PaperBroker {
	if cfg.TimeScale <= 0 {
		cfg.TimeScale = 1
	}
	if cfg.Payout <= 0 {
		cfg.Payout = 85
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = wallClock{}
	}
	return &PaperBroker{
		cfg:     cfg,
		clock:   clock,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		balance: cfg.Balance,
		trades:  make(map[string]*paperTrade),
		prices:  make(map[string]float64),
	}
}

type wallClock struct{}

func (wallClock) Now() time.Time                         { return time.Now() }
func (wallClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (p *PaperBroker) Connect(ctx context.Context, _ domain.Credentials, _ domain.AccountMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.connected = true
	p.mu.Unlock()
	return nil
}

func (p *PaperBroker) Close() error {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	return nil
}

func (p *PaperBroker) checkConnected() error {
	if !p.connected {
		return domain.ErrNotConnected
	}
	return nil
}

func (p *PaperBroker) GetBalance(_ context.Context, _ domain.AccountMode) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkConnected(); err != nil {
		return 0, err
	}
	return domain.RoundMoney(p.balance), nil
}

func (p *PaperBroker) ListAssets(_ context.Context) ([]domain.Asset, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkConnected(); err != nil {
		return nil, err
	}
	out := make([]domain.Asset, 0, len(paperAssets))
	for _, a := range paperAssets {
		out = append(out, domain.Asset{
			Name:   a.name,
			IsOTC:  domain.IsOTCName(a.name),
			Market: domain.ClassifyMarket(a.name),
			Payout: p.payoutFor(a.spread),
			Open:   a.open,
		})
	}
	return out, nil
}

func (p *PaperBroker) payoutFor(spread float64) float64 {
	v := p.cfg.Payout + spread
	return math.Max(0, math.Min(100, v))
}

func (p *PaperBroker) GetPayout(_ context.Context, asset string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkConnected(); err != nil {
		return 0, err
	}
	for _, a := range paperAssets {
		if a.name == asset {
			return p.payoutFor(a.spread), nil
		}
	}
	return p.cfg.Payout, nil
}

func (p *PaperBroker) PlaceTrade(ctx context.Context, asset string, dir domain.Direction, amount float64, duration int) (*domain.TradeHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkConnected(); err != nil {
		return nil, err
	}
	if amount <= 0 || amount > p.balance {
		return nil, fmt.Errorf("%w: amount %.2f with balance %.2f", domain.ErrTradeRejected, amount, p.balance)
	}
	payout := p.cfg.Payout
	for _, a := range paperAssets {
		if a.name == asset {
			payout = p.payoutFor(a.spread)
		}
	}
	p.balance = domain.AddMoney(p.balance, -amount)

	t := &paperTrade{
		handle: domain.TradeHandle{
			ID:       uuid.NewString(),
			Asset:    asset,
			Amount:   amount,
			Duration: duration,
			PlacedAt: p.clock.Now(),
		},
		dir:    dir,
		payout: payout,
	}
	p.trades[t.handle.ID] = t
	h := t.handle
	return &h, nil
}

// AwaitOutcome waits out the (scaled) expiry and draws the result.
func (p *PaperBroker) AwaitOutcome(ctx context.Context, handle *domain.TradeHandle, timeout time.Duration) (*domain.TradeResult, error) {
	p.mu.Lock()
	t, ok := p.trades[handle.ID]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown trade %s", handle.ID)
	}

	expiry := time.Duration(float64(time.Duration(t.handle.Duration)*time.Second) / p.cfg.TimeScale)
	if timeout > 0 && expiry > timeout {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-p.clock.After(timeout):
			return nil, fmt.Errorf("%w: trade %s", domain.ErrOutcomeTimeout, handle.ID)
		}
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.clock.After(expiry):
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.trades, handle.ID)

	roll := p.rng.Float64()
	switch {
	case roll < p.cfg.DojiRate:
		p.balance = domain.AddMoney(p.balance, t.handle.Amount)
		return &domain.TradeResult{}, nil
	case roll < p.cfg.DojiRate+p.cfg.WinRate*(1-p.cfg.DojiRate):
		profit := domain.RoundMoney(t.handle.Amount * t.payout / 100)
		p.balance = domain.AddMoney(p.balance, t.handle.Amount+profit)
		return &domain.TradeResult{Won: true, Profit: profit}, nil
	}
	return &domain.TradeResult{Profit: -t.handle.Amount}, nil
}

// GetCandles returns a random walk ending at the current candle.
func (p *PaperBroker) GetCandles(_ context.Context, asset string, duration, count int, _ time.Duration) ([]domain.Candle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkConnected(); err != nil {
		return nil, err
	}
	if duration <= 0 {
		duration = 60
	}
	price, ok := p.prices[asset]
	if !ok {
		price = 1 + p.rng.Float64()
	}

	step := int64(duration)
	end := p.clock.Now().Unix() / step * step
	candles := make([]domain.Candle, count)
	for i := 0; i < count; i++ {
		open := price
		move := (p.rng.Float64() - 0.5) * price * 0.002
		closeP := open + move
		wick := math.Abs(move) * (0.2 + p.rng.Float64())
		candles[i] = domain.Candle{
			Time:  end - int64(count-1-i)*step,
			Open:  open,
			High:  math.Max(open, closeP) + wick/2,
			Low:   math.Min(open, closeP) - wick/2,
			Close: closeP,
		}
		price = closeP
	}
	p.prices[asset] = price
	return candles, nil
}
