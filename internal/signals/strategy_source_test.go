package signals_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/binary_mg_bot/internal/domain"
	"github.com/vitos/binary_mg_bot/internal/signals"
	"github.com/vitos/binary_mg_bot/internal/usecase"
)

type candleBroker struct {
	assets    []domain.Asset
	candles   int
	candleErr error

	lastAsset string
	lastCount int
	lastDur   int
}

func (b *candleBroker) Connect(context.Context, domain.Credentials, domain.AccountMode) error {
	return nil
}
func (b *candleBroker) Close() error { return nil }
func (b *candleBroker) GetBalance(context.Context, domain.AccountMode) (float64, error) {
	return 1000, nil
}
func (b *candleBroker) ListAssets(context.Context) ([]domain.Asset, error) { return b.assets, nil }
func (b *candleBroker) GetPayout(context.Context, string) (float64, error) { return 85, nil }
func (b *candleBroker) PlaceTrade(context.Context, string, domain.Direction, float64, int) (*domain.TradeHandle, error) {
	return nil, errors.New("not supported")
}
func (b *candleBroker) AwaitOutcome(context.Context, *domain.TradeHandle, time.Duration) (*domain.TradeResult, error) {
	return nil, errors.New("not supported")
}
func (b *candleBroker) GetCandles(_ context.Context, asset string, duration, count int, _ time.Duration) ([]domain.Candle, error) {
	b.lastAsset, b.lastCount, b.lastDur = asset, count, duration
	if b.candleErr != nil {
		return nil, b.candleErr
	}
	return make([]domain.Candle, b.candles), nil
}

type stubStrategy struct {
	dir *domain.Direction
	min int
}

func (s stubStrategy) Name() string             { return "STUB" }
func (s stubStrategy) MinCandles() int          { return s.min }
func (s stubStrategy) RecommendedDuration() int { return 60 }
func (s stubStrategy) Evaluate([]domain.Candle, domain.Config) (*domain.Direction, string) {
	if s.dir == nil {
		return nil, "flat"
	}
	return s.dir, "stub fired"
}

func put() *domain.Direction {
	d := domain.DirectionPut
	return &d
}

func newStrategySource(b *candleBroker, s domain.Strategy, asset string, auto bool) (*signals.StrategySource, *stepClock) {
	clock := &stepClock{now: noon.Add(20 * time.Second)}
	return signals.NewStrategySource(signals.StrategySourceOptions{
		Broker:     b,
		Strategy:   s,
		Config:     usecase.StaticConfig(domain.DefaultConfig()),
		Clock:      clock,
		Asset:      asset,
		AutoSwitch: auto,
	}), clock
}

func TestStrategySource_FiresOnCandleBoundary(t *testing.T) {
	b := &candleBroker{candles: 100}
	src, clock := newStrategySource(b, stubStrategy{dir: put(), min: 30}, "EURUSD_otc", false)

	sig, err := src.Next(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sig)

	boundary := noon.Add(time.Minute)
	assert.Equal(t, boundary, clock.Now())
	assert.Equal(t, "EURUSD_otc", sig.Asset)
	assert.Equal(t, domain.DirectionPut, sig.Direction)
	assert.Equal(t, 60, sig.Duration)
	assert.Equal(t, boundary, sig.ScheduledAt)
	assert.Equal(t, domain.SourceStrategy, sig.Source)
	assert.Contains(t, sig.Note, "STUB")

	assert.Equal(t, 100, b.lastCount)
	assert.Equal(t, 60, b.lastDur)
	assert.Equal(t, domain.SourceStrategy, src.Kind())
	assert.Equal(t, domain.StrategyMeta{MinCandles: 30, RecommendedDuration: 60}, src.Meta())
}

func TestStrategySource_NoOpinionYieldsNil(t *testing.T) {
	src, _ := newStrategySource(&candleBroker{candles: 100}, stubStrategy{min: 30}, "EURUSD", false)
	sig, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sig)

	src, _ = newStrategySource(&candleBroker{candles: 10}, stubStrategy{dir: put(), min: 30}, "EURUSD", false)
	sig, err = src.Next(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestStrategySource_AutoSwitchPicksBestPayout(t *testing.T) {
	b := &candleBroker{candles: 200, assets: []domain.Asset{
		{Name: "EURUSD", Payout: 80, Open: true},
		{Name: "GBPUSD_otc", Payout: 91, Open: true},
		{Name: "USDJPY", Payout: 95, Open: false},
	}}
	src, _ := newStrategySource(b, stubStrategy{dir: put(), min: 150}, "EURUSD", true)

	sig, err := src.Next(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, "GBPUSD_otc", sig.Asset)
	assert.Equal(t, "GBPUSD_otc", b.lastAsset)
	assert.Equal(t, 150, b.lastCount)
}

func TestStrategySource_Errors(t *testing.T) {
	src, _ := newStrategySource(&candleBroker{candleErr: domain.ErrNotConnected}, stubStrategy{dir: put(), min: 30}, "EURUSD", false)
	_, err := src.Next(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotConnected)

	src, _ = newStrategySource(&candleBroker{}, stubStrategy{dir: put(), min: 30}, "", false)
	_, err = src.Next(context.Background())
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src, _ = newStrategySource(&candleBroker{candles: 100}, stubStrategy{dir: put(), min: 30}, "EURUSD", false)
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
