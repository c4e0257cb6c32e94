package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/binary_mg_bot/internal/domain"
	"github.com/vitos/binary_mg_bot/internal/usecase"
	"go.uber.org/zap"
)

func TestTradeExecutor_ClassifiesOutcomes(t *testing.T) {
	broker := &MockBroker{Payout: 85, Steps: []outcomeStep{{kind: stepWin}, {kind: stepLoss}, {kind: stepDoji}}}
	exec := usecase.NewTradeExecutor(broker, newFakeClock(t0))
	ctx := context.Background()

	want := []struct {
		outcome domain.Outcome
		profit  float64
	}{
		{domain.OutcomeWin, 8.5},
		{domain.OutcomeLoss, -10},
		{domain.OutcomeDoji, 0},
	}
	for i, w := range want {
		h, err := exec.Place(ctx, *eurusd(), 10)
		require.NoError(t, err)
		assert.Equal(t, t0, h.PlacedAt)
		assert.Equal(t, "EURUSD", h.Asset)
		assert.Equal(t, 60, h.Duration)

		lvl, err := exec.Await(ctx, h, i, 0.85, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, w.outcome, lvl.Outcome)
		assert.Equal(t, w.profit, lvl.Profit)
		assert.Equal(t, i, lvl.Index)
		assert.Equal(t, 10.0, lvl.Stake)
	}
}

func TestTradeExecutor_TimeoutCountsStakeAsLost(t *testing.T) {
	broker := &MockBroker{Steps: []outcomeStep{{kind: stepTimeout}}}
	exec := usecase.NewTradeExecutor(broker, newFakeClock(t0))

	lvl, err := exec.Await(context.Background(), &domain.TradeHandle{ID: "t1", Amount: 21.76}, 1, 0.85, time.Minute)
	require.ErrorIs(t, err, domain.ErrOutcomeTimeout)
	assert.Equal(t, domain.OutcomeTimeout, lvl.Outcome)
	assert.Equal(t, -21.76, lvl.Profit)
	assert.True(t, lvl.IsLoss())
}

func TestTradeExecutor_RejectsUnknownDirection(t *testing.T) {
	exec := usecase.NewTradeExecutor(&MockBroker{}, newFakeClock(t0))
	_, err := exec.Place(context.Background(), domain.Signal{Asset: "EURUSD", Direction: "SIDEWAYS", Duration: 60}, 10)
	assert.Error(t, err)
}

func TestConnector_RetriesThenFails(t *testing.T) {
	cfg := testConfig()
	cfg.ReconnectAttempts = 3
	cfg.RetryInterval = 3 * time.Second
	down := errors.New("refused")

	clock := newFakeClock(t0)
	broker := &MockBroker{ConnectErrs: []error{down, down, down}}
	c := usecase.NewConnector(broker, domain.Credentials{}, clock, nil, zap.NewNop())

	err := c.Connect(context.Background(), cfg)
	require.ErrorIs(t, err, domain.ErrConnection)
	assert.Equal(t, 3, broker.Connects)
	assert.Equal(t, t0.Add(6*time.Second), clock.Now())

	broker.ConnectErrs = []error{down}
	require.NoError(t, c.Reconnect(context.Background(), cfg))
	assert.Equal(t, 5, broker.Connects)
	assert.Equal(t, 1, broker.Closes)
}

func TestAssetSelector_BestFiltersAndSorts(t *testing.T) {
	broker := &MockBroker{Assets: []domain.Asset{
		{Name: "EURUSD", Payout: 82, Open: true},
		{Name: "EURUSD_otc", Payout: 92, Open: true},
		{DisplayName: "GBP/JPY (OTC)", Payout: 88, Open: true},
		{Name: "BTCUSD", Payout: 95, Open: true},
		{Name: "USDJPY", Payout: 90, Open: false},
		{Name: "AUDCAD", Payout: 60, Open: true},
	}}
	sel := usecase.NewAssetSelector(broker)
	ctx := context.Background()

	list, err := sel.List(ctx, usecase.AssetFilter{AssetType: domain.AssetTypeBoth, MarketType: domain.MarketForex, MinPayout: 75})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "EURUSD_otc", list[0].Name)
	assert.Equal(t, "GBPJPY_otc", list[1].Name)
	assert.Equal(t, domain.MarketForex, list[1].Market)

	best, err := sel.Best(ctx, usecase.AssetFilter{AssetType: domain.AssetTypeNonOTC, MarketType: domain.MarketBoth, MinPayout: 75})
	require.NoError(t, err)
	assert.Equal(t, "BTCUSD", best.Name)

	_, err = sel.Best(ctx, usecase.AssetFilter{AssetType: domain.AssetTypeBoth, MarketType: domain.MarketBoth, MinPayout: 99})
	assert.Error(t, err)
}
