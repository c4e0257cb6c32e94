package usecase_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vitos/binary_mg_bot/internal/domain"
	"github.com/vitos/binary_mg_bot/internal/usecase"
)

func trendCandles(n int) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := range out {
		out[i] = domain.Candle{Time: int64(i * 60), Open: 1.2, High: 2, Low: 1, Close: 1.8}
	}
	return out
}

func verifierConfig() domain.Config {
	cfg := domain.DefaultConfig()
	cfg.VerifierEnabled = true
	cfg.ExecutionWindow = 5 * time.Second
	cfg.PayoutMinPct = 75
	cfg.PayoutMinPctFeed = 80
	cfg.VolatilityMinPct = 30
	cfg.MaxConsecutiveDojis = 2
	return cfg
}

func TestMarketVerifier_AcceptsHealthyMarket(t *testing.T) {
	v := usecase.NewMarketVerifier(newFakeClock(t0))

	d := v.Evaluate(usecase.VerifyInput{
		Signal:    *eurusd(),
		EntryTime: t0.Add(-2 * time.Second),
		Candles:   trendCandles(25),
		Payout:    85,
	}, verifierConfig())
	assert.True(t, d.Accepted, d.Message)
}

func TestMarketVerifier_Rejections(t *testing.T) {
	v := usecase.NewMarketVerifier(newFakeClock(t0))

	lowRange := trendCandles(21)
	lowRange[20] = domain.Candle{Open: 1.5, High: 1.6, Low: 1.4, Close: 1.58}

	dojis := trendCandles(21)
	dojis[19] = domain.Candle{Open: 1.5, High: 2, Low: 1, Close: 1.5}
	dojis[20] = domain.Candle{Open: 1.5, High: 2, Low: 1, Close: 1.52}

	flat := make([]domain.Candle, 5)
	for i := range flat {
		flat[i] = domain.Candle{Open: 1, High: 1, Low: 1, Close: 1}
	}

	tests := []struct {
		name  string
		in    usecase.VerifyInput
		cfg   func(*domain.Config)
		check usecase.VerifyCheck
	}{
		{
			name:  "outside trading hours",
			in:    usecase.VerifyInput{Signal: *eurusd(), Payout: 90},
			cfg:   func(c *domain.Config) { c.TradingHoursStart, c.TradingHoursEnd = "08:00", "12:00" },
			check: usecase.CheckTradingHours,
		},
		{
			name:  "asset filter",
			in:    usecase.VerifyInput{Signal: *eurusd(), Payout: 90},
			cfg:   func(c *domain.Config) { c.AssetType = domain.AssetTypeOTC },
			check: usecase.CheckAssetFilter,
		},
		{
			name:  "late signal",
			in:    usecase.VerifyInput{Signal: *eurusd(), EntryTime: t0.Add(-6 * time.Second), Payout: 90},
			check: usecase.CheckWindow,
		},
		{
			name:  "payout floor",
			in:    usecase.VerifyInput{Signal: *eurusd(), Payout: 74},
			check: usecase.CheckPayout,
		},
		{
			name: "feed payout floor",
			in: usecase.VerifyInput{
				Signal: domain.Signal{Asset: "EURUSD", Direction: domain.DirectionPut, Source: domain.SourceFeed},
				Payout: 78,
			},
			check: usecase.CheckPayout,
		},
		{
			name:  "volatility floor",
			in:    usecase.VerifyInput{Signal: *eurusd(), Payout: 90, Candles: lowRange},
			check: usecase.CheckVolatility,
		},
		{
			name:  "flat market",
			in:    usecase.VerifyInput{Signal: *eurusd(), Payout: 90, Candles: flat},
			check: usecase.CheckVolatility,
		},
		{
			name:  "consecutive dojis",
			in:    usecase.VerifyInput{Signal: *eurusd(), Payout: 90, Candles: dojis},
			check: usecase.CheckDoji,
		},
		{
			name:  "late beats low payout",
			in:    usecase.VerifyInput{Signal: *eurusd(), EntryTime: t0.Add(-time.Minute), Payout: 10},
			check: usecase.CheckWindow,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := verifierConfig()
			if tt.cfg != nil {
				tt.cfg(&cfg)
			}
			d := v.Evaluate(tt.in, cfg)
			assert.False(t, d.Accepted)
			assert.Equal(t, tt.check, d.Check)
			assert.NotEmpty(t, d.Message)
		})
	}
}

func TestMarketVerifier_ThresholdsDisableChecks(t *testing.T) {
	v := usecase.NewMarketVerifier(newFakeClock(t0))
	cfg := verifierConfig()
	cfg.ExecutionWindow = 0
	cfg.PayoutMinPct = 0
	cfg.VolatilityMinPct = 0
	cfg.MaxConsecutiveDojis = 0

	flat := []domain.Candle{{Open: 1, High: 1, Low: 1, Close: 1}, {Open: 1, High: 1, Low: 1, Close: 1}}
	d := v.Evaluate(usecase.VerifyInput{
		Signal:    *eurusd(),
		EntryTime: t0.Add(-time.Hour),
		Candles:   flat,
		Payout:    1,
	}, cfg)
	assert.True(t, d.Accepted)

	cfg = verifierConfig()
	cfg.VerifierEnabled = false
	assert.True(t, v.Evaluate(usecase.VerifyInput{Signal: *eurusd()}, cfg).Accepted)
}

func TestMarketVerifier_OvernightTradingHours(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 3, 10, 23, 30, 0, 0, time.UTC))
	v := usecase.NewMarketVerifier(clock)
	cfg := verifierConfig()
	cfg.TradingHoursStart, cfg.TradingHoursEnd = "22:00", "02:00"

	in := usecase.VerifyInput{Signal: *eurusd(), Payout: 90}
	assert.True(t, v.Evaluate(in, cfg).Accepted)

	clock.Set(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, usecase.CheckTradingHours, v.Evaluate(in, cfg).Check)
}

func TestMarketVerifier_StrategySignalsSkipAssetFilter(t *testing.T) {
	v := usecase.NewMarketVerifier(newFakeClock(t0))
	cfg := verifierConfig()
	cfg.AssetType = domain.AssetTypeOTC

	sig := domain.Signal{Asset: "EURUSD", Direction: domain.DirectionCall, Source: domain.SourceStrategy}
	assert.True(t, v.Evaluate(usecase.VerifyInput{Signal: sig, Payout: 90}, cfg).Accepted)
}

func TestIsDoji(t *testing.T) {
	assert.True(t, usecase.IsDoji(domain.Candle{Open: 1, High: 1, Low: 1, Close: 1}))
	assert.True(t, usecase.IsDoji(domain.Candle{Open: 1.50, High: 2, Low: 1, Close: 1.55}))
	assert.False(t, usecase.IsDoji(domain.Candle{Open: 1.2, High: 2, Low: 1, Close: 1.8}))
}
