package strategy_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/binary_mg_bot/internal/domain"
	"github.com/vitos/binary_mg_bot/internal/strategy"
)

func series(from, to float64) []float64 {
	var out []float64
	for v := from; v <= to; v++ {
		out = append(out, v)
	}
	return out
}

func TestEMA(t *testing.T) {
	out := strategy.EMA(series(1, 10), 3)
	require.Len(t, out, 10)
	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, 2, out[2], 1e-9)
	assert.InDelta(t, 3, out[3], 1e-9)
	assert.InDelta(t, 9, out[9], 1e-9)

	assert.True(t, math.IsNaN(strategy.EMA(series(1, 2), 3)[1]))
}

func TestSMAAndWMA(t *testing.T) {
	sma := strategy.SMA(series(1, 5), 2)
	assert.True(t, math.IsNaN(sma[0]))
	assert.InDelta(t, 1.5, sma[1], 1e-9)
	assert.InDelta(t, 4.5, sma[4], 1e-9)

	wma := strategy.WMA([]float64{1, 2, 3}, 3)
	assert.InDelta(t, 14.0/6, wma[2], 1e-9)

	withGap := strategy.WMA([]float64{math.NaN(), 2, 3, 4}, 3)
	assert.True(t, math.IsNaN(withGap[2]))
	assert.InDelta(t, 20.0/6, withGap[3], 1e-9)
}

func TestRSI(t *testing.T) {
	up := strategy.RSI(series(1, 20), 14)
	assert.True(t, math.IsNaN(up[13]))
	assert.Equal(t, 100.0, up[14])
	assert.Equal(t, 100.0, up[19])

	down := series(1, 20)
	for i, j := 0, len(down)-1; i < j; i, j = i+1, j-1 {
		down[i], down[j] = down[j], down[i]
	}
	assert.Equal(t, 0.0, strategy.RSI(down, 14)[19])
}

// uptrend builds green candles closing one point higher each time.
func uptrend(n int) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := range out {
		c := 100 + float64(i)
		out[i] = domain.Candle{Time: int64(i * 60), Open: c - 0.5, High: c + 0.1, Low: c - 0.6, Close: c}
	}
	return out
}

func TestReversalTrend_BullishReversal(t *testing.T) {
	candles := uptrend(28)
	candles = append(candles,
		domain.Candle{Time: 28 * 60, Open: 128, High: 128.1, Low: 127.5, Close: 127.6},
		domain.Candle{Time: 29 * 60, Open: 127.6, High: 129.3, Low: 127.5, Close: 129.2},
	)

	dir, reason := strategy.ReversalTrend{}.Evaluate(candles, domain.DefaultConfig())
	require.NotNil(t, dir, reason)
	assert.Equal(t, domain.DirectionCall, *dir)

	dir, _ = strategy.ReversalTrend{}.Evaluate(uptrend(30), domain.DefaultConfig())
	assert.Nil(t, dir)
}

func TestStrategies_NeedEnoughCandles(t *testing.T) {
	few := uptrend(10)
	for _, s := range []domain.Strategy{
		strategy.EMARSI{}, strategy.ReversalTrend{}, strategy.FractalMACD{}, strategy.RestrictedMACD{},
	} {
		dir, reason := s.Evaluate(few, domain.DefaultConfig())
		assert.Nil(t, dir, s.Name())
		assert.Contains(t, reason, "not enough candles", s.Name())
		assert.Positive(t, s.RecommendedDuration())
	}

	dir, _ := strategy.None{}.Evaluate(uptrend(100), domain.DefaultConfig())
	assert.Nil(t, dir)
}

func TestStrategies_SteadyTrendHasNoCrossover(t *testing.T) {
	candles := uptrend(60)
	for _, s := range []domain.Strategy{strategy.EMARSI{}, strategy.FractalMACD{}} {
		dir, reason := s.Evaluate(candles, domain.DefaultConfig())
		assert.Nil(t, dir, s.Name())
		assert.NotEmpty(t, reason)
	}
}

func TestRegistry(t *testing.T) {
	s, err := strategy.Get("EMA_RSI")
	require.NoError(t, err)
	assert.Equal(t, 30, s.MinCandles())

	_, err = strategy.Get("MOON")
	assert.Error(t, err)

	names := strategy.Names()
	assert.Equal(t, []string{"EMA_RSI", "NONE", "PROFITX_E1", "PROFITX_FRACTAL", "PROFITX_RESTRITO"}, names)
}
