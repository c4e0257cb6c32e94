package strategy

import (
	"fmt"
	"math"

	"github.com/vitos/binary_mg_bot/internal/domain"
)

func closes(candles []domain.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

func bodies(candles []domain.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Body()
	}
	return out
}

func ranges(candles []domain.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Range()
	}
	return out
}

// range3 is the high-low span of the last three candles.
func range3(candles []domain.Candle) float64 {
	hi, lo := math.Inf(-1), math.Inf(1)
	for _, c := range candles[len(candles)-3:] {
		hi = math.Max(hi, c.High)
		lo = math.Min(lo, c.Low)
	}
	return hi - lo
}

func call() *domain.Direction {
	d := domain.DirectionCall
	return &d
}

func put() *domain.Direction {
	d := domain.DirectionPut
	return &d
}

// None never fires. The loop runs its protection and reporting without trading.
type None struct{}

func (None) Name() string             { return "NONE" }
func (None) MinCandles() int          { return 0 }
func (None) RecommendedDuration() int { return 0 }
func (None) Evaluate([]domain.Candle, domain.Config) (*domain.Direction, string) {
	return nil, "no strategy configured"
}

// EMARSI fires on an EMA 9/21 crossover confirmed by RSI(14) and candle colour.
type EMARSI struct{}

func (EMARSI) Name() string             { return "EMA_RSI" }
func (EMARSI) MinCandles() int          { return 30 }
func (EMARSI) RecommendedDuration() int { return 60 }

func (s EMARSI) Evaluate(candles []domain.Candle, _ domain.Config) (*domain.Direction, string) {
	if len(candles) < s.MinCandles() {
		return nil, fmt.Sprintf("not enough candles (%d/%d)", len(candles), s.MinCandles())
	}
	c := closes(candles)
	ema9, ema21, rsi := EMA(c, 9), EMA(c, 21), RSI(c, 14)
	e9, e9p := last(ema9, 0), last(ema9, 1)
	e21, e21p := last(ema21, 0), last(ema21, 1)
	r, rp := last(rsi, 0), last(rsi, 1)
	if anyNaN(e9, e9p, e21, e21p, r, rp) {
		return nil, "indicators warming up"
	}

	cur := candles[len(candles)-1]
	crossedUp := e9p <= e21p && e9 > e21
	crossedDown := e9p >= e21p && e9 < e21

	if crossedUp && r < 30 && r > rp && cur.IsGreen() {
		return call(), fmt.Sprintf("EMA9 crossed above EMA21, RSI %.1f rising, green candle", r)
	}
	if crossedDown && r > 70 && r < rp && cur.IsRed() {
		return put(), fmt.Sprintf("EMA9 crossed below EMA21, RSI %.1f falling, red candle", r)
	}
	pos := "EMA9<EMA21"
	if e9 > e21 {
		pos = "EMA9>EMA21"
	}
	return nil, fmt.Sprintf("no confirmed crossover, %s, RSI %.1f", pos, r)
}

// ReversalTrend fires on a colour reversal in the SMA 5/21 trend direction
// with a strong body outside consolidation.
type ReversalTrend struct{}

func (ReversalTrend) Name() string             { return "PROFITX_E1" }
func (ReversalTrend) MinCandles() int          { return 30 }
func (ReversalTrend) RecommendedDuration() int { return 60 }

func (s ReversalTrend) Evaluate(candles []domain.Candle, _ domain.Config) (*domain.Direction, string) {
	if len(candles) < s.MinCandles() {
		return nil, fmt.Sprintf("not enough candles (%d/%d)", len(candles), s.MinCandles())
	}
	c := closes(candles)
	sma5, sma21 := last(SMA(c, 5), 0), last(SMA(c, 21), 0)
	avgBody, avgRange := last(SMA(bodies(candles), 5), 0), last(SMA(ranges(candles), 5), 0)
	if anyNaN(sma5, sma21, avgBody, avgRange) {
		return nil, "indicators warming up"
	}

	cur, prev := candles[len(candles)-1], candles[len(candles)-2]
	consolidated := range3(candles) < avgRange*0.5
	strong := cur.Body() > avgBody

	if prev.IsRed() && cur.IsGreen() && cur.Close > prev.Close &&
		cur.Close > sma5 && sma5 > sma21 && strong && !consolidated {
		return call(), fmt.Sprintf("bullish reversal, SMA5 %.5f > SMA21 %.5f", sma5, sma21)
	}
	if prev.IsGreen() && cur.IsRed() && cur.Close < prev.Close &&
		cur.Close < sma5 && sma5 < sma21 && strong && !consolidated {
		return put(), fmt.Sprintf("bearish reversal, SMA5 %.5f < SMA21 %.5f", sma5, sma21)
	}
	return nil, "no reversal"
}

// miniMACD is close minus SMA34 and its WMA5 signal line.
func miniMACD(candles []domain.Candle) (line, signal []float64) {
	c := closes(candles)
	sma34 := SMA(c, 34)
	line = make([]float64, len(c))
	for i := range c {
		line[i] = c[i] - sma34[i]
	}
	return line, WMA(line, 5)
}

// FractalMACD fires on a mini-MACD crossover confirmed by a three-candle fractal.
type FractalMACD struct{}

func (FractalMACD) Name() string             { return "PROFITX_FRACTAL" }
func (FractalMACD) MinCandles() int          { return 45 }
func (FractalMACD) RecommendedDuration() int { return 60 }

func (s FractalMACD) Evaluate(candles []domain.Candle, _ domain.Config) (*domain.Direction, string) {
	if len(candles) < s.MinCandles() {
		return nil, fmt.Sprintf("not enough candles (%d/%d)", len(candles), s.MinCandles())
	}
	line, sig := miniMACD(candles)
	b1, b1p, b2, b2p := last(line, 0), last(line, 1), last(sig, 0), last(sig, 1)
	if anyNaN(b1, b1p, b2, b2p) {
		return nil, "indicators warming up"
	}
	n := len(candles)
	bottom := candles[n-2].Low < candles[n-1].Low && candles[n-2].Low < candles[n-3].Low
	top := candles[n-2].High > candles[n-1].High && candles[n-2].High > candles[n-3].High

	if b1p <= b2p && b1 > b2 && bottom {
		return call(), "MACD crossed up with bottom fractal"
	}
	if b1p >= b2p && b1 < b2 && top {
		return put(), "MACD crossed down with top fractal"
	}
	return nil, "no crossover with fractal"
}

// RestrictedMACD needs a mini-MACD crossover, a strong body, RSI on the same
// side of 50 and a moving market.
type RestrictedMACD struct{}

func (RestrictedMACD) Name() string             { return "PROFITX_RESTRITO" }
func (RestrictedMACD) MinCandles() int          { return 45 }
func (RestrictedMACD) RecommendedDuration() int { return 60 }

func (s RestrictedMACD) Evaluate(candles []domain.Candle, _ domain.Config) (*domain.Direction, string) {
	if len(candles) < s.MinCandles() {
		return nil, fmt.Sprintf("not enough candles (%d/%d)", len(candles), s.MinCandles())
	}
	line, sig := miniMACD(candles)
	b1, b1p, b2, b2p := last(line, 0), last(line, 1), last(sig, 0), last(sig, 1)
	avgBody, avgRange := last(SMA(bodies(candles), 5), 0), last(SMA(ranges(candles), 5), 0)
	r := last(RSI(closes(candles), 14), 0)
	if anyNaN(b1, b1p, b2, b2p, avgBody, avgRange, r) {
		return nil, "indicators warming up"
	}

	strong := candles[len(candles)-1].Body() > avgBody
	moving := range3(candles) > avgRange*0.5

	if b1p <= b2p && b1 > b2 && strong && r > 50 && moving {
		return call(), fmt.Sprintf("MACD up, RSI %.1f > 50, strong body", r)
	}
	if b1p >= b2p && b1 < b2 && strong && r < 50 && moving {
		return put(), fmt.Sprintf("MACD down, RSI %.1f < 50, strong body", r)
	}
	return nil, fmt.Sprintf("filters not met, RSI %.1f", r)
}
