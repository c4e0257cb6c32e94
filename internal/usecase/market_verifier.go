package usecase

import (
	"fmt"
	"time"

	"github.com/vitos/binary_mg_bot/internal/domain"
)

type VerifyCheck string

const (
	CheckTradingHours VerifyCheck = "TRADING_HOURS"
	CheckAssetFilter  VerifyCheck = "ASSET_FILTER"
	CheckWindow       VerifyCheck = "EXECUTION_WINDOW"
	CheckPayout       VerifyCheck = "PAYOUT"
	CheckVolatility   VerifyCheck = "VOLATILITY"
	CheckDoji         VerifyCheck = "DOJI"
)

// volatilityLookback is the number of candles averaged for the volatility floor.
const volatilityLookback = 20

// dojiBodyRatio is the largest body/range ratio still counted as a doji.
const dojiBodyRatio = 0.1

// VerifyInput is the market context of one candidate signal.
type VerifyInput struct {
	Signal    domain.Signal
	EntryTime time.Time
	Candles   []domain.Candle
	Payout    float64 // percent
}

// VerifyDecision is the result of a market verification.
type VerifyDecision struct {
	Accepted bool
	Check    VerifyCheck
	Message  string
}

type MarketVerifier struct {
	clock domain.Clock
}

func NewMarketVerifier(clock domain.Clock) *MarketVerifier {
	return &MarketVerifier{clock: clock}
}

// Evaluate checks a candidate signal against market conditions. Every check can be
// switched off through its threshold; candle checks are skipped without candles.
func (v *MarketVerifier) Evaluate(in VerifyInput, cfg domain.Config) VerifyDecision {
	if !cfg.VerifierEnabled {
		return VerifyDecision{Accepted: true}
	}
	now := v.clock.Now()

	if cfg.TradingHoursStart != "" && !withinTradingHours(now, cfg.TradingHoursStart, cfg.TradingHoursEnd) {
		return reject(CheckTradingHours, fmt.Sprintf("%s outside trading hours %s-%s",
			now.Format("15:04"), cfg.TradingHoursStart, cfg.TradingHoursEnd))
	}

	if in.Signal.Source != domain.SourceStrategy &&
		!domain.MatchesFilters(in.Signal.Asset, cfg.AssetType, cfg.MarketType) {
		return reject(CheckAssetFilter, fmt.Sprintf("%s excluded by filters %s/%s",
			in.Signal.Asset, cfg.AssetType, cfg.MarketType))
	}

	if cfg.ExecutionWindow > 0 && !in.EntryTime.IsZero() {
		if late := now.Sub(in.EntryTime); late > cfg.ExecutionWindow {
			return reject(CheckWindow, fmt.Sprintf("signal late by %s (window %s)",
				late.Truncate(time.Second), cfg.ExecutionWindow))
		}
	}

	if floor := cfg.PayoutFloor(in.Signal.Source); floor > 0 && in.Payout < floor {
		return reject(CheckPayout, fmt.Sprintf("payout %.0f%% below floor %.0f%%", in.Payout, floor))
	}

	if cfg.VolatilityMinPct > 0 && len(in.Candles) >= 2 {
		ratio, ok := volatilityRatio(in.Candles)
		if !ok {
			return reject(CheckVolatility, "flat market, no candle range")
		}
		if ratio < cfg.VolatilityMinPct {
			return reject(CheckVolatility, fmt.Sprintf("volatility %.1f%% below floor %.1f%%",
				ratio, cfg.VolatilityMinPct))
		}
	}

	if cfg.MaxConsecutiveDojis > 0 && len(in.Candles) > 0 {
		if n := trailingDojis(in.Candles); n >= cfg.MaxConsecutiveDojis {
			return reject(CheckDoji, fmt.Sprintf("%d consecutive doji candles (limit %d)",
				n, cfg.MaxConsecutiveDojis))
		}
	}

	return VerifyDecision{Accepted: true}
}

// volatilityRatio compares the range of the latest candle to the mean range
// of the candles before it, in percent.
func volatilityRatio(candles []domain.Candle) (float64, bool) {
	current := candles[len(candles)-1]
	history := candles[:len(candles)-1]
	if len(history) > volatilityLookback {
		history = history[len(history)-volatilityLookback:]
	}
	var sum float64
	for _, c := range history {
		sum += c.Range()
	}
	mean := sum / float64(len(history))
	if mean <= 0 {
		return 0, false
	}
	return current.Range() / mean * 100, true
}

// IsDoji reports whether a candle closed (almost) where it opened.
func IsDoji(c domain.Candle) bool {
	r := c.Range()
	if r <= 0 {
		return true
	}
	return c.Body()/r <= dojiBodyRatio
}

func trailingDojis(candles []domain.Candle) int {
	n := 0
	for i := len(candles) - 1; i >= 0; i-- {
		if !IsDoji(candles[i]) {
			break
		}
		n++
	}
	return n
}

func withinTradingHours(now time.Time, start, end string) bool {
	s, err1 := domain.ParseClock(start)
	e, err2 := domain.ParseClock(end)
	if err1 != nil || err2 != nil {
		return true
	}
	m := now.Hour()*60 + now.Minute()
	if s <= e {
		return m >= s && m <= e
	}
	return m >= s || m <= e
}

func reject(check VerifyCheck, msg string) VerifyDecision {
	return VerifyDecision{Check: check, Message: msg}
}
