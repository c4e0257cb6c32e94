package domain

import (
	"fmt"
	"time"
)

type AccountMode string

const (
	AccountPractice AccountMode = "PRACTICE"
	AccountReal     AccountMode = "REAL"
)

// Config is the immutable operating snapshot captured at sequence start.
// It is passed by value; a change on disk only affects the next snapshot.
type Config struct {
	AccountMode  AccountMode
	BaseStake    float64
	Duration     int
	MGLevels     int
	MGCorrection bool
	Strategy     string

	AssetType        AssetType
	MarketType       MarketType
	PayoutMinPct     float64
	PayoutMinPctFeed float64

	VerifierEnabled     bool
	ExecutionWindow     time.Duration
	VolatilityMinPct    float64
	MaxConsecutiveDojis int
	TradingHoursStart   string
	TradingHoursEnd     string

	StopLossPct   float64
	StopLossAbs   float64
	TakeProfitAbs float64
	MaxLossStreak int
	MaxSequences  int

	ConnectTimeout    time.Duration
	ReconnectAttempts int
	RetryInterval     time.Duration
	OutcomeTimeout    time.Duration
	SequenceTimeout   time.Duration

	AlignToCandle    bool
	MaxScheduleWait  time.Duration
	SequenceInterval time.Duration
	CandleCount      int
}

// DefaultConfig returns the reference operating parameters.
func DefaultConfig() Config {
	return Config{
		AccountMode:         AccountPractice,
		BaseStake:           10,
		Duration:            300,
		MGLevels:            3,
		Strategy:            "EMA_RSI",
		AssetType:           AssetTypeBoth,
		MarketType:          MarketBoth,
		PayoutMinPct:        75,
		PayoutMinPctFeed:    75,
		VerifierEnabled:     true,
		ExecutionWindow:     5 * time.Second,
		VolatilityMinPct:    30,
		MaxConsecutiveDojis: 2,
		StopLossPct:         20,
		MaxLossStreak:       5,
		MaxSequences:        50,
		ConnectTimeout:      120 * time.Second,
		ReconnectAttempts:   3,
		RetryInterval:       3 * time.Second,
		OutcomeTimeout:      900 * time.Second,
		SequenceTimeout:     time.Hour,
		AlignToCandle:       true,
		MaxScheduleWait:     10 * time.Minute,
		SequenceInterval:    5 * time.Second,
		CandleCount:         30,
	}
}

// PayoutFloor returns the minimum payout percentage for signals from kind.
func (c Config) PayoutFloor(kind SourceKind) float64 {
	if kind == SourceFeed {
		return c.PayoutMinPctFeed
	}
	return c.PayoutMinPct
}

// Validate rejects thresholds the engine cannot operate with.
func (c Config) Validate() error {
	switch {
	case c.AccountMode != AccountPractice && c.AccountMode != AccountReal:
		return fmt.Errorf("%w: account mode %q", ErrInvalidConfig, c.AccountMode)
	case c.BaseStake <= 0:
		return fmt.Errorf("%w: base stake must be positive", ErrInvalidConfig)
	case c.Duration <= 0:
		return fmt.Errorf("%w: duration must be positive", ErrInvalidConfig)
	case c.MGLevels < 1:
		return fmt.Errorf("%w: at least one level is required", ErrInvalidConfig)
	case c.StopLossPct < 0 || c.StopLossPct > 100:
		return fmt.Errorf("%w: stop loss pct %.2f out of range", ErrInvalidConfig, c.StopLossPct)
	case c.StopLossAbs < 0 || c.TakeProfitAbs < 0:
		return fmt.Errorf("%w: absolute limits must not be negative", ErrInvalidConfig)
	case c.MaxLossStreak < 0 || c.MaxSequences < 0 || c.MaxConsecutiveDojis < 0:
		return fmt.Errorf("%w: counters must not be negative", ErrInvalidConfig)
	case c.PayoutMinPct < 0 || c.PayoutMinPct > 100 || c.PayoutMinPctFeed < 0 || c.PayoutMinPctFeed > 100:
		return fmt.Errorf("%w: payout floor out of range", ErrInvalidConfig)
	case c.ReconnectAttempts < 1:
		return fmt.Errorf("%w: reconnect attempts must be at least 1", ErrInvalidConfig)
	case c.OutcomeTimeout <= 0 || c.ConnectTimeout <= 0:
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	case c.ExecutionWindow < 0 || c.RetryInterval < 0 || c.SequenceTimeout < 0 || c.SequenceInterval < 0:
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	}
	switch c.AssetType {
	case AssetTypeOTC, AssetTypeNonOTC, AssetTypeBoth:
	default:
		return fmt.Errorf("%w: asset type %q", ErrInvalidConfig, c.AssetType)
	}
	switch c.MarketType {
	case MarketForex, MarketCrypto, MarketCommodity, MarketStock, MarketBoth:
	default:
		return fmt.Errorf("%w: market type %q", ErrInvalidConfig, c.MarketType)
	}
	if (c.TradingHoursStart == "") != (c.TradingHoursEnd == "") {
		return fmt.Errorf("%w: trading hours need both start and end", ErrInvalidConfig)
	}
	if c.TradingHoursStart != "" {
		if _, err := ParseClock(c.TradingHoursStart); err != nil {
			return fmt.Errorf("%w: trading hours start: %v", ErrInvalidConfig, err)
		}
		if _, err := ParseClock(c.TradingHoursEnd); err != nil {
			return fmt.Errorf("%w: trading hours end: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

// ParseClock parses "HH:MM" into minutes after midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
