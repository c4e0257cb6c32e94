package domain

import "time"

type Direction string

const (
	DirectionCall Direction = "CALL"
	DirectionPut  Direction = "PUT"
)

// ParseDirection accepts CALL/PUT and the common aliases used by signal feeds.
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "CALL", "call", "Call", "BUY", "buy", "UP", "up", "COMPRA", "compra":
		return DirectionCall, true
	case "PUT", "put", "Put", "SELL", "sell", "DOWN", "down", "VENDA", "venda":
		return DirectionPut, true
	}
	return "", false
}

type Outcome string

const (
	OutcomeWin     Outcome = "WIN"
	OutcomeLoss    Outcome = "LOSS"
	OutcomeDoji    Outcome = "DOJI"
	OutcomeTimeout Outcome = "TIMEOUT"
)

// ClassifyOutcome maps a broker result to an outcome.
func ClassifyOutcome(r TradeResult) Outcome {
	if r.Won {
		return OutcomeWin
	}
	if r.Profit == 0 {
		return OutcomeDoji
	}
	return OutcomeLoss
}

// Level represents one staked attempt within a sequence.
type Level struct {
	Index      int       `json:"index"`
	TradeID    string    `json:"trade_id"`
	Stake      float64   `json:"stake"`
	Payout     float64   `json:"payout"`
	Outcome    Outcome   `json:"outcome"`
	Profit     float64   `json:"profit"`
	PlacedAt   time.Time `json:"placed_at"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// IsLoss reports whether the stake of this level was lost.
func (l Level) IsLoss() bool {
	return l.Outcome == OutcomeLoss || l.Outcome == OutcomeTimeout
}
