package domain

import "time"

// RecentWindow is the number of sequences kept in the rolling summary.
const RecentWindow = 20

// FullRecoveryFailureLimit blocks the session once reached.
const FullRecoveryFailureLimit = 3

// Session identifies one run of the loop and its opening balance.
type Session struct {
	ID              string      `json:"id"`
	StartedAt       time.Time   `json:"started_at"`
	StartingBalance float64     `json:"starting_balance"`
	AccountMode     AccountMode `json:"account_mode"`
	Source          SourceKind  `json:"source"`
}

// SequenceSummary is the compact form of a sequence kept in the rolling window.
type SequenceSummary struct {
	Outcome  SequenceOutcome `json:"outcome"`
	Scenario int             `json:"scenario"`
	Profit   float64         `json:"profit"`
	EndedAt  time.Time       `json:"ended_at"`
}

// SessionAggregates are derived from the ledger and never edited in place.
type SessionAggregates struct {
	SessionID            string            `json:"session_id"`
	StartingBalance      float64           `json:"starting_balance"`
	CurrentBalance       float64           `json:"current_balance"`
	PeakBalance          float64           `json:"peak_balance"`
	ConsecutiveLosses    int               `json:"consecutive_losses"`
	FullRecoveryFailures int               `json:"full_recovery_failures"`
	TotalSequences       int               `json:"total_sequences"`
	Wins                 int               `json:"wins"`
	Losses               int               `json:"losses"`
	Dojis                int               `json:"dojis"`
	Aborted              int               `json:"aborted"`
	TotalProfit          float64           `json:"total_profit"`
	Recent               []SequenceSummary `json:"recent"`
}

// NewAggregates returns the empty aggregates for a session.
func NewAggregates(s *Session) SessionAggregates {
	return SessionAggregates{
		SessionID:       s.ID,
		StartingBalance: s.StartingBalance,
		CurrentBalance:  s.StartingBalance,
		PeakBalance:     s.StartingBalance,
	}
}

// Apply returns the aggregates after seq is recorded. The receiver is not modified.
func (a SessionAggregates) Apply(seq *Sequence) SessionAggregates {
	next := a.Clone()
	profit := seq.Profit()

	next.TotalSequences++
	next.TotalProfit = AddMoney(next.TotalProfit, profit)
	next.CurrentBalance = AddMoney(next.StartingBalance, next.TotalProfit)
	if next.CurrentBalance > next.PeakBalance {
		next.PeakBalance = next.CurrentBalance
	}

	switch seq.Outcome {
	case SequenceWin:
		next.Wins++
		next.ConsecutiveLosses = 0
	case SequenceDoji:
		next.Dojis++
	case SequenceLoss:
		next.Losses++
		next.ConsecutiveLosses++
		next.FullRecoveryFailures++
	case SequenceAborted:
		next.Aborted++
		if profit < 0 {
			next.ConsecutiveLosses++
		}
	}

	next.Recent = append(next.Recent, SequenceSummary{
		Outcome:  seq.Outcome,
		Scenario: seq.Scenario,
		Profit:   profit,
		EndedAt:  seq.EndedAt,
	})
	if len(next.Recent) > RecentWindow {
		next.Recent = next.Recent[len(next.Recent)-RecentWindow:]
	}
	return next
}

// Clone returns a deep copy.
func (a SessionAggregates) Clone() SessionAggregates {
	c := a
	if a.Recent != nil {
		c.Recent = make([]SequenceSummary, len(a.Recent))
		copy(c.Recent, a.Recent)
	}
	return c
}

// DrawdownPct is the loss from the starting balance in percent.
func (a SessionAggregates) DrawdownPct() float64 {
	if a.StartingBalance <= 0 || a.CurrentBalance >= a.StartingBalance {
		return 0
	}
	return (a.StartingBalance - a.CurrentBalance) / a.StartingBalance * 100
}

// HitRate is wins over recorded sequences, in percent.
func (a SessionAggregates) HitRate() float64 {
	if a.TotalSequences == 0 {
		return 0
	}
	return float64(a.Wins) / float64(a.TotalSequences) * 100
}

type GateReason string

const (
	ReasonStopLossPct          GateReason = "STOP_LOSS_PCT"
	ReasonStopLossAbs          GateReason = "STOP_LOSS_ABS"
	ReasonTakeProfit           GateReason = "TAKE_PROFIT"
	ReasonLossStreak           GateReason = "LOSS_STREAK"
	ReasonFullRecoveryFailures GateReason = "FULL_RECOVERY_FAILURES"
	ReasonMaxSequences         GateReason = "MAX_SEQUENCES"
)

// Alert is appended to the ledger when the protection gate blocks.
type Alert struct {
	ID        int64             `json:"id"`
	SessionID string            `json:"session_id"`
	Timestamp time.Time         `json:"timestamp"`
	Reason    GateReason        `json:"reason"`
	Message   string            `json:"message"`
	Snapshot  SessionAggregates `json:"snapshot"`
}

type Action string

const (
	ActionContinue Action = "CONTINUE"
	ActionPause    Action = "PAUSE"
	ActionAdjust   Action = "ADJUST"
)

type Trend string

const (
	TrendRising  Trend = "RISING"
	TrendFalling Trend = "FALLING"
	TrendStable  Trend = "STABLE"
)

type Momentum string

const (
	MomentumPositive Momentum = "POSITIVE"
	MomentumNegative Momentum = "NEGATIVE"
	MomentumNeutral  Momentum = "NEUTRAL"
)

// Recommendation is the advice produced after every recorded sequence.
type Recommendation struct {
	Action        Action   `json:"action"`
	Reasons       []string `json:"reasons,omitempty"`
	Suggestions   []string `json:"suggestions,omitempty"`
	Sample        int      `json:"sample"`
	HitRate       float64  `json:"hit_rate"`
	WindowProfit  float64  `json:"window_profit"`
	FullFailures  int      `json:"full_failures"`
	Trend         Trend    `json:"trend"`
	TrendStrength float64  `json:"trend_strength"`
	Momentum      Momentum `json:"momentum"`
	DrawdownPct   float64  `json:"drawdown_pct"`
}

type EventKind string

const (
	EventSequenceRecorded EventKind = "sequence_recorded"
	EventGateBlocked      EventKind = "gate_blocked"
	EventSignalRejected   EventKind = "signal_rejected"
	EventAdvisory         EventKind = "advisory"
	EventWarning          EventKind = "warning"
	EventStopped          EventKind = "stopped"
)

// Event is a human-facing notification emitted by the orchestrator.
type Event struct {
	Kind     EventKind
	Time     time.Time
	Message  string
	Sequence *Sequence
}
