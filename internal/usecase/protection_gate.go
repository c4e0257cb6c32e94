package usecase

import (
	"context"
	"fmt"

	"github.com/vitos/binary_mg_bot/internal/domain"
	"go.uber.org/zap"
)

// GateDecision is the result of a protection check.
type GateDecision struct {
	Allowed  bool
	Reason   domain.GateReason
	Message  string
	Warnings []string
}

// AlertRecorder persists protection alerts.
type AlertRecorder interface {
	RecordAlert(ctx context.Context, alert *domain.Alert) error
}

type ProtectionGate struct {
	alerts AlertRecorder
	clock  domain.Clock
	logger *zap.Logger
}

func NewProtectionGate(alerts AlertRecorder, clock domain.Clock, logger *zap.Logger) *ProtectionGate {
	return &ProtectionGate{alerts: alerts, clock: clock, logger: logger}
}

// Check evaluates session aggregates against the configured limits.
// Checks run in a fixed order and the first failing one is reported:
// - percentage stop-loss (if > 0)
// - absolute stop-loss (if > 0)
// - take-profit (if > 0)
// - consecutive loss streak
// - accumulated full-recovery failures
// - session sequence cap (if > 0)
func (g *ProtectionGate) Check(agg domain.SessionAggregates, cfg domain.Config) GateDecision {
	if cfg.StopLossPct > 0 {
		floor := agg.StartingBalance * (1 - cfg.StopLossPct/100)
		if agg.CurrentBalance < floor {
			return block(domain.ReasonStopLossPct, fmt.Sprintf(
				"balance %.2f below stop-loss floor %.2f (%.1f%% of %.2f)",
				agg.CurrentBalance, floor, cfg.StopLossPct, agg.StartingBalance))
		}
	}
	if cfg.StopLossAbs > 0 {
		lost := agg.StartingBalance - agg.CurrentBalance
		if lost >= cfg.StopLossAbs {
			return block(domain.ReasonStopLossAbs, fmt.Sprintf(
				"session loss %.2f reached absolute stop-loss %.2f", lost, cfg.StopLossAbs))
		}
	}
	if cfg.TakeProfitAbs > 0 && agg.TotalProfit >= cfg.TakeProfitAbs {
		return block(domain.ReasonTakeProfit, fmt.Sprintf(
			"session profit %.2f reached take-profit %.2f", agg.TotalProfit, cfg.TakeProfitAbs))
	}
	if cfg.MaxLossStreak > 0 && agg.ConsecutiveLosses >= cfg.MaxLossStreak {
		return block(domain.ReasonLossStreak, fmt.Sprintf(
			"%d consecutive losses (limit %d)", agg.ConsecutiveLosses, cfg.MaxLossStreak))
	}
	if agg.FullRecoveryFailures >= domain.FullRecoveryFailureLimit {
		return block(domain.ReasonFullRecoveryFailures, fmt.Sprintf(
			"%d full-recovery failures this session", agg.FullRecoveryFailures))
	}
	if cfg.MaxSequences > 0 && agg.TotalSequences >= cfg.MaxSequences {
		return block(domain.ReasonMaxSequences, fmt.Sprintf(
			"session cap of %d sequences reached", cfg.MaxSequences))
	}

	d := GateDecision{Allowed: true}
	if cfg.MaxLossStreak > 1 && agg.ConsecutiveLosses == cfg.MaxLossStreak-1 {
		d.Warnings = append(d.Warnings, fmt.Sprintf(
			"one more loss reaches the streak limit (%d/%d)", agg.ConsecutiveLosses, cfg.MaxLossStreak))
	}
	if cfg.StopLossPct > 0 && agg.DrawdownPct() >= cfg.StopLossPct/2 {
		d.Warnings = append(d.Warnings, fmt.Sprintf(
			"drawdown %.1f%% past half of stop-loss %.1f%%", agg.DrawdownPct(), cfg.StopLossPct))
	}
	return d
}

// Evaluate runs Check and records an alert when the session is blocked.
func (g *ProtectionGate) Evaluate(ctx context.Context, agg domain.SessionAggregates, cfg domain.Config) (GateDecision, error) {
	d := g.Check(agg, cfg)
	if d.Allowed {
		return d, nil
	}

	g.logger.Warn("Protection gate blocked session",
		zap.String("reason", string(d.Reason)),
		zap.String("message", d.Message),
		zap.Float64("balance", agg.CurrentBalance))

	alert := &domain.Alert{
		SessionID: agg.SessionID,
		Timestamp: g.clock.Now(),
		Reason:    d.Reason,
		Message:   d.Message,
		Snapshot:  agg.Clone(),
	}
	if err := g.alerts.RecordAlert(ctx, alert); err != nil {
		return d, fmt.Errorf("failed to record alert: %w", err)
	}
	return d, nil
}

func block(reason domain.GateReason, msg string) GateDecision {
	return GateDecision{Reason: reason, Message: msg}
}
