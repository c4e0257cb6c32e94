package usecase

import (
	"fmt"
	"math"

	"github.com/vitos/binary_mg_bot/internal/domain"
)

// RecommenderPolicy holds the thresholds of the session recommender.
type RecommenderPolicy struct {
	MinSample         int
	PauseHitRate      float64
	AdjustHitRate     float64
	PauseFullFailures int
	PauseTrend        float64
	PauseWindowLoss   float64
	AdjustDrawdownPct float64
}

func DefaultRecommenderPolicy() RecommenderPolicy {
	return RecommenderPolicy{
		MinSample:         5,
		PauseHitRate:      40,
		AdjustHitRate:     50,
		PauseFullFailures: 2,
		PauseTrend:        3,
		PauseWindowLoss:   -20,
		AdjustDrawdownPct: 10,
	}
}

type SessionRecommender struct {
	policy RecommenderPolicy
}

func NewSessionRecommender(policy RecommenderPolicy) *SessionRecommender {
	return &SessionRecommender{policy: policy}
}

// Evaluate recommends continuing, pausing or adjusting based on the rolling
// window of recent sequences. It never blocks on its own.
func (r *SessionRecommender) Evaluate(agg domain.SessionAggregates) domain.Recommendation {
	window := agg.Recent
	rec := domain.Recommendation{
		Action:      domain.ActionContinue,
		Sample:      len(window),
		Trend:       domain.TrendStable,
		Momentum:    domain.MomentumNeutral,
		DrawdownPct: round1(agg.DrawdownPct()),
	}

	var wins int
	for _, s := range window {
		if s.Outcome == domain.SequenceWin {
			wins++
		}
		if s.Scenario == domain.ScenarioFullLoss {
			rec.FullFailures++
		}
		rec.WindowProfit += s.Profit
	}
	rec.WindowProfit = domain.RoundMoney(rec.WindowProfit)
	if len(window) > 0 {
		rec.HitRate = round1(float64(wins) / float64(len(window)) * 100)
	}

	if len(window) < r.policy.MinSample {
		rec.Reasons = append(rec.Reasons, fmt.Sprintf("small sample (%d sequences), collecting data", len(window)))
		return rec
	}

	rec.Trend, rec.TrendStrength = trend(window)
	rec.Momentum = momentum(window)

	if rec.HitRate < r.policy.PauseHitRate {
		rec.Action = domain.ActionPause
		rec.Reasons = append(rec.Reasons, fmt.Sprintf("hit rate %.1f%% below %.0f%%", rec.HitRate, r.policy.PauseHitRate))
	}
	if rec.FullFailures >= r.policy.PauseFullFailures {
		rec.Action = domain.ActionPause
		rec.Reasons = append(rec.Reasons, fmt.Sprintf("%d full-recovery failures in the last %d sequences", rec.FullFailures, len(window)))
	}
	if rec.Trend == domain.TrendFalling && rec.TrendStrength >= r.policy.PauseTrend {
		rec.Action = domain.ActionPause
		rec.Reasons = append(rec.Reasons, fmt.Sprintf("strong falling trend (strength %.1f)", rec.TrendStrength))
	}
	if rec.Momentum == domain.MomentumNegative && rec.WindowProfit < r.policy.PauseWindowLoss {
		rec.Action = domain.ActionPause
		rec.Reasons = append(rec.Reasons, fmt.Sprintf("negative momentum with window loss %.2f", rec.WindowProfit))
	}
	if rec.Action == domain.ActionPause {
		return rec
	}

	adjust := func(reason, suggestion string) {
		rec.Action = domain.ActionAdjust
		rec.Reasons = append(rec.Reasons, reason)
		rec.Suggestions = append(rec.Suggestions, suggestion)
	}
	if rec.HitRate >= r.policy.PauseHitRate && rec.HitRate < r.policy.AdjustHitRate {
		adjust(fmt.Sprintf("marginal hit rate %.1f%%", rec.HitRate), "reduce base stake")
	}
	if rec.FullFailures == 1 {
		adjust("one recent full-recovery failure", "consider changing asset or direction")
	}
	if rec.Trend == domain.TrendFalling && rec.TrendStrength >= 1 {
		adjust(fmt.Sprintf("falling trend (strength %.1f)", rec.TrendStrength), "reduce recovery levels or stake")
	}
	if rec.Momentum == domain.MomentumNegative {
		adjust("negative momentum in the last sequences", "wait for the market to settle")
	}
	if r.policy.AdjustDrawdownPct > 0 && rec.DrawdownPct >= r.policy.AdjustDrawdownPct {
		adjust(fmt.Sprintf("drawdown %.1f%% of starting balance", rec.DrawdownPct), "reduce exposure")
	}
	return rec
}

// trend compares the two halves of the window. Thresholds shrink as the sample grows.
func trend(window []domain.SequenceSummary) (domain.Trend, float64) {
	n := len(window)
	if n < 6 {
		return domain.TrendStable, 0
	}
	first, second := window[:n/2], window[n/2:]
	rate1, profit1 := halfStats(first)
	rate2, profit2 := halfStats(second)
	diffRate := rate2 - rate1
	diffProfit := profit2 - profit1

	rateThreshold := math.Max(15, float64(30-n))
	profitThreshold := math.Max(5, float64(10-n/2))
	strength := math.Min(round1(math.Abs(diffRate)/15), 5)

	switch {
	case diffProfit > profitThreshold && diffRate > rateThreshold:
		return domain.TrendRising, strength
	case diffProfit < -profitThreshold && diffRate < -rateThreshold:
		return domain.TrendFalling, strength
	}
	return domain.TrendStable, 0
}

func halfStats(half []domain.SequenceSummary) (rate, profit float64) {
	var wins int
	for _, s := range half {
		if s.Outcome == domain.SequenceWin {
			wins++
		}
		profit += s.Profit
	}
	if len(half) > 0 {
		rate = float64(wins) / float64(len(half)) * 100
	}
	return rate, profit
}

func momentum(window []domain.SequenceSummary) domain.Momentum {
	last := window
	if len(last) > 5 {
		last = last[len(last)-5:]
	}
	var wins int
	for _, s := range last {
		if s.Outcome == domain.SequenceWin {
			wins++
		}
	}
	switch {
	case wins >= 3:
		return domain.MomentumPositive
	case wins <= 1:
		return domain.MomentumNegative
	}
	return domain.MomentumNeutral
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
