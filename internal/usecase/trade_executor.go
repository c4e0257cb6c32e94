package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/vitos/binary_mg_bot/internal/domain"
)

type TradeExecutor struct {
	broker domain.BrokerGateway
	clock  domain.Clock
}

func NewTradeExecutor(broker domain.BrokerGateway, clock domain.Clock) *TradeExecutor {
	return &TradeExecutor{
		broker: broker,
		clock:  clock,
	}
}

// Place submits the trade of one level.
func (e *TradeExecutor) Place(ctx context.Context, sig domain.Signal, stake float64) (*domain.TradeHandle, error) {
	if sig.Direction != domain.DirectionCall && sig.Direction != domain.DirectionPut {
		return nil, fmt.Errorf("invalid direction: %s", sig.Direction)
	}
	handle, err := e.broker.PlaceTrade(ctx, sig.Asset, sig.Direction, stake, sig.Duration)
	if err != nil {
		return nil, err
	}
	if handle.PlacedAt.IsZero() {
		handle.PlacedAt = e.clock.Now()
	}
	if handle.Amount == 0 {
		handle.Amount = stake
	}
	if handle.Asset == "" {
		handle.Asset = sig.Asset
	}
	if handle.Duration == 0 {
		handle.Duration = sig.Duration
	}
	return handle, nil
}

// Await waits for the outcome of a placed level. The level is always returned.
// When no result arrives within timeout it is marked TIMEOUT, its stake counted
// as lost, and the error wraps ErrOutcomeTimeout. If ctx ends first, ctx.Err()
// is returned instead.
func (e *TradeExecutor) Await(ctx context.Context, handle *domain.TradeHandle, index int, payout float64, timeout time.Duration) (*domain.Level, error) {
	level := &domain.Level{
		Index:    index,
		TradeID:  handle.ID,
		Stake:    handle.Amount,
		Payout:   payout,
		PlacedAt: handle.PlacedAt,
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := e.broker.AwaitOutcome(waitCtx, handle, timeout)
	level.ResolvedAt = e.clock.Now()
	if err != nil {
		level.Outcome = domain.OutcomeTimeout
		level.Profit = -handle.Amount
		if ctx.Err() != nil {
			return level, ctx.Err()
		}
		if errors.Is(err, domain.ErrOutcomeTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return level, fmt.Errorf("level %d trade %s: %w", index, handle.ID, domain.ErrOutcomeTimeout)
		}
		return level, fmt.Errorf("level %d trade %s: %w: %v", index, handle.ID, domain.ErrOutcomeTimeout, err)
	}

	level.Outcome = domain.ClassifyOutcome(*res)
	switch level.Outcome {
	case domain.OutcomeWin:
		level.Profit = domain.RoundMoney(res.Profit)
	case domain.OutcomeDoji:
		level.Profit = 0
	default:
		level.Profit = -domain.RoundMoney(math.Abs(res.Profit))
	}
	return level, nil
}
