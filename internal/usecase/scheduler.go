package usecase

import (
	"context"
	"time"

	"github.com/vitos/binary_mg_bot/internal/domain"
)

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock returns the wall clock.
func RealClock() domain.Clock { return realClock{} }

// SleepCtx suspends for d or until ctx is done.
func SleepCtx(ctx context.Context, clock domain.Clock, d time.Duration) error {
	if d <= 0 || ctx.Err() != nil {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clock.After(d):
		return nil
	}
}

// NextCandleBoundary returns the open time of the next candle of the given duration.
// If less than a second remains, the boundary after that is used.
func NextCandleBoundary(now time.Time, durationSec int) time.Time {
	d := time.Duration(durationSec) * time.Second
	if d <= 0 {
		return now
	}
	next := now.Truncate(d).Add(d)
	if next.Sub(now) < time.Second {
		next = next.Add(d)
	}
	return next
}

// EntryTime decides when level 0 of sig is due.
// Unscheduled signals go to the next candle boundary when alignment is on.
// Scheduled signals too far ahead execute immediately. Late signals keep their
// time so the market verifier can reject them.
func EntryTime(now time.Time, sig domain.Signal, cfg domain.Config) time.Time {
	if sig.ScheduledAt.IsZero() {
		if cfg.AlignToCandle {
			return NextCandleBoundary(now, sig.Duration)
		}
		return now
	}
	if cfg.MaxScheduleWait > 0 && sig.ScheduledAt.Sub(now) > cfg.MaxScheduleWait {
		return now
	}
	return sig.ScheduledAt
}

// WaitUntil suspends until t, returning early if ctx is done.
func WaitUntil(ctx context.Context, clock domain.Clock, t time.Time) error {
	return SleepCtx(ctx, clock, t.Sub(clock.Now()))
}
