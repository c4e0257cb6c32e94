package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/vitos/binary_mg_bot/internal/domain"
	"go.uber.org/zap"
)

// BacktestRating grades a simulated run.
type BacktestRating string

const (
	RatingExcellent BacktestRating = "EXCELLENT"
	RatingGood      BacktestRating = "GOOD"
	RatingNeutral   BacktestRating = "NEUTRAL"
	RatingWeak      BacktestRating = "WEAK"
)

const (
	backtestCandles      = 1000
	backtestMinCandles   = 10
	backtestFetchTimeout = 60 * time.Second
)

// BacktestReport summarises a walk-forward simulation on one asset.
type BacktestReport struct {
	Asset    string  `json:"asset"`
	Strategy string  `json:"strategy"`
	Duration int     `json:"duration"`
	Payout   float64 `json:"payout"`
	Levels   int     `json:"levels"`

	Candles       int `json:"candles"`
	Signals       int `json:"signals"`
	Wins          int `json:"wins"`
	Losses        int `json:"losses"`
	Dojis         int `json:"dojis"`
	MaxWinStreak  int `json:"max_win_streak"`
	MaxLossStreak int `json:"max_loss_streak"`

	// Ladder results, one per completed sequence.
	DirectWins        int `json:"direct_wins"`
	RecoveredWins     int `json:"recovered_wins"`
	FullLosses        int `json:"full_losses"`
	DojiCycles        int `json:"doji_cycles"`
	MaxFullLossStreak int `json:"max_full_loss_streak"`

	Profit float64        `json:"profit"`
	Rating BacktestRating `json:"rating"`
}

func (r BacktestReport) Cycles() int {
	return r.DirectWins + r.RecoveredWins + r.FullLosses + r.DojiCycles
}

// HitRate is wins over decided trades, in percent.
func (r BacktestReport) HitRate() float64 {
	if r.Wins+r.Losses == 0 {
		return 0
	}
	return float64(r.Wins) / float64(r.Wins+r.Losses) * 100
}

func (r BacktestReport) FullLossPct() float64 {
	if r.Cycles() == 0 {
		return 0
	}
	return float64(r.FullLosses) / float64(r.Cycles()) * 100
}

func (r BacktestReport) ProfitPerCycle() float64 {
	if r.Cycles() == 0 {
		return 0
	}
	return domain.RoundMoney(r.Profit / float64(r.Cycles()))
}

// Period is the market time covered by the candles.
func (r BacktestReport) Period() time.Duration {
	return time.Duration(r.Candles*r.Duration) * time.Second
}

// Backtester replays a strategy over historical candles with the live staking ladder.
type Backtester struct {
	broker   domain.BrokerGateway
	strategy domain.Strategy
	cfg      domain.Config
	staking  *StakingCalculator
	logger   *zap.Logger
}

func NewBacktester(broker domain.BrokerGateway, strategy domain.Strategy, cfg domain.Config, logger *zap.Logger) *Backtester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backtester{
		broker:   broker,
		strategy: strategy,
		cfg:      cfg,
		staking:  NewStakingCalculator(),
		logger:   logger,
	}
}

// Simulate walks the candles forward. At candle i the strategy sees candles[:i+1];
// a signal enters at that close and settles at the next close. A ladder still
// open after the last candle is not counted.
func (b *Backtester) Simulate(asset string, payoutPct float64, candles []domain.Candle) (BacktestReport, error) {
	if payoutPct <= 0 || payoutPct > 100 {
		return BacktestReport{}, fmt.Errorf("%w: payout %.2f%%", domain.ErrInvalidPayout, payoutPct)
	}
	levels := b.cfg.MGLevels
	if levels < 1 {
		levels = 1
	}
	payout := payoutPct / 100
	r := BacktestReport{
		Asset:    asset,
		Strategy: b.strategy.Name(),
		Duration: b.cfg.Duration,
		Payout:   payoutPct,
		Levels:   levels,
		Candles:  len(candles),
	}

	var (
		level                        int
		lost                         float64
		winRun, lossRun, fullLossRun int
	)
	for i := 0; i+1 < len(candles); i++ {
		dir, _ := b.strategy.Evaluate(candles[:i+1], b.cfg)
		if dir == nil {
			continue
		}
		stake, err := b.staking.StakeForLevel(level, b.cfg, payout, payout, lost)
		if err != nil {
			return r, err
		}
		r.Signals++

		switch settle(*dir, candles[i].Close, candles[i+1].Close) {
		case domain.OutcomeWin:
			r.Wins++
			winRun++
			lossRun = 0
			fullLossRun = 0
			r.Profit = domain.AddMoney(r.Profit, domain.AddMoney(domain.RoundMoney(stake*payout), -lost))
			if level == 0 {
				r.DirectWins++
			} else {
				r.RecoveredWins++
			}
			level, lost = 0, 0
		case domain.OutcomeDoji:
			// refunded; the ladder ends like a live DOJI sequence
			r.Dojis++
			r.DojiCycles++
			winRun = 0
			r.Profit = domain.AddMoney(r.Profit, -lost)
			level, lost = 0, 0
		default:
			r.Losses++
			lossRun++
			winRun = 0
			lost = domain.AddMoney(lost, stake)
			if level+1 < levels {
				level++
			} else {
				r.FullLosses++
				fullLossRun++
				r.Profit = domain.AddMoney(r.Profit, -lost)
				level, lost = 0, 0
			}
		}
		r.MaxWinStreak = max(r.MaxWinStreak, winRun)
		r.MaxLossStreak = max(r.MaxLossStreak, lossRun)
		r.MaxFullLossStreak = max(r.MaxFullLossStreak, fullLossRun)
	}
	r.Rating = rateBacktest(r)
	return r, nil
}

func settle(dir domain.Direction, entry, exit float64) domain.Outcome {
	switch {
	case exit == entry:
		return domain.OutcomeDoji
	case dir == domain.DirectionCall && exit > entry, dir == domain.DirectionPut && exit < entry:
		return domain.OutcomeWin
	}
	return domain.OutcomeLoss
}

func rateBacktest(r BacktestReport) BacktestRating {
	if r.Levels > 1 {
		pct := r.FullLossPct()
		switch {
		case pct < 15 && r.Profit > 0:
			return RatingExcellent
		case pct < 20 && r.Profit > 0:
			return RatingGood
		case pct < 25 && r.Profit >= 0:
			return RatingNeutral
		}
		return RatingWeak
	}
	switch hr := r.HitRate(); {
	case hr >= 60:
		return RatingExcellent
	case hr >= 55:
		return RatingGood
	case hr >= 50:
		return RatingNeutral
	}
	return RatingWeak
}

// Run fetches history for one asset and simulates it.
func (b *Backtester) Run(ctx context.Context, asset string, payoutPct float64) (BacktestReport, error) {
	candles, err := b.broker.GetCandles(ctx, asset, b.cfg.Duration, backtestCandles, backtestFetchTimeout)
	if err != nil {
		return BacktestReport{}, fmt.Errorf("failed to fetch candles for %s: %w", asset, err)
	}
	if len(candles) < backtestMinCandles {
		return BacktestReport{}, fmt.Errorf("only %d candles for %s", len(candles), asset)
	}
	r, err := b.Simulate(asset, payoutPct, candles)
	if err != nil {
		return r, err
	}
	b.logger.Info("Backtest finished",
		zap.String("asset", asset),
		zap.String("strategy", r.Strategy),
		zap.Int("signals", r.Signals),
		zap.Float64("hit_rate", r.HitRate()),
		zap.Float64("profit", r.Profit),
		zap.String("rating", string(r.Rating)))
	return r, nil
}

// Rank backtests the n best-paying assets that pass filter and orders them by
// simulated profit. Assets whose history cannot be fetched are skipped.
func (b *Backtester) Rank(ctx context.Context, filter AssetFilter, n int) ([]BacktestReport, error) {
	assets, err := NewAssetSelector(b.broker).List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(assets) > n {
		assets = assets[:n]
	}

	reports := make([]BacktestReport, 0, len(assets))
	for _, a := range assets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := b.Run(ctx, a.Name, a.Payout)
		if err != nil {
			b.logger.Warn("Backtest skipped asset", zap.String("asset", a.Name), zap.Error(err))
			continue
		}
		reports = append(reports, r)
	}
	if len(reports) == 0 {
		return nil, fmt.Errorf("none of %d assets could be backtested", len(assets))
	}
	sort.SliceStable(reports, func(i, j int) bool { return reports[i].Profit > reports[j].Profit })
	return reports, nil
}
