package signals

import (
	"context"
	"fmt"

	"github.com/vitos/binary_mg_bot/internal/domain"
	"github.com/vitos/binary_mg_bot/internal/usecase"
	"go.uber.org/zap"
)

// strategyFetch is the minimum candle history requested per evaluation.
const strategyFetch = 100

// StrategySource evaluates a candle strategy on every candle close.
type StrategySource struct {
	broker     domain.BrokerGateway
	strategy   domain.Strategy
	config     usecase.ConfigSource
	clock      domain.Clock
	selector   *usecase.AssetSelector
	asset      string
	autoSwitch bool
	logger     *zap.Logger
}

type StrategySourceOptions struct {
	Broker     domain.BrokerGateway
	Strategy   domain.Strategy
	Config     usecase.ConfigSource
	Clock      domain.Clock
	Asset      string
	AutoSwitch bool
	Logger     *zap.Logger
}

func NewStrategySource(opts StrategySourceOptions) *StrategySource {
	if opts.Clock == nil {
		opts.Clock = usecase.RealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &StrategySource{
		broker:     opts.Broker,
		strategy:   opts.Strategy,
		config:     opts.Config,
		clock:      opts.Clock,
		selector:   usecase.NewAssetSelector(opts.Broker),
		asset:      opts.Asset,
		autoSwitch: opts.AutoSwitch,
		logger:     opts.Logger,
	}
}

func (s *StrategySource) Kind() domain.SourceKind { return domain.SourceStrategy }

func (s *StrategySource) Meta() domain.StrategyMeta {
	return domain.StrategyMeta{
		MinCandles:          s.strategy.MinCandles(),
		RecommendedDuration: s.strategy.RecommendedDuration(),
	}
}

// Next waits for the next candle boundary and evaluates the strategy.
// It returns (nil, nil) when the strategy has no opinion on that candle.
func (s *StrategySource) Next(ctx context.Context) (*domain.Signal, error) {
	cfg, err := s.config.Snapshot()
	if err != nil {
		return nil, err
	}
	duration := s.strategy.RecommendedDuration()
	if duration <= 0 {
		duration = cfg.Duration
	}

	boundary := usecase.NextCandleBoundary(s.clock.Now(), duration)
	if err := usecase.WaitUntil(ctx, s.clock, boundary); err != nil {
		return nil, err
	}

	asset := s.asset
	if s.autoSwitch || asset == "" {
		best, err := s.selector.Best(ctx, usecase.FilterFromConfig(cfg, domain.SourceStrategy))
		if err != nil {
			return nil, fmt.Errorf("asset selection failed: %w", err)
		}
		if best.Name != s.asset {
			s.logger.Info("Strategy asset switched",
				zap.String("from", s.asset),
				zap.String("to", best.Name),
				zap.Float64("payout", best.Payout))
			s.asset = best.Name
		}
		asset = best.Name
	}

	count := s.strategy.MinCandles()
	if count < strategyFetch {
		count = strategyFetch
	}
	candles, err := s.broker.GetCandles(ctx, asset, duration, count, cfg.ConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candles for %s: %w", asset, err)
	}
	if len(candles) < s.strategy.MinCandles() {
		s.logger.Warn("Not enough candles for strategy",
			zap.String("asset", asset),
			zap.Int("have", len(candles)),
			zap.Int("need", s.strategy.MinCandles()))
		return nil, nil
	}

	dir, reason := s.strategy.Evaluate(candles, cfg)
	if dir == nil {
		s.logger.Debug("No strategy signal", zap.String("asset", asset), zap.String("reason", reason))
		return nil, nil
	}
	now := s.clock.Now()
	return &domain.Signal{
		Asset:       asset,
		Direction:   *dir,
		Duration:    duration,
		ScheduledAt: now,
		Source:      domain.SourceStrategy,
		Note:        fmt.Sprintf("%s: %s", s.strategy.Name(), reason),
		ReceivedAt:  now,
	}, nil
}
