package usecase

import (
	"context"
	"fmt"

	"github.com/vitos/binary_mg_bot/internal/domain"
	"go.uber.org/zap"
)

// Connector owns the broker session lifecycle.
type Connector struct {
	broker  domain.BrokerGateway
	creds   domain.Credentials
	clock   domain.Clock
	metrics Metrics
	logger  *zap.Logger
}

func NewConnector(broker domain.BrokerGateway, creds domain.Credentials, clock domain.Clock, metrics Metrics, logger *zap.Logger) *Connector {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Connector{broker: broker, creds: creds, clock: clock, metrics: metrics, logger: logger}
}

// Connect tries cfg.ReconnectAttempts times, each bounded by cfg.ConnectTimeout,
// sleeping cfg.RetryInterval between attempts.
func (c *Connector) Connect(ctx context.Context, cfg domain.Config) error {
	var lastErr error
	for attempt := 1; attempt <= cfg.ReconnectAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		err := c.broker.Connect(attemptCtx, c.creds, cfg.AccountMode)
		cancel()
		if err == nil {
			c.logger.Info("Broker connected",
				zap.Int("attempt", attempt),
				zap.String("mode", string(cfg.AccountMode)))
			return nil
		}
		lastErr = err
		c.logger.Warn("Broker connection attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", cfg.ReconnectAttempts),
			zap.Error(err))

		if attempt < cfg.ReconnectAttempts {
			if err := SleepCtx(ctx, c.clock, cfg.RetryInterval); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", domain.ErrConnection, cfg.ReconnectAttempts, lastErr)
}

// Reconnect closes the current session and connects again.
func (c *Connector) Reconnect(ctx context.Context, cfg domain.Config) error {
	if err := c.broker.Close(); err != nil {
		c.logger.Debug("Broker close before reconnect failed", zap.Error(err))
	}
	err := c.Connect(ctx, cfg)
	if err != nil {
		c.metrics.Reconnect(false)
		return err
	}
	c.metrics.Reconnect(true)
	return nil
}
