package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/vitos/binary_mg_bot/internal/config"
	"github.com/vitos/binary_mg_bot/internal/domain"
	"github.com/vitos/binary_mg_bot/internal/infrastructure/broker"
	"github.com/vitos/binary_mg_bot/internal/signals"
	"github.com/vitos/binary_mg_bot/internal/strategy"
	"github.com/vitos/binary_mg_bot/internal/usecase"
	"go.uber.org/zap"
)

func buildBroker(file config.File, log *zap.Logger) (domain.BrokerGateway, error) {
	switch file.Broker.Kind {
	case "", "paper":
		p := file.Broker.Paper
		return broker.NewPaperBroker(broker.PaperConfig{
			Balance:   p.Balance,
			WinRate:   p.WinRate,
			DojiRate:  p.DojiRate,
			Payout:    p.Payout,
			TimeScale: p.TimeScale,
		}), nil
	case "bridge":
		if file.Broker.BridgeURL == "" {
			return nil, fmt.Errorf("%w: broker.bridge_url is required", domain.ErrInvalidConfig)
		}
		return broker.NewBridgeBroker(file.Broker.BridgeURL, file.Broker.BridgeWS, file.Broker.RatePerSec, log), nil
	}
	return nil, fmt.Errorf("%w: unknown broker %q", domain.ErrInvalidConfig, file.Broker.Kind)
}

func buildSource(
	ctx context.Context,
	file config.File,
	secrets config.Secrets,
	gw domain.BrokerGateway,
	provider usecase.ConfigSource,
	log *zap.Logger,
) (domain.SignalSource, error) {
	parser := &signals.Parser{
		Clock:           usecase.RealClock(),
		DefaultDuration: file.Trading.Duration,
	}

	switch domain.SourceKind(file.Source.Kind) {
	case domain.SourceManual:
		fmt.Println("Enter signals as: ASSET CALL|PUT [DURATION] [HH:MM]")
		return signals.NewManualSource(os.Stdin, parser, log), nil

	case domain.SourceList:
		list, err := signals.LoadListFile(file.Source.ListFile, time.Now(), file.Trading.Duration)
		if err != nil {
			return nil, err
		}
		log.Info("Signal list loaded", zap.String("file", file.Source.ListFile), zap.Int("signals", list.Remaining()))
		return list, nil

	case domain.SourceFeed:
		parser.Offset = file.FeedOffset()
		var transport signals.Transport
		switch file.Source.Feed.Transport {
		case "telegram":
			if secrets.TelegramToken == "" {
				return nil, fmt.Errorf("%w: TELEGRAM_BOT_TOKEN is required for the telegram feed", domain.ErrInvalidConfig)
			}
			tg, err := signals.NewTelegramTransport(secrets.TelegramToken, secrets.TelegramChatID, log)
			if err != nil {
				return nil, err
			}
			transport = tg
		case "websocket":
			transport = signals.NewWebsocketTransport(file.Source.Feed.WebsocketURL, log)
		default:
			return nil, fmt.Errorf("%w: unknown feed transport %q", domain.ErrInvalidConfig, file.Source.Feed.Transport)
		}
		feed := signals.NewFeedSource(transport, parser, log)
		if err := feed.Start(ctx); err != nil {
			return nil, err
		}
		return feed, nil

	case domain.SourceStrategy:
		strat, err := strategy.Get(file.Trading.Strategy)
		if err != nil {
			return nil, fmt.Errorf("%w: %v (available: %v)", domain.ErrInvalidConfig, err, strategy.Names())
		}
		return signals.NewStrategySource(signals.StrategySourceOptions{
			Broker:     gw,
			Strategy:   strat,
			Config:     provider,
			Asset:      file.Trading.Asset,
			AutoSwitch: file.Trading.AutoSwitchAsset,
			Logger:     log,
		}), nil
	}
	return nil, fmt.Errorf("%w: unknown signal source %q", domain.ErrInvalidConfig, file.Source.Kind)
}
