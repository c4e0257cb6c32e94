package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/vitos/binary_mg_bot/internal/config"
	"github.com/vitos/binary_mg_bot/internal/domain"
	"github.com/vitos/binary_mg_bot/internal/infrastructure/broker"
	"github.com/vitos/binary_mg_bot/internal/usecase"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "operating config")
	envFile := flag.String("env", ".env", "credentials file")
	flag.Parse()

	file, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	secrets, err := config.LoadSecrets(*envFile)
	if err != nil {
		fmt.Printf("Failed to load credentials: %v\n", err)
		os.Exit(1)
	}
	cfg := file.Domain()

	var gw domain.BrokerGateway
	switch file.Broker.Kind {
	case "bridge":
		gw = broker.NewBridgeBroker(file.Broker.BridgeURL, file.Broker.BridgeWS, file.Broker.RatePerSec, zap.NewNop())
	default:
		gw = broker.NewPaperBroker(broker.PaperConfig{Balance: file.Broker.Paper.Balance, Payout: file.Broker.Paper.Payout})
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout*time.Duration(cfg.ReconnectAttempts+1))
	defer cancel()

	fmt.Printf("Connecting to %s broker (%s)...\n", file.Broker.Kind, cfg.AccountMode)
	conn := usecase.NewConnector(gw, secrets.Broker, usecase.RealClock(), nil, zap.NewNop())
	if err := conn.Connect(ctx, cfg); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	defer gw.Close()

	balance, err := gw.GetBalance(ctx, cfg.AccountMode)
	if err != nil {
		fmt.Printf("❌ Balance: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Balance: %.2f\n\n", balance)

	filter := usecase.FilterFromConfig(cfg, domain.SourceManual)
	assets, err := usecase.NewAssetSelector(gw).List(ctx, filter)
	if err != nil {
		fmt.Printf("❌ Assets: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Open assets with payout >= %.0f%% (%s / %s):\n", filter.MinPayout, filter.AssetType, filter.MarketType)
	fmt.Printf("  %-18s %-10s %7s\n", "Asset", "Market", "Payout")
	for _, a := range assets {
		fmt.Printf("  %-18s %-10s %6.0f%%\n", a.Name, a.Market, a.Payout)
	}
	if len(assets) == 0 {
		fmt.Println("  ⚠️ none")
	}

	if len(assets) > 0 {
		candles, err := gw.GetCandles(ctx, assets[0].Name, cfg.Duration, 5, cfg.ConnectTimeout)
		if err != nil {
			fmt.Printf("\n❌ Candles for %s: %v\n", assets[0].Name, err)
			return
		}
		fmt.Printf("\n✅ %d candles for %s, last close %.5f\n", len(candles), assets[0].Name, candles[len(candles)-1].Close)
	}
}
