package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vitos/binary_mg_bot/internal/config"
	"github.com/vitos/binary_mg_bot/internal/domain"
	"github.com/vitos/binary_mg_bot/internal/infrastructure/broker"
	"github.com/vitos/binary_mg_bot/internal/infrastructure/logger"
	"github.com/vitos/binary_mg_bot/internal/strategy"
	"github.com/vitos/binary_mg_bot/internal/usecase"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "operating config")
	envFile := flag.String("env", ".env", "credentials file")
	asset := flag.String("asset", "", "asset to test; empty ranks the best-paying assets")
	top := flag.Int("top", 10, "assets to rank")
	strategyName := flag.String("strategy", "", "strategy (default: trading.strategy)")
	levels := flag.Int("levels", 0, "martingale levels including the entry (default: trading.mg_levels, 1 disables)")
	duration := flag.Int("duration", 0, "candle duration in seconds (default: strategy recommendation)")
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
	log, err := logger.NewLogger(file.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg := file.Domain()
	// history only, never real money
	cfg.AccountMode = domain.AccountPractice
	if *strategyName != "" {
		cfg.Strategy = *strategyName
	}
	if *levels > 0 {
		cfg.MGLevels = *levels
	}
	strat, err := strategy.Get(cfg.Strategy)
	if err != nil {
		fmt.Printf("❌ %v (available: %s)\n", err, strings.Join(strategy.Names(), ", "))
		os.Exit(1)
	}
	switch {
	case *duration > 0:
		cfg.Duration = *duration
	case strat.RecommendedDuration() > 0:
		cfg.Duration = strat.RecommendedDuration()
	}

	var gw domain.BrokerGateway
	switch file.Broker.Kind {
	case "bridge":
		gw = broker.NewBridgeBroker(file.Broker.BridgeURL, file.Broker.BridgeWS, file.Broker.RatePerSec, log)
	default:
		gw = broker.NewPaperBroker(broker.PaperConfig{Balance: file.Broker.Paper.Balance, Payout: file.Broker.Paper.Payout})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	conn := usecase.NewConnector(gw, secrets.Broker, usecase.RealClock(), nil, log)
	if err := conn.Connect(ctx, cfg); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	defer gw.Close()

	bt := usecase.NewBacktester(gw, strat, cfg, log)
	filter := usecase.FilterFromConfig(cfg, domain.SourceStrategy)

	if *asset == "" {
		reports, err := bt.Rank(ctx, filter, *top)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(1)
		}
		printRanking(reports, cfg)
		return
	}

	payout, err := gw.GetPayout(ctx, *asset)
	if err != nil {
		fmt.Printf("❌ Payout for %s: %v\n", *asset, err)
		os.Exit(1)
	}
	r, err := bt.Run(ctx, *asset, payout)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	printReport(r, cfg)
}

func printReport(r usecase.BacktestReport, cfg domain.Config) {
	fmt.Printf("\nBacktest %s on %s | %ds | stake %.2f | payout %.0f%% | %d level(s)\n",
		r.Strategy, r.Asset, r.Duration, cfg.BaseStake, r.Payout, r.Levels)
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Candles:        %d (~%.0fh)\n", r.Candles, r.Period().Hours())
	fmt.Printf("Signals:        %d\n", r.Signals)
	fmt.Printf("Wins/Losses:    %d / %d  dojis %d\n", r.Wins, r.Losses, r.Dojis)
	fmt.Printf("Hit rate:       %.1f%%\n", r.HitRate())
	if r.Levels > 1 {
		fmt.Printf("Ladders:        C1=%d C2=%d C3=%d doji=%d (C3 %.1f%%, max run %d)\n",
			r.DirectWins, r.RecoveredWins, r.FullLosses, r.DojiCycles, r.FullLossPct(), r.MaxFullLossStreak)
		fmt.Printf("Profit/ladder:  %.2f\n", r.ProfitPerCycle())
	}
	fmt.Printf("Streaks:        win %d, loss %d\n", r.MaxWinStreak, r.MaxLossStreak)
	fmt.Printf("Profit:         %+.2f\n", r.Profit)
	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("Rating:         %s\n", r.Rating)
}

func printRanking(reports []usecase.BacktestReport, cfg domain.Config) {
	fmt.Printf("\nRanking %s | %ds | stake %.2f | %d level(s)\n", cfg.Strategy, cfg.Duration, cfg.BaseStake, cfg.MGLevels)
	fmt.Println(strings.Repeat("=", 72))
	fmt.Printf("%-4s %-18s %7s %7s %6s %10s  %s\n", "#", "Asset", "Payout", "Hit", "C3%", "Profit", "Rating")
	for i, r := range reports {
		c3 := "-"
		if r.Levels > 1 {
			c3 = fmt.Sprintf("%.1f", r.FullLossPct())
		}
		fmt.Printf("%-4d %-18s %6.0f%% %6.1f%% %6s %+10.2f  %s\n",
			i+1, r.Asset, r.Payout, r.HitRate(), c3, r.Profit, r.Rating)
	}
	fmt.Println(strings.Repeat("-", 72))
	best := reports[0]
	fmt.Printf("Best: %s (%s, %+.2f)\n", best.Asset, best.Rating, best.Profit)
}
