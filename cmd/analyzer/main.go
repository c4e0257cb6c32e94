package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/vitos/binary_mg_bot/internal/config"
	"github.com/vitos/binary_mg_bot/internal/domain"
	"github.com/vitos/binary_mg_bot/internal/infrastructure/storage"
	"github.com/vitos/binary_mg_bot/internal/usecase"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "operating config")
	sessionID := flag.String("session", "", "session id (default: latest)")
	flag.Parse()

	file, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	ctx := context.Background()
	store, err := storage.Open(ctx, file.Storage.Driver, file.Storage.Path, file.Storage.DSN, zap.NewNop())
	if err != nil {
		fmt.Printf("Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	var sess *domain.Session
	if *sessionID != "" {
		sess, err = store.GetSession(ctx, *sessionID)
	} else {
		sess, err = store.LatestSession(ctx)
	}
	if err != nil {
		fmt.Printf("Failed to load session: %v\n", err)
		os.Exit(1)
	}
	seqs, err := store.ListSequences(ctx, sess.ID)
	if err != nil {
		fmt.Printf("Failed to load sequences: %v\n", err)
		os.Exit(1)
	}

	agg := usecase.Replay(sess, seqs)
	rec := usecase.NewSessionRecommender(usecase.DefaultRecommenderPolicy()).Evaluate(agg)

	fmt.Printf("Session %s (%s, %s) started %s\n", sess.ID, sess.AccountMode, sess.Source, sess.StartedAt.Format("2006-01-02 15:04"))
	fmt.Println(strings.Repeat("-", 72))
	fmt.Printf("%-4s %-16s %-5s %-8s %-3s %6s %9s\n", "N", "Asset", "Dir", "Outcome", "Sc", "Levels", "Profit")
	for i, s := range seqs {
		fmt.Printf("%-4d %-16s %-5s %-8s %-3d %6d %9.2f\n",
			i+1, s.Signal.Asset, s.Signal.Direction, s.Outcome, s.Scenario, len(s.Levels), s.Profit())
	}
	fmt.Println(strings.Repeat("-", 72))

	scenarios := map[int]int{}
	for _, s := range seqs {
		scenarios[s.Scenario]++
	}
	fmt.Printf("Sequences: %d  wins: %d  losses: %d  dojis: %d  aborted: %d\n",
		agg.TotalSequences, agg.Wins, agg.Losses, agg.Dojis, agg.Aborted)
	fmt.Printf("Scenarios: C1=%d C2=%d C3=%d doji=%d aborted=%d\n",
		scenarios[domain.ScenarioDirectWin], scenarios[domain.ScenarioRecoveredWin], scenarios[domain.ScenarioFullLoss],
		scenarios[domain.ScenarioDoji], scenarios[domain.ScenarioAborted])
	fmt.Printf("Balance: %.2f -> %.2f (profit %.2f, peak %.2f, drawdown %.1f%%)\n",
		agg.StartingBalance, agg.CurrentBalance, agg.TotalProfit, agg.PeakBalance, agg.DrawdownPct())
	fmt.Printf("Hit rate: %.1f%%  streak: %d  full recovery failures: %d\n",
		agg.HitRate(), agg.ConsecutiveLosses, agg.FullRecoveryFailures)

	fmt.Println()
	fmt.Printf("Recommendation: %s (trend %s/%.1f, momentum %s)\n", rec.Action, rec.Trend, rec.TrendStrength, rec.Momentum)
	for _, r := range rec.Reasons {
		fmt.Printf("  - %s\n", r)
	}
	for _, s := range rec.Suggestions {
		fmt.Printf("  > %s\n", s)
	}
}
