package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vitos/binary_mg_bot/internal/config"
	"github.com/vitos/binary_mg_bot/internal/domain"
	"github.com/vitos/binary_mg_bot/internal/infrastructure/logger"
	"github.com/vitos/binary_mg_bot/internal/infrastructure/metrics"
	"github.com/vitos/binary_mg_bot/internal/infrastructure/notify"
	"github.com/vitos/binary_mg_bot/internal/infrastructure/storage"
	"github.com/vitos/binary_mg_bot/internal/usecase"
	"github.com/vitos/binary_mg_bot/internal/web"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "operating config")
	envFile := flag.String("env", ".env", "credentials file")
	resumeID := flag.String("resume", "", "resume a stored session by id")
	sourceKind := flag.String("source", "", "signal source override: manual, list, feed, strategy")
	flag.Parse()

	exit := 0
	defer func() {
		if exit != 0 {
			os.Exit(exit)
		}
	}()

	// 1. Load Config
	file, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *sourceKind != "" {
		file.Source.Kind = *sourceKind
	}

	// 2. Init Logger
	var log *zap.Logger
	if file.Logging.File != "" {
		log, err = logger.NewFileLogger(file.Logging.File, file.Logging.Level)
	} else {
		log, err = logger.NewLogger(file.Logging.Level)
	}
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	provider, err := config.NewProvider(*configPath, log)
	if err != nil {
		log.Fatal("Invalid config", zap.Error(err))
	}
	secrets, err := config.LoadSecrets(*envFile)
	if err != nil {
		log.Fatal("Failed to load credentials", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Init Storage
	dsn := file.Storage.DSN
	if secrets.DatabaseURL != "" {
		dsn = secrets.DatabaseURL
	}
	store, err := storage.Open(ctx, file.Storage.Driver, file.Storage.Path, dsn, log)
	if err != nil {
		log.Fatal("Failed to init storage", zap.Error(err))
	}
	defer store.Close()

	// 4. Init Broker
	broker, err := buildBroker(file, log)
	if err != nil {
		log.Fatal("Failed to init broker", zap.Error(err))
	}
	defer broker.Close()

	// 5. Init Metrics and Notifiers
	recorder := metrics.NewRecorder()
	notifiers := usecase.MultiNotifier{usecase.NewLogNotifier(log)}
	if file.Notify.Telegram && secrets.TelegramToken != "" && secrets.TelegramNotifyChat != 0 {
		tg, err := notify.NewTelegramNotifier(secrets.TelegramToken, secrets.TelegramNotifyChat, log)
		if err != nil {
			log.Error("Telegram notifier disabled", zap.Error(err))
		} else {
			defer tg.Close()
			notifiers = append(notifiers, tg)
		}
	}

	// 6. Init Signal Source
	source, err := buildSource(ctx, file, secrets, broker, provider, log)
	if err != nil {
		log.Fatal("Failed to init signal source", zap.Error(err))
	}

	// 7. Init Orchestrator
	ledger := usecase.NewSessionLedger(store, log)
	orch := usecase.New(usecase.Options{
		Broker:      broker,
		Source:      source,
		Ledger:      ledger,
		Config:      provider,
		Credentials: secrets.Broker,
		Notifier:    notifiers,
		Metrics:     recorder,
		Logger:      log,
	})
	if err := orch.Open(ctx, *resumeID); err != nil {
		log.Fatal("Failed to open session", zap.Error(err))
	}

	// 8. Start Server
	server := web.NewServer(file.Server.Port, orch, ledger, recorder.Handler(), log)
	go func() {
		if err := server.Start(); err != nil {
			log.Error("Server failed", zap.Error(err))
		}
	}()

	// 9. Two-stage shutdown: graceful first, halt on a second signal or after the grace period
	stop := make(chan os.Signal, 2)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		log.Info("Shutdown requested, finishing current sequence", zap.Duration("grace", file.ShutdownGrace()))
		orch.Stop()

		var grace <-chan time.Time
		if file.ShutdownGrace() > 0 {
			grace = time.After(file.ShutdownGrace())
		}
		select {
		case <-stop:
			log.Warn("Second signal, halting")
		case <-grace:
			log.Warn("Shutdown grace elapsed, halting")
		case <-ctx.Done():
			return
		}
		orch.Stop()
	}()

	// 10. Run
	runErr := orch.Run(ctx)
	st := orch.Status()
	log.Info("Session finished",
		zap.String("reason", st.StopReason),
		zap.Int("sequences", st.Aggregates.TotalSequences),
		zap.Float64("profit", st.Aggregates.TotalProfit),
		zap.Float64("balance", st.Aggregates.CurrentBalance))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Orchestrator stopped with error", zap.Error(runErr))
		exit = exitCode(runErr)
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidConfig):
		return 2
	case errors.Is(err, domain.ErrConnection):
		return 3
	}
	return 1
}
