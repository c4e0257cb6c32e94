package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/vitos/binary_mg_bot/internal/config"
	"github.com/vitos/binary_mg_bot/internal/infrastructure/storage"
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
		fmt.Printf("Failed to init store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	id := *sessionID
	if id == "" {
		s, err := store.LatestSession(ctx)
		if err != nil {
			fmt.Printf("Failed to find latest session: %v\n", err)
			os.Exit(1)
		}
		id = s.ID
	}
	sess, err := store.GetSession(ctx, id)
	if err != nil {
		fmt.Printf("Failed to get session: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	fmt.Println("Session:")
	enc.Encode(sess)

	seqs, err := store.ListSequences(ctx, id)
	if err != nil {
		fmt.Printf("❌ Failed to list sequences: %v\n", err)
	} else {
		fmt.Printf("Found %d sequences:\n", len(seqs))
		for _, s := range seqs {
			enc.Encode(s)
		}
	}

	alerts, err := store.ListAlerts(ctx, id)
	if err != nil {
		fmt.Printf("❌ Failed to list alerts: %v\n", err)
		return
	}
	fmt.Printf("Found %d alerts:\n", len(alerts))
	for _, a := range alerts {
		fmt.Printf("- [%s] %s %s\n", a.Timestamp.Format("15:04:05"), a.Reason, a.Message)
	}
}
