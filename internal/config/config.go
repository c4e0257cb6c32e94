package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/vitos/binary_mg_bot/internal/domain"
	"gopkg.in/yaml.v3"
)

// File mirrors config/config.yaml.
type File struct {
	AccountMode string `yaml:"account_mode"`

	Trading struct {
		BaseStake       float64 `yaml:"base_stake"`
		Duration        int     `yaml:"duration"`
		MGLevels        int     `yaml:"mg_levels"`
		MGCorrection    bool    `yaml:"mg_correction"`
		Strategy        string  `yaml:"strategy"`
		Asset           string  `yaml:"asset"`
		AutoSwitchAsset bool    `yaml:"auto_switch_asset"`
	} `yaml:"trading"`

	Assets struct {
		AssetType        string  `yaml:"asset_type"`
		MarketType       string  `yaml:"market_type"`
		PayoutMinPct     float64 `yaml:"payout_min_pct"`
		PayoutMinPctFeed float64 `yaml:"payout_min_pct_feed"`
	} `yaml:"assets"`

	Verifier struct {
		Enabled             bool    `yaml:"enabled"`
		ExecutionWindowSec  int     `yaml:"execution_window_sec"`
		VolatilityMinPct    float64 `yaml:"volatility_min_pct"`
		MaxConsecutiveDojis int     `yaml:"max_consecutive_dojis"`
		TradingHoursStart   string  `yaml:"trading_hours_start"`
		TradingHoursEnd     string  `yaml:"trading_hours_end"`
	} `yaml:"verifier"`

	Protection struct {
		StopLossPct   float64 `yaml:"stop_loss_pct"`
		StopLossAbs   float64 `yaml:"stop_loss_abs"`
		TakeProfitAbs float64 `yaml:"take_profit_abs"`
		MaxLossStreak int     `yaml:"max_loss_streak"`
		MaxSequences  int     `yaml:"max_sequences"`
	} `yaml:"protection"`

	Connection struct {
		ConnectTimeoutSec  int `yaml:"connect_timeout_sec"`
		ReconnectAttempts  int `yaml:"reconnect_attempts"`
		RetryIntervalSec   int `yaml:"retry_interval_sec"`
		OutcomeTimeoutSec  int `yaml:"outcome_timeout_sec"`
		SequenceTimeoutSec int `yaml:"sequence_timeout_sec"`
	} `yaml:"connection"`

	Timing struct {
		AlignToCandle       bool `yaml:"align_to_candle"`
		MaxScheduleWaitSec  int  `yaml:"max_schedule_wait_sec"`
		SequenceIntervalSec int  `yaml:"sequence_interval_sec"`
		CandleCount         int  `yaml:"candle_count"`
		ShutdownGraceSec    int  `yaml:"shutdown_grace_sec"`
	} `yaml:"timing"`

	Source struct {
		Kind     string `yaml:"kind"`
		ListFile string `yaml:"list_file"`
		Feed     struct {
			Transport     string `yaml:"transport"`
			WebsocketURL  string `yaml:"websocket_url"`
			TimeOffsetMin int    `yaml:"time_offset_min"`
		} `yaml:"feed"`
	} `yaml:"source"`

	Broker struct {
		Kind       string  `yaml:"kind"`
		BridgeURL  string  `yaml:"bridge_url"`
		BridgeWS   string  `yaml:"bridge_ws_url"`
		RatePerSec float64 `yaml:"rate_per_sec"`
		Paper      struct {
			Balance   float64 `yaml:"balance"`
			WinRate   float64 `yaml:"win_rate"`
			DojiRate  float64 `yaml:"doji_rate"`
			Payout    float64 `yaml:"payout"`
			TimeScale float64 `yaml:"time_scale"`
		} `yaml:"paper"`
	} `yaml:"broker"`

	Storage struct {
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
		DSN    string `yaml:"dsn"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`

	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Notify struct {
		Telegram bool `yaml:"telegram"`
	} `yaml:"notify"`
}

// Default returns a File populated with the reference values.
func Default() File {
	d := domain.DefaultConfig()
	var f File
	f.AccountMode = string(d.AccountMode)

	f.Trading.BaseStake = d.BaseStake
	f.Trading.Duration = d.Duration
	f.Trading.MGLevels = d.MGLevels
	f.Trading.MGCorrection = d.MGCorrection
	f.Trading.Strategy = d.Strategy

	f.Assets.AssetType = string(d.AssetType)
	f.Assets.MarketType = string(d.MarketType)
	f.Assets.PayoutMinPct = d.PayoutMinPct
	f.Assets.PayoutMinPctFeed = d.PayoutMinPctFeed

	f.Verifier.Enabled = d.VerifierEnabled
	f.Verifier.ExecutionWindowSec = int(d.ExecutionWindow / time.Second)
	f.Verifier.VolatilityMinPct = d.VolatilityMinPct
	f.Verifier.MaxConsecutiveDojis = d.MaxConsecutiveDojis
	f.Verifier.TradingHoursStart = d.TradingHoursStart
	f.Verifier.TradingHoursEnd = d.TradingHoursEnd

	f.Protection.StopLossPct = d.StopLossPct
	f.Protection.StopLossAbs = d.StopLossAbs
	f.Protection.TakeProfitAbs = d.TakeProfitAbs
	f.Protection.MaxLossStreak = d.MaxLossStreak
	f.Protection.MaxSequences = d.MaxSequences

	f.Connection.ConnectTimeoutSec = int(d.ConnectTimeout / time.Second)
	f.Connection.ReconnectAttempts = d.ReconnectAttempts
	f.Connection.RetryIntervalSec = int(d.RetryInterval / time.Second)
	f.Connection.OutcomeTimeoutSec = int(d.OutcomeTimeout / time.Second)
	f.Connection.SequenceTimeoutSec = int(d.SequenceTimeout / time.Second)

	f.Timing.AlignToCandle = d.AlignToCandle
	f.Timing.MaxScheduleWaitSec = int(d.MaxScheduleWait / time.Second)
	f.Timing.SequenceIntervalSec = int(d.SequenceInterval / time.Second)
	f.Timing.CandleCount = d.CandleCount
	f.Timing.ShutdownGraceSec = 30

	f.Source.Kind = string(domain.SourceManual)
	f.Source.ListFile = "config/signals.yaml"
	f.Source.Feed.Transport = "telegram"
	f.Source.Feed.TimeOffsetMin = -60

	f.Broker.Kind = "paper"
	f.Broker.RatePerSec = 5
	f.Broker.Paper.Balance = 1000
	f.Broker.Paper.WinRate = 0.55
	f.Broker.Paper.DojiRate = 0.02
	f.Broker.Paper.Payout = 85
	f.Broker.Paper.TimeScale = 1

	f.Storage.Driver = "sqlite"
	f.Storage.Path = "bot.db"

	f.Logging.Level = "info"
	f.Server.Port = 8080
	return f
}

// Load reads path over the defaults. Keys missing from the file keep their default.
func Load(path string) (File, error) {
	f := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return f, nil
}

func secs(n int) time.Duration { return time.Duration(n) * time.Second }

// Domain converts the file into an operating snapshot.
func (f File) Domain() domain.Config {
	return domain.Config{
		AccountMode:  domain.AccountMode(f.AccountMode),
		BaseStake:    f.Trading.BaseStake,
		Duration:     f.Trading.Duration,
		MGLevels:     f.Trading.MGLevels,
		MGCorrection: f.Trading.MGCorrection,
		Strategy:     f.Trading.Strategy,

		AssetType:        domain.AssetType(f.Assets.AssetType),
		MarketType:       domain.MarketType(f.Assets.MarketType),
		PayoutMinPct:     f.Assets.PayoutMinPct,
		PayoutMinPctFeed: f.Assets.PayoutMinPctFeed,

		VerifierEnabled:     f.Verifier.Enabled,
		ExecutionWindow:     secs(f.Verifier.ExecutionWindowSec),
		VolatilityMinPct:    f.Verifier.VolatilityMinPct,
		MaxConsecutiveDojis: f.Verifier.MaxConsecutiveDojis,
		TradingHoursStart:   f.Verifier.TradingHoursStart,
		TradingHoursEnd:     f.Verifier.TradingHoursEnd,

		StopLossPct:   f.Protection.StopLossPct,
		StopLossAbs:   f.Protection.StopLossAbs,
		TakeProfitAbs: f.Protection.TakeProfitAbs,
		MaxLossStreak: f.Protection.MaxLossStreak,
		MaxSequences:  f.Protection.MaxSequences,

		ConnectTimeout:    secs(f.Connection.ConnectTimeoutSec),
		ReconnectAttempts: f.Connection.ReconnectAttempts,
		RetryInterval:     secs(f.Connection.RetryIntervalSec),
		OutcomeTimeout:    secs(f.Connection.OutcomeTimeoutSec),
		SequenceTimeout:   secs(f.Connection.SequenceTimeoutSec),

		AlignToCandle:    f.Timing.AlignToCandle,
		MaxScheduleWait:  secs(f.Timing.MaxScheduleWaitSec),
		SequenceInterval: secs(f.Timing.SequenceIntervalSec),
		CandleCount:      f.Timing.CandleCount,
	}
}

// FeedOffset is the shift applied to HH:MM times read from feed messages.
func (f File) FeedOffset() time.Duration {
	return time.Duration(f.Source.Feed.TimeOffsetMin) * time.Minute
}

func (f File) ShutdownGrace() time.Duration { return secs(f.Timing.ShutdownGraceSec) }

// Secrets are read from the environment, never from config.yaml.
type Secrets struct {
	Broker             domain.Credentials
	TelegramToken      string
	TelegramChatID     int64
	TelegramNotifyChat int64
	DatabaseURL        string
}

// LoadSecrets loads envFile if it exists and reads credentials from the environment.
func LoadSecrets(envFile string) (Secrets, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return Secrets{}, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	s := Secrets{
		Broker: domain.Credentials{
			Email:    os.Getenv("BROKER_EMAIL"),
			Password: os.Getenv("BROKER_PASSWORD"),
			Token:    os.Getenv("BROKER_TOKEN"),
		},
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
	}
	var err error
	if s.TelegramChatID, err = envInt64("TELEGRAM_CHAT_ID"); err != nil {
		return s, err
	}
	if s.TelegramNotifyChat, err = envInt64("TELEGRAM_NOTIFY_CHAT_ID"); err != nil {
		return s, err
	}
	return s, nil
}

func envInt64(key string) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", domain.ErrInvalidConfig, key, v)
	}
	return n, nil
}
