package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vitos/binary_mg_bot/internal/domain"
	"go.uber.org/zap"
)

type State string

const (
	StateIdle         State = "IDLE"
	StateAwaitSignal  State = "AWAIT_SIGNAL"
	StateVerifyRisk   State = "VERIFY_RISK"
	StateVerifyMarket State = "VERIFY_MARKET"
	StateStakeLevel   State = "STAKE_LEVEL"
	StateAwaitOutcome State = "AWAIT_OUTCOME"
	StateWinTerminal  State = "WIN_TERMINAL"
	StateDojiTerminal State = "DOJI_TERMINAL"
	StateAdvanceLevel State = "ADVANCE_LEVEL"
	StateLossTerminal State = "LOSS_TERMINAL"
	StateRecord       State = "RECORD"
	StateRecommend    State = "RECOMMEND"
	StateStopped      State = "STOPPED"
)

// recordTimeout bounds the ledger write of a sequence interrupted by a halt.
const recordTimeout = 10 * time.Second

// ConfigSource hands out one immutable config snapshot per sequence.
type ConfigSource interface {
	Snapshot() (domain.Config, error)
}

// StaticConfig serves the same snapshot forever.
type StaticConfig domain.Config

func (c StaticConfig) Snapshot() (domain.Config, error) {
	cfg := domain.Config(c)
	return cfg, cfg.Validate()
}

type Options struct {
	Broker      domain.BrokerGateway
	Source      domain.SignalSource
	Ledger      *SessionLedger
	Config      ConfigSource
	Credentials domain.Credentials
	Clock       domain.Clock
	Notifier    domain.Notifier
	Metrics     Metrics
	Recommender *SessionRecommender
	Logger      *zap.Logger
}

// Status is a point-in-time view of the orchestrator.
type Status struct {
	State              State                    `json:"state"`
	StopReason         string                   `json:"stop_reason,omitempty"`
	StopRequests       int                      `json:"stop_requests"`
	Session            *domain.Session          `json:"session,omitempty"`
	Aggregates         domain.SessionAggregates `json:"aggregates"`
	LastRecommendation *domain.Recommendation   `json:"last_recommendation,omitempty"`
	Current            *domain.Sequence         `json:"current,omitempty"`
}

// Orchestrator drives one staking sequence at a time from signal to record.
type Orchestrator struct {
	broker      domain.BrokerGateway
	source      domain.SignalSource
	ledger      *SessionLedger
	config      ConfigSource
	clock       domain.Clock
	notifier    domain.Notifier
	metrics     Metrics
	logger      *zap.Logger
	connector   *Connector
	gate        *ProtectionGate
	verifier    *MarketVerifier
	staking     *StakingCalculator
	executor    *TradeExecutor
	recommender *SessionRecommender

	mu           sync.Mutex
	state        State
	stopReason   string
	stopRequests int
	softCancel   context.CancelFunc
	hardCancel   context.CancelFunc
	lastRec      *domain.Recommendation
	current      *domain.Sequence
}

func New(opts Options) *Orchestrator {
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.Metrics == nil {
		opts.Metrics = NopMetrics{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Notifier == nil {
		opts.Notifier = NewLogNotifier(opts.Logger)
	}
	if opts.Recommender == nil {
		opts.Recommender = NewSessionRecommender(DefaultRecommenderPolicy())
	}
	return &Orchestrator{
		broker:      opts.Broker,
		source:      opts.Source,
		ledger:      opts.Ledger,
		config:      opts.Config,
		clock:       opts.Clock,
		notifier:    opts.Notifier,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		connector:   NewConnector(opts.Broker, opts.Credentials, opts.Clock, opts.Metrics, opts.Logger),
		gate:        NewProtectionGate(opts.Ledger, opts.Clock, opts.Logger),
		verifier:    NewMarketVerifier(opts.Clock),
		staking:     NewStakingCalculator(),
		executor:    NewTradeExecutor(opts.Broker, opts.Clock),
		recommender: opts.Recommender,
		state:       StateIdle,
	}
}

// Open connects to the broker and starts a new session, or resumes resumeID.
func (o *Orchestrator) Open(ctx context.Context, resumeID string) error {
	cfg, err := o.config.Snapshot()
	if err != nil {
		return err
	}
	if err := o.connector.Connect(ctx, cfg); err != nil {
		return err
	}
	if resumeID != "" {
		return o.ledger.Resume(ctx, resumeID)
	}

	balance, err := o.broker.GetBalance(ctx, cfg.AccountMode)
	if err != nil {
		return fmt.Errorf("failed to read balance: %w", err)
	}
	return o.ledger.Start(ctx, &domain.Session{
		ID:              uuid.NewString(),
		StartedAt:       o.clock.Now(),
		StartingBalance: balance,
		AccountMode:     cfg.AccountMode,
		Source:          o.source.Kind(),
	})
}

// Stop requests a shutdown. The first request lets the in-flight sequence reach a
// terminal state and be recorded; the second aborts it immediately.
// It reports whether the request forced a halt.
func (o *Orchestrator) Stop() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.stopRequests++
	if o.stopRequests == 1 {
		o.logger.Info("Graceful stop requested")
		if o.softCancel != nil {
			o.softCancel()
		}
		return false
	}
	o.logger.Warn("Forced halt requested")
	if o.softCancel != nil {
		o.softCancel()
	}
	if o.hardCancel != nil {
		o.hardCancel()
	}
	return true
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	st := Status{
		State:              o.state,
		StopReason:         o.stopReason,
		StopRequests:       o.stopRequests,
		LastRecommendation: o.lastRec,
		Current:            o.current,
	}
	o.mu.Unlock()

	st.Session = o.ledger.Session()
	st.Aggregates = o.ledger.CurrentAggregates()
	return st
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// run holds the working set of one loop iteration.
type run struct {
	cfg        domain.Config
	sig        *domain.Signal
	entry      time.Time
	payout     float64 // percent, latest
	firstPay   float64 // fraction, level 0
	seq        *domain.Sequence
	seqCtx     context.Context
	seqCancel  context.CancelFunc
	handle     *domain.TradeHandle
	afterRec   State
	stopReason string
	agg        domain.SessionAggregates
	err        error
}

// Run executes the state machine until it reaches STOPPED. It returns nil for a
// stop request, a protection block, a pause or an exhausted source, and an error
// for connectivity, configuration or ledger failures.
func (o *Orchestrator) Run(ctx context.Context) error {
	hardCtx, hardCancel := context.WithCancel(ctx)
	softCtx, softCancel := context.WithCancel(hardCtx)
	defer softCancel()
	defer hardCancel()

	o.mu.Lock()
	o.hardCancel, o.softCancel = hardCancel, softCancel
	switch {
	case o.stopRequests >= 2:
		hardCancel()
	case o.stopRequests == 1:
		softCancel()
	}
	o.mu.Unlock()

	r := &run{}
	state := StateAwaitSignal
	for state != StateStopped {
		o.setState(state)
		state = o.step(hardCtx, softCtx, state, r)
	}
	if r.seqCancel != nil {
		r.seqCancel()
	}

	o.mu.Lock()
	o.state = StateStopped
	o.stopReason = r.stopReason
	o.current = nil
	o.mu.Unlock()
	o.metrics.StateChanged(string(StateStopped))

	o.logger.Info("Orchestrator stopped", zap.String("reason", r.stopReason), zap.Error(r.err))
	o.notify(domain.EventStopped, "stopped: "+r.stopReason, nil)
	return r.err
}

func (o *Orchestrator) step(hardCtx, softCtx context.Context, state State, r *run) State {
	switch state {
	case StateAwaitSignal:
		return o.awaitSignal(softCtx, r)
	case StateVerifyRisk:
		return o.verifyRisk(hardCtx, r)
	case StateVerifyMarket:
		return o.verifyMarket(hardCtx, softCtx, r)
	case StateStakeLevel:
		return o.stakeLevel(hardCtx, r)
	case StateAwaitOutcome:
		return o.awaitOutcome(hardCtx, r)
	case StateAdvanceLevel:
		o.logger.Info("Advancing to recovery level",
			zap.String("sequence_id", r.seq.ID),
			zap.Int("level", len(r.seq.Levels)),
			zap.Float64("accumulated_loss", r.seq.AccumulatedLoss()))
		return StateStakeLevel
	case StateWinTerminal, StateDojiTerminal, StateLossTerminal:
		r.seq.Terminate(r.cfg.MGLevels, o.clock.Now())
		r.afterRec = StateRecommend
		return StateRecord
	case StateRecord:
		return o.record(hardCtx, r)
	case StateRecommend:
		return o.recommend(softCtx, r)
	}
	r.stopReason = fmt.Sprintf("unknown state %s", state)
	return StateStopped
}

func (o *Orchestrator) awaitSignal(softCtx context.Context, r *run) State {
	if softCtx.Err() != nil {
		r.stopReason = "stop requested"
		return StateStopped
	}
	sig, err := o.source.Next(softCtx)
	if err != nil {
		switch {
		case softCtx.Err() != nil:
			r.stopReason = "stop requested"
			return StateStopped
		case errors.Is(err, domain.ErrSourceExhausted):
			r.stopReason = "signal source exhausted"
			return StateStopped
		}
		o.logger.Error("Signal source error", zap.Error(err))
		cfg, cerr := o.config.Snapshot()
		if cerr != nil {
			cfg = domain.DefaultConfig()
		}
		if SleepCtx(softCtx, o.clock, cfg.RetryInterval) != nil {
			r.stopReason = "stop requested"
			return StateStopped
		}
		return StateAwaitSignal
	}
	if sig == nil {
		return StateAwaitSignal
	}
	if sig.ReceivedAt.IsZero() {
		sig.ReceivedAt = o.clock.Now()
	}
	if sig.Source == "" {
		sig.Source = o.source.Kind()
	}
	r.sig = sig
	o.logger.Info("Signal received",
		zap.String("asset", sig.Asset),
		zap.String("direction", string(sig.Direction)),
		zap.Int("duration", sig.Duration),
		zap.String("source", string(sig.Source)))
	return StateVerifyRisk
}

func (o *Orchestrator) verifyRisk(hardCtx context.Context, r *run) State {
	cfg, err := o.config.Snapshot()
	if err != nil {
		r.stopReason = "invalid configuration"
		r.err = err
		return StateStopped
	}
	r.cfg = cfg

	agg := o.ledger.CurrentAggregates()
	d, err := o.gate.Evaluate(hardCtx, agg, cfg)
	if err != nil {
		o.logger.Error("Failed to persist protection alert", zap.Error(err))
	}
	if !d.Allowed {
		o.metrics.GateBlocked(d.Reason)
		o.notify(domain.EventGateBlocked, fmt.Sprintf("[%s] %s", d.Reason, d.Message), nil)
		r.stopReason = fmt.Sprintf("protection gate: %s", d.Reason)
		return StateStopped
	}
	for _, w := range d.Warnings {
		o.logger.Warn("Protection warning", zap.String("warning", w))
		o.notify(domain.EventWarning, w, nil)
	}
	return StateVerifyMarket
}

func (o *Orchestrator) verifyMarket(hardCtx, softCtx context.Context, r *run) State {
	cfg := r.cfg
	sig := *r.sig
	if sig.Duration <= 0 {
		sig.Duration = cfg.Duration
		if mp, ok := o.source.(domain.MetaProvider); ok && mp.Meta().RecommendedDuration > 0 {
			sig.Duration = mp.Meta().RecommendedDuration
		}
	}

	r.entry = EntryTime(o.clock.Now(), sig, cfg)
	if r.entry.After(o.clock.Now()) {
		o.logger.Info("Waiting for entry time",
			zap.String("asset", sig.Asset),
			zap.Time("entry", r.entry))
		if err := WaitUntil(softCtx, o.clock, r.entry); err != nil {
			r.stopReason = "stop requested"
			return StateStopped
		}
	}

	payout, err := o.broker.GetPayout(hardCtx, sig.Asset)
	if err != nil {
		o.logger.Warn("Payout unavailable", zap.String("asset", sig.Asset), zap.Error(err))
		o.rejectSignal(sig, VerifyDecision{Check: CheckPayout, Message: "payout unavailable: " + err.Error()})
		return StateAwaitSignal
	}
	if payout <= 0 || payout > 100 {
		o.logger.Error("Invalid payout, sequence not created",
			zap.String("asset", sig.Asset),
			zap.Float64("payout", payout),
			zap.Error(domain.ErrInvalidPayout))
		o.rejectSignal(sig, VerifyDecision{Check: CheckPayout, Message: fmt.Sprintf("invalid payout %.2f%%", payout)})
		return StateAwaitSignal
	}

	var candles []domain.Candle
	if cfg.VerifierEnabled && (cfg.VolatilityMinPct > 0 || cfg.MaxConsecutiveDojis > 0) {
		candles, err = o.broker.GetCandles(hardCtx, sig.Asset, sig.Duration, o.candleCount(cfg), cfg.ConnectTimeout)
		if err != nil {
			o.logger.Warn("Candles unavailable, skipping candle checks",
				zap.String("asset", sig.Asset), zap.Error(err))
			candles = nil
		}
	}

	d := o.verifier.Evaluate(VerifyInput{
		Signal:    sig,
		EntryTime: r.entry,
		Candles:   candles,
		Payout:    payout,
	}, cfg)
	if !d.Accepted {
		o.rejectSignal(sig, d)
		return StateAwaitSignal
	}

	r.payout = payout
	r.firstPay = payout / 100
	r.seq = &domain.Sequence{
		ID:        uuid.NewString(),
		Signal:    sig,
		StartedAt: o.clock.Now(),
	}
	if cfg.SequenceTimeout > 0 {
		r.seqCtx, r.seqCancel = context.WithTimeout(hardCtx, cfg.SequenceTimeout)
	} else {
		r.seqCtx, r.seqCancel = context.WithCancel(hardCtx)
	}

	if plan, err := o.staking.Plan(cfg.BaseStake, r.firstPay, cfg.MGLevels, cfg.MGCorrection); err == nil {
		exposure := Exposure(plan)
		o.logger.Info("Sequence started",
			zap.String("sequence_id", r.seq.ID),
			zap.String("signal", sig.String()),
			zap.Float64("payout", payout),
			zap.Any("plan", plan),
			zap.Float64("exposure", exposure))
		if agg := o.ledger.CurrentAggregates(); exposure > agg.CurrentBalance {
			msg := fmt.Sprintf("plan exposure %.2f exceeds balance %.2f", exposure, agg.CurrentBalance)
			o.logger.Warn("Insufficient balance for full plan", zap.String("warning", msg))
			o.notify(domain.EventWarning, msg, nil)
		}
	}
	o.setCurrent(r.seq)
	return StateStakeLevel
}

func (o *Orchestrator) stakeLevel(hardCtx context.Context, r *run) State {
	if next, expired := o.sequenceExpired(hardCtx, r); expired {
		return next
	}
	index := len(r.seq.Levels)
	if index > 0 {
		if p, err := o.broker.GetPayout(r.seqCtx, r.seq.Signal.Asset); err == nil && p > 0 && p <= 100 {
			r.payout = p
		} else if err != nil {
			o.logger.Warn("Payout refresh failed, reusing last value", zap.Error(err))
		}
	}

	stake, err := o.staking.StakeForLevel(index, r.cfg, r.firstPay, r.payout/100, r.seq.AccumulatedLoss())
	if err != nil {
		o.logger.Error("Stake calculation failed", zap.Int("level", index), zap.Error(err))
		return o.abort(hardCtx, r, "stake calculation: "+err.Error(), StateRecommend, nil)
	}

	handle, err := o.executor.Place(r.seqCtx, r.seq.Signal, stake)
	if err != nil {
		o.logger.Error("Trade placement failed",
			zap.String("sequence_id", r.seq.ID),
			zap.Int("level", index),
			zap.Float64("stake", stake),
			zap.Error(err))
		if hardCtx.Err() != nil {
			return o.abort(hardCtx, r, "forced halt", StateStopped, nil)
		}
		if r.seqCtx.Err() != nil {
			return o.abort(hardCtx, r, "sequence timeout", StateStopped, domain.ErrSequenceTimeout)
		}
		if rerr := o.connector.Reconnect(hardCtx, r.cfg); rerr != nil {
			return o.abort(hardCtx, r, "placement failed and reconnect exhausted", StateStopped, rerr)
		}
		return o.abort(hardCtx, r, "placement failed: "+err.Error(), StateRecommend, nil)
	}

	o.logger.Info("Level placed",
		zap.String("sequence_id", r.seq.ID),
		zap.Int("level", index),
		zap.String("trade_id", handle.ID),
		zap.Float64("stake", stake),
		zap.Float64("payout", r.payout))
	r.handle = handle
	return StateAwaitOutcome
}

func (o *Orchestrator) awaitOutcome(hardCtx context.Context, r *run) State {
	index := len(r.seq.Levels)
	level, err := o.executor.Await(r.seqCtx, r.handle, index, r.payout/100, r.cfg.OutcomeTimeout)
	r.handle = nil
	r.seq.Levels = append(r.seq.Levels, *level)
	r.seq.CurrentLevel = index
	o.metrics.LevelResolved(level.Outcome)
	o.setCurrent(r.seq)

	if err != nil {
		switch {
		case hardCtx.Err() != nil:
			return o.abort(hardCtx, r, "forced halt", StateStopped, nil)
		case r.seqCtx.Err() != nil:
			o.logger.Error("Sequence timeout exceeded",
				zap.String("sequence_id", r.seq.ID),
				zap.Duration("limit", r.cfg.SequenceTimeout))
			return o.abort(hardCtx, r, "sequence timeout", StateStopped, domain.ErrSequenceTimeout)
		}

		o.logger.Warn("Outcome timeout, reconnecting",
			zap.String("sequence_id", r.seq.ID),
			zap.Int("level", index),
			zap.Error(err))
		if rerr := o.connector.Reconnect(hardCtx, r.cfg); rerr != nil {
			if hardCtx.Err() != nil {
				return o.abort(hardCtx, r, "forced halt", StateStopped, nil)
			}
			return o.abort(hardCtx, r, "reconnect exhausted after outcome timeout", StateStopped, rerr)
		}
		if next, expired := o.sequenceExpired(hardCtx, r); expired {
			return next
		}
		if index+1 < r.cfg.MGLevels {
			return StateAdvanceLevel
		}
		return StateLossTerminal
	}

	o.logger.Info("Level resolved",
		zap.String("sequence_id", r.seq.ID),
		zap.Int("level", index),
		zap.String("outcome", string(level.Outcome)),
		zap.Float64("profit", level.Profit))

	switch level.Outcome {
	case domain.OutcomeWin:
		return StateWinTerminal
	case domain.OutcomeDoji:
		return StateDojiTerminal
	}
	if index+1 < r.cfg.MGLevels {
		return StateAdvanceLevel
	}
	return StateLossTerminal
}

// sequenceExpired aborts the sequence when a halt or the sequence deadline
// arrived while the loop was working outside the sequence context.
func (o *Orchestrator) sequenceExpired(hardCtx context.Context, r *run) (State, bool) {
	switch {
	case hardCtx.Err() != nil:
		return o.abort(hardCtx, r, "forced halt", StateStopped, nil), true
	case r.seqCtx.Err() != nil:
		o.logger.Error("Sequence timeout exceeded",
			zap.String("sequence_id", r.seq.ID),
			zap.Int("levels", len(r.seq.Levels)),
			zap.Duration("limit", r.cfg.SequenceTimeout))
		return o.abort(hardCtx, r, "sequence timeout", StateStopped, domain.ErrSequenceTimeout), true
	}
	return "", false
}

// abort ends the current sequence early and routes it through RECORD.
func (o *Orchestrator) abort(hardCtx context.Context, r *run, reason string, next State, cause error) State {
	r.seq.Abort(reason, o.clock.Now())
	r.afterRec = next
	if next == StateStopped {
		r.stopReason = reason
		r.err = cause
	}
	return StateRecord
}

func (o *Orchestrator) record(hardCtx context.Context, r *run) State {
	ctx := hardCtx
	if hardCtx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
	}

	seq := r.seq
	agg, err := o.ledger.Append(ctx, seq)
	if r.seqCancel != nil {
		r.seqCancel()
		r.seqCancel = nil
	}
	r.seq = nil
	o.setCurrent(nil)
	if err != nil {
		o.logger.Error("Ledger append failed", zap.String("sequence_id", seq.ID), zap.Error(err))
		r.stopReason = "ledger append failed"
		r.err = err
		return StateStopped
	}
	r.agg = agg

	o.metrics.SequenceRecorded(seq, agg)
	o.logger.Info("Sequence recorded",
		zap.String("sequence_id", seq.ID),
		zap.String("outcome", string(seq.Outcome)),
		zap.Int("scenario", seq.Scenario),
		zap.Int("levels", len(seq.Levels)),
		zap.Float64("profit", seq.Profit()),
		zap.Float64("balance", agg.CurrentBalance),
		zap.Int("consecutive_losses", agg.ConsecutiveLosses))
	o.notify(domain.EventSequenceRecorded, fmt.Sprintf("%s %s profit %.2f balance %.2f",
		seq.Signal.String(), seq.Outcome, seq.Profit(), agg.CurrentBalance), seq)

	return r.afterRec
}

func (o *Orchestrator) recommend(softCtx context.Context, r *run) State {
	rec := o.recommender.Evaluate(r.agg)
	o.mu.Lock()
	o.lastRec = &rec
	o.mu.Unlock()

	switch rec.Action {
	case domain.ActionPause:
		o.notify(domain.EventAdvisory, "pause: "+strings.Join(rec.Reasons, "; "), nil)
		r.stopReason = "paused by recommender: " + strings.Join(rec.Reasons, "; ")
		return StateStopped
	case domain.ActionAdjust:
		o.logger.Warn("Session advisory",
			zap.Strings("reasons", rec.Reasons),
			zap.Strings("suggestions", rec.Suggestions))
		o.notify(domain.EventAdvisory, "adjust: "+strings.Join(rec.Suggestions, "; "), nil)
	}

	if softCtx.Err() != nil {
		r.stopReason = "stop requested"
		return StateStopped
	}
	if err := SleepCtx(softCtx, o.clock, r.cfg.SequenceInterval); err != nil {
		r.stopReason = "stop requested"
		return StateStopped
	}
	return StateAwaitSignal
}

func (o *Orchestrator) rejectSignal(sig domain.Signal, d VerifyDecision) {
	o.logger.Info("Signal rejected",
		zap.String("asset", sig.Asset),
		zap.String("check", string(d.Check)),
		zap.String("reason", d.Message))
	o.metrics.SignalRejected(string(d.Check))
	o.notify(domain.EventSignalRejected, fmt.Sprintf("%s rejected [%s] %s", sig.String(), d.Check, d.Message), nil)
}

func (o *Orchestrator) candleCount(cfg domain.Config) int {
	n := cfg.CandleCount
	if n < volatilityLookback+1 {
		n = volatilityLookback + 1
	}
	if mp, ok := o.source.(domain.MetaProvider); ok && mp.Meta().MinCandles > n {
		n = mp.Meta().MinCandles
	}
	return n
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	prev := o.state
	o.state = s
	o.mu.Unlock()
	if prev != s {
		o.logger.Debug("State transition", zap.String("from", string(prev)), zap.String("to", string(s)))
		o.metrics.StateChanged(string(s))
	}
}

func (o *Orchestrator) setCurrent(seq *domain.Sequence) {
	var cp *domain.Sequence
	if seq != nil {
		c := *seq
		c.Levels = append([]domain.Level(nil), seq.Levels...)
		cp = &c
	}
	o.mu.Lock()
	o.current = cp
	o.mu.Unlock()
}

func (o *Orchestrator) notify(kind domain.EventKind, msg string, seq *domain.Sequence) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	o.notifier.Notify(ctx, domain.Event{Kind: kind, Time: o.clock.Now(), Message: msg, Sequence: seq})
}
