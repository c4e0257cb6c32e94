package signals

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vitos/binary_mg_bot/internal/domain"
	"go.uber.org/zap"
)

// Transport delivers raw feed messages. The channel is closed when the
// transport stops for good.
type Transport interface {
	Start(ctx context.Context) (<-chan string, error)
	Name() string
}

// dedupWindow suppresses reposts of the same signal.
const dedupWindow = 2 * time.Minute

// FeedSource parses signals out of a message stream such as a Telegram channel.
type FeedSource struct {
	transport Transport
	parser    *Parser
	logger    *zap.Logger

	mu   sync.Mutex
	msgs <-chan string
	seen map[string]time.Time
}

func NewFeedSource(transport Transport, parser *Parser, logger *zap.Logger) *FeedSource {
	parser.Source = domain.SourceFeed
	return &FeedSource{
		transport: transport,
		parser:    parser,
		logger:    logger,
		seen:      make(map[string]time.Time),
	}
}

// Start opens the transport. ctx bounds the transport lifetime, not a single Next.
func (s *FeedSource) Start(ctx context.Context) error {
	msgs, err := s.transport.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start %s feed: %w", s.transport.Name(), err)
	}
	s.mu.Lock()
	s.msgs = msgs
	s.mu.Unlock()
	s.logger.Info("Signal feed started", zap.String("transport", s.transport.Name()))
	return nil
}

func (s *FeedSource) Kind() domain.SourceKind { return domain.SourceFeed }

// Next blocks until a message parses into a signal that was not seen recently.
func (s *FeedSource) Next(ctx context.Context) (*domain.Signal, error) {
	s.mu.Lock()
	msgs := s.msgs
	s.mu.Unlock()
	if msgs == nil {
		return nil, fmt.Errorf("feed not started: %w", domain.ErrNotConnected)
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case text, ok := <-msgs:
			if !ok {
				return nil, domain.ErrSourceExhausted
			}
			p, err := s.parser.Parse(text)
			if err != nil {
				s.logger.Debug("Feed message ignored", zap.Error(err))
				continue
			}
			sig := p.Signal
			if s.duplicate(sig) {
				s.logger.Info("Duplicate feed signal ignored", zap.String("signal", sig.String()))
				continue
			}
			if p.Payout > 0 {
				sig.Note = fmt.Sprintf("advertised payout %.0f%%", p.Payout)
			}
			return &sig, nil
		}
	}
}

func (s *FeedSource) duplicate(sig domain.Signal) bool {
	key := fmt.Sprintf("%s|%s|%d|%d", sig.Asset, sig.Direction, sig.Duration, sig.ScheduledAt.Unix())
	now := sig.ReceivedAt

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, t := range s.seen {
		if now.Sub(t) > dedupWindow {
			delete(s.seen, k)
		}
	}
	if _, ok := s.seen[key]; ok {
		return true
	}
	s.seen[key] = now
	return false
}
