package notify

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/vitos/binary_mg_bot/internal/domain"
	"go.uber.org/zap"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts orchestrator events to a chat. Sends happen on a
// background worker; events are dropped when the queue is full.
type TelegramNotifier struct {
	api    sender
	chatID int64
	logger *zap.Logger
	queue  chan domain.Event
	wg     sync.WaitGroup
	once   sync.Once
}

func NewTelegramNotifier(token string, chatID int64, logger *zap.Logger) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return newTelegramNotifier(api, chatID, logger), nil
}

func newTelegramNotifier(api sender, chatID int64, logger *zap.Logger) *TelegramNotifier {
	n := &TelegramNotifier{
		api:    api,
		chatID: chatID,
		logger: logger,
		queue:  make(chan domain.Event, 64),
	}
	n.wg.Add(1)
	go n.run()
	return n
}

func (n *TelegramNotifier) Notify(_ context.Context, ev domain.Event) {
	select {
	case n.queue <- ev:
	default:
		n.logger.Warn("Telegram queue full, event dropped", zap.String("kind", string(ev.Kind)))
	}
}

func (n *TelegramNotifier) run() {
	defer n.wg.Done()
	for ev := range n.queue {
		msg := tgbotapi.NewMessage(n.chatID, Format(ev))
		if _, err := n.api.Send(msg); err != nil {
			n.logger.Error("Failed to send telegram message", zap.Error(err))
		}
	}
}

// Close flushes queued events and stops the worker.
func (n *TelegramNotifier) Close() {
	n.once.Do(func() { close(n.queue) })
	n.wg.Wait()
}

var eventIcons = map[domain.EventKind]string{
	domain.EventSequenceRecorded: "📊",
	domain.EventGateBlocked:      "🛑",
	domain.EventSignalRejected:   "⏭",
	domain.EventAdvisory:         "💡",
	domain.EventWarning:          "⚠️",
	domain.EventStopped:          "⏹",
}

// Format renders an event as a chat message.
func Format(ev domain.Event) string {
	icon := eventIcons[ev.Kind]
	text := fmt.Sprintf("%s %s", icon, ev.Message)
	if seq := ev.Sequence; seq != nil {
		text += fmt.Sprintf("\nlevels: %d scenario: %d", len(seq.Levels), seq.Scenario)
		for _, l := range seq.Levels {
			text += fmt.Sprintf("\n  L%d %.2f %s %+.2f", l.Index, l.Stake, l.Outcome, l.Profit)
		}
	}
	return text
}
