package usecase

import (
	"context"

	"github.com/vitos/binary_mg_bot/internal/domain"
	"go.uber.org/zap"
)

// LogNotifier writes events to the structured log.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, ev domain.Event) {
	fields := []zap.Field{
		zap.String("kind", string(ev.Kind)),
		zap.String("message", ev.Message),
	}
	if ev.Sequence != nil {
		fields = append(fields, zap.String("sequence_id", ev.Sequence.ID))
	}
	n.logger.Info("Event", fields...)
}

// MultiNotifier fans an event out to several notifiers.
type MultiNotifier []domain.Notifier

func (m MultiNotifier) Notify(ctx context.Context, ev domain.Event) {
	for _, n := range m {
		n.Notify(ctx, ev)
	}
}
