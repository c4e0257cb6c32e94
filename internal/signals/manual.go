package signals

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/vitos/binary_mg_bot/internal/domain"
	"go.uber.org/zap"
)

// ManualSource reads one signal per line from an operator stream.
// Lines look like "EURUSD_otc CALL 60" or "GBP/USD PUT M5 14:30".
type ManualSource struct {
	parser *Parser
	lines  chan string
	errc   chan error
	logger *zap.Logger
}

// NewManualSource starts reading r in the background.
func NewManualSource(r io.Reader, parser *Parser, logger *zap.Logger) *ManualSource {
	parser.Source = domain.SourceManual
	s := &ManualSource{
		parser: parser,
		lines:  make(chan string),
		errc:   make(chan error, 1),
		logger: logger,
	}
	go s.read(r)
	return s
}

func (s *ManualSource) read(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		s.lines <- sc.Text()
	}
	err := sc.Err()
	if err == nil {
		err = domain.ErrSourceExhausted
	}
	s.errc <- err
}

func (s *ManualSource) Kind() domain.SourceKind { return domain.SourceManual }

// Next blocks until the operator enters a parsable line.
func (s *ManualSource) Next(ctx context.Context) (*domain.Signal, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case err := <-s.errc:
			s.errc <- err
			return nil, err
		case line := <-s.lines:
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			p, err := s.parser.Parse(line)
			if err != nil {
				s.logger.Warn("Ignoring manual input", zap.String("line", line), zap.Error(err))
				continue
			}
			sig := p.Signal
			return &sig, nil
		}
	}
}
