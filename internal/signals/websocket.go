package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebsocketTransport reads signal text from a websocket relay. Frames are either
// plain text or JSON objects with a "text" field. The connection is redialed
// with backoff until ctx is done.
type WebsocketTransport struct {
	URL         string
	Header      http.Header
	ReadTimeout time.Duration
	logger      *zap.Logger
}

func NewWebsocketTransport(url string, logger *zap.Logger) *WebsocketTransport {
	return &WebsocketTransport{URL: url, ReadTimeout: 90 * time.Second, logger: logger}
}

func (t *WebsocketTransport) Name() string { return "websocket" }

func (t *WebsocketTransport) Start(ctx context.Context) (<-chan string, error) {
	conn, err := t.dial(ctx)
	if err != nil {
		return nil, err
	}
	out := make(chan string)
	go t.loop(ctx, conn, out)
	return out, nil
}

func (t *WebsocketTransport) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, t.URL, t.Header)
	if err != nil {
		return nil, fmt.Errorf("failed to dial signal relay: %w", err)
	}
	return conn, nil
}

func (t *WebsocketTransport) loop(ctx context.Context, conn *websocket.Conn, out chan<- string) {
	defer close(out)
	retry := 0
	for {
		if conn != nil {
			retry = 0
			t.read(ctx, conn, out)
			conn.Close()
			conn = nil
		}
		if ctx.Err() != nil {
			return
		}

		delay := backoff(retry)
		retry++
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		c, err := t.dial(ctx)
		if err != nil {
			t.logger.Warn("Signal relay reconnect failed", zap.Int("retry", retry), zap.Error(err))
			continue
		}
		conn = c
		t.logger.Info("Signal relay reconnected")
	}
}

func (t *WebsocketTransport) read(ctx context.Context, conn *websocket.Conn, out chan<- string) {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		if t.ReadTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(t.ReadTimeout))
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				t.logger.Warn("Signal relay read error", zap.Error(err))
			}
			return
		}
		text := frameText(data)
		if text == "" {
			continue
		}
		select {
		case out <- text:
		case <-ctx.Done():
			return
		}
	}
}

func frameText(data []byte) string {
	var frame struct {
		Text string `json:"text"`
	}
	if len(data) > 0 && data[0] == '{' && json.Unmarshal(data, &frame) == nil {
		return frame.Text
	}
	return string(data)
}

func backoff(retry int) time.Duration {
	d := time.Second << retry
	if retry > 5 || d > 30*time.Second {
		return 30 * time.Second
	}
	return d
}
