package signals

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFrameText(t *testing.T) {
	assert.Equal(t, "EURUSD CALL 60", frameText([]byte("EURUSD CALL 60")))
	assert.Equal(t, "GBPUSD PUT 60", frameText([]byte(`{"text":"GBPUSD PUT 60","chat":"vip"}`)))
	assert.Equal(t, "{broken", frameText([]byte("{broken")))
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Second, backoff(0))
	assert.Equal(t, 8*time.Second, backoff(3))
	assert.Equal(t, 30*time.Second, backoff(5))
	assert.Equal(t, 30*time.Second, backoff(40))
}

func TestWebsocketTransport_DeliversFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte("EURUSD CALL 60"))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"text":""}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"text":"GBPUSD PUT 60"}`))
		// hold the connection until the client goes away
		conn.ReadMessage()
	}))
	defer srv.Close()

	tr := NewWebsocketTransport("ws"+strings.TrimPrefix(srv.URL, "http"), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out, err := tr.Start(ctx)
	require.NoError(t, err)

	var got []string
	for len(got) < 2 {
		select {
		case text := <-out:
			got = append(got, text)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for frames")
		}
	}
	assert.Equal(t, []string{"EURUSD CALL 60", "GBPUSD PUT 60"}, got)

	cancel()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-out:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("transport did not stop")
		}
	}
}

func TestWebsocketTransport_DialFailure(t *testing.T) {
	tr := NewWebsocketTransport("ws://127.0.0.1:1/signals", zap.NewNop())
	_, err := tr.Start(context.Background())
	assert.Error(t, err)
}

func TestTelegramTransport_UpdateText(t *testing.T) {
	tr := &TelegramTransport{chatID: -100, logger: zap.NewNop()}

	text, ok := tr.updateText(tgbotapi.Update{ChannelPost: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: -100},
		Text: "EURUSD CALL 60",
	}})
	assert.True(t, ok)
	assert.Equal(t, "EURUSD CALL 60", text)

	text, ok = tr.updateText(tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:    &tgbotapi.Chat{ID: -100},
		Caption: "GBPUSD PUT M5",
	}})
	assert.True(t, ok)
	assert.Equal(t, "GBPUSD PUT M5", text)

	_, ok = tr.updateText(tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: 42},
		Text: "EURUSD CALL 60",
	}})
	assert.False(t, ok)

	_, ok = tr.updateText(tgbotapi.Update{})
	assert.False(t, ok)

	open := &TelegramTransport{logger: zap.NewNop()}
	_, ok = open.updateText(tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42}, Text: "x"}})
	assert.True(t, ok)
}
