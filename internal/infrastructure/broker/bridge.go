package broker

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vitos/binary_mg_bot/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// pollInterval is how often a trade is polled over REST once it has expired
// without a stream result.
const pollInterval = 2 * time.Second

// BridgeBroker talks to a broker gateway sidecar: REST for requests and a
// websocket stream for trade results.
type BridgeBroker struct {
	baseURL string
	wsURL   string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger

	mu       sync.Mutex
	secret   string
	session  string
	wsConn   *websocket.Conn
	waiters  map[string]chan domain.TradeResult
	finished map[string]domain.TradeResult
}

func NewBridgeBroker(baseURL, wsURL string, ratePerSec float64, logger *zap.Logger) *BridgeBroker {
	if ratePerSec <= 0 {
		ratePerSec = 5
	}
	return &BridgeBroker{
		baseURL:  baseURL,
		wsURL:    wsURL,
		client:   &http.Client{Timeout: 15 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(ratePerSec), int(ratePerSec)+1),
		logger:   logger,
		waiters:  make(map[string]chan domain.TradeResult),
		finished: make(map[string]domain.TradeResult),
	}
}

// --- REST API ---

func (b *BridgeBroker) sign(body string, timestamp int64) string {
	h := hmac.New(sha256.New, []byte(b.secret))
	h.Write([]byte(strconv.FormatInt(timestamp, 10) + body))
	return hex.EncodeToString(h.Sum(nil))
}

func (b *BridgeBroker) sendRequest(ctx context.Context, method, path string, payload any, out any) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}

	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	timestamp := time.Now().UnixMilli()

	b.mu.Lock()
	session := b.session
	signature := b.sign(string(body), timestamp)
	b.mu.Unlock()

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Bridge-Timestamp", strconv.FormatInt(timestamp, 10))
	req.Header.Set("X-Bridge-Sign", signature)
	if session != "" {
		req.Header.Set("X-Bridge-Session", session)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConnection, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", domain.ErrNotConnected, respBody)
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", domain.ErrTradeRejected, respBody)
	case resp.StatusCode >= 400:
		return fmt.Errorf("bridge API error %d: %s", resp.StatusCode, respBody)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

func (b *BridgeBroker) Connect(ctx context.Context, creds domain.Credentials, mode domain.AccountMode) error {
	b.mu.Lock()
	b.secret = creds.Token
	b.mu.Unlock()

	var resp struct {
		Session string `json:"session"`
	}
	err := b.sendRequest(ctx, http.MethodPost, "/v1/session", map[string]any{
		"email":    creds.Email,
		"password": creds.Password,
		"mode":     mode,
	}, &resp)
	if err != nil {
		return err
	}
	if resp.Session == "" {
		return fmt.Errorf("%w: empty session", domain.ErrConnection)
	}

	b.mu.Lock()
	b.session = resp.Session
	b.mu.Unlock()

	if b.wsURL != "" {
		if err := b.connectWS(ctx); err != nil {
			b.logger.Warn("Result stream unavailable, falling back to polling", zap.Error(err))
		}
	}
	return nil
}

func (b *BridgeBroker) Close() error {
	b.mu.Lock()
	conn := b.wsConn
	b.wsConn = nil
	hadSession := b.session != ""
	b.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if !hadSession {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := b.sendRequest(ctx, http.MethodDelete, "/v1/session", nil, nil)

	b.mu.Lock()
	b.session = ""
	b.mu.Unlock()
	return err
}

func (b *BridgeBroker) GetBalance(ctx context.Context, mode domain.AccountMode) (float64, error) {
	var resp struct {
		Balance float64 `json:"balance"`
	}
	if err := b.sendRequest(ctx, http.MethodGet, "/v1/balance?mode="+url.QueryEscape(string(mode)), nil, &resp); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

func (b *BridgeBroker) ListAssets(ctx context.Context) ([]domain.Asset, error) {
	var raw []struct {
		Name        string  `json:"name"`
		DisplayName string  `json:"display_name"`
		Payout      float64 `json:"payout"`
		Open        bool    `json:"open"`
	}
	if err := b.sendRequest(ctx, http.MethodGet, "/v1/assets", nil, &raw); err != nil {
		return nil, err
	}
	assets := make([]domain.Asset, 0, len(raw))
	for _, r := range raw {
		name := r.Name
		if name == "" {
			name = domain.NormalizeAssetName(r.DisplayName)
		}
		assets = append(assets, domain.Asset{
			Name:        name,
			DisplayName: r.DisplayName,
			IsOTC:       domain.IsOTCName(name),
			Market:      domain.ClassifyMarket(name),
			Payout:      r.Payout,
			Open:        r.Open,
		})
	}
	return assets, nil
}

func (b *BridgeBroker) GetPayout(ctx context.Context, asset string) (float64, error) {
	var resp struct {
		Payout float64 `json:"payout"`
	}
	if err := b.sendRequest(ctx, http.MethodGet, "/v1/payout?asset="+url.QueryEscape(asset), nil, &resp); err != nil {
		return 0, err
	}
	return resp.Payout, nil
}

func (b *BridgeBroker) PlaceTrade(ctx context.Context, asset string, dir domain.Direction, amount float64, duration int) (*domain.TradeHandle, error) {
	var resp struct {
		ID       string `json:"id"`
		PlacedAt int64  `json:"placed_at"`
	}
	err := b.sendRequest(ctx, http.MethodPost, "/v1/trades", map[string]any{
		"asset":     asset,
		"direction": dir,
		"amount":    amount,
		"duration":  duration,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("%w: no trade id returned", domain.ErrTradeRejected)
	}

	b.mu.Lock()
	if _, ok := b.waiters[resp.ID]; !ok {
		b.waiters[resp.ID] = make(chan domain.TradeResult, 1)
	}
	b.mu.Unlock()

	placed := time.Now()
	if resp.PlacedAt > 0 {
		placed = time.Unix(resp.PlacedAt, 0)
	}
	return &domain.TradeHandle{ID: resp.ID, Asset: asset, Amount: amount, Duration: duration, PlacedAt: placed}, nil
}

// AwaitOutcome waits for the stream result and polls REST once the trade expired.
func (b *BridgeBroker) AwaitOutcome(ctx context.Context, handle *domain.TradeHandle, timeout time.Duration) (*domain.TradeResult, error) {
	ch := b.waiter(handle.ID)
	defer b.forget(handle.ID)

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	expiry := time.Until(handle.PlacedAt.Add(time.Duration(handle.Duration) * time.Second))
	if expiry < 0 {
		expiry = 0
	}
	poll := time.NewTimer(expiry + pollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("%w: trade %s", domain.ErrOutcomeTimeout, handle.ID)
		case res := <-ch:
			return &res, nil
		case <-poll.C:
			res, err := b.pollTrade(ctx, handle.ID)
			if err != nil {
				b.logger.Debug("Trade poll failed", zap.String("trade_id", handle.ID), zap.Error(err))
			}
			if res != nil {
				return res, nil
			}
			poll.Reset(pollInterval)
		}
	}
}

func (b *BridgeBroker) pollTrade(ctx context.Context, id string) (*domain.TradeResult, error) {
	var resp struct {
		Status string  `json:"status"`
		Won    bool    `json:"won"`
		Profit float64 `json:"profit"`
	}
	if err := b.sendRequest(ctx, http.MethodGet, "/v1/trades/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "closed" {
		return nil, nil
	}
	return &domain.TradeResult{Won: resp.Won, Profit: resp.Profit}, nil
}

func (b *BridgeBroker) GetCandles(ctx context.Context, asset string, duration, count int, timeout time.Duration) ([]domain.Candle, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	path := fmt.Sprintf("/v1/candles?asset=%s&period=%d&count=%d", url.QueryEscape(asset), duration, count)
	var candles []domain.Candle
	if err := b.sendRequest(ctx, http.MethodGet, path, nil, &candles); err != nil {
		return nil, err
	}
	// Oldest first.
	for i := 1; i < len(candles); i++ {
		if candles[i].Time < candles[i-1].Time {
			for l, r := 0, len(candles)-1; l < r; l, r = l+1, r-1 {
				candles[l], candles[r] = candles[r], candles[l]
			}
			break
		}
	}
	return candles, nil
}

// --- Result stream ---

type streamEvent struct {
	Type   string  `json:"type"`
	ID     string  `json:"id"`
	Won    bool    `json:"won"`
	Profit float64 `json:"profit"`
}

func (b *BridgeBroker) connectWS(ctx context.Context) error {
	b.mu.Lock()
	session := b.session
	b.mu.Unlock()

	header := http.Header{}
	header.Set("X-Bridge-Session", session)
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	c, _, err := dialer.DialContext(ctx, b.wsURL, header)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.wsConn = c
	b.mu.Unlock()

	go b.readLoop(c)
	return nil
}

func (b *BridgeBroker) readLoop(c *websocket.Conn) {
	defer func() {
		c.Close()
		b.mu.Lock()
		if b.wsConn == c {
			b.wsConn = nil
		}
		b.mu.Unlock()
	}()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) {
				b.logger.Debug("Result stream closed", zap.Error(err))
			}
			return
		}
		var ev streamEvent
		if err := json.Unmarshal(message, &ev); err != nil {
			b.logger.Debug("Result stream unmarshal error", zap.Error(err))
			continue
		}
		if ev.Type != "trade_result" || ev.ID == "" {
			continue
		}
		b.deliver(ev.ID, domain.TradeResult{Won: ev.Won, Profit: ev.Profit})
	}
}

func (b *BridgeBroker) deliver(id string, res domain.TradeResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.waiters[id]; ok {
		select {
		case ch <- res:
		default:
		}
		return
	}
	b.finished[id] = res
}

func (b *BridgeBroker) waiter(id string) chan domain.TradeResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.waiters[id]
	if !ok {
		ch = make(chan domain.TradeResult, 1)
		b.waiters[id] = ch
	}
	if res, ok := b.finished[id]; ok {
		delete(b.finished, id)
		select {
		case ch <- res:
		default:
		}
	}
	return ch
}

func (b *BridgeBroker) forget(id string) {
	b.mu.Lock()
	delete(b.waiters, id)
	b.mu.Unlock()
}
