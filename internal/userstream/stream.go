// Package userstream consumes the Binance Spot user-data WebSocket
// stream and translates executionReport frames into domain events
// appended to the Event Spine. It is treated strictly as an external
// event source (spec.md §1): this package never decides trading
// behavior, it only translates venue push notifications into the same
// event vocabulary the executor produces for its own actions. Grounded
// on the teacher's internal/binance/client.go reconnect-loop shape,
// adapted from a public trade-stream consumer to a private,
// listen-key-authenticated account stream.
package userstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/praxis-trading/core/internal/domain"
)

const (
	reconnectDelay   = 2 * time.Second
	keepaliveEvery   = 30 * time.Minute
	listenKeyTimeout = 10 * time.Second
)

// EventSink receives a translated domain event for appending to the
// Spine. Implemented by the executor or any adapter over spine.Append.
type EventSink func(ctx context.Context, event domain.Event)

// OrderResolver looks up the (trade_id, command_id) pair a
// client_order_id belongs to, from whatever already holds that
// mapping (the executor's submission bookkeeping: FillReceived carries
// both fields, but the wire frame only ever has client_order_id). ok is
// false for an order this process never submitted.
type OrderResolver func(clientOrderID string) (tradeID, commandID string, ok bool)

// Consumer owns one account's user-data stream connection.
type Consumer struct {
	restBase  string
	wsBase    string
	apiKey    string
	accountID string
	sink      EventSink
	resolve   OrderResolver

	httpClient *http.Client
}

// NewConsumer constructs a user-data stream consumer for one account.
// restBase/wsBase are the same testnet-or-mainnet bases the venue
// adapter uses; apiKey only needs read access to obtain and keep the
// listen key alive (no request signing applies to these endpoints).
func NewConsumer(restBase, wsBase, apiKey, accountID string, sink EventSink, resolve OrderResolver) *Consumer {
	return &Consumer{
		restBase:   strings.TrimRight(restBase, "/"),
		wsBase:     strings.TrimRight(wsBase, "/"),
		apiKey:     apiKey,
		accountID:  accountID,
		sink:       sink,
		resolve:    resolve,
		httpClient: &http.Client{Timeout: listenKeyTimeout},
	}
}

// Run obtains a listen key, connects the stream, and blocks reading
// frames until ctx is canceled, reconnecting (with a fresh listen key)
// on any read or dial error.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		listenKey, err := c.createListenKey(ctx)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("user stream: listen key request failed, retrying")
			if !sleepOrDone(ctx, reconnectDelay) {
				return ctx.Err()
			}
			continue
		}

		if err := c.runOnce(ctx, listenKey); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("user stream disconnected, reconnecting")
		}
		if !sleepOrDone(ctx, reconnectDelay) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) runOnce(ctx context.Context, listenKey string) error {
	url := fmt.Sprintf("%s/ws/%s", c.wsBase, listenKey)
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial user stream: %w", err)
	}
	defer conn.Close()

	keepaliveCtx, cancelKeepalive := context.WithCancel(ctx)
	defer cancelKeepalive()
	go c.keepaliveLoop(keepaliveCtx, listenKey)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read user stream frame: %w", err)
		}
		c.handleFrame(ctx, message)
	}
}

func (c *Consumer) keepaliveLoop(ctx context.Context, listenKey string) {
	ticker := time.NewTicker(keepaliveEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.keepAlive(ctx, listenKey); err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Msg("user stream: listen key keepalive failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Consumer) createListenKey(ctx context.Context) (string, error) {
	var out struct {
		ListenKey string `json:"listenKey"`
	}
	if err := c.listenKeyRequest(ctx, http.MethodPost, "", &out); err != nil {
		return "", err
	}
	if out.ListenKey == "" {
		return "", fmt.Errorf("empty listen key in response")
	}
	return out.ListenKey, nil
}

func (c *Consumer) keepAlive(ctx context.Context, listenKey string) error {
	return c.listenKeyRequest(ctx, http.MethodPut, listenKey, nil)
}

func (c *Consumer) listenKeyRequest(ctx context.Context, method, listenKey string, out any) error {
	url := c.restBase + "/api/v3/userDataStream"
	if listenKey != "" {
		url += "?listenKey=" + listenKey
	}
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return fmt.Errorf("build listen key request: %w", err)
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("listen key request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read listen key response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("listen key request failed: HTTP %d: %s", resp.StatusCode, string(body))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

// handleFrame decodes one WebSocket text frame and, if it's an
// executionReport, translates it into the matching domain event.
// Anything else (account position/balance update frames) is ignored;
// spec.md §1 scopes this stream to order/fill lifecycle events only.
func (c *Consumer) handleFrame(ctx context.Context, raw []byte) {
	var envelope struct {
		EventType string `json:"e"`
		// Held so the numeric "E" key does not fold onto "e".
		EventTime json.RawMessage `json:"E"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("user stream: malformed frame")
		return
	}
	if envelope.EventType != "executionReport" {
		return
	}

	var report executionReport
	if err := json.Unmarshal(raw, &report); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("user stream: malformed executionReport")
		return
	}

	event, err := c.translate(report)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("execution_type", report.ExecutionType).Msg("user stream: translate failed")
		return
	}
	if event != nil {
		c.sink(ctx, event)
	}
}

// executionReport mirrors the subset of Binance's executionReport
// payload this consumer cares about (field letters per Binance's
// compact WebSocket schema).
type executionReport struct {
	ClientOrderID   string `json:"c"`
	Side            string `json:"S"`
	OrderType       string `json:"o"`
	Symbol          string `json:"s"`
	OrderStatus     string `json:"X"`
	ExecutionType   string `json:"x"`
	RejectReason    string `json:"r"`
	OrderID         int64  `json:"i"`
	LastFilledQty   string `json:"l"`
	LastFilledPrice string `json:"L"`
	Commission      string `json:"n"`
	CommissionAsset string `json:"N"`
	TradeID         int64  `json:"t"`
	IsMaker         bool   `json:"m"`
	EventTime       int64  `json:"E"`

	// Keys that differ from a field above only by case. They are decoded
	// and discarded so encoding/json's case-insensitive key matching
	// cannot route them into those fields.
	EventTypeKey       json.RawMessage `json:"e"`
	OrigClientOrderKey json.RawMessage `json:"C"`
	TransactionTimeKey json.RawMessage `json:"T"`
	IgnoreIKey         json.RawMessage `json:"I"`
	IgnoreMKey         json.RawMessage `json:"M"`
	OrderCreationKey   json.RawMessage `json:"O"`
}

func (c *Consumer) translate(r executionReport) (domain.Event, error) {
	ts := time.UnixMilli(r.EventTime).UTC()
	venueOrderID := fmt.Sprintf("%d", r.OrderID)

	switch r.ExecutionType {
	case "NEW":
		return domain.NewOrderAcked(c.accountID, ts, r.ClientOrderID, venueOrderID)

	case "TRADE":
		qty, err := decimal.NewFromString(r.LastFilledQty)
		if err != nil {
			return nil, fmt.Errorf("parse last filled qty: %w", err)
		}
		price, err := decimal.NewFromString(r.LastFilledPrice)
		if err != nil {
			return nil, fmt.Errorf("parse last filled price: %w", err)
		}
		fee := decimal.Zero
		if r.Commission != "" {
			fee, err = decimal.NewFromString(r.Commission)
			if err != nil {
				return nil, fmt.Errorf("parse commission: %w", err)
			}
		}
		side := domain.SideBuy
		if r.Side == "SELL" {
			side = domain.SideSell
		}
		// trade_id and command_id are not carried on the wire frame;
		// the executor's resolver recovers them from the order it
		// submitted under this client_order_id.
		tradeID, commandID, ok := c.resolve(r.ClientOrderID)
		if !ok {
			return nil, fmt.Errorf("no known order for client_order_id %q", r.ClientOrderID)
		}
		return domain.NewFillReceived(
			c.accountID, ts,
			r.ClientOrderID, venueOrderID, fmt.Sprintf("%d", r.TradeID),
			tradeID, commandID, r.Symbol,
			side, qty, price, fee, r.CommissionAsset, r.IsMaker,
		)

	case "CANCELED":
		return domain.NewOrderCanceled(c.accountID, ts, r.ClientOrderID, &venueOrderID, nil)

	case "EXPIRED":
		return domain.NewOrderExpired(c.accountID, ts, r.ClientOrderID, &venueOrderID)

	case "REJECTED":
		reason := r.RejectReason
		if reason == "" {
			reason = "unknown"
		}
		return domain.NewOrderRejected(c.accountID, ts, r.ClientOrderID, &venueOrderID, reason)

	default:
		return nil, nil
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
