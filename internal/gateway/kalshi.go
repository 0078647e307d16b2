// Package gateway holds the per-venue clients: market data into the feed
// queues and the order surface the executor trades through. Venue
// authentication is delegated to API keys / the local gateway process;
// nothing here signs anything.
package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/crossbook/event-arb/internal/normalize"
	"github.com/crossbook/event-arb/pkg/eventqueue"
	"github.com/crossbook/event-arb/pkg/symbolmap"
	"github.com/crossbook/event-arb/pkg/types"
	"github.com/crossbook/event-arb/pkg/websocket"
)

// Kalshi is the Kalshi venue client: an orderbook websocket for market
// data and the trade REST API for orders.
type Kalshi struct {
	apiURL  string
	apiKey  string
	http    *http.Client
	symbols *symbolmap.Map

	normalizer *normalize.Kalshi
	updates    *eventqueue.Queue[*types.TickUpdate]
	ws         *websocket.Manager
	logger     *zap.Logger

	wg sync.WaitGroup
}

// KalshiConfig wires the client.
type KalshiConfig struct {
	APIURL  string
	WSURL   string
	APIKey  string
	Symbols *symbolmap.Map
	// Updates receives normalized tick updates from the websocket.
	Updates *eventqueue.Queue[*types.TickUpdate]
	// OnReconnect is forwarded to the websocket manager; the feed uses it
	// to invalidate pre-gap state.
	OnReconnect func()

	DialTimeout           time.Duration
	PongTimeout           time.Duration
	PingInterval          time.Duration
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectBackoffMult  float64
	FrameBufferSize       int

	Logger *zap.Logger
}

// NewKalshi creates the Kalshi client.
func NewKalshi(cfg KalshiConfig) *Kalshi {
	k := &Kalshi{
		apiURL:     cfg.APIURL,
		apiKey:     cfg.APIKey,
		http:       &http.Client{Timeout: 10 * time.Second},
		symbols:    cfg.Symbols,
		normalizer: normalize.NewKalshi(cfg.Symbols),
		updates:    cfg.Updates,
		logger:     cfg.Logger,
	}

	k.ws = websocket.New(websocket.Config{
		Name:                  "kalshi",
		URL:                   cfg.WSURL,
		DialTimeout:           cfg.DialTimeout,
		PongTimeout:           cfg.PongTimeout,
		PingInterval:          cfg.PingInterval,
		ReconnectInitialDelay: cfg.ReconnectInitialDelay,
		ReconnectMaxDelay:     cfg.ReconnectMaxDelay,
		ReconnectBackoffMult:  cfg.ReconnectBackoffMult,
		FrameBufferSize:       cfg.FrameBufferSize,
		AuthHeader:            map[string][]string{"Authorization": {"Bearer " + cfg.APIKey}},
		BuildSubscribe:        buildKalshiSubscribe,
		OnReconnect:           cfg.OnReconnect,
		Logger:                cfg.Logger,
	})

	return k
}

func buildKalshiSubscribe(tickers []string) interface{} {
	return map[string]interface{}{
		"id":  1,
		"cmd": "subscribe",
		"params": map[string]interface{}{
			"channels":       []string{"orderbook_snapshot"},
			"market_tickers": tickers,
		},
	}
}

// Start connects the websocket, subscribes every mapped market, and
// launches the frame pump.
func (k *Kalshi) Start(ctx context.Context) error {
	err := k.ws.Start()
	if err != nil {
		return fmt.Errorf("kalshi websocket: %w", err)
	}

	err = k.ws.Subscribe(k.symbols.KalshiTickers())
	if err != nil {
		return fmt.Errorf("kalshi subscribe: %w", err)
	}

	k.wg.Add(1)
	go k.pumpFrames(ctx)

	return nil
}

// pumpFrames normalizes raw frames into the update queue. Non-tick
// frames are skipped; normalization failures are counted and dropped.
func (k *Kalshi) pumpFrames(ctx context.Context) {
	defer k.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-k.ws.Frames():
			if !ok {
				return
			}

			u, err := k.normalizer.Normalize(frame)
			if err != nil {
				if err != types.ErrNotTick {
					NormalizationErrorsTotal.WithLabelValues("kalshi").Inc()
					k.logger.Debug("kalshi-frame-dropped", zap.Error(err))
				}
				continue
			}

			if err := k.updates.Put(ctx, u); err != nil {
				return
			}
		}
	}
}

// Connected reports whether the market-data socket is up.
func (k *Kalshi) Connected() bool {
	return k.ws.Connected()
}

// Close stops the websocket and waits for the pump.
func (k *Kalshi) Close() error {
	err := k.ws.Close()
	k.wg.Wait()
	return err
}

// kalshiOrder is the trade API's order representation.
type kalshiOrder struct {
	OrderID     string `json:"order_id"`
	Status      string `json:"status"`
	FillCount   int64  `json:"fill_count"`
	YesPrice    int64  `json:"yes_price"`
	NoPrice     int64  `json:"no_price"`
	Side        string `json:"side"`
	RemainCount int64  `json:"remaining_count"`
}

type kalshiOrderEnvelope struct {
	Order kalshiOrder `json:"order"`
}

// PlaceOrder submits a limit buy. Prices on the wire are whole cents.
func (k *Kalshi) PlaceOrder(ctx context.Context, req *types.OrderRequest) (*types.OrderState, error) {
	mapping, ok := k.symbols.Lookup(req.Symbol)
	if !ok {
		return nil, fmt.Errorf("kalshi order %s: %w", req.Symbol, types.ErrUnknownSymbol)
	}

	body := map[string]interface{}{
		"ticker":          mapping.KalshiTicker,
		"client_order_id": uuid.New().String(),
		"action":          "buy",
		"count":           req.Quantity,
		"type":            "limit",
	}
	if req.Side == types.SideYes {
		body["side"] = "yes"
		body["yes_price"] = req.LimitPrice.Shift(2).IntPart()
	} else {
		body["side"] = "no"
		body["no_price"] = req.LimitPrice.Shift(2).IntPart()
	}

	var env kalshiOrderEnvelope
	err := k.do(ctx, http.MethodPost, "/portfolio/orders", body, &env)
	if err != nil {
		return nil, &types.OrderError{Venue: types.VenueKalshi, Op: "place", Err: err}
	}

	return kalshiOrderState(&env.Order), nil
}

// GetOrder fetches the venue's current view of an order.
func (k *Kalshi) GetOrder(ctx context.Context, orderID string) (*types.OrderState, error) {
	var env kalshiOrderEnvelope
	err := k.do(ctx, http.MethodGet, "/portfolio/orders/"+orderID, nil, &env)
	if err != nil {
		return nil, &types.OrderError{Venue: types.VenueKalshi, Op: "status", OrderID: orderID, Err: err}
	}
	return kalshiOrderState(&env.Order), nil
}

// CancelOrder cancels the unfilled remainder; fills that landed first
// are reflected in the returned state.
func (k *Kalshi) CancelOrder(ctx context.Context, orderID string) (*types.OrderState, error) {
	var env kalshiOrderEnvelope
	err := k.do(ctx, http.MethodDelete, "/portfolio/orders/"+orderID, nil, &env)
	if err != nil {
		return nil, &types.OrderError{Venue: types.VenueKalshi, Op: "cancel", OrderID: orderID, Err: err}
	}
	return kalshiOrderState(&env.Order), nil
}

func kalshiOrderState(o *kalshiOrder) *types.OrderState {
	st := &types.OrderState{
		OrderID:   o.OrderID,
		FilledQty: o.FillCount,
	}

	switch o.Status {
	case "executed":
		st.Status = types.OrderStatusFilled
	case "canceled":
		st.Status = types.OrderStatusCanceled
	case "rejected":
		st.Status = types.OrderStatusRejected
	case "resting", "pending":
		if o.FillCount > 0 {
			st.Status = types.OrderStatusPartiallyFilled
		} else {
			st.Status = types.OrderStatusOpen
		}
	default:
		st.Status = types.OrderStatusOpen
	}

	// The order payload carries the limit price, not a per-fill average.
	// Orders here are marketable limits, so fills land at the limit; a
	// true VWAP would need the fills endpoint.
	priceCents := o.YesPrice
	if o.Side == "no" {
		priceCents = o.NoPrice
	}
	if o.FillCount > 0 {
		st.AvgFillPrice = decimal.NewFromInt(priceCents).Shift(-2)
	}

	return st
}

// Balance returns available cash in dollars.
func (k *Kalshi) Balance(ctx context.Context) (decimal.Decimal, error) {
	var resp struct {
		Balance int64 `json:"balance"` // cents
	}
	err := k.do(ctx, http.MethodGet, "/portfolio/balance", nil, &resp)
	if err != nil {
		return decimal.Zero, fmt.Errorf("kalshi balance: %w", err)
	}
	return decimal.NewFromInt(resp.Balance).Shift(-2), nil
}

// Positions returns held contracts per mapped symbol.
func (k *Kalshi) Positions(ctx context.Context) ([]types.VenuePosition, error) {
	var resp struct {
		MarketPositions []struct {
			Ticker   string `json:"ticker"`
			Position int64  `json:"position"` // signed: positive YES, negative NO
		} `json:"market_positions"`
	}
	err := k.do(ctx, http.MethodGet, "/portfolio/positions", nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("kalshi positions: %w", err)
	}

	out := make([]types.VenuePosition, 0, len(resp.MarketPositions))
	for _, p := range resp.MarketPositions {
		symbol, ok := k.symbols.ByKalshiTicker(p.Ticker)
		if !ok || p.Position == 0 {
			continue
		}
		pos := types.VenuePosition{Symbol: symbol, Side: types.SideYes, Qty: p.Position}
		if p.Position < 0 {
			pos.Side = types.SideNo
			pos.Qty = -p.Position
		}
		out = append(out, pos)
	}
	return out, nil
}

func (k *Kalshi) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, k.apiURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+k.apiKey)

	start := time.Now()
	resp, err := k.http.Do(req)
	RequestDurationSeconds.WithLabelValues("kalshi", method).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("kalshi api status %d: %s", resp.StatusCode, data)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}
