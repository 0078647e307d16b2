package gateway

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/crossbook/event-arb/internal/normalize"
	"github.com/crossbook/event-arb/pkg/eventqueue"
	"github.com/crossbook/event-arb/pkg/symbolmap"
	"github.com/crossbook/event-arb/pkg/types"
)

// snapshotFields are the Client Portal field ids we request: 84 bid,
// 85 ask size, 86 ask, 88 bid size.
const snapshotFields = "84,85,86,88"

// IBKR is the Interactive Brokers venue client. Market data comes from
// polling the Client Portal snapshot endpoint (there is no tick stream
// for these contracts); orders go through the same gateway.
type IBKR struct {
	gatewayURL string
	accountID  string
	http       *http.Client
	symbols    *symbolmap.Map

	normalizer   *normalize.IBKR
	updates      *eventqueue.Queue[*types.TickUpdate]
	pollInterval time.Duration
	conidParam   string
	logger       *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// IBKRConfig wires the client.
type IBKRConfig struct {
	GatewayURL   string
	AccountID    string
	Symbols      *symbolmap.Map
	Updates      *eventqueue.Queue[*types.TickUpdate]
	PollInterval time.Duration
	Logger       *zap.Logger
}

// NewIBKR creates the IBKR client. The Client Portal gateway serves a
// self-signed certificate on localhost, so verification is disabled.
func NewIBKR(cfg IBKRConfig) *IBKR {
	conids := cfg.Symbols.ConIDs()
	parts := make([]string, len(conids))
	for i, id := range conids {
		parts[i] = strconv.FormatInt(id, 10)
	}

	return &IBKR{
		gatewayURL: cfg.GatewayURL,
		accountID:  cfg.AccountID,
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
		symbols:      cfg.Symbols,
		normalizer:   normalize.NewIBKR(cfg.Symbols),
		updates:      cfg.Updates,
		pollInterval: cfg.PollInterval,
		conidParam:   strings.Join(parts, ","),
		logger:       cfg.Logger,
	}
}

// Start launches the snapshot polling loop.
func (c *IBKR) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	c.logger.Info("ibkr-polling-started",
		zap.Duration("interval", c.pollInterval),
		zap.Int("conids", c.symbols.Len()*2))

	c.wg.Add(1)
	go c.pollLoop(ctx)

	return nil
}

func (c *IBKR) pollLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.pollOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				SnapshotPollErrorsTotal.Inc()
				c.logger.Warn("ibkr-snapshot-poll-failed", zap.Error(err))
			}
		}
	}
}

// pollOnce fetches one snapshot sweep and pushes every usable row into
// the update queue. Rows with sentinel values are dropped individually;
// one bad conid does not poison the sweep.
func (c *IBKR) pollOnce(ctx context.Context) error {
	path := "/iserver/marketdata/snapshot?conids=" + c.conidParam + "&fields=" + snapshotFields

	var rows []normalize.IBKRSnapshot
	err := c.do(ctx, http.MethodGet, path, nil, &rows)
	if err != nil {
		return err
	}

	for i := range rows {
		u, err := c.normalizer.Normalize(&rows[i])
		if err != nil {
			NormalizationErrorsTotal.WithLabelValues("ibkr").Inc()
			c.logger.Debug("ibkr-row-dropped",
				zap.Int64("conid", rows[i].ConID),
				zap.Error(err))
			continue
		}

		if err := c.updates.Put(ctx, u); err != nil {
			return err
		}
	}

	return nil
}

// Close stops polling and waits for the loop.
func (c *IBKR) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return nil
}

// ibkrOrderStatus is the Client Portal order-status payload.
type ibkrOrderStatus struct {
	OrderID     string `json:"order_id"`
	OrderStatus string `json:"order_status"`
	CumFill     string `json:"cum_fill"`
	AvgPrice    string `json:"average_price"`
}

// PlaceOrder submits a limit buy through the Client Portal. The gateway
// sometimes interposes a confirmation prompt; those are auto-confirmed.
func (c *IBKR) PlaceOrder(ctx context.Context, req *types.OrderRequest) (*types.OrderState, error) {
	mapping, ok := c.symbols.Lookup(req.Symbol)
	if !ok {
		return nil, fmt.Errorf("ibkr order %s: %w", req.Symbol, types.ErrUnknownSymbol)
	}

	conid := mapping.IBKRYesConID
	if req.Side == types.SideNo {
		conid = mapping.IBKRNoConID
	}

	body := map[string]interface{}{
		"orders": []map[string]interface{}{{
			"conid":     conid,
			"orderType": "LMT",
			"side":      "BUY",
			"price":     json.Number(req.LimitPrice.String()),
			"quantity":  req.Quantity,
			"tif":       "DAY",
		}},
	}

	var resp []struct {
		OrderID string   `json:"order_id"`
		ID      string   `json:"id"`
		Message []string `json:"message"`
	}
	path := "/iserver/account/" + c.accountID + "/orders"
	err := c.do(ctx, http.MethodPost, path, body, &resp)
	if err != nil {
		return nil, &types.OrderError{Venue: types.VenueIBKR, Op: "place", Err: err}
	}
	if len(resp) == 0 {
		return nil, &types.OrderError{Venue: types.VenueIBKR, Op: "place", Err: fmt.Errorf("empty order response")}
	}

	orderID := resp[0].OrderID
	if orderID == "" && resp[0].ID != "" {
		orderID, err = c.confirm(ctx, resp[0].ID)
		if err != nil {
			return nil, &types.OrderError{Venue: types.VenueIBKR, Op: "place", Err: err}
		}
	}
	if orderID == "" {
		return nil, &types.OrderError{Venue: types.VenueIBKR, Op: "place", Err: fmt.Errorf("no order id in response")}
	}

	return c.GetOrder(ctx, orderID)
}

// confirm answers a gateway confirmation prompt and returns the order id.
func (c *IBKR) confirm(ctx context.Context, replyID string) (string, error) {
	var resp []struct {
		OrderID string `json:"order_id"`
	}
	err := c.do(ctx, http.MethodPost, "/iserver/reply/"+replyID, map[string]bool{"confirmed": true}, &resp)
	if err != nil {
		return "", fmt.Errorf("confirm order: %w", err)
	}
	if len(resp) == 0 || resp[0].OrderID == "" {
		return "", fmt.Errorf("confirm order: no order id")
	}
	return resp[0].OrderID, nil
}

// GetOrder fetches the gateway's current view of an order.
func (c *IBKR) GetOrder(ctx context.Context, orderID string) (*types.OrderState, error) {
	var status ibkrOrderStatus
	err := c.do(ctx, http.MethodGet, "/iserver/account/order/status/"+orderID, nil, &status)
	if err != nil {
		return nil, &types.OrderError{Venue: types.VenueIBKR, Op: "status", OrderID: orderID, Err: err}
	}
	if status.OrderID == "" {
		status.OrderID = orderID
	}
	return ibkrOrderState(&status)
}

// CancelOrder cancels the unfilled remainder and returns the resulting
// state, which still reflects any fills that landed first.
func (c *IBKR) CancelOrder(ctx context.Context, orderID string) (*types.OrderState, error) {
	path := "/iserver/account/" + c.accountID + "/order/" + orderID
	err := c.do(ctx, http.MethodDelete, path, nil, nil)
	if err != nil {
		return nil, &types.OrderError{Venue: types.VenueIBKR, Op: "cancel", OrderID: orderID, Err: err}
	}
	return c.GetOrder(ctx, orderID)
}

func ibkrOrderState(s *ibkrOrderStatus) (*types.OrderState, error) {
	st := &types.OrderState{OrderID: s.OrderID}

	if s.CumFill != "" {
		filled, err := strconv.ParseInt(strings.ReplaceAll(s.CumFill, ",", ""), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse cum_fill %q: %w", s.CumFill, err)
		}
		st.FilledQty = filled
	}
	if st.FilledQty > 0 && s.AvgPrice != "" {
		price, err := decimal.NewFromString(s.AvgPrice)
		if err != nil {
			return nil, fmt.Errorf("parse average_price %q: %w", s.AvgPrice, err)
		}
		st.AvgFillPrice = price
	}

	switch strings.ToLower(s.OrderStatus) {
	case "filled":
		st.Status = types.OrderStatusFilled
	case "cancelled", "canceled":
		st.Status = types.OrderStatusCanceled
	case "rejected", "inactive":
		st.Status = types.OrderStatusRejected
	default:
		if st.FilledQty > 0 {
			st.Status = types.OrderStatusPartiallyFilled
		} else {
			st.Status = types.OrderStatusOpen
		}
	}

	return st, nil
}

// Balance returns available USD cash.
func (c *IBKR) Balance(ctx context.Context) (decimal.Decimal, error) {
	var resp map[string]struct {
		CashBalance json.Number `json:"cashbalance"`
	}
	err := c.do(ctx, http.MethodGet, "/portfolio/"+c.accountID+"/ledger", nil, &resp)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ibkr balance: %w", err)
	}

	usd, ok := resp["USD"]
	if !ok {
		return decimal.Zero, fmt.Errorf("ibkr balance: no USD ledger")
	}
	cash, err := decimal.NewFromString(usd.CashBalance.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("ibkr balance: parse %q: %w", usd.CashBalance, err)
	}
	return cash, nil
}

// Positions returns held contracts per mapped symbol.
func (c *IBKR) Positions(ctx context.Context) ([]types.VenuePosition, error) {
	var resp []struct {
		ConID    int64       `json:"conid"`
		Position json.Number `json:"position"`
		AvgCost  json.Number `json:"avgCost"`
	}
	err := c.do(ctx, http.MethodGet, "/portfolio/"+c.accountID+"/positions/0", nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("ibkr positions: %w", err)
	}

	out := make([]types.VenuePosition, 0, len(resp))
	for _, p := range resp {
		symbol, side, ok := c.symbols.ByConID(p.ConID)
		if !ok {
			continue
		}
		qty, err := p.Position.Int64()
		if err != nil || qty <= 0 {
			continue
		}
		pos := types.VenuePosition{Symbol: symbol, Side: side, Qty: qty}
		if cost, err := decimal.NewFromString(p.AvgCost.String()); err == nil {
			pos.AvgCost = cost
		}
		out = append(out, pos)
	}
	return out, nil
}

func (c *IBKR) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.gatewayURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	RequestDurationSeconds.WithLabelValues("ibkr", method).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("ibkr gateway status %d: %s", resp.StatusCode, data)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}
