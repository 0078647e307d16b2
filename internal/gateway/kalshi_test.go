package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crossbook/event-arb/pkg/symbolmap"
	"github.com/crossbook/event-arb/pkg/types"
)

func testSymbols(t *testing.T) *symbolmap.Map {
	t.Helper()
	m, err := symbolmap.FromMappings([]symbolmap.Mapping{{
		UnifiedSymbol: "FED-CUT-DEC",
		KalshiTicker:  "KXFEDDECISION-26DEC-C",
		IBKRYesConID:  734512001,
		IBKRNoConID:   734512002,
	}})
	require.NoError(t, err)
	return m
}

func newTestKalshi(t *testing.T, handler http.Handler) (*Kalshi, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	k := NewKalshi(KalshiConfig{
		APIURL:  srv.URL,
		APIKey:  "test-key",
		Symbols: testSymbols(t),
		Logger:  zap.NewNop(),
	})
	return k, srv
}

func TestKalshiPlaceOrder_MapsTickerAndCents(t *testing.T) {
	var got map[string]interface{}

	k, _ := newTestKalshi(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/portfolio/orders", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"order": map[string]interface{}{
				"order_id":   "ord-1",
				"status":     "executed",
				"side":       "yes",
				"yes_price":  40,
				"fill_count": 5,
			},
		})
	}))

	state, err := k.PlaceOrder(context.Background(), &types.OrderRequest{
		Venue:      types.VenueKalshi,
		Symbol:     "FED-CUT-DEC",
		Side:       types.SideYes,
		Quantity:   5,
		LimitPrice: decimal.RequireFromString("0.40"),
	})
	require.NoError(t, err)

	require.Equal(t, "KXFEDDECISION-26DEC-C", got["ticker"])
	require.Equal(t, "yes", got["side"])
	require.Equal(t, float64(40), got["yes_price"])
	require.Equal(t, float64(5), got["count"])
	require.Equal(t, "limit", got["type"])
	require.NotEmpty(t, got["client_order_id"])

	require.Equal(t, "ord-1", state.OrderID)
	require.Equal(t, types.OrderStatusFilled, state.Status)
	require.EqualValues(t, 5, state.FilledQty)
	require.True(t, state.AvgFillPrice.Equal(decimal.RequireFromString("0.40")))
}

func TestKalshiPlaceOrder_NoSideUsesNoPrice(t *testing.T) {
	var got map[string]interface{}

	k, _ := newTestKalshi(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"order": map[string]interface{}{"order_id": "ord-2", "status": "resting", "side": "no", "no_price": 99},
		})
	}))

	state, err := k.PlaceOrder(context.Background(), &types.OrderRequest{
		Venue:      types.VenueKalshi,
		Symbol:     "FED-CUT-DEC",
		Side:       types.SideNo,
		Quantity:   2,
		LimitPrice: decimal.RequireFromString("0.99"),
	})
	require.NoError(t, err)

	require.Equal(t, "no", got["side"])
	require.Equal(t, float64(99), got["no_price"])
	require.NotContains(t, got, "yes_price")
	require.Equal(t, types.OrderStatusOpen, state.Status)
}

func TestKalshiPlaceOrder_UnknownSymbol(t *testing.T) {
	k, _ := newTestKalshi(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))

	_, err := k.PlaceOrder(context.Background(), &types.OrderRequest{Symbol: "NOPE", Side: types.SideYes, Quantity: 1})
	require.ErrorIs(t, err, types.ErrUnknownSymbol)
}

func TestKalshiGetOrder_PartialFill(t *testing.T) {
	k, _ := newTestKalshi(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/portfolio/orders/ord-3", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"order": map[string]interface{}{
				"order_id":   "ord-3",
				"status":     "resting",
				"side":       "yes",
				"yes_price":  40,
				"fill_count": 3,
			},
		})
	}))

	state, err := k.GetOrder(context.Background(), "ord-3")
	require.NoError(t, err)
	require.Equal(t, types.OrderStatusPartiallyFilled, state.Status)
	require.EqualValues(t, 3, state.FilledQty)
}

func TestKalshiCancelOrder_APIError(t *testing.T) {
	k, _ := newTestKalshi(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		http.Error(w, `{"error":"order not found"}`, http.StatusNotFound)
	}))

	_, err := k.CancelOrder(context.Background(), "ord-x")
	require.Error(t, err)

	var oerr *types.OrderError
	require.ErrorAs(t, err, &oerr)
	require.Equal(t, types.VenueKalshi, oerr.Venue)
	require.Equal(t, "cancel", oerr.Op)
}

func TestKalshiBalance_CentsToDollars(t *testing.T) {
	k, _ := newTestKalshi(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/portfolio/balance", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]int64{"balance": 123456})
	}))

	bal, err := k.Balance(context.Background())
	require.NoError(t, err)
	require.True(t, bal.Equal(decimal.RequireFromString("1234.56")), "got %s", bal)
}

func TestKalshiPositions_SignedToSided(t *testing.T) {
	k, _ := newTestKalshi(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"market_positions": []map[string]interface{}{
				{"ticker": "KXFEDDECISION-26DEC-C", "position": -7},
				{"ticker": "UNMAPPED", "position": 10},
			},
		})
	}))

	positions, err := k.Positions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 1)
	require.Equal(t, "FED-CUT-DEC", positions[0].Symbol)
	require.Equal(t, types.SideNo, positions[0].Side)
	require.EqualValues(t, 7, positions[0].Qty)
}
