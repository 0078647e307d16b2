package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crossbook/event-arb/internal/arbitrage"
	"github.com/crossbook/event-arb/internal/book"
	"github.com/crossbook/event-arb/internal/fees"
	"github.com/crossbook/event-arb/pkg/healthprobe"
	"github.com/crossbook/event-arb/pkg/types"
)

func testBook(t *testing.T) *book.Book {
	t.Helper()

	detector := arbitrage.New(arbitrage.Config{
		SlippageBuffer: decimal.RequireFromString("0.01"),
		MinNetProfit:   decimal.RequireFromString("0.05"),
		Logger:         zap.NewNop(),
	}, fees.NewBook())

	b := book.New(book.Config{Detector: detector, Logger: zap.NewNop()})
	t.Cleanup(b.Close)

	now := time.Now()
	b.Update(&types.NormalizedTick{
		Venue:   types.VenueKalshi,
		Symbol:  "FED-CUT-DEC",
		YesAsk:  &types.Quote{Price: decimal.RequireFromString("0.40"), Size: 100},
		NoAsk:   &types.Quote{Price: decimal.RequireFromString("0.61"), Size: 100},
		TSLocal: now,
	})
	b.Update(&types.NormalizedTick{
		Venue:   types.VenueIBKR,
		Symbol:  "FED-CUT-DEC",
		YesAsk:  &types.Quote{Price: decimal.RequireFromString("0.42"), Size: 50},
		NoAsk:   &types.Quote{Price: decimal.RequireFromString("0.63"), Size: 50},
		TSLocal: now,
	})

	return b
}

func testServer(t *testing.T, ready bool) *httptest.Server {
	t.Helper()

	hc := healthprobe.New()
	hc.SetReady(ready)

	s := New(&Config{
		Port:          "0",
		Logger:        zap.NewNop(),
		HealthChecker: hc,
		Book:          testBook(t),
	})

	srv := httptest.NewServer(s.server.Handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t, false)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "healthy", body["status"])
}

func TestReadyEndpoint(t *testing.T) {
	srv := testServer(t, false)

	resp, err := http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	srvReady := testServer(t, true)
	resp, err = http.Get(srvReady.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t, true)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBooksEndpoint_ListsSymbols(t *testing.T) {
	srv := testServer(t, true)

	resp, err := http.Get(srv.URL + "/api/books")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body []SymbolBook
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body, 1)
	require.Equal(t, "FED-CUT-DEC", body[0].Symbol)
	require.Len(t, body[0].Venues, 2)
	require.Equal(t, "0.4", body[0].Venues["KALSHI"].YesAskPrice)
	require.Equal(t, "1.01", body[0].KalshiSum)
	require.Equal(t, "1.03", body[0].CrossYesKalshi)
}

func TestBooksEndpoint_SingleSymbol(t *testing.T) {
	srv := testServer(t, true)

	resp, err := http.Get(srv.URL + "/api/books?symbol=FED-CUT-DEC")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body SymbolBook
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "FED-CUT-DEC", body.Symbol)
}

func TestBooksEndpoint_UnknownSymbol(t *testing.T) {
	srv := testServer(t, true)

	resp, err := http.Get(srv.URL + "/api/books?symbol=NOPE")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServerShutdown(t *testing.T) {
	hc := healthprobe.New()
	s := New(&Config{
		Port:          "0",
		Logger:        zap.NewNop(),
		HealthChecker: hc,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
}
