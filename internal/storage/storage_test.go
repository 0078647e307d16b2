package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crossbook/event-arb/internal/arbitrage"
	"github.com/crossbook/event-arb/pkg/types"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testOpportunity() *arbitrage.Opportunity {
	return &arbitrage.Opportunity{
		ID:     "11111111-2222-3333-4444-555555555555",
		Symbol: "FED-CUT-DEC",
		LegA:   arbitrage.Leg{Venue: types.VenueKalshi, Side: types.SideYes, Price: dec("0.40"), Size: 100},
		LegB:   arbitrage.Leg{Venue: types.VenueIBKR, Side: types.SideNo, Price: dec("0.43"), Size: 50},
		Quantity:    5,
		GrossProfit: dec("0.17"),
		FeeA:        dec("0.02"),
		FeeB:        dec("0.01"),
		NetProfit:   dec("0.13"),
		DetectedAt:  time.Now(),
	}
}

func testExecution(outcome types.ExecutionOutcome) *types.ExecutionResult {
	return &types.ExecutionResult{
		ID:            "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
		OpportunityID: "11111111-2222-3333-4444-555555555555",
		Symbol:        "FED-CUT-DEC",
		Outcome:       outcome,
		LegA:          types.LegFill{Venue: types.VenueKalshi, Side: types.SideYes, Quantity: 5, Price: dec("0.40"), Filled: true},
		LegB:          types.LegFill{Venue: types.VenueIBKR, Side: types.SideNo, Quantity: 5, Price: dec("0.43"), Filled: true},
		TotalCost:     dec("4.15"),
		TotalFees:     dec("0.14"),
		NetProfit:     dec("0.71"),
		ExecutedAt:    time.Now(),
	}
}

func newMockPostgres(t *testing.T) (*PostgresStorage, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &PostgresStorage{
		db:        db,
		sessionID: "sess-1",
		logger:    zap.NewNop(),
	}, mock
}

func TestPostgresStoreOpportunity(t *testing.T) {
	s, mock := newMockPostgres(t)
	opp := testOpportunity()

	mock.ExpectExec("INSERT INTO opportunities").
		WithArgs(
			opp.ID,
			"sess-1",
			opp.Symbol,
			"KALSHI", "YES", opp.LegA.Price,
			"IBKR", "NO", opp.LegB.Price,
			opp.Quantity,
			opp.GrossProfit,
			opp.FeeA.Add(opp.FeeB),
			opp.NetProfit,
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.StoreOpportunity(context.Background(), opp))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreExecution_WithHedge(t *testing.T) {
	s, mock := newMockPostgres(t)

	res := testExecution(types.OutcomeRolledBack)
	res.Hedge = &types.LegFill{Venue: types.VenueKalshi, Side: types.SideNo, Quantity: 5, Price: dec("0.41"), Filled: true}
	res.Reason = "leg-b rejected"

	mock.ExpectExec("INSERT INTO executions").
		WithArgs(
			res.ID,
			"sess-1",
			res.OpportunityID,
			res.Symbol,
			"rolled_back",
			int64(5), int64(5), int64(5),
			res.TotalCost,
			res.TotalFees,
			res.NetProfit,
			false,
			"leg-b rejected",
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.StoreExecution(context.Background(), res))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreSpread(t *testing.T) {
	s, mock := newMockPostgres(t)

	snap := types.NewSpreadSnapshot("FED-CUT-DEC",
		dec("0.40"), dec("0.61"), dec("0.42"), dec("0.43"), time.Now())

	mock.ExpectExec("INSERT INTO spreads").
		WithArgs(
			"sess-1",
			"FED-CUT-DEC",
			snap.KalshiYesAsk, snap.KalshiNoAsk, snap.IBKRYesAsk, snap.IBKRNoAsk,
			snap.KalshiSum, snap.IBKRSum,
			snap.CrossYesKalshiNoIBKR, snap.CrossNoKalshiYesIBKR,
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.StoreSpread(context.Background(), snap))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertPosition(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectExec("INSERT INTO positions").
		WithArgs("sess-1", "KALSHI", "FED-CUT-DEC", "YES", int64(5), dec("0.40")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.UpsertPosition(context.Background(), types.VenueKalshi, types.VenuePosition{
		Symbol:  "FED-CUT-DEC",
		Side:    types.SideYes,
		Qty:     5,
		AvgCost: dec("0.40"),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSessionSummary(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM opportunities").
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	mock.ExpectQuery("FROM executions").
		WithArgs("sess-1").
		WillReturnRows(
			sqlmock.NewRows([]string{"count", "committed", "rolled_back", "failed", "net"}).
				AddRow(4, 2, 1, 1, "1.27"),
		)

	sum, err := s.SessionSummary(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 12, sum.Opportunities)
	require.EqualValues(t, 4, sum.Executions)
	require.EqualValues(t, 2, sum.Committed)
	require.EqualValues(t, 1, sum.RolledBack)
	require.EqualValues(t, 1, sum.Failed)
	require.True(t, sum.NetProfit.Equal(dec("1.27")), "got %s", sum.NetProfit)
	require.NoError(t, mock.ExpectationsWereMet())
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func TestConsoleStoreOpportunity_PrintsAndCounts(t *testing.T) {
	c := NewConsoleStorage("sess-1", zap.NewNop())
	opp := testOpportunity()

	out := captureStdout(t, func() {
		require.NoError(t, c.StoreOpportunity(context.Background(), opp))
	})

	require.Contains(t, out, "ARBITRAGE OPPORTUNITY")
	require.Contains(t, out, "FED-CUT-DEC")
	require.Contains(t, out, "0.13")

	sum, err := c.SessionSummary(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, sum.Opportunities)
}

func TestConsoleStoreExecution_Aggregates(t *testing.T) {
	c := NewConsoleStorage("sess-1", zap.NewNop())

	captureStdout(t, func() {
		require.NoError(t, c.StoreExecution(context.Background(), testExecution(types.OutcomeCommitted)))

		rolled := testExecution(types.OutcomeRolledBack)
		rolled.NetProfit = dec("-2.05")
		require.NoError(t, c.StoreExecution(context.Background(), rolled))
	})

	sum, err := c.SessionSummary(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, sum.Executions)
	require.EqualValues(t, 1, sum.Committed)
	require.EqualValues(t, 1, sum.RolledBack)
	require.True(t, sum.NetProfit.Equal(dec("-1.34")), "got %s", sum.NetProfit)
}

func TestConsoleStoreExecution_FlagsManualIntervention(t *testing.T) {
	c := NewConsoleStorage("sess-1", zap.NewNop())

	res := testExecution(types.OutcomeRolledBack)
	res.ManualIntervention = true

	out := captureStdout(t, func() {
		require.NoError(t, c.StoreExecution(context.Background(), res))
	})

	require.Contains(t, out, "MANUAL INTERVENTION REQUIRED")
}

func TestConsoleClose(t *testing.T) {
	c := NewConsoleStorage("sess-1", zap.NewNop())
	require.NoError(t, c.Close())
}
