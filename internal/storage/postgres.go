package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/crossbook/event-arb/internal/arbitrage"
	"github.com/crossbook/event-arb/pkg/types"
)

// PostgresStorage implements Storage using PostgreSQL. Every row carries
// the session id so multiple runs share one database.
type PostgresStorage struct {
	db        *sql.DB
	sessionID string
	logger    *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host      string
	Port      string
	User      string
	Password  string
	Database  string
	SSLMode   string
	SessionID string
	Logger    *zap.Logger
}

// NewPostgresStorage connects and ensures the schema exists.
func NewPostgresStorage(cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStorage{
		db:        db,
		sessionID: cfg.SessionID,
		logger:    cfg.Logger,
	}

	err = s.ensureSchema()
	if err != nil {
		db.Close()
		return nil, err
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
		zap.String("session-id", cfg.SessionID))

	return s, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS opportunities (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		leg_a_venue TEXT NOT NULL,
		leg_a_side TEXT NOT NULL,
		leg_a_price NUMERIC NOT NULL,
		leg_b_venue TEXT NOT NULL,
		leg_b_side TEXT NOT NULL,
		leg_b_price NUMERIC NOT NULL,
		quantity BIGINT NOT NULL,
		gross_profit NUMERIC NOT NULL,
		total_fees NUMERIC NOT NULL,
		net_profit NUMERIC NOT NULL,
		detected_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS executions (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		opportunity_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		outcome TEXT NOT NULL,
		leg_a_filled_qty BIGINT NOT NULL,
		leg_b_filled_qty BIGINT NOT NULL,
		hedge_filled_qty BIGINT NOT NULL,
		total_cost NUMERIC NOT NULL,
		total_fees NUMERIC NOT NULL,
		net_profit NUMERIC NOT NULL,
		manual_intervention BOOLEAN NOT NULL,
		reason TEXT,
		executed_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS spreads (
		session_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		kalshi_yes_ask NUMERIC NOT NULL,
		kalshi_no_ask NUMERIC NOT NULL,
		ibkr_yes_ask NUMERIC NOT NULL,
		ibkr_no_ask NUMERIC NOT NULL,
		kalshi_sum NUMERIC NOT NULL,
		ibkr_sum NUMERIC NOT NULL,
		cross_yes_kalshi NUMERIC NOT NULL,
		cross_no_kalshi NUMERIC NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS positions (
		session_id TEXT NOT NULL,
		venue TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity BIGINT NOT NULL,
		avg_cost NUMERIC NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (session_id, venue, symbol, side)
	)`,
}

func (s *PostgresStorage) ensureSchema() error {
	for _, stmt := range schema {
		_, err := s.db.Exec(stmt)
		if err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// StoreOpportunity inserts an admitted opportunity.
func (s *PostgresStorage) StoreOpportunity(ctx context.Context, opp *arbitrage.Opportunity) error {
	query := `
		INSERT INTO opportunities (
			id, session_id, symbol,
			leg_a_venue, leg_a_side, leg_a_price,
			leg_b_venue, leg_b_side, leg_b_price,
			quantity, gross_profit, total_fees, net_profit, detected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := s.db.ExecContext(ctx, query,
		opp.ID,
		s.sessionID,
		opp.Symbol,
		string(opp.LegA.Venue),
		string(opp.LegA.Side),
		opp.LegA.Price,
		string(opp.LegB.Venue),
		string(opp.LegB.Side),
		opp.LegB.Price,
		opp.Quantity,
		opp.GrossProfit,
		opp.FeeA.Add(opp.FeeB),
		opp.NetProfit,
		opp.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("insert opportunity: %w", err)
	}

	s.logger.Debug("opportunity-stored",
		zap.String("opportunity-id", opp.ID),
		zap.String("symbol", opp.Symbol))

	return nil
}

// StoreExecution inserts a terminal execution result.
func (s *PostgresStorage) StoreExecution(ctx context.Context, res *types.ExecutionResult) error {
	var hedgeQty int64
	if res.Hedge != nil {
		hedgeQty = res.Hedge.Quantity
	}

	query := `
		INSERT INTO executions (
			id, session_id, opportunity_id, symbol, outcome,
			leg_a_filled_qty, leg_b_filled_qty, hedge_filled_qty,
			total_cost, total_fees, net_profit,
			manual_intervention, reason, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := s.db.ExecContext(ctx, query,
		res.ID,
		s.sessionID,
		res.OpportunityID,
		res.Symbol,
		string(res.Outcome),
		res.LegA.Quantity,
		res.LegB.Quantity,
		hedgeQty,
		res.TotalCost,
		res.TotalFees,
		res.NetProfit,
		res.ManualIntervention,
		res.Reason,
		res.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}

	s.logger.Debug("execution-stored",
		zap.String("execution-id", res.ID),
		zap.String("outcome", string(res.Outcome)))

	return nil
}

// StoreSpread inserts a spread snapshot.
func (s *PostgresStorage) StoreSpread(ctx context.Context, snap *types.SpreadSnapshot) error {
	query := `
		INSERT INTO spreads (
			session_id, symbol,
			kalshi_yes_ask, kalshi_no_ask, ibkr_yes_ask, ibkr_no_ask,
			kalshi_sum, ibkr_sum, cross_yes_kalshi, cross_no_kalshi,
			recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.db.ExecContext(ctx, query,
		s.sessionID,
		snap.Symbol,
		snap.KalshiYesAsk,
		snap.KalshiNoAsk,
		snap.IBKRYesAsk,
		snap.IBKRNoAsk,
		snap.KalshiSum,
		snap.IBKRSum,
		snap.CrossYesKalshiNoIBKR,
		snap.CrossNoKalshiYesIBKR,
		snap.At,
	)
	if err != nil {
		return fmt.Errorf("insert spread: %w", err)
	}
	return nil
}

// UpsertPosition records the current position for a venue/symbol/side.
func (s *PostgresStorage) UpsertPosition(ctx context.Context, venue types.Venue, pos types.VenuePosition) error {
	query := `
		INSERT INTO positions (session_id, venue, symbol, side, quantity, avg_cost, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (session_id, venue, symbol, side)
		DO UPDATE SET quantity = EXCLUDED.quantity, avg_cost = EXCLUDED.avg_cost, updated_at = now()
	`

	_, err := s.db.ExecContext(ctx, query,
		s.sessionID,
		string(venue),
		pos.Symbol,
		string(pos.Side),
		pos.Qty,
		pos.AvgCost,
	)
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}
	return nil
}

// SessionSummary aggregates this session's record.
func (s *PostgresStorage) SessionSummary(ctx context.Context) (*Summary, error) {
	sum := &Summary{SessionID: s.sessionID}

	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM opportunities WHERE session_id = $1`,
		s.sessionID,
	).Scan(&sum.Opportunities)
	if err != nil {
		return nil, fmt.Errorf("count opportunities: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT
			count(*),
			count(*) FILTER (WHERE outcome = 'committed'),
			count(*) FILTER (WHERE outcome = 'rolled_back'),
			count(*) FILTER (WHERE outcome = 'failed'),
			COALESCE(sum(net_profit), 0)
		FROM executions WHERE session_id = $1`,
		s.sessionID,
	).Scan(&sum.Executions, &sum.Committed, &sum.RolledBack, &sum.Failed, &sum.NetProfit)
	if err != nil {
		return nil, fmt.Errorf("aggregate executions: %w", err)
	}

	return sum, nil
}

// Close closes the database connection.
func (s *PostgresStorage) Close() error {
	s.logger.Info("closing-postgres-storage")
	return s.db.Close()
}
