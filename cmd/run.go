package cmd

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/crossbook/event-arb/internal/app"
	"github.com/crossbook/event-arb/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the arbitrage session",
	Long: `Starts an arbitrage session, which will:
1. Subscribe to Kalshi orderbooks for every mapped market
2. Poll the IBKR Client Portal gateway for ForecastEx quotes
3. Detect parity breaks (YES ask + opposite NO ask < $1.00 after fees)
4. Size admitted opportunities against the session ledger
5. In live mode, execute both legs and hedge or unwind on partial fills

By default the session runs dry: opportunities are detected, sized, and
recorded, but no orders are placed. Use --mode live to trade.`,
	RunE: runSession,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("exec-config", "configs/execution_config.json", "Execution config file (trading parameters)")
	runCmd.Flags().String("symbol-map", "configs/symbol_mappings.json", "Symbol mapping file (unified symbol to venue identifiers)")
	runCmd.Flags().String("mode", "", "Override the execution config mode (dry or live)")
	runCmd.Flags().Duration("duration", 0, "End the session after this long (0 runs until a signal)")
	runCmd.Flags().Duration("log-interval", 0, "Spread sweep and heartbeat interval (default 30s)")
	runCmd.Flags().String("kalshi-balance", "0", "Kalshi cash to commit to this session, in dollars")
	runCmd.Flags().String("ibkr-balance", "0", "IBKR cash to commit to this session, in dollars")
}

func runSession(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	opts, err := sessionOptions(cmd)
	if err != nil {
		return err
	}

	application, err := app.New(cfg, logger, opts)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}

func sessionOptions(cmd *cobra.Command) (*app.Options, error) {
	execConfig, _ := cmd.Flags().GetString("exec-config")
	symbolMap, _ := cmd.Flags().GetString("symbol-map")
	mode, _ := cmd.Flags().GetString("mode")
	duration, _ := cmd.Flags().GetDuration("duration")
	logInterval, _ := cmd.Flags().GetDuration("log-interval")

	kalshiBalance, err := decimalFlag(cmd, "kalshi-balance")
	if err != nil {
		return nil, err
	}
	ibkrBalance, err := decimalFlag(cmd, "ibkr-balance")
	if err != nil {
		return nil, err
	}

	return &app.Options{
		ExecConfigPath: execConfig,
		SymbolMapPath:  symbolMap,
		ModeOverride:   mode,
		Duration:       duration,
		LogInterval:    logInterval,
		KalshiBalance:  kalshiBalance,
		IBKRBalance:    ibkrBalance,
	}, nil
}

func decimalFlag(cmd *cobra.Command, name string) (decimal.Decimal, error) {
	raw, _ := cmd.Flags().GetString(name)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("--%s: %w", name, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("--%s must not be negative, got %s", name, d)
	}
	return d, nil
}
