package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crossbook/event-arb/internal/gateway"
	"github.com/crossbook/event-arb/pkg/config"
	"github.com/crossbook/event-arb/pkg/symbolmap"
	"github.com/crossbook/event-arb/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show venue balances and positions",
	Long: `Query both venues for available cash and open positions without
starting a trading session. Useful before a live run to decide how much
cash to commit with --kalshi-balance and --ibkr-balance.`,
	RunE: runBalance,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(balanceCmd)
	balanceCmd.Flags().String("symbol-map", "configs/symbol_mappings.json", "Symbol mapping file")
	balanceCmd.Flags().Bool("positions", true, "Include open positions")
}

// venueAccount is the read-only slice of a gateway the balance command uses.
type venueAccount interface {
	Balance(ctx context.Context) (decimal.Decimal, error)
	Positions(ctx context.Context) ([]types.VenuePosition, error)
}

func runBalance(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	mapPath, _ := cmd.Flags().GetString("symbol-map")
	showPositions, _ := cmd.Flags().GetBool("positions")

	symbols, err := symbolmap.Load(mapPath)
	if err != nil {
		return fmt.Errorf("load symbol map: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	accounts := map[types.Venue]venueAccount{
		types.VenueKalshi: gateway.NewKalshi(gateway.KalshiConfig{
			APIURL:  cfg.KalshiAPIURL,
			APIKey:  cfg.KalshiAPIKey,
			Symbols: symbols,
			Logger:  zap.NewNop(),
		}),
		types.VenueIBKR: gateway.NewIBKR(gateway.IBKRConfig{
			GatewayURL: cfg.IBKRGatewayURL,
			AccountID:  cfg.IBKRAccountID,
			Symbols:    symbols,
			Logger:     zap.NewNop(),
		}),
	}

	for _, venue := range types.Venues() {
		account := accounts[venue]

		bal, err := account.Balance(ctx)
		if err != nil {
			fmt.Printf("%s: balance unavailable: %v\n", venue, err)
			continue
		}
		fmt.Printf("%s: $%s available\n", venue, bal)

		if !showPositions {
			continue
		}
		positions, err := account.Positions(ctx)
		if err != nil {
			fmt.Printf("  positions unavailable: %v\n", err)
			continue
		}
		if len(positions) == 0 {
			fmt.Println("  no open positions")
			continue
		}
		for _, p := range positions {
			fmt.Printf("  %-24s %-3s x%d\n", p.Symbol, p.Side, p.Qty)
		}
	}

	return nil
}
