package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "event-arb",
	Short: "Cross-venue event contract arbitrage bot",
	Long: `Cross-venue arbitrage bot for binary event contracts.

The bot streams Kalshi orderbooks over WebSocket, polls the IBKR Client
Portal gateway for ForecastEx quotes, and watches for parity breaks:
whenever buying YES on one venue and NO on the other costs less than the
$1.00 settlement payout after fees, it sizes and (in live mode) executes
both legs.

Venue credentials are read from the environment; a .env file in the
working directory is loaded if present.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	// Optional; real deployments set the environment directly.
	_ = godotenv.Load()
}
