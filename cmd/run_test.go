package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionOptions_Defaults(t *testing.T) {
	opts, err := sessionOptions(runCmd)
	require.NoError(t, err)

	require.Equal(t, "configs/execution_config.json", opts.ExecConfigPath)
	require.Equal(t, "configs/symbol_mappings.json", opts.SymbolMapPath)
	require.Empty(t, opts.ModeOverride)
	require.Equal(t, time.Duration(0), opts.Duration)
	require.True(t, opts.KalshiBalance.IsZero())
	require.True(t, opts.IBKRBalance.IsZero())
}

func TestSessionOptions_ParsesBalances(t *testing.T) {
	require.NoError(t, runCmd.Flags().Set("kalshi-balance", "250.50"))
	require.NoError(t, runCmd.Flags().Set("ibkr-balance", "1000"))
	t.Cleanup(func() {
		_ = runCmd.Flags().Set("kalshi-balance", "0")
		_ = runCmd.Flags().Set("ibkr-balance", "0")
	})

	opts, err := sessionOptions(runCmd)
	require.NoError(t, err)
	require.Equal(t, "250.5", opts.KalshiBalance.String())
	require.Equal(t, "1000", opts.IBKRBalance.String())
}

func TestSessionOptions_RejectsNegativeBalance(t *testing.T) {
	require.NoError(t, runCmd.Flags().Set("kalshi-balance", "-5"))
	t.Cleanup(func() {
		_ = runCmd.Flags().Set("kalshi-balance", "0")
	})

	_, err := sessionOptions(runCmd)
	require.Error(t, err)
	require.Contains(t, err.Error(), "kalshi-balance")
}

func TestSessionOptions_RejectsMalformedBalance(t *testing.T) {
	require.NoError(t, runCmd.Flags().Set("ibkr-balance", "ten"))
	t.Cleanup(func() {
		_ = runCmd.Flags().Set("ibkr-balance", "0")
	})

	_, err := sessionOptions(runCmd)
	require.Error(t, err)
}
