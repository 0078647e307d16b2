package config

import (
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// Execution modes.
const (
	ModeDry  = "dry"
	ModeLive = "live"
)

// ExecutionConfig holds the trading parameters, loaded from a JSON file so
// runs are reproducible from a single artifact.
type ExecutionConfig struct {
	Mode                 string          `json:"mode"`
	MaxCapitalPerMarket  decimal.Decimal `json:"max_capital_per_market"`
	MaxContractsPerEvent int64           `json:"max_contracts_per_event"`
	MinNetProfit         decimal.Decimal `json:"min_net_profit"`
	MaxStaleSeconds      float64         `json:"max_stale_seconds"`
	SlippageBuffer       decimal.Decimal `json:"slippage_buffer"`
}

// LoadExecutionConfig reads and validates an execution config file.
func LoadExecutionConfig(path string) (*ExecutionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read execution config: %w", err)
	}

	var cfg ExecutionConfig
	err = json.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse execution config: %w", err)
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate execution config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the trading parameters.
func (c *ExecutionConfig) Validate() error {
	if c.Mode != ModeDry && c.Mode != ModeLive {
		return fmt.Errorf("mode must be %q or %q, got %q", ModeDry, ModeLive, c.Mode)
	}

	if !c.MaxCapitalPerMarket.IsPositive() {
		return fmt.Errorf("max_capital_per_market must be positive, got %s", c.MaxCapitalPerMarket)
	}

	if c.MaxContractsPerEvent <= 0 {
		return fmt.Errorf("max_contracts_per_event must be positive, got %d", c.MaxContractsPerEvent)
	}

	if c.MinNetProfit.IsNegative() {
		return fmt.Errorf("min_net_profit cannot be negative, got %s", c.MinNetProfit)
	}

	if c.MaxStaleSeconds <= 0 {
		return fmt.Errorf("max_stale_seconds must be positive, got %f", c.MaxStaleSeconds)
	}

	if c.SlippageBuffer.IsNegative() {
		return fmt.Errorf("slippage_buffer cannot be negative, got %s", c.SlippageBuffer)
	}

	return nil
}

// MaxStale returns the staleness threshold as a duration.
func (c *ExecutionConfig) MaxStale() time.Duration {
	return time.Duration(c.MaxStaleSeconds * float64(time.Second))
}
