// Package symbolmap resolves venue-native identifiers to unified symbols.
// The map is built once at startup from a JSON file and is immutable
// afterwards; components hold it by reference.
package symbolmap

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"

	"github.com/crossbook/event-arb/pkg/types"
)

// Mapping is one row of the symbol mapping file.
type Mapping struct {
	UnifiedSymbol string `json:"unified_symbol"`
	Description   string `json:"description"`
	KalshiTicker  string `json:"kalshi_ticker"`
	IBKRYesConID  int64  `json:"ibkr_yes_conid"`
	IBKRNoConID   int64  `json:"ibkr_no_conid"`
}

type conEntry struct {
	symbol string
	side   types.Side
}

// Map is the immutable symbol resolution table.
type Map struct {
	byUnified map[string]Mapping
	byKalshi  map[string]string
	byConID   map[int64]conEntry
	ordered   []string
}

// Load reads and validates a symbol mapping file.
func Load(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read symbol map: %w", err)
	}

	var mappings []Mapping
	err = json.Unmarshal(data, &mappings)
	if err != nil {
		return nil, fmt.Errorf("parse symbol map: %w", err)
	}

	return FromMappings(mappings)
}

// FromMappings builds a Map from in-memory rows.
func FromMappings(mappings []Mapping) (*Map, error) {
	m := &Map{
		byUnified: make(map[string]Mapping, len(mappings)),
		byKalshi:  make(map[string]string, len(mappings)),
		byConID:   make(map[int64]conEntry, 2*len(mappings)),
		ordered:   make([]string, 0, len(mappings)),
	}

	for i, row := range mappings {
		if row.UnifiedSymbol == "" {
			return nil, fmt.Errorf("mapping %d: empty unified_symbol", i)
		}
		if row.KalshiTicker == "" {
			return nil, fmt.Errorf("mapping %q: empty kalshi_ticker", row.UnifiedSymbol)
		}
		if row.IBKRYesConID == 0 || row.IBKRNoConID == 0 {
			return nil, fmt.Errorf("mapping %q: missing IBKR contract ids", row.UnifiedSymbol)
		}
		if _, dup := m.byUnified[row.UnifiedSymbol]; dup {
			return nil, fmt.Errorf("duplicate unified_symbol %q", row.UnifiedSymbol)
		}
		if _, dup := m.byKalshi[row.KalshiTicker]; dup {
			return nil, fmt.Errorf("duplicate kalshi_ticker %q", row.KalshiTicker)
		}
		if _, dup := m.byConID[row.IBKRYesConID]; dup {
			return nil, fmt.Errorf("duplicate conid %d", row.IBKRYesConID)
		}
		if _, dup := m.byConID[row.IBKRNoConID]; dup {
			return nil, fmt.Errorf("duplicate conid %d", row.IBKRNoConID)
		}

		m.byUnified[row.UnifiedSymbol] = row
		m.byKalshi[row.KalshiTicker] = row.UnifiedSymbol
		m.byConID[row.IBKRYesConID] = conEntry{symbol: row.UnifiedSymbol, side: types.SideYes}
		m.byConID[row.IBKRNoConID] = conEntry{symbol: row.UnifiedSymbol, side: types.SideNo}
		m.ordered = append(m.ordered, row.UnifiedSymbol)
	}

	if len(m.ordered) == 0 {
		return nil, fmt.Errorf("symbol map is empty")
	}

	return m, nil
}

// Lookup returns the full mapping for a unified symbol.
func (m *Map) Lookup(symbol string) (Mapping, bool) {
	row, ok := m.byUnified[symbol]
	return row, ok
}

// ByKalshiTicker resolves a Kalshi market ticker to a unified symbol.
func (m *Map) ByKalshiTicker(ticker string) (string, bool) {
	s, ok := m.byKalshi[ticker]
	return s, ok
}

// ByConID resolves an IBKR contract id to (symbol, side).
func (m *Map) ByConID(conid int64) (string, types.Side, bool) {
	e, ok := m.byConID[conid]
	return e.symbol, e.side, ok
}

// Symbols returns unified symbols in file order.
func (m *Map) Symbols() []string {
	out := make([]string, len(m.ordered))
	copy(out, m.ordered)
	return out
}

// KalshiTickers returns all Kalshi tickers in file order.
func (m *Map) KalshiTickers() []string {
	out := make([]string, 0, len(m.ordered))
	for _, s := range m.ordered {
		out = append(out, m.byUnified[s].KalshiTicker)
	}
	return out
}

// ConIDs returns all IBKR contract ids (YES then NO per symbol, file order).
func (m *Map) ConIDs() []int64 {
	out := make([]int64, 0, 2*len(m.ordered))
	for _, s := range m.ordered {
		row := m.byUnified[s]
		out = append(out, row.IBKRYesConID, row.IBKRNoConID)
	}
	return out
}

// Len returns the number of mapped symbols.
func (m *Map) Len() int {
	return len(m.ordered)
}
