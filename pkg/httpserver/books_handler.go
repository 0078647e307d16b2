package httpserver

import (
	"net/http"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/crossbook/event-arb/internal/book"
	"github.com/crossbook/event-arb/pkg/types"
)

// BooksHandler serves the central book's current state for debugging and
// dashboards.
type BooksHandler struct {
	book   *book.Book
	logger *zap.Logger
}

// NewBooksHandler creates a books handler.
func NewBooksHandler(b *book.Book, logger *zap.Logger) *BooksHandler {
	return &BooksHandler{book: b, logger: logger}
}

// VenueQuotes is one venue's half of a symbol's book.
type VenueQuotes struct {
	YesAskPrice string `json:"yes_ask_price,omitempty"`
	YesAskSize  int64  `json:"yes_ask_size,omitempty"`
	NoAskPrice  string `json:"no_ask_price,omitempty"`
	NoAskSize   int64  `json:"no_ask_size,omitempty"`
	ReceivedAt  string `json:"received_at"`
}

// SymbolBook is the per-symbol response payload.
type SymbolBook struct {
	Symbol string                 `json:"symbol"`
	Venues map[string]VenueQuotes `json:"venues"`

	// Parity sums, present when both venues hold complete ticks.
	KalshiSum       string `json:"kalshi_sum,omitempty"`
	IBKRSum         string `json:"ibkr_sum,omitempty"`
	CrossYesKalshi  string `json:"cross_yes_kalshi,omitempty"`
	CrossNoKalshi   string `json:"cross_no_kalshi,omitempty"`
}

// ErrorResponse is a JSON error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HandleBooks handles GET /api/books and GET /api/books?symbol=<symbol>.
func (h *BooksHandler) HandleBooks(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")

	if symbol != "" {
		h.writeSymbol(w, symbol)
		return
	}

	out := make([]SymbolBook, 0)
	for _, s := range h.book.Symbols() {
		out = append(out, h.buildSymbol(s))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *BooksHandler) writeSymbol(w http.ResponseWriter, symbol string) {
	found := false
	for _, s := range h.book.Symbols() {
		if s == symbol {
			found = true
			break
		}
	}
	if !found {
		h.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "symbol not tracked"})
		return
	}

	h.writeJSON(w, http.StatusOK, h.buildSymbol(symbol))
}

func (h *BooksHandler) buildSymbol(symbol string) SymbolBook {
	sb := SymbolBook{
		Symbol: symbol,
		Venues: make(map[string]VenueQuotes),
	}

	for _, venue := range types.Venues() {
		tick, ok := h.book.Tick(venue, symbol)
		if !ok {
			continue
		}

		vq := VenueQuotes{ReceivedAt: tick.TSLocal.Format("2006-01-02T15:04:05.000Z07:00")}
		if tick.YesAsk != nil {
			vq.YesAskPrice = tick.YesAsk.Price.String()
			vq.YesAskSize = tick.YesAsk.Size
		}
		if tick.NoAsk != nil {
			vq.NoAskPrice = tick.NoAsk.Price.String()
			vq.NoAskSize = tick.NoAsk.Size
		}
		sb.Venues[string(venue)] = vq
	}

	if spread, ok := h.book.Spread(symbol); ok {
		sb.KalshiSum = spread.KalshiSum.String()
		sb.IBKRSum = spread.IBKRSum.String()
		sb.CrossYesKalshi = spread.CrossYesKalshiNoIBKR.String()
		sb.CrossNoKalshi = spread.CrossNoKalshiYesIBKR.String()
	}

	return sb
}

func (h *BooksHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}
