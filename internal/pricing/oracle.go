package pricing

import (
	"sync"

	"lv-bintrade/internal/apperr"

	"github.com/shopspring/decimal"
)

// Oracle supplies the current simulated price for an asset. Reads are
// lock-free from the caller's perspective and may be slightly stale;
// the quote stream is a simulation, not a consistency source.
type Oracle interface {
	CurrentPrice(asset string) (decimal.Decimal, error)
	Knows(asset string) bool
}

// QuoteTable is the in-process oracle backing store: the feed goroutine
// writes, everyone else reads.
type QuoteTable struct {
	mu   sync.RWMutex
	data map[string]decimal.Decimal
}

func NewQuoteTable() *QuoteTable {
	return &QuoteTable{data: map[string]decimal.Decimal{}}
}

func (q *QuoteTable) Set(asset string, price decimal.Decimal) {
	if asset == "" || !price.GreaterThan(decimal.Zero) {
		return
	}
	q.mu.Lock()
	q.data[asset] = price
	q.mu.Unlock()
}

func (q *QuoteTable) CurrentPrice(asset string) (decimal.Decimal, error) {
	q.mu.RLock()
	price, ok := q.data[asset]
	q.mu.RUnlock()
	if !ok {
		return decimal.Zero, apperr.ErrOracleUnavailable
	}
	return price, nil
}

func (q *QuoteTable) Knows(asset string) bool {
	q.mu.RLock()
	_, ok := q.data[asset]
	q.mu.RUnlock()
	return ok
}
