package pricing

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type assetProfile struct {
	Start     float64
	StepPct   float64
	Precision int32
}

var defaultAssets = map[string]assetProfile{
	"BTC-USD": {Start: 64000, StepPct: 0.0008, Precision: 2},
	"EUR-USD": {Start: 1.0850, StepPct: 0.0002, Precision: 5},
	"XAU-USD": {Start: 2400, StepPct: 0.0004, Precision: 2},
	"UZS-USD": {Start: 0.000079, StepPct: 0.0005, Precision: 9},
}

// Feed drives the QuoteTable with a bounded random walk. The walk is a
// stand-in for the real price stream; settlement only requires that
// CurrentPrice returns something plausible and monotone in time.
type Feed struct {
	table *QuoteTable
	log   zerolog.Logger
	rng   *rand.Rand
	last  map[string]float64
}

func NewFeed(table *QuoteTable, log zerolog.Logger) *Feed {
	f := &Feed{
		table: table,
		log:   log,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		last:  make(map[string]float64, len(defaultAssets)),
	}
	for asset, p := range defaultAssets {
		f.last[asset] = p.Start
		table.Set(asset, decimal.NewFromFloat(p.Start).Round(p.Precision))
	}
	return f
}

// Start ticks every 250ms until the context is canceled.
func (f *Feed) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		f.log.Info().Int("assets", len(defaultAssets)).Msg("quote feed started")
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				f.step()
			}
		}
	}()
}

func (f *Feed) step() {
	for asset, p := range defaultAssets {
		prev := f.last[asset]
		// Symmetric step, clamped so the walk cannot cross zero.
		next := prev * (1 + (f.rng.Float64()*2-1)*p.StepPct)
		if next <= 0 {
			next = prev
		}
		f.last[asset] = next
		f.table.Set(asset, decimal.NewFromFloat(next).Round(p.Precision))
	}
}
