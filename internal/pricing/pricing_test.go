package pricing

import (
	"testing"

	"lv-bintrade/internal/apperr"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteTable_UnknownAsset(t *testing.T) {
	table := NewQuoteTable()
	assert.False(t, table.Knows("BTC-USD"))
	_, err := table.CurrentPrice("BTC-USD")
	require.ErrorIs(t, err, apperr.ErrOracleUnavailable)
}

func TestQuoteTable_SetIgnoresInvalid(t *testing.T) {
	table := NewQuoteTable()
	table.Set("", decimal.NewFromInt(100))
	table.Set("BTC-USD", decimal.Zero)
	table.Set("BTC-USD", decimal.NewFromInt(-1))
	assert.False(t, table.Knows("BTC-USD"))

	table.Set("BTC-USD", decimal.NewFromInt(64000))
	price, err := table.CurrentPrice("BTC-USD")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(64000)))
}

func TestFeed_SeedsAndSteps(t *testing.T) {
	table := NewQuoteTable()
	feed := NewFeed(table, zerolog.Nop())

	for asset := range defaultAssets {
		require.True(t, table.Knows(asset), asset)
	}

	for i := 0; i < 100; i++ {
		feed.step()
	}
	for asset := range defaultAssets {
		price, err := table.CurrentPrice(asset)
		require.NoError(t, err)
		assert.True(t, price.GreaterThan(decimal.Zero), asset)
	}
}
