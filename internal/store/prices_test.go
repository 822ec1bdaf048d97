package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/gnuledger/internal/model"
)

func TestPrices_DirectAndInverse(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t, Options{})
	usd := b.currency(t, "USD")
	eur := b.currency(t, "EUR")

	require.NoError(t, b.prices.Add(ctx, model.NewPrice(eur.UID, usd.UID, 11, 10), Insert))

	tests := []struct {
		name       string
		from, to   *model.Commodity
		num, denom int64
	}{
		{"stored direction", eur, usd, 11, 10},
		{"reverse direction", usd, eur, 10, 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Read through the database as well as the cache.
			for _, clear := range []bool{false, true} {
				if clear {
					b.prices.ClearCache()
				}
				p, err := b.prices.Price(ctx, tt.from, tt.to)
				require.NoError(t, err)
				require.NotNil(t, p)
				assert.Equal(t, tt.from.UID, p.CommodityUID)
				assert.Equal(t, tt.num, p.ValueNum)
				assert.Equal(t, tt.denom, p.ValueDenom)
			}
		})
	}

	p, err := b.prices.PriceForCurrencies(ctx, "eur", "usd")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int64(11), p.ValueNum)

	converted, ok, err := b.prices.Convert(ctx, money(t, "100", eur), usd)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "110.00 USD", converted.String())
}

func TestPrices_IdentityNeedsNoQuery(t *testing.T) {
	b := newTestBook(t, Options{})
	usd := b.currency(t, "USD")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p, err := b.prices.Price(ctx, usd, usd)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.ValueNum)
	assert.Equal(t, int64(1), p.ValueDenom)
	assert.Equal(t, model.PriceSourceIdentity, p.Source)
}

func TestPrices_MissingPrice(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t, Options{})
	usd := b.currency(t, "USD")
	jpy := b.currency(t, "JPY")

	p, err := b.prices.Price(ctx, jpy, usd)
	require.NoError(t, err)
	assert.Nil(t, p)

	_, ok, err := b.prices.Convert(ctx, money(t, "500", jpy), usd)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPrices_CacheKeepsNewestPrice(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t, Options{})
	usd := b.currency(t, "USD")
	eur := b.currency(t, "EUR")
	now := time.Now().UTC()

	newer := model.NewPrice(eur.UID, usd.UID, 11, 10)
	newer.Date = now.Add(-time.Hour)
	older := model.NewPrice(eur.UID, usd.UID, 12, 10)
	older.Date = now.Add(-2 * time.Hour)
	require.NoError(t, b.prices.Add(ctx, newer, Insert))
	require.NoError(t, b.prices.Add(ctx, older, Insert))

	p, err := b.prices.Price(ctx, eur, usd)
	require.NoError(t, err)
	assert.Equal(t, newer.UID, p.UID)

	b.prices.ClearCache()
	p, err = b.prices.Price(ctx, eur, usd)
	require.NoError(t, err)
	assert.Equal(t, newer.UID, p.UID)
}

func TestPrices_SkipsInvalidFractions(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t, Options{})
	usd := b.currency(t, "USD")
	eur := b.currency(t, "EUR")

	valid := model.NewPrice(eur.UID, usd.UID, 11, 10)
	valid.Date = time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, b.prices.Add(ctx, valid, Insert))
	require.NoError(t, b.prices.Add(ctx, model.NewPrice(eur.UID, usd.UID, 0, 10), Insert))

	b.prices.ClearCache()
	p, err := b.prices.Price(ctx, eur, usd)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, valid.UID, p.UID)
}

func TestPrices_DeleteAllDropsCache(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t, Options{})
	usd := b.currency(t, "USD")
	eur := b.currency(t, "EUR")
	require.NoError(t, b.prices.Add(ctx, model.NewPrice(eur.UID, usd.UID, 11, 10), Insert))

	n, err := b.prices.DeleteAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	p, err := b.prices.Price(ctx, eur, usd)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestPrices_CacheAll(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t, Options{})
	usd := b.currency(t, "USD")
	gbp := b.currency(t, "GBP")
	require.NoError(t, b.prices.Add(ctx, model.NewPrice(gbp.UID, usd.UID, 127, 100), Insert))
	b.prices.ClearCache()

	require.NoError(t, b.prices.CacheAll(ctx))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	p, err := b.prices.Price(cancelled, usd, gbp)
	require.NoError(t, err)
	assert.Equal(t, int64(100), p.ValueNum)
	assert.Equal(t, int64(127), p.ValueDenom)
}

func TestPrices_FirstMissLoadsEveryPair(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t, Options{})
	usd := b.currency(t, "USD")
	eur := b.currency(t, "EUR")
	gbp := b.currency(t, "GBP")
	jpy := b.currency(t, "JPY")
	require.NoError(t, b.prices.Add(ctx, model.NewPrice(eur.UID, usd.UID, 11, 10), Insert))
	require.NoError(t, b.prices.Add(ctx, model.NewPrice(gbp.UID, usd.UID, 127, 100), Insert))
	b.prices.ClearCache()

	p, err := b.prices.Price(ctx, eur, usd)
	require.NoError(t, err)
	require.NotNil(t, p)

	// Everything below is answered without the database.
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	p, err = b.prices.Price(cancelled, usd, gbp)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int64(100), p.ValueNum)
	assert.Equal(t, int64(127), p.ValueDenom)

	p, err = b.prices.Price(cancelled, jpy, usd)
	require.NoError(t, err)
	assert.Nil(t, p)

	require.NoError(t, b.prices.Add(ctx, model.NewPrice(jpy.UID, usd.UID, 1, 150), Insert))
	p, err = b.prices.Price(cancelled, usd, jpy)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int64(150), p.ValueNum)

	b.prices.ClearCache()
	_, err = b.prices.Price(cancelled, eur, gbp)
	assert.Error(t, err)
}
