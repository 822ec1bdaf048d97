package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/cleared-dev/gnuledger/internal/cache"
	"github.com/cleared-dev/gnuledger/internal/database"
	"github.com/cleared-dev/gnuledger/internal/model"
)

// Prices stores exchange rates between commodities.
type Prices struct {
	*Adapter[*model.Price]
	commodities *Commodities

	// pairs maps "commodityUID/currencyUID" to the latest usable price. It is
	// always enabled; lookups happen per account in every balance rollup.
	pairs cache.Cache[string, *model.Price]

	// primed is set once pairs holds every stored pair; a miss then means
	// there is no price.
	mu     sync.Mutex
	primed bool
}

// NewPrices prepares the prices adapter.
func NewPrices(db *sql.DB, opts Options, commodities *Commodities) (*Prices, error) {
	a, err := newAdapter(db, opts, table[*model.Price]{
		name: "prices",
		columns: []string{"commodity_guid", "currency_guid", "date", "source", "type",
			"value_num", "value_denom"},
		bind: bindPrice,
		scan: scanPrice,
	})
	if err != nil {
		return nil, err
	}
	return &Prices{Adapter: a, commodities: commodities, pairs: cache.NewMap[string, *model.Price]()}, nil
}

func bindPrice(_ context.Context, p *model.Price) ([]any, error) {
	if p.CommodityUID == "" || p.CurrencyUID == "" {
		return nil, fmt.Errorf("price needs both commodities")
	}
	if p.Date.IsZero() {
		p.Date = p.CreatedAt
	}
	return []any{p.CommodityUID, p.CurrencyUID, database.FormatTime(p.Date), nullString(p.Source),
		nullString(p.Type), p.ValueNum, p.ValueDenom}, nil
}

func scanPrice(row scanner) (*model.Price, error) {
	p := &model.Price{}
	var br baseRow
	var date database.Time
	var source, typ sql.NullString
	err := row.Scan(br.targets(&p.Base, &p.CommodityUID, &p.CurrencyUID, &date, &source, &typ,
		&p.ValueNum, &p.ValueDenom)...)
	if err != nil {
		return nil, err
	}
	br.apply(&p.Base)
	p.Date, p.Source, p.Type = date.Time, source.String, typ.String
	return p, nil
}

func pairKey(a, b string) string { return a + "/" + b }

// Add writes p and updates the cached pair when p is newer than it. Updates
// and replacements may turn the newest price into an older one, so they drop
// the pair cache instead.
func (p *Prices) Add(ctx context.Context, m *model.Price, method UpdateMethod) error {
	if err := p.Adapter.Add(ctx, m, method); err != nil {
		return err
	}
	if method != Insert {
		p.ClearCache()
		return nil
	}
	if !m.IsValid() {
		return nil
	}
	cached, ok := p.pairs.Get(pairKey(m.CommodityUID, m.CurrencyUID))
	if ok && cached.Date.After(m.Date) {
		return nil
	}
	// An uncached pair may have newer prices stored; the next miss loads them.
	if ok || p.isPrimed() {
		p.put(m)
	}
	return nil
}

// BulkAdd writes all prices atomically and drops the pair cache.
func (p *Prices) BulkAdd(ctx context.Context, prices []*model.Price, method UpdateMethod) (int64, error) {
	n, err := p.Adapter.BulkAdd(ctx, prices, method)
	p.ClearCache()
	return n, err
}

// Delete removes a price and drops the pair cache.
func (p *Prices) Delete(ctx context.Context, uid string) (bool, error) {
	ok, err := p.Adapter.Delete(ctx, uid)
	p.ClearCache()
	return ok, err
}

// DeleteAll removes every price and drops the pair cache.
func (p *Prices) DeleteAll(ctx context.Context) (int64, error) {
	n, err := p.Adapter.DeleteAll(ctx)
	p.ClearCache()
	return n, err
}

// put caches the price under its own key and the inverse under the reverse key.
func (p *Prices) put(m *model.Price) {
	p.pairs.Put(pairKey(m.CommodityUID, m.CurrencyUID), m)
	p.pairs.Put(pairKey(m.CurrencyUID, m.CommodityUID), m.Invert())
}

// Price returns the latest price of one unit of commodity in currency, or nil
// when no usable price exists in either direction. Prices stored for the
// reverse pair are inverted. The first miss loads every pair at once; later
// lookups are answered from the cache.
func (p *Prices) Price(ctx context.Context, commodity, currency *model.Commodity) (*model.Price, error) {
	if commodity.Same(currency) {
		return model.IdentityPrice(commodity.UID), nil
	}
	key := pairKey(commodity.UID, currency.UID)
	if m, ok := p.pairs.Get(key); ok {
		return m, nil
	}
	if p.isPrimed() {
		return nil, nil
	}

	if err := p.CacheAll(ctx); err != nil {
		return nil, fmt.Errorf("looking up price %s: %w", key, err)
	}
	m, _ := p.pairs.Get(key)
	return m, nil
}

// PriceForCurrencies is Price for two currency codes.
func (p *Prices) PriceForCurrencies(ctx context.Context, from, to string) (*model.Price, error) {
	a, err := p.commodities.Currency(ctx, from)
	if err != nil {
		return nil, err
	}
	b, err := p.commodities.Currency(ctx, to)
	if err != nil {
		return nil, err
	}
	return p.Price(ctx, a, b)
}

// Convert expresses m in currency. ok is false when no price links them.
func (p *Prices) Convert(ctx context.Context, m model.Money, currency *model.Commodity) (model.Money, bool, error) {
	if m.Commodity.Same(currency) {
		return m, true, nil
	}
	price, err := p.Price(ctx, m.Commodity, currency)
	if err != nil || price == nil {
		return model.Money{}, false, err
	}
	return price.Convert(m, currency), true, nil
}

// CacheAll loads the latest usable price of every stored pair into the cache.
func (p *Prices) CacheAll(ctx context.Context) error {
	rows, err := p.All(ctx, Query{}.OrderBy("date ASC", "id ASC"))
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pairs.Clear()
	for _, m := range rows {
		if !m.IsValid() {
			p.log.Warn().Str("price", m.UID).Int64("num", m.ValueNum).Int64("denom", m.ValueDenom).
				Msg("ignoring price with non-positive fraction")
			continue
		}
		p.put(m)
	}
	p.primed = true
	p.log.Debug().Int("prices", len(rows)).Msg("price cache primed")
	return nil
}

func (p *Prices) isPrimed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.primed
}

// ClearCache drops the cached pairs; the next miss loads them again.
func (p *Prices) ClearCache() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pairs.Clear()
	p.primed = false
}
