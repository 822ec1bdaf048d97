package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cleared-dev/gnuledger/internal/cache"
	"github.com/cleared-dev/gnuledger/internal/model"
)

// Commodities stores currencies and securities.
type Commodities struct {
	*Adapter[*model.Commodity]
	opts Options

	codes cache.Cache[string, *model.Commodity]

	mu           sync.Mutex
	defaultCache *model.Commodity
}

// NewCommodities prepares the commodities adapter.
func NewCommodities(db *sql.DB, opts Options) (*Commodities, error) {
	a, err := newAdapter(db, opts, table[*model.Commodity]{
		name: "commodities",
		columns: []string{"namespace", "fullname", "mnemonic", "local_symbol", "cusip",
			"fraction", "quote_flag", "quote_source", "quote_tz"},
		cached: true,
		bind:   bindCommodity,
		scan:   scanCommodity,
	})
	if err != nil {
		return nil, err
	}
	c := &Commodities{Adapter: a, opts: opts, codes: cache.Nop[string, *model.Commodity]{}}
	if opts.Cache {
		c.codes = cache.NewMap[string, *model.Commodity]()
	}
	return c, nil
}

func bindCommodity(_ context.Context, c *model.Commodity) ([]any, error) {
	if c.Mnemonic == "" {
		return nil, errors.New("commodity has no mnemonic")
	}
	ns := model.NormalizeNamespace(c.Namespace)
	if ns == "" {
		ns = model.NamespaceCurrency
	}
	return []any{ns, nullString(c.Fullname), c.Mnemonic, nullString(c.LocalSymbol),
		nullString(c.Cusip), c.Fraction(), boolInt(c.QuoteFlag), nullString(c.QuoteSource),
		nullString(c.QuoteTZ)}, nil
}

func scanCommodity(row scanner) (*model.Commodity, error) {
	c := &model.Commodity{}
	var br baseRow
	var fullname, symbol, cusip, source, tz sql.NullString
	err := row.Scan(br.targets(&c.Base, &c.Namespace, &fullname, &c.Mnemonic, &symbol, &cusip,
		&c.SmallestFraction, &c.QuoteFlag, &source, &tz)...)
	if err != nil {
		return nil, err
	}
	br.apply(&c.Base)
	c.Namespace = model.NormalizeNamespace(c.Namespace)
	c.Fullname, c.LocalSymbol, c.Cusip = fullname.String, symbol.String, cusip.String
	c.QuoteSource, c.QuoteTZ = source.String, tz.String
	return c, nil
}

// Add writes c and refreshes the code cache.
func (c *Commodities) Add(ctx context.Context, m *model.Commodity, method UpdateMethod) error {
	if err := c.Adapter.Add(ctx, m, method); err != nil {
		return err
	}
	c.codes.Invalidate(codeKey(m.Mnemonic, m.Namespace))
	return nil
}

// ByUID returns the commodity with uid, falling back to the built-in
// currencies for their deterministic uids.
func (c *Commodities) ByUID(ctx context.Context, uid string) (*model.Commodity, error) {
	m, err := c.Get(ctx, uid)
	if errors.Is(err, ErrNotFound) {
		for _, b := range model.BuiltinCurrencies() {
			if b.UID == uid {
				return b, nil
			}
		}
	}
	return m, err
}

// Currency returns the currency with ISO code, from the cache, the database
// or the built-in list, in that order.
func (c *Commodities) Currency(ctx context.Context, code string) (*model.Commodity, error) {
	return c.Commodity(ctx, code, model.NamespaceCurrency)
}

// Commodity looks up a commodity by mnemonic within namespace. ISO4217 is
// treated as CURRENCY.
func (c *Commodities) Commodity(ctx context.Context, mnemonic, namespace string) (*model.Commodity, error) {
	namespace = model.NormalizeNamespace(namespace)
	if namespace == model.NamespaceCurrency {
		mnemonic = strings.ToUpper(mnemonic)
	}
	key := codeKey(mnemonic, namespace)
	if m, ok := c.codes.Get(key); ok {
		return m, nil
	}

	q := Where("mnemonic = ?", mnemonic)
	if namespace == model.NamespaceCurrency {
		q = q.And("namespace IN (?, ?)", model.NamespaceCurrency, model.NamespaceISO4217)
	} else {
		q = q.And("namespace = ?", namespace)
	}
	m, err := c.First(ctx, q)
	if errors.Is(err, ErrNotFound) && namespace == model.NamespaceCurrency {
		if b := model.BuiltinCurrency(mnemonic); b != nil {
			m, err = b, nil
		}
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFound("commodity", namespace+":"+mnemonic)
		}
		return nil, err
	}
	c.codes.Put(key, m)
	return m, nil
}

// CommodityUID returns the uid of the currency with code.
func (c *Commodities) CommodityUID(ctx context.Context, code string) (string, error) {
	m, err := c.Currency(ctx, code)
	if err != nil {
		return "", err
	}
	return m.UID, nil
}

// CurrencyCode returns the mnemonic of the commodity with uid.
func (c *Commodities) CurrencyCode(ctx context.Context, uid string) (string, error) {
	m, err := c.ByUID(ctx, uid)
	if err != nil {
		return "", err
	}
	return m.Mnemonic, nil
}

// DefaultCommodity returns the book's default currency: the default_currency
// preference, else the configured currency, else USD.
func (c *Commodities) DefaultCommodity(ctx context.Context) (*model.Commodity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.defaultCache != nil {
		return c.defaultCache, nil
	}
	code := c.opts.Currency
	if c.opts.Prefs != nil {
		if pref := c.opts.Prefs.GetString(PrefDefaultCurrency); pref != "" {
			code = pref
		}
	}
	if code == "" {
		code = "USD"
	}
	m, err := c.Currency(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("resolving default currency: %w", err)
	}
	c.defaultCache = m
	return m, nil
}

// SetDefaultCurrencyCode stores code as the book's default currency.
func (c *Commodities) SetDefaultCurrencyCode(ctx context.Context, code string) error {
	m, err := c.Currency(ctx, code)
	if err != nil {
		return err
	}
	if c.opts.Prefs != nil {
		if err := c.opts.Prefs.Set(PrefDefaultCurrency, m.Mnemonic); err != nil {
			return fmt.Errorf("saving default currency: %w", err)
		}
	}
	c.mu.Lock()
	c.defaultCache = m
	c.mu.Unlock()
	return nil
}

// Currencies returns the commodities in the currency namespace, by mnemonic.
func (c *Commodities) Currencies(ctx context.Context) ([]*model.Commodity, error) {
	return c.All(ctx, Where("namespace IN (?, ?)", model.NamespaceCurrency, model.NamespaceISO4217).
		OrderBy("mnemonic"))
}

// SeedCurrencies inserts the built-in currencies into an empty table.
func (c *Commodities) SeedCurrencies(ctx context.Context) error {
	n, err := c.Count(ctx, Query{})
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := c.BulkAdd(ctx, model.BuiltinCurrencies(), Insert); err != nil {
		return fmt.Errorf("seeding currencies: %w", err)
	}
	c.codes.Clear()
	return nil
}

// ClearCache drops every cached commodity.
func (c *Commodities) ClearCache() {
	c.cache.Clear()
	c.codes.Clear()
	c.mu.Lock()
	c.defaultCache = nil
	c.mu.Unlock()
	c.log.Debug().Msg("commodity caches cleared")
}

func codeKey(mnemonic, namespace string) string {
	return model.NormalizeNamespace(namespace) + ":" + mnemonic
}
