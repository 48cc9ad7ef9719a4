// Package registry builds the Indexed Registry: bidirectional maps between
// opaque configuration-time identifiers (exchange, asset, instrument) and
// the dense integer indices every hot-path EngineState structure is keyed
// by. Built once at startup from configuration and immutable thereafter.
package registry

import (
	"fmt"

	"github.com/aristath/enginecore/internal/decimalx"
	"github.com/aristath/enginecore/internal/domain"
)

// ExchangeSpec, AssetSpec, and InstrumentSpec are the configuration-time
// description a Registry is built from — opaque names, no indices yet.
type ExchangeSpec struct {
	Name string
}

type AssetSpec struct {
	Exchange string
	Symbol   string
}

type InstrumentSpec struct {
	Exchange     string
	Base         string // asset symbol
	Quote        string // asset symbol
	Kind         domain.InstrumentKind
	PriceTick    decimalx.Decimal
	QuantityTick decimalx.Decimal
}

// Registry holds the three parallel vectors (exchanges, assets,
// instruments) plus their inverse name maps. Indices are stable for the
// process lifetime once built.
type Registry struct {
	exchangeNames  []string
	exchangeByName map[string]domain.ExchangeIndex

	assets       []domain.Asset
	assetByName  map[string]domain.AssetIndex // "exchange/symbol"

	instruments      []domain.Instrument
	instrumentByName map[string]domain.InstrumentIndex // "exchange/base/quote/kind"
}

// Build constructs a Registry from configuration specs. Every asset and
// instrument reference must resolve; a duplicate (exchange, symbol) pair
// or a self-referencing instrument (base == quote) is a ConfigError,
// fatal at startup.
func Build(exchanges []ExchangeSpec, assets []AssetSpec, instruments []InstrumentSpec) (*Registry, error) {
	r := &Registry{
		exchangeByName:   make(map[string]domain.ExchangeIndex, len(exchanges)),
		assetByName:      make(map[string]domain.AssetIndex, len(assets)),
		instrumentByName: make(map[string]domain.InstrumentIndex, len(instruments)),
	}

	for _, e := range exchanges {
		if _, exists := r.exchangeByName[e.Name]; exists {
			return nil, fmt.Errorf("%w: duplicate exchange %q", domain.ErrConfig, e.Name)
		}
		idx := domain.ExchangeIndex(len(r.exchangeNames))
		r.exchangeNames = append(r.exchangeNames, e.Name)
		r.exchangeByName[e.Name] = idx
	}

	for _, a := range assets {
		exIdx, ok := r.exchangeByName[a.Exchange]
		if !ok {
			return nil, fmt.Errorf("%w: asset %q references unknown exchange %q", domain.ErrConfig, a.Symbol, a.Exchange)
		}
		key := assetKey(a.Exchange, a.Symbol)
		if _, exists := r.assetByName[key]; exists {
			return nil, fmt.Errorf("%w: duplicate asset %s", domain.ErrConfig, key)
		}
		idx := domain.AssetIndex(len(r.assets))
		r.assets = append(r.assets, domain.Asset{Index: idx, Exchange: exIdx, Symbol: a.Symbol})
		r.assetByName[key] = idx
	}

	for _, i := range instruments {
		exIdx, ok := r.exchangeByName[i.Exchange]
		if !ok {
			return nil, fmt.Errorf("%w: instrument on unknown exchange %q", domain.ErrConfig, i.Exchange)
		}
		if i.Base == i.Quote {
			return nil, fmt.Errorf("%w: instrument base and quote must differ (%q)", domain.ErrConfig, i.Base)
		}
		baseIdx, ok := r.assetByName[assetKey(i.Exchange, i.Base)]
		if !ok {
			return nil, fmt.Errorf("%w: instrument base asset %q not registered on %q", domain.ErrConfig, i.Base, i.Exchange)
		}
		quoteIdx, ok := r.assetByName[assetKey(i.Exchange, i.Quote)]
		if !ok {
			return nil, fmt.Errorf("%w: instrument quote asset %q not registered on %q", domain.ErrConfig, i.Quote, i.Exchange)
		}
		if i.PriceTick.LessThanOrEqual(decimalx.Zero) || i.QuantityTick.LessThanOrEqual(decimalx.Zero) {
			return nil, fmt.Errorf("%w: instrument %s/%s tick size must be positive", domain.ErrConfig, i.Base, i.Quote)
		}

		key := instrumentKey(i.Exchange, i.Base, i.Quote, i.Kind)
		if _, exists := r.instrumentByName[key]; exists {
			return nil, fmt.Errorf("%w: duplicate instrument %s", domain.ErrConfig, key)
		}
		idx := domain.InstrumentIndex(len(r.instruments))
		r.instruments = append(r.instruments, domain.Instrument{
			Index:        idx,
			Exchange:     exIdx,
			Base:         baseIdx,
			Quote:        quoteIdx,
			Kind:         i.Kind,
			PriceTick:    i.PriceTick,
			QuantityTick: i.QuantityTick,
		})
		r.instrumentByName[key] = idx
	}

	return r, nil
}

func assetKey(exchange, symbol string) string {
	return exchange + "/" + symbol
}

func instrumentKey(exchange, base, quote string, kind domain.InstrumentKind) string {
	return fmt.Sprintf("%s/%s/%s/%d", exchange, base, quote, kind.Tag)
}

// ExchangeIndex resolves an exchange name to its index.
func (r *Registry) ExchangeIndex(name string) (domain.ExchangeIndex, error) {
	idx, ok := r.exchangeByName[name]
	if !ok {
		return 0, fmt.Errorf("%w: exchange %q", domain.ErrUnknownIdentifier, name)
	}
	return idx, nil
}

// ExchangeName resolves an exchange index back to its configured name.
func (r *Registry) ExchangeName(idx domain.ExchangeIndex) (string, error) {
	if int(idx) < 0 || int(idx) >= len(r.exchangeNames) {
		return "", fmt.Errorf("%w: exchange index %d", domain.ErrUnknownIdentifier, idx)
	}
	return r.exchangeNames[idx], nil
}

// AssetIndex resolves an (exchange, symbol) pair to its asset index.
func (r *Registry) AssetIndex(exchange, symbol string) (domain.AssetIndex, error) {
	idx, ok := r.assetByName[assetKey(exchange, symbol)]
	if !ok {
		return 0, fmt.Errorf("%w: asset %s/%s", domain.ErrUnknownIdentifier, exchange, symbol)
	}
	return idx, nil
}

// Asset resolves an asset index to its full record.
func (r *Registry) Asset(idx domain.AssetIndex) (domain.Asset, error) {
	if int(idx) < 0 || int(idx) >= len(r.assets) {
		return domain.Asset{}, fmt.Errorf("%w: asset index %d", domain.ErrUnknownIdentifier, idx)
	}
	return r.assets[idx], nil
}

// InstrumentIndex resolves an (exchange, base, quote, kind) tuple to its
// instrument index.
func (r *Registry) InstrumentIndex(exchange, base, quote string, kind domain.InstrumentKind) (domain.InstrumentIndex, error) {
	idx, ok := r.instrumentByName[instrumentKey(exchange, base, quote, kind)]
	if !ok {
		return 0, fmt.Errorf("%w: instrument %s/%s/%s", domain.ErrUnknownIdentifier, exchange, base, quote)
	}
	return idx, nil
}

// Instrument resolves an instrument index to its full record.
func (r *Registry) Instrument(idx domain.InstrumentIndex) (domain.Instrument, error) {
	if int(idx) < 0 || int(idx) >= len(r.instruments) {
		return domain.Instrument{}, fmt.Errorf("%w: instrument index %d", domain.ErrUnknownIdentifier, idx)
	}
	return r.instruments[idx], nil
}

// Exchanges, Assets, and Instruments return the dense vectors for
// cache-friendly index-order iteration.
func (r *Registry) Exchanges() []string               { return r.exchangeNames }
func (r *Registry) Assets() []domain.Asset             { return r.assets }
func (r *Registry) Instruments() []domain.Instrument   { return r.instruments }

// NumAssets, NumInstruments, and NumExchanges report the dense vector
// lengths; NewEngineState uses them to seed its per-index maps.
func (r *Registry) NumAssets() int      { return len(r.assets) }
func (r *Registry) NumInstruments() int { return len(r.instruments) }
func (r *Registry) NumExchanges() int   { return len(r.exchangeNames) }
