// Package enginetest holds fixtures shared by engine-level tests: a
// minimal single-exchange registry and decimal helpers, so scenario tests
// read as the event sequence they assert on rather than setup boilerplate.
package enginetest

import (
	"github.com/aristath/enginecore/internal/decimalx"
	"github.com/aristath/enginecore/internal/domain"
	"github.com/aristath/enginecore/internal/registry"
)

// NewRegistry builds a one-exchange, two-asset, one-instrument registry:
// "sim" exchange, BTC/USD spot, tick sizes of 0.01 and 0.0001.
func NewRegistry() *registry.Registry {
	reg, err := registry.Build(
		[]registry.ExchangeSpec{{Name: "sim"}},
		[]registry.AssetSpec{
			{Exchange: "sim", Symbol: "BTC"},
			{Exchange: "sim", Symbol: "USD"},
		},
		[]registry.InstrumentSpec{
			{
				Exchange:     "sim",
				Base:         "BTC",
				Quote:        "USD",
				Kind:         domain.SpotKind(),
				PriceTick:    Dec("0.01"),
				QuantityTick: Dec("0.0001"),
			},
		},
	)
	if err != nil {
		panic(err)
	}
	return reg
}

// Dec parses a literal decimal string, panicking on malformed input —
// fixtures only, never production code.
func Dec(s string) decimalx.Decimal {
	d, err := decimalx.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

const (
	Exchange   = domain.ExchangeIndex(0)
	Instrument = domain.InstrumentIndex(0)
	AssetBTC   = domain.AssetIndex(0)
	AssetUSD   = domain.AssetIndex(1)
)
