package domain

import "github.com/aristath/enginecore/internal/decimalx"

// Asset is a registered (exchange, symbol) pair. Invariant: each such pair
// appears exactly once across the registry.
type Asset struct {
	Index    AssetIndex
	Exchange ExchangeIndex
	Symbol   string
}

// AssetBalance is the dense per-asset entry held in EngineState, updated by
// AccountEvent::Balance and AccountEvent::Snapshot.
type AssetBalance struct {
	Total         decimalx.Decimal
	Free          decimalx.Decimal
	TimeExchange  int64 // exchange-reported timestamp, unix nanos
}

// Valid reports the EngineState invariant 0 <= free <= total.
func (b AssetBalance) Valid() bool {
	return b.Free.GreaterThanOrEqual(decimalx.Zero) && b.Free.LessThanOrEqual(b.Total)
}
