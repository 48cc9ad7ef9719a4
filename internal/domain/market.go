package domain

import "github.com/aristath/enginecore/internal/decimalx"

// MarketEvent is a normalized public market data update (trade or book)
// for a single instrument. It never touches orders or positions directly;
// apply() only updates instruments[instrument].market_data.
type MarketEvent struct {
	Instrument   InstrumentIndex
	BestBid      decimalx.Decimal
	BestAsk      decimalx.Decimal
	LastTrade    decimalx.Decimal
	TimeExchange int64
}
