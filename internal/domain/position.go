package domain

import "github.com/aristath/enginecore/internal/decimalx"

// Position is the current open exposure on an instrument.
type Position struct {
	Instrument   InstrumentIndex
	Side         Side
	Quantity     decimalx.Decimal
	AveragePrice decimalx.Decimal
	RealizedPnL  decimalx.Decimal
	Fees         decimalx.Decimal
	OpenTime     int64
	CloseTime    *int64
	ExitPrice    *decimalx.Decimal
}

// ClosedPosition is an append-only ledger entry recording a position that
// reached zero quantity.
type ClosedPosition struct {
	Instrument   InstrumentIndex
	Side         Side
	Quantity     decimalx.Decimal
	AveragePrice decimalx.Decimal
	ExitPrice    decimalx.Decimal
	RealizedPnL  decimalx.Decimal
	Fees         decimalx.Decimal
	OpenTime     int64
	CloseTime    int64
}
