package domain

import "github.com/aristath/enginecore/internal/decimalx"

// InstrumentKindTag discriminates the Instrument.Kind sum type.
type InstrumentKindTag int8

const (
	KindSpot InstrumentKindTag = iota
	KindPerpetual
	KindFuture
	KindOption
)

// OptionRight is Call or Put.
type OptionRight int8

const (
	OptionCall OptionRight = iota
	OptionPut
)

// OptionExercise is American or European.
type OptionExercise int8

const (
	ExerciseAmerican OptionExercise = iota
	ExerciseEuropean
)

// InstrumentKind is the sum type Spot | Perpetual | Future{expiry} |
// Option{expiry, strike, right, exercise}. Only the fields relevant to Tag
// are meaningful.
type InstrumentKind struct {
	Tag      InstrumentKindTag
	Expiry   int64 // unix nanos, Future/Option only
	Strike   decimalx.Decimal
	Right    OptionRight
	Exercise OptionExercise
}

func SpotKind() InstrumentKind { return InstrumentKind{Tag: KindSpot} }

func PerpetualKind() InstrumentKind { return InstrumentKind{Tag: KindPerpetual} }

func FutureKind(expiry int64) InstrumentKind {
	return InstrumentKind{Tag: KindFuture, Expiry: expiry}
}

func OptionKind(expiry int64, strike decimalx.Decimal, right OptionRight, exercise OptionExercise) InstrumentKind {
	return InstrumentKind{Tag: KindOption, Expiry: expiry, Strike: strike, Right: right, Exercise: exercise}
}

// Instrument is a tradable contract identified by (exchange, base, quote,
// kind). Invariant: Base != Quote, both reference registered assets on the
// same exchange as the instrument.
type Instrument struct {
	Index    InstrumentIndex
	Exchange ExchangeIndex
	Base     AssetIndex
	Quote    AssetIndex
	Kind     InstrumentKind

	PriceTick    decimalx.Decimal
	QuantityTick decimalx.Decimal
}

// MarketData is the latest public market snapshot for an instrument,
// updated only by MarketEvent and never by orders or positions directly.
type MarketData struct {
	BestBid             decimalx.Decimal
	BestAsk             decimalx.Decimal
	LastTrade           decimalx.Decimal
	LastUpdateTimeExchange int64
}
