package domain

// FilterKind discriminates the Filter sum type: None | Exchanges |
// Instruments | Underlying.
type FilterKind int8

const (
	FilterNone FilterKind = iota
	FilterExchanges
	FilterInstruments
	FilterUnderlying
)

// Filter selects a subset of instruments for command-issued orders
// (SendCancelRequests, SendOpenRequests, ClosePositions, CancelOrders).
type Filter struct {
	Kind        FilterKind
	Exchanges   []ExchangeIndex
	Instruments []InstrumentIndex
	Base        AssetIndex
	Quote       AssetIndex
}

func NoFilter() Filter { return Filter{Kind: FilterNone} }

func ExchangesFilter(exchanges ...ExchangeIndex) Filter {
	return Filter{Kind: FilterExchanges, Exchanges: exchanges}
}

func InstrumentsFilter(instruments ...InstrumentIndex) Filter {
	return Filter{Kind: FilterInstruments, Instruments: instruments}
}

func UnderlyingFilter(base, quote AssetIndex) Filter {
	return Filter{Kind: FilterUnderlying, Base: base, Quote: quote}
}

// Matches reports whether instrument i (belonging to exchange ex, with
// base/quote assets) satisfies the filter.
func (f Filter) Matches(i InstrumentIndex, ex ExchangeIndex, base, quote AssetIndex) bool {
	switch f.Kind {
	case FilterNone:
		return true
	case FilterExchanges:
		for _, e := range f.Exchanges {
			if e == ex {
				return true
			}
		}
		return false
	case FilterInstruments:
		for _, inst := range f.Instruments {
			if inst == i {
				return true
			}
		}
		return false
	case FilterUnderlying:
		return f.Base == base && f.Quote == quote
	default:
		return false
	}
}
