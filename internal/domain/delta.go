package domain

// StateDelta records the observable EngineState mutation produced by
// apply(event). A replica applying deltas in sequence order reconstructs
// identical state without ever seeing the live EngineState (invariant 5,
// §8). Only the fields relevant to what actually changed are populated;
// the zero value means "nothing changed".
type StateDelta struct {
	MarketUpdated *InstrumentIndex
	Market        MarketData

	BalanceUpdated *AssetIndex
	Balance        AssetBalance

	ConnectivityUpdated *ExchangeIndex
	Connectivity        Connectivity

	TradingStateUpdated bool
	TradingState        TradingState

	// OrderUpserts describe OrderManager mutations: a terminal order in
	// OrderUpserts is the final record for that id.
	OrderUpserts []Order

	// PositionUpserts are the post-fill Position for an instrument; an
	// entry with a nil Position means the position closed with no flip.
	PositionUpserts []PositionDelta

	// ClosedPositions are ledger entries appended by this event.
	ClosedPositions []ClosedPosition

	// Errors are the non-fatal per-event errors captured for this tick
	// (UnknownIdentifier, OrderReconcileError, NumericOverflow, ...).
	Errors []error

	// RiskRefusals are OrderRequests RiskManager.Check refused this tick.
	RiskRefusals []RiskRefusal
}

// PositionDelta is the post-event Position for an instrument, or its
// absence if the position closed.
type PositionDelta struct {
	Instrument InstrumentIndex
	Position   *Position
}

// IsEmpty reports whether the delta carries no observable change, as when
// a balance event with a stale timestamp is dropped.
func (d *StateDelta) IsEmpty() bool {
	return d.MarketUpdated == nil &&
		d.BalanceUpdated == nil &&
		d.ConnectivityUpdated == nil &&
		!d.TradingStateUpdated &&
		len(d.OrderUpserts) == 0 &&
		len(d.PositionUpserts) == 0 &&
		len(d.ClosedPositions) == 0 &&
		len(d.Errors) == 0 &&
		len(d.RiskRefusals) == 0
}
