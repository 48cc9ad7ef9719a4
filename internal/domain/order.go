package domain

import "github.com/aristath/enginecore/internal/decimalx"

// OrderKind is Market or Limit.
type OrderKind int8

const (
	OrderMarket OrderKind = iota
	OrderLimit
)

// TimeInForce governs how long a resting order remains active.
type TimeInForce int8

const (
	TIFGoodTilCancel TimeInForce = iota
	TIFImmediateOrCancel
	TIFFillOrKill
	TIFGoodTilDate
)

// OrderState is the lifecycle state machine:
// InFlightOpen -> Open -> PartiallyFilled* -> {Filled, Cancelled, Expired,
// Rejected}, plus InFlightCancel -> Cancelled.
type OrderState int8

const (
	StateInFlightOpen OrderState = iota
	StateOpen
	StatePartiallyFilled
	StateInFlightCancel
	StateFilled
	StateCancelled
	StateExpired
	StateRejected
)

func (s OrderState) String() string {
	switch s {
	case StateInFlightOpen:
		return "InFlightOpen"
	case StateOpen:
		return "Open"
	case StatePartiallyFilled:
		return "PartiallyFilled"
	case StateInFlightCancel:
		return "InFlightCancel"
	case StateFilled:
		return "Filled"
	case StateCancelled:
		return "Cancelled"
	case StateExpired:
		return "Expired"
	case StateRejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// Terminal reports whether s is a final state that can never transition
// further.
func (s OrderState) Terminal() bool {
	switch s {
	case StateFilled, StateCancelled, StateExpired, StateRejected:
		return true
	default:
		return false
	}
}

// CancelReason records why a terminal Cancelled order was cancelled, for
// audit and test purposes.
type CancelReason string

const (
	CancelReasonRequested          CancelReason = "Requested"
	CancelReasonMissingFromSnapshot CancelReason = "MissingFromSnapshot"
)

// OrderOrigin distinguishes orders the Engine itself opened from orders
// adopted from an exchange snapshot it did not previously know about.
type OrderOrigin string

const (
	OriginLocal   OrderOrigin = "Local"
	OriginAdopted OrderOrigin = "Adopted"
)

// Order is the full lifecycle record tracked per instrument by the
// OrderManager.
type Order struct {
	ClientOrderID  ClientOrderID
	ExchangeOrder  ExchangeOrderID // empty until acknowledged
	Instrument     InstrumentIndex
	Side           Side
	Kind           OrderKind
	TimeInForce    TimeInForce
	Price          decimalx.Decimal
	Quantity       decimalx.Decimal
	FilledQuantity decimalx.Decimal
	State          OrderState
	Origin         OrderOrigin
	CancelReason   CancelReason
	CreatedAt      int64
	UpdatedAt      int64
}

// RemainingQuantity is Quantity - FilledQuantity.
func (o *Order) RemainingQuantity() decimalx.Decimal {
	rem, _ := o.Quantity.Sub(o.FilledQuantity)
	return rem
}

// OrderRequest is what a Strategy emits: the engine assigns a fresh
// ClientOrderID and turns it into an Order / ExecutionRequest::Open.
type OrderRequest struct {
	Instrument  InstrumentIndex
	Side        Side
	Kind        OrderKind
	TimeInForce TimeInForce
	Price       decimalx.Decimal
	Quantity    decimalx.Decimal
}

// OrderUpdate is the AccountEvent::OrderUpdate payload forwarded to the
// order manager.
type OrderUpdate struct {
	ClientOrderID ClientOrderID
	ExchangeOrder ExchangeOrderID
	Instrument    InstrumentIndex
	State         OrderState
	TimeExchange  int64
}

// Trade is an AccountEvent::Trade (fill) payload.
type Trade struct {
	ClientOrderID ClientOrderID
	Instrument    InstrumentIndex
	Side          Side
	Price         decimalx.Decimal
	Quantity      decimalx.Decimal
	Fee           decimalx.Decimal
	TimeExchange  int64
}

// OpenOrderSnapshotEntry is one entry of an AccountEvent::Snapshot's open
// order list, used for reconnect reconciliation.
type OpenOrderSnapshotEntry struct {
	ClientOrderID ClientOrderID
	ExchangeOrder ExchangeOrderID
	Instrument    InstrumentIndex
	Side          Side
	Kind          OrderKind
	Price         decimalx.Decimal
	Quantity      decimalx.Decimal
	FilledQty     decimalx.Decimal
}
