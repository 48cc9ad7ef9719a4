package domain

import "github.com/aristath/enginecore/internal/decimalx"

// AccountEventKind discriminates the AccountEvent sum type: Snapshot |
// Balance | OrderUpdate | Trade | Connectivity.
type AccountEventKind int8

const (
	AccountSnapshot AccountEventKind = iota
	AccountBalance
	AccountOrderUpdate
	AccountTrade
	AccountConnectivity
)

// BalanceEntry is one (asset, total, free, timestamp) tuple, used both as
// a standalone AccountBalance event and nested inside an AccountSnapshot.
type BalanceEntry struct {
	Asset        AssetIndex
	Total        decimalx.Decimal
	Free         decimalx.Decimal
	TimeExchange int64
}

// AccountEvent is a normalized notification from an exchange about
// balance, order, or trade activity, or a connectivity transition. Only
// the fields matching Kind are populated.
type AccountEvent struct {
	Kind AccountEventKind

	Exchange ExchangeIndex

	// AccountBalance
	Balance BalanceEntry

	// AccountOrderUpdate
	OrderUpdate OrderUpdate

	// AccountTrade
	Trade Trade

	// AccountSnapshot
	SnapshotBalances []BalanceEntry
	SnapshotOrders   []OpenOrderSnapshotEntry

	// AccountConnectivity
	Connectivity Connectivity
}
