package audit

import "github.com/aristath/enginecore/internal/domain"

// Replica reconstructs a mirror EngineStateSnapshot from a subscription's
// bootstrap snapshot plus the sequence of StateDeltas carried on
// subsequent ticks — the passive-replica half of invariant 5 (§8):
// "applying the audit delta stream to the initial snapshot yields
// byte-equal EngineState to the Engine's own copy."
type Replica struct {
	state domain.EngineStateSnapshot
	seq   uint64
}

// NewReplica seeds a Replica from a Subscription's bootstrap point.
func NewReplica(sub *Subscription) *Replica {
	return &Replica{state: cloneSnapshot(sub.Snapshot), seq: sub.SnapshotSeq}
}

// State returns the replica's current reconstructed snapshot.
func (r *Replica) State() domain.EngineStateSnapshot { return r.state }

// Seq returns the sequence number of the last delta the replica applied.
func (r *Replica) Seq() uint64 { return r.seq }

// Apply folds tick's delta into the replica if tick.Seq > r.Seq. Ticks at
// or below the replica's current seq are ignored, keeping Apply idempotent
// against redelivery, except while the replica's seq is 0: then every
// tick is applied, since 0 is both the starting value and the first
// tick's seq.
func (r *Replica) Apply(tick domain.AuditTick) {
	if tick.Seq <= r.seq && r.seq != 0 {
		return
	}
	if tick.Snapshot != nil {
		r.state = cloneSnapshot(*tick.Snapshot)
		r.seq = tick.Seq
		return
	}

	applyDelta(&r.state, tick.Delta)
	r.seq = tick.Seq
}

func applyDelta(state *domain.EngineStateSnapshot, delta domain.StateDelta) {
	if state.Connectivity == nil {
		state.Connectivity = make(map[domain.ExchangeIndex]domain.Connectivity)
	}
	if state.Assets == nil {
		state.Assets = make(map[domain.AssetIndex]domain.AssetBalance)
	}
	if state.Instruments == nil {
		state.Instruments = make(map[domain.InstrumentIndex]domain.InstrumentSnapshot)
	}

	if delta.TradingStateUpdated {
		state.Trading = delta.TradingState
	}
	if delta.ConnectivityUpdated != nil {
		state.Connectivity[*delta.ConnectivityUpdated] = delta.Connectivity
	}
	if delta.BalanceUpdated != nil {
		state.Assets[*delta.BalanceUpdated] = delta.Balance
	}
	if delta.MarketUpdated != nil {
		entry := state.Instruments[*delta.MarketUpdated]
		entry.Instrument = *delta.MarketUpdated
		entry.MarketData = delta.Market
		state.Instruments[*delta.MarketUpdated] = entry
	}
	for _, pd := range delta.PositionUpserts {
		entry := state.Instruments[pd.Instrument]
		entry.Instrument = pd.Instrument
		entry.Position = pd.Position
		state.Instruments[pd.Instrument] = entry
	}
	for _, order := range delta.OrderUpserts {
		entry := state.Instruments[order.Instrument]
		entry.Instrument = order.Instrument
		entry.OpenOrders = upsertOrder(entry.OpenOrders, order)
		state.Instruments[order.Instrument] = entry
	}
	state.ClosedPositions = append(state.ClosedPositions, delta.ClosedPositions...)
}

// upsertOrder replaces an existing open-orders entry for the same
// ClientOrderID, drops it if the order is now terminal, or appends it.
func upsertOrder(open []domain.Order, order domain.Order) []domain.Order {
	for i, o := range open {
		if o.ClientOrderID == order.ClientOrderID {
			if order.State.Terminal() {
				return append(open[:i], open[i+1:]...)
			}
			open[i] = order
			return open
		}
	}
	if order.State.Terminal() {
		return open
	}
	return append(open, order)
}

func cloneSnapshot(src domain.EngineStateSnapshot) domain.EngineStateSnapshot {
	dst := domain.EngineStateSnapshot{
		Trading:      src.Trading,
		Global:       src.Global,
		Connectivity: make(map[domain.ExchangeIndex]domain.Connectivity, len(src.Connectivity)),
		Assets:       make(map[domain.AssetIndex]domain.AssetBalance, len(src.Assets)),
		Instruments:  make(map[domain.InstrumentIndex]domain.InstrumentSnapshot, len(src.Instruments)),
	}
	for k, v := range src.Connectivity {
		dst.Connectivity[k] = v
	}
	for k, v := range src.Assets {
		dst.Assets[k] = v
	}
	for k, v := range src.Instruments {
		orders := make([]domain.Order, len(v.OpenOrders))
		copy(orders, v.OpenOrders)
		v.OpenOrders = orders
		dst.Instruments[k] = v
	}
	dst.ClosedPositions = append(dst.ClosedPositions, src.ClosedPositions...)
	return dst
}
