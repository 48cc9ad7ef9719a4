package engine

import (
	"fmt"

	"github.com/aristath/enginecore/internal/domain"
	"github.com/aristath/enginecore/internal/engine/position"
)

func errUnknownExchange(exchange domain.ExchangeIndex) error {
	return fmt.Errorf("%w: exchange index %d", domain.ErrUnknownIdentifier, exchange)
}

// Apply folds one EngineEvent into EngineState deterministically (§4.2),
// returning the observable StateDelta. Unknown identifiers are logged
// into the delta and the offending sub-update is dropped; Apply itself
// never panics and never returns an error — non-fatal problems live in
// delta.Errors.
func (s *EngineState) Apply(event domain.EngineEvent) domain.StateDelta {
	var delta domain.StateDelta

	switch event.Kind {
	case domain.EventMarket:
		s.applyMarket(event.Market, &delta)
	case domain.EventAccount:
		s.applyAccount(event.Account, &delta)
	case domain.EventTradingStateUpdate:
		s.trading = event.TradingState
		delta.TradingStateUpdated = true
		delta.TradingState = event.TradingState
	case domain.EventCommand, domain.EventShutdown:
		// No direct state mutation from apply(): Command execution-request
		// generation and Shutdown draining are orchestrated by the Engine
		// loop itself (§4.7 steps 3-6), which calls back into EngineState
		// via RequestOpen/RequestCancel as it processes the command.
	}

	return delta
}

func (s *EngineState) applyMarket(m domain.MarketEvent, delta *domain.StateDelta) {
	if _, err := s.reg.Instrument(m.Instrument); err != nil {
		delta.Errors = append(delta.Errors, err)
		return
	}

	md := domain.MarketData{
		BestBid:                m.BestBid,
		BestAsk:                m.BestAsk,
		LastTrade:              m.LastTrade,
		LastUpdateTimeExchange: m.TimeExchange,
	}
	s.marketData[m.Instrument] = md

	inst := m.Instrument
	delta.MarketUpdated = &inst
	delta.Market = md
}

func (s *EngineState) applyAccount(a domain.AccountEvent, delta *domain.StateDelta) {
	switch a.Kind {
	case domain.AccountBalance:
		s.applyBalance(a.Balance, delta)
	case domain.AccountSnapshot:
		for _, b := range a.SnapshotBalances {
			s.applyBalance(b, delta)
		}
		s.applySnapshotOrders(a.Exchange, a.SnapshotOrders, delta)
	case domain.AccountOrderUpdate:
		s.applyOrderUpdate(a.OrderUpdate, delta)
	case domain.AccountTrade:
		s.applyTrade(a.Trade, delta)
	case domain.AccountConnectivity:
		s.applyConnectivity(a.Exchange, a.Connectivity, delta)
	}
}

func (s *EngineState) applyBalance(b domain.BalanceEntry, delta *domain.StateDelta) {
	if _, err := s.reg.Asset(b.Asset); err != nil {
		delta.Errors = append(delta.Errors, err)
		return
	}

	existing := s.assets[b.Asset]
	if b.TimeExchange < existing.TimeExchange {
		return // stale, drop
	}

	updated := domain.AssetBalance{Total: b.Total, Free: b.Free, TimeExchange: b.TimeExchange}
	s.assets[b.Asset] = updated

	asset := b.Asset
	delta.BalanceUpdated = &asset
	delta.Balance = updated
}

func (s *EngineState) applyOrderUpdate(u domain.OrderUpdate, delta *domain.StateDelta) {
	om, err := s.OrderManager(u.Instrument)
	if err != nil {
		delta.Errors = append(delta.Errors, err)
		return
	}

	order, err := om.ApplyUpdate(u)
	if err != nil {
		delta.Errors = append(delta.Errors, err)
	}
	if order != nil {
		delta.OrderUpserts = append(delta.OrderUpserts, *order)
	}
}

func (s *EngineState) applyTrade(t domain.Trade, delta *domain.StateDelta) {
	om, err := s.OrderManager(t.Instrument)
	if err != nil {
		delta.Errors = append(delta.Errors, err)
		return
	}

	order, fillErrs := om.ApplyFill(t)
	delta.Errors = append(delta.Errors, fillErrs...)
	if order != nil {
		delta.OrderUpserts = append(delta.OrderUpserts, *order)
	}

	existing := s.positions[t.Instrument]
	newPos, closed, posErrs := position.ApplyFill(existing, t.Instrument, t)
	delta.Errors = append(delta.Errors, posErrs...)

	s.positions[t.Instrument] = newPos
	delta.PositionUpserts = append(delta.PositionUpserts, domain.PositionDelta{Instrument: t.Instrument, Position: newPos})

	if closed != nil {
		s.closedPositions = append(s.closedPositions, *closed)
		delta.ClosedPositions = append(delta.ClosedPositions, *closed)
	}
}

func (s *EngineState) applyConnectivity(exchange domain.ExchangeIndex, next domain.Connectivity, delta *domain.StateDelta) {
	prev, ok := s.connectivity[exchange]
	if !ok {
		delta.Errors = append(delta.Errors, errUnknownExchange(exchange))
		return
	}
	s.connectivity[exchange] = next

	ex := exchange
	delta.ConnectivityUpdated = &ex
	delta.Connectivity = next

	if prev == domain.Reconnecting && next == domain.Healthy {
		for _, inst := range s.reg.Instruments() {
			if inst.Exchange != exchange {
				continue
			}
			s.orders[inst.Index].MarkAwaitingSnapshot()
		}
	}
}

// applySnapshotOrders reconciles every instrument on the snapshot's
// exchange: local non-terminal orders absent from the snapshot are
// cancelled (MissingFromSnapshot), and unknown snapshot entries are
// adopted as Open (§4.3).
func (s *EngineState) applySnapshotOrders(exchange domain.ExchangeIndex, entries []domain.OpenOrderSnapshotEntry, delta *domain.StateDelta) {
	byInstrument := make(map[domain.InstrumentIndex][]domain.OpenOrderSnapshotEntry)
	for _, e := range entries {
		byInstrument[e.Instrument] = append(byInstrument[e.Instrument], e)
	}

	now := s.clk.NowNanos()
	for _, inst := range s.reg.Instruments() {
		if inst.Exchange != exchange {
			continue
		}
		om := s.orders[inst.Index]
		om.ClearAwaitingSnapshot()
		cancelled, adopted := om.ReconcileSnapshot(byInstrument[inst.Index], now)
		delta.OrderUpserts = append(delta.OrderUpserts, cancelled...)
		delta.OrderUpserts = append(delta.OrderUpserts, adopted...)
	}
}
