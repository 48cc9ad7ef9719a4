// Package engine implements EngineState and the Engine loop of §4.2 and
// §4.7: the single authoritative in-memory snapshot and the
// single-producer multiplexed loop that mutates it.
package engine

import (
	"fmt"

	"github.com/aristath/enginecore/internal/clock"
	"github.com/aristath/enginecore/internal/domain"
	"github.com/aristath/enginecore/internal/engine/ordermanager"
	"github.com/aristath/enginecore/internal/registry"
)

// EngineState is the Engine's exclusively-owned in-memory snapshot (§3):
// trading flag, global user payload, per-exchange connectivity,
// per-asset balances, per-instrument market data/order manager/position,
// and the append-only closed-position ledger. Per-entity state is held in
// maps keyed by the registry's dense indices, not in slices.
type EngineState struct {
	reg *registry.Registry
	clk clock.Clock

	trading domain.TradingState
	global  any

	connectivity map[domain.ExchangeIndex]domain.Connectivity
	assets       map[domain.AssetIndex]domain.AssetBalance
	marketData   map[domain.InstrumentIndex]domain.MarketData
	positions    map[domain.InstrumentIndex]*domain.Position
	orders       map[domain.InstrumentIndex]*ordermanager.Manager

	closedPositions []domain.ClosedPosition
}

// NewEngineState builds a fresh EngineState over every instrument known to
// the registry: Healthy connectivity, zero balances, no positions, empty
// order managers.
func NewEngineState(reg *registry.Registry, clk clock.Clock, initialTrading domain.TradingState, global any) *EngineState {
	s := &EngineState{
		reg:          reg,
		clk:          clk,
		trading:      initialTrading,
		global:       global,
		connectivity: make(map[domain.ExchangeIndex]domain.Connectivity),
		assets:       make(map[domain.AssetIndex]domain.AssetBalance),
		marketData:   make(map[domain.InstrumentIndex]domain.MarketData),
		positions:    make(map[domain.InstrumentIndex]*domain.Position),
		orders:       make(map[domain.InstrumentIndex]*ordermanager.Manager),
	}

	for i := 0; i < reg.NumExchanges(); i++ {
		s.connectivity[domain.ExchangeIndex(i)] = domain.Healthy
	}
	for i := 0; i < reg.NumAssets(); i++ {
		s.assets[domain.AssetIndex(i)] = domain.AssetBalance{}
	}
	for _, inst := range reg.Instruments() {
		s.orders[inst.Index] = ordermanager.New(inst.Index, inst.Exchange)
	}

	return s
}

// Trading reports the current TradingState.
func (s *EngineState) Trading() domain.TradingState { return s.trading }

// Global returns the user payload.
func (s *EngineState) Global() any { return s.global }

// Position returns the current open position for an instrument, if any.
func (s *EngineState) Position(inst domain.InstrumentIndex) *domain.Position {
	return s.positions[inst]
}

// OrderManager returns the per-instrument OrderManager, or an
// UnknownIdentifier error if inst is not in the registry.
func (s *EngineState) OrderManager(inst domain.InstrumentIndex) (*ordermanager.Manager, error) {
	om, ok := s.orders[inst]
	if !ok {
		return nil, fmt.Errorf("%w: instrument index %d", domain.ErrUnknownIdentifier, inst)
	}
	return om, nil
}

// ClosedPositions returns the append-only ledger.
func (s *EngineState) ClosedPositions() []domain.ClosedPosition {
	return s.closedPositions
}

// Registry exposes the Registry the state was built over, for components
// (the Engine loop, maintenance sweep) that need to enumerate instruments.
func (s *EngineState) Registry() *registry.Registry { return s.reg }

// Snapshot produces an owned, serializable copy of EngineState for audit
// consumers and Strategy/Risk hook invocations (§3: never a live
// reference).
func (s *EngineState) Snapshot() domain.EngineStateSnapshot {
	snap := domain.EngineStateSnapshot{
		Trading:      s.trading,
		Global:       s.global,
		Connectivity: make(map[domain.ExchangeIndex]domain.Connectivity, len(s.connectivity)),
		Assets:       make(map[domain.AssetIndex]domain.AssetBalance, len(s.assets)),
		Instruments:  make(map[domain.InstrumentIndex]domain.InstrumentSnapshot, len(s.orders)),
	}
	for k, v := range s.connectivity {
		snap.Connectivity[k] = v
	}
	for k, v := range s.assets {
		snap.Assets[k] = v
	}
	for inst, om := range s.orders {
		snap.Instruments[inst] = domain.InstrumentSnapshot{
			Instrument: inst,
			MarketData: s.marketData[inst],
			Position:   s.positions[inst],
			OpenOrders: om.OpenOrders(),
		}
	}
	snap.ClosedPositions = append(snap.ClosedPositions, s.closedPositions...)
	return snap
}

// matchingInstruments returns every registered instrument satisfying
// filter.
func (s *EngineState) matchingInstruments(filter domain.Filter) []domain.InstrumentIndex {
	var out []domain.InstrumentIndex
	for _, inst := range s.reg.Instruments() {
		if filter.Matches(inst.Index, inst.Exchange, inst.Base, inst.Quote) {
			out = append(out, inst.Index)
		}
	}
	return out
}
