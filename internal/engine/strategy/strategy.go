// Package strategy defines the three separable, user-provided capability
// interfaces of §4.5. An implementation may provide any subset; each
// capability is wired into the Engine through its own option
// (WithAlgoStrategy, WithClosePositionsStrategy, WithOnDisconnectStrategy).
// Implementations must be pure with respect to EngineState — the Engine
// applies any resulting orders itself.
package strategy

import (
	"github.com/aristath/enginecore/internal/domain"
)

// EngineView is the read-only projection of EngineState handed to a
// strategy hook. It is never a live reference: callers see an owned,
// serializable snapshot (§3 Ownership).
type EngineView = domain.EngineStateSnapshot

// AlgoStrategy generates algorithmic orders once per engine tick, only
// while trading is Enabled.
type AlgoStrategy interface {
	Generate(state EngineView) []domain.OrderRequest
}

// ClosePositionsStrategy responds to a ClosePositions command by
// producing the cancels and opens needed to flatten the filtered
// instruments.
type ClosePositionsStrategy interface {
	Close(state EngineView, filter domain.Filter) (cancels []domain.ClientOrderID, opens []domain.OrderRequest)
}

// OnDisconnectStrategy is invoked when an exchange transitions to
// Reconnecting, to let the strategy hedge or withdraw outstanding risk.
type OnDisconnectStrategy interface {
	OnDisconnect(state EngineView, exchange domain.ExchangeIndex) []domain.OrderRequest
}

// AlgoStrategyFunc adapts a plain function to AlgoStrategy.
type AlgoStrategyFunc func(state EngineView) []domain.OrderRequest

func (f AlgoStrategyFunc) Generate(state EngineView) []domain.OrderRequest { return f(state) }

// NoopAlgoStrategy generates nothing; the zero-value default when no
// algorithmic strategy is configured.
type NoopAlgoStrategy struct{}

func (NoopAlgoStrategy) Generate(EngineView) []domain.OrderRequest { return nil }
