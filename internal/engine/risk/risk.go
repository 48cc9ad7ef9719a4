// Package risk defines the RiskManager interface of §4.6: a single
// check operation partitioning proposed orders into approved and refused.
package risk

import "github.com/aristath/enginecore/internal/domain"

// Manager inspects proposed orders against the current state and returns
// the approved subset plus refusals (each carrying an audited reason).
// Consulted for every algorithmic order and for command-issued opens,
// including the closing orders a ClosePositions command generates;
// bypassed for orders issued in direct response to a forced command
// (Command.Force). Cancels are never passed to Check.
type Manager interface {
	Check(state domain.EngineStateSnapshot, proposals []domain.OrderRequest) (approved []domain.OrderRequest, refused []domain.RiskRefusal)
}

// AllowAll approves every proposal unconditionally — the default when no
// risk policy is configured.
type AllowAll struct{}

func (AllowAll) Check(_ domain.EngineStateSnapshot, proposals []domain.OrderRequest) ([]domain.OrderRequest, []domain.RiskRefusal) {
	return proposals, nil
}
