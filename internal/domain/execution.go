package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// ExecutionRequestKind discriminates Open vs Cancel.
type ExecutionRequestKind int8

const (
	ExecutionOpen ExecutionRequestKind = iota
	ExecutionCancel
)

// ExecutionRequest is the outbound directive addressed to an exchange
// worker: Open(Order) | Cancel(OrderId). ID is a dedup token distinct
// from the engine-assigned monotonic ClientOrderID.
type ExecutionRequest struct {
	ID       uuid.UUID
	Kind     ExecutionRequestKind
	Exchange ExchangeIndex
	Order    Order         // ExecutionOpen only
	CancelID ClientOrderID // ExecutionCancel only
}

// executionNamespace seeds the deterministic v5-style UUIDs below; any
// fixed namespace works since uniqueness only needs to hold within a
// single process's exchange/client_order_id space.
var executionNamespace = uuid.Nil

// ExecutionRequestID computes a UUID deterministically from exchange,
// kind, and client_order_id, so that replaying the same EngineEvent
// sequence through a fresh Engine reproduces byte-identical
// ExecutionRequest IDs (and therefore identical AuditTick.Outputs and
// audit streams) instead of a fresh random ID per run. Exported so
// callers that need to Ack a request (matching it against its
// exchange/client_order_id after the fact) can recompute the same id
// without having stored it.
func ExecutionRequestID(exchange ExchangeIndex, kind ExecutionRequestKind, id ClientOrderID) uuid.UUID {
	seed := fmt.Sprintf("%d:%d:%d", exchange, kind, id)
	return uuid.NewSHA1(executionNamespace, []byte(seed))
}

func NewOpenRequest(exchange ExchangeIndex, order Order) ExecutionRequest {
	return ExecutionRequest{
		ID:       ExecutionRequestID(exchange, ExecutionOpen, order.ClientOrderID),
		Kind:     ExecutionOpen,
		Exchange: exchange,
		Order:    order,
	}
}

func NewCancelRequest(exchange ExchangeIndex, id ClientOrderID) ExecutionRequest {
	return ExecutionRequest{
		ID:       ExecutionRequestID(exchange, ExecutionCancel, id),
		Kind:     ExecutionCancel,
		Exchange: exchange,
		CancelID: id,
	}
}

// IsCancel reports whether this request is exempt from backpressure
// shedding per §4.8.
func (r ExecutionRequest) IsCancel() bool {
	return r.Kind == ExecutionCancel
}
