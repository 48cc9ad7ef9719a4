// Package paper implements a reference in-memory exchange worker: it
// consumes ExecutionRequests from one exchange's outbound channel and
// synthesizes the AccountEvents a real exchange connection would produce
// (immediate Open confirmation, then an immediate full fill — limit orders
// at their own price, market orders at the MarkPrice when one is given —
// and immediate Cancel confirmation). Used by cmd/server as its default
// venue.
package paper

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/enginecore/internal/clock"
	"github.com/aristath/enginecore/internal/decimalx"
	"github.com/aristath/enginecore/internal/domain"
)

// MarkPrice resolves the reference price a market order fills at, since a
// market OrderRequest carries no price of its own. Backed by whatever the
// caller's last-seen MarketData is (cmd/server wires this to the
// EngineState snapshot's best bid/ask midpoint).
type MarkPrice func(domain.InstrumentIndex) decimalx.Decimal

// Worker drains one exchange's outbound ExecutionRequest channel and
// pushes synthesized AccountEvents onto out.
type Worker struct {
	log      zerolog.Logger
	clk      clock.Clock
	exchange domain.ExchangeIndex
	mark     MarkPrice
}

// New builds a paper exchange Worker for one exchange index. mark may be
// nil, in which case market orders fill at their zero-value price (only
// sensible for tests that don't inspect fill price).
func New(log zerolog.Logger, clk clock.Clock, exchange domain.ExchangeIndex, mark MarkPrice) *Worker {
	return &Worker{
		log:      log.With().Str("component", "paper_exchange").Uint32("exchange", uint32(exchange)).Logger(),
		clk:      clk,
		exchange: exchange,
		mark:     mark,
	}
}

// Run drains in until it closes or ctx is cancelled, sending synthesized
// AccountEvents to out. Blocks the caller; run it in its own goroutine.
func (w *Worker) Run(ctx context.Context, in <-chan domain.ExecutionRequest, out chan<- domain.AccountEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-in:
			if !ok {
				return
			}
			w.handle(ctx, req, out)
		}
	}
}

func (w *Worker) handle(ctx context.Context, req domain.ExecutionRequest, out chan<- domain.AccountEvent) {
	now := w.clk.NowNanos()

	if req.IsCancel() {
		send(ctx, out, domain.AccountEvent{
			Kind:     domain.AccountOrderUpdate,
			Exchange: w.exchange,
			OrderUpdate: domain.OrderUpdate{
				ClientOrderID: req.CancelID,
				State:         domain.StateCancelled,
				TimeExchange:  now,
			},
		})
		return
	}

	order := req.Order
	send(ctx, out, domain.AccountEvent{
		Kind:     domain.AccountOrderUpdate,
		Exchange: w.exchange,
		OrderUpdate: domain.OrderUpdate{
			ClientOrderID: order.ClientOrderID,
			ExchangeOrder: domain.ExchangeOrderID(fmt.Sprintf("paper-%d", order.ClientOrderID)),
			Instrument:    order.Instrument,
			State:         domain.StateOpen,
			TimeExchange:  now,
		},
	})

	fillPrice := order.Price
	if order.Kind == domain.OrderMarket && w.mark != nil {
		fillPrice = w.mark(order.Instrument)
	}

	send(ctx, out, domain.AccountEvent{
		Kind:     domain.AccountTrade,
		Exchange: w.exchange,
		Trade: domain.Trade{
			ClientOrderID: order.ClientOrderID,
			Instrument:    order.Instrument,
			Side:          order.Side,
			Price:         fillPrice,
			Quantity:      order.Quantity,
			TimeExchange:  now,
		},
	})
}

func send(ctx context.Context, out chan<- domain.AccountEvent, event domain.AccountEvent) {
	select {
	case out <- event:
	case <-ctx.Done():
	}
}
