// Package position implements the pure fill-accounting rules of §4.4:
// opening, averaging, reducing, closing, and flipping a Position on each
// trade, with saturating fixed-scale decimal arithmetic.
package position

import (
	"github.com/aristath/enginecore/internal/decimalx"
	"github.com/aristath/enginecore/internal/domain"
)

// ApplyFill folds one fill into the current position for an instrument
// (nil if none is open) and returns the resulting position (nil if it
// closed with no flip remainder), a ClosedPosition ledger entry if one
// was produced, and any non-fatal NumericOverflow errors raised by
// saturating arithmetic along the way.
func ApplyFill(existing *domain.Position, instrument domain.InstrumentIndex, fill domain.Trade) (*domain.Position, *domain.ClosedPosition, []error) {
	var errs []error
	note := func(op string, overflowed bool) {
		if overflowed {
			errs = append(errs, &domain.NumericOverflow{Op: op, Detail: "position accounting clamped"})
		}
	}

	if existing == nil {
		opened := &domain.Position{
			Instrument:   instrument,
			Side:         fill.Side,
			Quantity:     fill.Quantity,
			AveragePrice: fill.Price,
			RealizedPnL:  decimalx.Zero,
			Fees:         fill.Fee,
			OpenTime:     fill.TimeExchange,
		}
		return opened, nil, errs
	}

	if fill.Side == existing.Side {
		// Same-side fill: average the entry price, grow quantity.
		oldNotional, ovf := existing.AveragePrice.Mul(existing.Quantity)
		note("average.old_notional", ovf)
		fillNotional, ovf := fill.Price.Mul(fill.Quantity)
		note("average.fill_notional", ovf)
		totalNotional, ovf := oldNotional.Add(fillNotional)
		note("average.total_notional", ovf)
		newQty, ovf := existing.Quantity.Add(fill.Quantity)
		note("average.quantity", ovf)

		newAvg := existing.AveragePrice
		if !newQty.IsZero() {
			newAvg, ovf = totalNotional.Div(newQty)
			note("average.price", ovf)
		}
		newFees, ovf := existing.Fees.Add(fill.Fee)
		note("average.fees", ovf)

		updated := &domain.Position{
			Instrument:   instrument,
			Side:         existing.Side,
			Quantity:     newQty,
			AveragePrice: newAvg,
			RealizedPnL:  existing.RealizedPnL,
			Fees:         newFees,
			OpenTime:     existing.OpenTime,
		}
		return updated, nil, errs
	}

	// Opposite-side fill: reduce, possibly close, possibly flip.
	reduceQty := decimalx.Min2(existing.Quantity, fill.Quantity)

	priceDelta, ovf := fill.Price.Sub(existing.AveragePrice)
	note("reduce.price_delta", ovf)
	signDec := decimalx.NewFromInt(existing.Side.Sign())
	pnlPerUnit, ovf := priceDelta.Mul(signDec)
	note("reduce.pnl_per_unit", ovf)
	realizedDelta, ovf := pnlPerUnit.Mul(reduceQty)
	note("reduce.realized_delta", ovf)
	newRealized, ovf := existing.RealizedPnL.Add(realizedDelta)
	note("reduce.realized_total", ovf)

	newQty, ovf := existing.Quantity.Sub(reduceQty)
	note("reduce.quantity", ovf)
	newFees, ovf := existing.Fees.Add(fill.Fee)
	note("reduce.fees", ovf)

	var closedEntry *domain.ClosedPosition
	var resulting *domain.Position

	if newQty.IsZero() {
		netRealized, ovf := newRealized.Sub(newFees)
		note("close.net_realized", ovf)
		closedEntry = &domain.ClosedPosition{
			Instrument:   instrument,
			Side:         existing.Side,
			Quantity:     existing.Quantity,
			AveragePrice: existing.AveragePrice,
			ExitPrice:    fill.Price,
			RealizedPnL:  netRealized,
			Fees:         newFees,
			OpenTime:     existing.OpenTime,
			CloseTime:    fill.TimeExchange,
		}

		if fill.Quantity.GreaterThan(existing.Quantity) {
			remainder, ovf := fill.Quantity.Sub(existing.Quantity)
			note("flip.remainder", ovf)
			resulting = &domain.Position{
				Instrument:   instrument,
				Side:         fill.Side,
				Quantity:     remainder,
				AveragePrice: fill.Price,
				RealizedPnL:  decimalx.Zero,
				Fees:         decimalx.Zero,
				OpenTime:     fill.TimeExchange,
			}
		}
	} else {
		resulting = &domain.Position{
			Instrument:   instrument,
			Side:         existing.Side,
			Quantity:     newQty,
			AveragePrice: existing.AveragePrice,
			RealizedPnL:  newRealized,
			Fees:         newFees,
			OpenTime:     existing.OpenTime,
		}
	}

	return resulting, closedEntry, errs
}
