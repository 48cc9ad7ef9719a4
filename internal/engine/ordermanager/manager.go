// Package ordermanager implements the per-instrument order lifecycle
// tracker of §4.3: in-flight/open/terminal state transitions, ghost-order
// shadowing for updates that race ahead of their open confirmation, and
// snapshot reconciliation on exchange reconnect.
package ordermanager

import (
	"fmt"
	"sort"

	"github.com/aristath/enginecore/internal/domain"
)

const defaultTerminalRingCapacity = 256

// shadow is a Pending entry created when an update or fill arrives for a
// client_order_id the Manager has not yet seen via RequestOpen.
type shadow struct {
	firstSeenAt int64
	update      *domain.OrderUpdate
	fill        *domain.Trade
}

// Manager tracks every order for a single instrument.
type Manager struct {
	instrument domain.InstrumentIndex
	exchange   domain.ExchangeIndex

	orders map[domain.ClientOrderID]*domain.Order

	terminalRing []domain.Order
	ringCap      int

	shadows map[domain.ClientOrderID]*shadow

	nextID uint64

	awaitingSnapshot bool
}

// New creates an order Manager for one instrument on one exchange.
func New(instrument domain.InstrumentIndex, exchange domain.ExchangeIndex) *Manager {
	return &Manager{
		instrument: instrument,
		exchange:   exchange,
		orders:     make(map[domain.ClientOrderID]*domain.Order),
		shadows:    make(map[domain.ClientOrderID]*shadow),
		ringCap:    defaultTerminalRingCapacity,
	}
}

// NextClientOrderID issues the next monotonic id for this instrument.
func (m *Manager) NextClientOrderID() domain.ClientOrderID {
	m.nextID++
	return domain.ClientOrderID(m.nextID)
}

// RequestOpen inserts order as InFlightOpen and returns the resulting
// ExecutionRequest::Open. Fails ErrDuplicateID if the id names an
// existing non-terminal order.
func (m *Manager) RequestOpen(order domain.Order, now int64) (domain.ExecutionRequest, error) {
	if existing, ok := m.orders[order.ClientOrderID]; ok && !existing.State.Terminal() {
		return domain.ExecutionRequest{}, fmt.Errorf("%w: client_order_id %d", domain.ErrDuplicateID, order.ClientOrderID)
	}

	order.State = domain.StateInFlightOpen
	if order.Origin == "" {
		order.Origin = domain.OriginLocal
	}
	order.CreatedAt = now
	order.UpdatedAt = now
	stored := order
	m.orders[order.ClientOrderID] = &stored

	if sh, ok := m.shadows[order.ClientOrderID]; ok {
		delete(m.shadows, order.ClientOrderID)
		if sh.update != nil {
			_, _ = m.applyUpdateToOrder(&stored, *sh.update)
		}
		if sh.fill != nil {
			m.applyFillToOrder(&stored, *sh.fill)
		}
	}

	return domain.NewOpenRequest(m.exchange, stored), nil
}

// RequestCancel marks id InFlightCancel and returns the ExecutionRequest::
// Cancel. Fails ErrUnknownOrder if absent, ErrAlreadyTerminal if terminal,
// ErrAlreadyCancelling if a cancel is already outstanding.
func (m *Manager) RequestCancel(id domain.ClientOrderID, now int64) (domain.ExecutionRequest, error) {
	order, ok := m.orders[id]
	if !ok {
		if m.findTerminal(id) != nil {
			return domain.ExecutionRequest{}, fmt.Errorf("%w: client_order_id %d", domain.ErrAlreadyTerminal, id)
		}
		return domain.ExecutionRequest{}, fmt.Errorf("%w: client_order_id %d", domain.ErrUnknownOrder, id)
	}
	if order.State.Terminal() {
		return domain.ExecutionRequest{}, fmt.Errorf("%w: client_order_id %d", domain.ErrAlreadyTerminal, id)
	}
	if order.State == domain.StateInFlightCancel {
		return domain.ExecutionRequest{}, fmt.Errorf("%w: client_order_id %d", domain.ErrAlreadyCancelling, id)
	}

	order.State = domain.StateInFlightCancel
	order.UpdatedAt = now
	return domain.NewCancelRequest(m.exchange, id), nil
}

// ApplyUpdate transitions the order named by update.ClientOrderID. If the
// id is unknown, it is recorded as a Pending shadow entry reconciled by a
// later RequestOpen or discarded by SweepGhosts after the ghost timeout.
// An update for an order already retired to the terminal ring fails
// ErrAlreadyTerminal.
func (m *Manager) ApplyUpdate(update domain.OrderUpdate) (*domain.Order, error) {
	order, ok := m.orders[update.ClientOrderID]
	if !ok {
		if m.findTerminal(update.ClientOrderID) != nil {
			return nil, fmt.Errorf("%w: client_order_id %d", domain.ErrAlreadyTerminal, update.ClientOrderID)
		}
		sh := m.shadowFor(update.ClientOrderID, update.TimeExchange)
		u := update
		sh.update = &u
		return nil, nil
	}
	if order.State.Terminal() {
		return nil, fmt.Errorf("%w: client_order_id %d", domain.ErrAlreadyTerminal, update.ClientOrderID)
	}

	changed, err := m.applyUpdateToOrder(order, update)
	return changed, err
}

func (m *Manager) applyUpdateToOrder(order *domain.Order, update domain.OrderUpdate) (*domain.Order, error) {
	if update.ExchangeOrder != "" {
		order.ExchangeOrder = update.ExchangeOrder
	}
	order.State = update.State
	order.UpdatedAt = update.TimeExchange

	if order.State.Terminal() {
		if order.State == domain.StateCancelled && order.CancelReason == "" {
			order.CancelReason = domain.CancelReasonRequested
		}
		m.retire(order)
	}
	return order, nil
}

// ApplyFill increments cumulative filled quantity for trade.ClientOrderID.
// A fill that would exceed the order's quantity is clamped, emitting
// OverfillDetected (non-fatal). An unknown id becomes a shadow entry like
// ApplyUpdate.
func (m *Manager) ApplyFill(trade domain.Trade) (*domain.Order, []error) {
	order, ok := m.orders[trade.ClientOrderID]
	if !ok {
		sh := m.shadowFor(trade.ClientOrderID, trade.TimeExchange)
		t := trade
		sh.fill = &t
		return nil, nil
	}
	errs := m.applyFillToOrder(order, trade)
	return order, errs
}

func (m *Manager) applyFillToOrder(order *domain.Order, trade domain.Trade) []error {
	var errs []error

	newFilled, overflowed := order.FilledQuantity.Add(trade.Quantity)
	if overflowed {
		errs = append(errs, &domain.NumericOverflow{Op: "order.filled_quantity", Detail: "saturated"})
	}
	if newFilled.GreaterThan(order.Quantity) {
		newFilled = order.Quantity
		errs = append(errs, &domain.ReconcileError{
			Kind:        domain.ReconcileOverfillDetected,
			Instrument:  m.instrument,
			ClientOrder: order.ClientOrderID,
			Detail:      "fill exceeded order quantity; truncated",
		})
	}
	order.FilledQuantity = newFilled
	order.UpdatedAt = trade.TimeExchange

	if order.FilledQuantity.Equal(order.Quantity) {
		order.State = domain.StateFilled
		m.retire(order)
	} else if order.FilledQuantity.IsPositive() {
		order.State = domain.StatePartiallyFilled
	}

	return errs
}

func (m *Manager) shadowFor(id domain.ClientOrderID, now int64) *shadow {
	sh, ok := m.shadows[id]
	if !ok {
		sh = &shadow{firstSeenAt: now}
		m.shadows[id] = sh
	}
	return sh
}

// retire moves a newly-terminal order from the live map into the
// bounded terminal ring buffer.
func (m *Manager) retire(order *domain.Order) {
	delete(m.orders, order.ClientOrderID)
	m.terminalRing = append(m.terminalRing, *order)
	if len(m.terminalRing) > m.ringCap {
		m.terminalRing = m.terminalRing[len(m.terminalRing)-m.ringCap:]
	}
}

func (m *Manager) findTerminal(id domain.ClientOrderID) *domain.Order {
	for i := len(m.terminalRing) - 1; i >= 0; i-- {
		if m.terminalRing[i].ClientOrderID == id {
			o := m.terminalRing[i]
			return &o
		}
	}
	return nil
}

// SweepGhosts discards shadow entries older than timeoutNanos, emitting a
// GhostOrder reconcile error per entry dropped. Driven by
// internal/maintenance, external to the Engine's own suspension points.
func (m *Manager) SweepGhosts(now, timeoutNanos int64) []error {
	var errs []error
	for id, sh := range m.shadows {
		if now-sh.firstSeenAt >= timeoutNanos {
			delete(m.shadows, id)
			errs = append(errs, &domain.ReconcileError{
				Kind:        domain.ReconcileGhostOrder,
				Instrument:  m.instrument,
				ClientOrder: id,
				Detail:      "shadow entry discarded after reconcile timeout",
			})
		}
	}
	return errs
}

// ReconcileSnapshot treats the exchange's open-order snapshot as
// authoritative: local non-terminal orders absent from it are cancelled
// with reason MissingFromSnapshot; snapshot entries unknown locally are
// adopted as Open. Returns the orders cancelled and the orders adopted.
func (m *Manager) ReconcileSnapshot(entries []domain.OpenOrderSnapshotEntry, now int64) (cancelled []domain.Order, adopted []domain.Order) {
	present := make(map[domain.ClientOrderID]bool, len(entries))
	for _, e := range entries {
		present[e.ClientOrderID] = true
	}

	missing := make([]domain.ClientOrderID, 0, len(m.orders))
	for id := range m.orders {
		if !present[id] {
			missing = append(missing, id)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })

	for _, id := range missing {
		order := m.orders[id]
		order.State = domain.StateCancelled
		order.CancelReason = domain.CancelReasonMissingFromSnapshot
		order.UpdatedAt = now
		cancelled = append(cancelled, *order)
		m.retire(order)
	}

	for _, e := range entries {
		if _, ok := m.orders[e.ClientOrderID]; ok {
			continue
		}
		adoptedOrder := domain.Order{
			ClientOrderID:  e.ClientOrderID,
			ExchangeOrder:  e.ExchangeOrder,
			Instrument:     e.Instrument,
			Side:           e.Side,
			Kind:           e.Kind,
			Price:          e.Price,
			Quantity:       e.Quantity,
			FilledQuantity: e.FilledQty,
			State:          domain.StateOpen,
			Origin:         domain.OriginAdopted,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		stored := adoptedOrder
		m.orders[e.ClientOrderID] = &stored
		adopted = append(adopted, adoptedOrder)
	}

	return cancelled, adopted
}

// OpenOrders returns a snapshot of all currently non-terminal orders,
// ordered by client_order_id for cache-friendly, deterministic iteration.
func (m *Manager) OpenOrders() []domain.Order {
	out := make([]domain.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientOrderID < out[j].ClientOrderID })
	return out
}

// MarkAwaitingSnapshot flags that this instrument's non-terminal orders
// are stale pending exchange reconfirmation, set when the owning
// exchange transitions Reconnecting -> Healthy (§4.2). Purely advisory:
// ReconcileSnapshot runs regardless on the next snapshot for this
// instrument's exchange.
func (m *Manager) MarkAwaitingSnapshot() { m.awaitingSnapshot = true }

// ClearAwaitingSnapshot resets the advisory flag, called once
// reconciliation for this instrument's exchange has run.
func (m *Manager) ClearAwaitingSnapshot() { m.awaitingSnapshot = false }

// AwaitingSnapshot reports the advisory flag.
func (m *Manager) AwaitingSnapshot() bool { return m.awaitingSnapshot }

// Order returns the current record for id, whether non-terminal or
// retired to the terminal ring.
func (m *Manager) Order(id domain.ClientOrderID) (domain.Order, bool) {
	if o, ok := m.orders[id]; ok {
		return *o, true
	}
	if o := m.findTerminal(id); o != nil {
		return *o, true
	}
	return domain.Order{}, false
}
