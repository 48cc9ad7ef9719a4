// Package execution implements the ExecutionManager of §4.8: fan-out of
// ExecutionRequests to per-exchange outbound channels, in-flight
// deduplication, and backpressure shedding above a configured high-water
// mark (cancels always admitted).
package execution

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/enginecore/internal/domain"
)

// defaultChannelBuffer approximates the spec's "unbounded MPSC per
// exchange": large enough that, in practice, the ExecutionManager's own
// high-water check sheds load long before the channel itself would ever
// fill and block a send.
const defaultChannelBuffer = 1 << 16

// Manager is the ExecutionManager.
type Manager struct {
	log zerolog.Logger

	highWater int

	mu        sync.Mutex
	channels  map[domain.ExchangeIndex]chan domain.ExecutionRequest
	inFlight  map[uuid.UUID]struct{}
}

// New builds a Manager with one outbound channel per exchange known to
// the registry.
func New(log zerolog.Logger, exchanges []domain.ExchangeIndex, highWater int) *Manager {
	m := &Manager{
		log:       log.With().Str("component", "execution_manager").Logger(),
		highWater: highWater,
		channels:  make(map[domain.ExchangeIndex]chan domain.ExecutionRequest, len(exchanges)),
		inFlight:  make(map[uuid.UUID]struct{}),
	}
	for _, ex := range exchanges {
		m.channels[ex] = make(chan domain.ExecutionRequest, defaultChannelBuffer)
	}
	return m
}

// Outbound returns the receive side of an exchange's outbound channel, for
// an exchange worker (e.g. internal/exchange/paper) to consume.
func (m *Manager) Outbound(exchange domain.ExchangeIndex) (<-chan domain.ExecutionRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[exchange]
	if !ok {
		return nil, fmt.Errorf("%w: exchange index %d", domain.ErrUnknownIdentifier, exchange)
	}
	return ch, nil
}

// Post routes req to its exchange's outbound channel. It deduplicates by
// req.ID (a repeat post of an already in-flight id is silently dropped)
// and sheds non-cancel requests once the target channel's pending length
// crosses the configured high-water mark, returning a *domain.
// BackpressureShed describing the drop. Cancel requests are always
// admitted.
func (m *Manager) Post(req domain.ExecutionRequest) (posted bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, ok := m.channels[req.Exchange]
	if !ok {
		return false, fmt.Errorf("%w: exchange index %d", domain.ErrUnknownIdentifier, req.Exchange)
	}

	if _, dup := m.inFlight[req.ID]; dup {
		return false, nil
	}

	if !req.IsCancel() && len(ch) >= m.highWater {
		shed := &domain.BackpressureShed{Exchange: req.Exchange, Request: req}
		m.log.Warn().Uint32("exchange", uint32(req.Exchange)).Msg("execution request shed: backpressure high-water exceeded")
		return false, shed
	}

	m.inFlight[req.ID] = struct{}{}
	ch <- req
	return true, nil
}

// Ack releases id from the in-flight set once its terminal outcome (fill,
// cancel confirm, or reject) has been applied to EngineState.
func (m *Manager) Ack(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inFlight, id)
}

// InFlightCount reports how many requests are currently tracked as
// in-flight, for diagnostics and tests.
func (m *Manager) InFlightCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inFlight)
}

// PendingLen reports the current queue depth for an exchange, for tests
// exercising the backpressure boundary.
func (m *Manager) PendingLen(exchange domain.ExchangeIndex) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.channels[exchange])
}

// CloseAll closes every outbound channel, draining is the caller's
// responsibility beforehand. Invoked once, during graceful Shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.channels {
		close(ch)
	}
}
