package engine

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aristath/enginecore/internal/clock"
	"github.com/aristath/enginecore/internal/domain"
	"github.com/aristath/enginecore/internal/engine/audit"
	"github.com/aristath/enginecore/internal/engine/execution"
	"github.com/aristath/enginecore/internal/engine/risk"
	"github.com/aristath/enginecore/internal/engine/strategy"
)

// Iterator is the pull-based feed source for backtests (§4.7 feed mode
// (a)): single-threaded, deterministic.
type Iterator interface {
	Next() (domain.EngineEvent, bool)
}

// SliceIterator adapts a literal event slice to Iterator, the shape
// cmd/backtest and engine-level tests build scenarios from.
type SliceIterator struct {
	events []domain.EngineEvent
	pos    int
}

func NewSliceIterator(events []domain.EngineEvent) *SliceIterator {
	return &SliceIterator{events: events}
}

func (it *SliceIterator) Next() (domain.EngineEvent, bool) {
	if it.pos >= len(it.events) {
		return domain.EngineEvent{}, false
	}
	e := it.events[it.pos]
	it.pos++
	return e, true
}

// Engine is the outermost event multiplexer (§4.7): applies events, runs
// Strategy/Risk hooks, dispatches to ExecutionManager, emits audit ticks.
type Engine struct {
	log zerolog.Logger

	state *EngineState
	clk   clock.Clock

	algo         strategy.AlgoStrategy
	closePos     strategy.ClosePositionsStrategy
	onDisconnect strategy.OnDisconnectStrategy
	risk         risk.Manager

	exec  *execution.Manager
	audit *audit.Stream

	commandPriority bool
}

// Option configures an Engine at construction.
type Option func(*Engine)

func WithAlgoStrategy(s strategy.AlgoStrategy) Option { return func(e *Engine) { e.algo = s } }
func WithClosePositionsStrategy(s strategy.ClosePositionsStrategy) Option {
	return func(e *Engine) { e.closePos = s }
}
func WithOnDisconnectStrategy(s strategy.OnDisconnectStrategy) Option {
	return func(e *Engine) { e.onDisconnect = s }
}
func WithRiskManager(r risk.Manager) Option { return func(e *Engine) { e.risk = r } }

// WithCommandPriority enables the documented REDESIGN FLAG option:
// commands are processed ahead of market/account events in channel feed
// mode instead of through the default fair select (§9 Open Question).
func WithCommandPriority(v bool) Option { return func(e *Engine) { e.commandPriority = v } }

// New builds an Engine over state, wired to an ExecutionManager and audit
// Stream. Strategy/RiskManager default to no-ops (AllowAll risk, no
// algorithmic generation) until overridden by options.
func New(log zerolog.Logger, state *EngineState, clk clock.Clock, execMgr *execution.Manager, auditStream *audit.Stream, opts ...Option) *Engine {
	e := &Engine{
		log:   log.With().Str("component", "engine").Logger(),
		state: state,
		clk:   clk,
		algo:  strategy.NoopAlgoStrategy{},
		risk:  risk.AllowAll{},
		exec:  execMgr,
		audit: auditStream,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State exposes the owned EngineState, for wiring and tests only — never
// passed to Strategy/Risk hooks directly (they see Snapshot()).
func (e *Engine) State() *EngineState { return e.state }

// RunIterator drives the Engine from a pull-based Iterator (backtest feed
// mode). Returns once the iterator is exhausted or a Shutdown event is
// processed.
func (e *Engine) RunIterator(iter Iterator) {
	for {
		event, ok := iter.Next()
		if !ok {
			return
		}
		if e.processEvent(event) {
			return
		}
	}
}

// RunChannel drives the Engine from a channel (live feed mode) with a
// single select across the market, account, command, and trading
// channels. Go's select picks at random among ready channels, so the
// merge is fair on average but not strict round-robin. With
// WithCommandPriority(true), a pending command is taken ahead of that
// select on every iteration. Returns when ctx is cancelled, the
// engine processes a Shutdown event, or every inbound channel closes.
func (e *Engine) RunChannel(ctx context.Context, market <-chan domain.MarketEvent, account <-chan domain.AccountEvent, command <-chan domain.Command, trading <-chan domain.TradingState) {
	for {
		event, ok := e.recvChannel(ctx, market, account, command, trading)
		if !ok {
			return
		}
		if e.processEvent(event) {
			return
		}
	}
}

func (e *Engine) recvChannel(ctx context.Context, market <-chan domain.MarketEvent, account <-chan domain.AccountEvent, command <-chan domain.Command, trading <-chan domain.TradingState) (domain.EngineEvent, bool) {
	if e.commandPriority {
		select {
		case cmd, ok := <-command:
			if !ok {
				return domain.EngineEvent{}, false
			}
			return domain.CommandEngineEvent(cmd), true
		default:
		}
	}

	select {
	case <-ctx.Done():
		return domain.ShutdownEngineEvent(), true
	case cmd, ok := <-command:
		if !ok {
			return domain.EngineEvent{}, false
		}
		return domain.CommandEngineEvent(cmd), true
	case m, ok := <-market:
		if !ok {
			return domain.EngineEvent{}, false
		}
		return domain.MarketEngineEvent(m), true
	case a, ok := <-account:
		if !ok {
			return domain.EngineEvent{}, false
		}
		return domain.AccountEngineEvent(a), true
	case ts, ok := <-trading:
		if !ok {
			return domain.EngineEvent{}, false
		}
		return domain.TradingStateEngineEvent(ts), true
	}
}

// processEvent runs one full tick (§4.7 steps 1-7) and reports whether
// the engine should stop (Shutdown processed).
func (e *Engine) processEvent(event domain.EngineEvent) (shutdown bool) {
	now := e.clk.NowNanos()

	delta := e.state.Apply(event)
	e.ackTerminalOrders(delta)
	var outputs []domain.ExecutionRequest

	snapshot := e.state.Snapshot()

	if event.Kind == domain.EventAccount && event.Account.Kind == domain.AccountConnectivity &&
		event.Account.Connectivity == domain.Reconnecting && e.onDisconnect != nil {
		opens := e.onDisconnect.OnDisconnect(snapshot, event.Account.Exchange)
		outputs = append(outputs, e.proposeOpens(snapshot, opens, false, &delta)...)
	}

	if event.Kind == domain.EventCommand {
		outputs = append(outputs, e.handleCommand(event.Command, now, &delta)...)
	}

	if e.state.Trading() == domain.TradingEnabled && e.algo != nil {
		proposals := e.algo.Generate(snapshot)
		outputs = append(outputs, e.proposeOpens(snapshot, proposals, false, &delta)...)
	}

	for _, req := range outputs {
		if _, err := e.exec.Post(req); err != nil {
			delta.Errors = append(delta.Errors, err)
		}
	}

	for _, err := range delta.Errors {
		e.log.Warn().Err(err).Msg("non-fatal event error")
	}

	tick := domain.AuditTick{
		TimeEngine: now,
		Event:      event,
		Delta:      delta,
		Outputs:    outputs,
	}
	if event.Kind == domain.EventShutdown {
		tick.Shutdown = true
	}
	tick.Seq = e.audit.NextSeq()
	e.audit.Publish(tick, e.state.Snapshot())

	if event.Kind == domain.EventShutdown {
		e.exec.CloseAll()
		return true
	}
	return false
}

// ackTerminalOrders releases the ExecutionManager's in-flight dedup
// entries for every order in delta that just reached a terminal state
// (fill, cancel confirm, expiry, rejection, or reconciliation outcome).
// Without this the in-flight set only ever grows and the dedup check in
// Manager.Post never fires for real traffic. IDs are recomputed rather
// than stored, since ExecutionRequest.ID is a pure function of
// exchange/kind/client_order_id (domain.ExecutionRequestID); acking an
// id that was never posted (e.g. an adopted order) is a harmless no-op.
func (e *Engine) ackTerminalOrders(delta domain.StateDelta) {
	for _, order := range delta.OrderUpserts {
		if !order.State.Terminal() {
			continue
		}
		inst, err := e.state.Registry().Instrument(order.Instrument)
		if err != nil {
			continue
		}
		e.exec.Ack(domain.ExecutionRequestID(inst.Exchange, domain.ExecutionOpen, order.ClientOrderID))
		e.exec.Ack(domain.ExecutionRequestID(inst.Exchange, domain.ExecutionCancel, order.ClientOrderID))
	}
}

// proposeOpens turns OrderRequests into Orders (assigning fresh
// client_order_ids), filters them through RiskManager unless force is
// set, and opens the approved ones via their instrument's OrderManager.
func (e *Engine) proposeOpens(snapshot domain.EngineStateSnapshot, proposals []domain.OrderRequest, force bool, delta *domain.StateDelta) []domain.ExecutionRequest {
	if len(proposals) == 0 {
		return nil
	}

	approved := proposals
	if !force {
		var refused []domain.RiskRefusal
		approved, refused = e.risk.Check(snapshot, proposals)
		delta.RiskRefusals = append(delta.RiskRefusals, refused...)
	}

	var outputs []domain.ExecutionRequest
	for _, req := range approved {
		om, err := e.state.OrderManager(req.Instrument)
		if err != nil {
			delta.Errors = append(delta.Errors, err)
			continue
		}

		id := om.NextClientOrderID()
		order := domain.Order{
			ClientOrderID: id,
			Instrument:    req.Instrument,
			Side:          req.Side,
			Kind:          req.Kind,
			TimeInForce:   req.TimeInForce,
			Price:         req.Price,
			Quantity:      req.Quantity,
		}

		now := e.clk.NowNanos()
		execReq, err := om.RequestOpen(order, now)
		if err != nil {
			delta.Errors = append(delta.Errors, err)
			continue
		}
		delta.OrderUpserts = append(delta.OrderUpserts, execReq.Order)
		outputs = append(outputs, execReq)
	}
	return outputs
}

func (e *Engine) handleCommand(cmd domain.Command, now int64, delta *domain.StateDelta) []domain.ExecutionRequest {
	var outputs []domain.ExecutionRequest

	switch cmd.Kind {
	case domain.CommandSendCancelRequests, domain.CommandCancelOrders:
		for _, inst := range e.state.matchingInstruments(cmd.Filter) {
			om, err := e.state.OrderManager(inst)
			if err != nil {
				delta.Errors = append(delta.Errors, err)
				continue
			}
			for _, o := range om.OpenOrders() {
				req, err := om.RequestCancel(o.ClientOrderID, now)
				if err != nil {
					delta.Errors = append(delta.Errors, err)
					continue
				}
				if updated, ok := om.Order(o.ClientOrderID); ok {
					delta.OrderUpserts = append(delta.OrderUpserts, updated)
				}
				outputs = append(outputs, req)
			}
		}

	case domain.CommandSendOpenRequests:
		snapshot := e.state.Snapshot()
		outputs = append(outputs, e.proposeOpens(snapshot, cmd.Opens, cmd.Force, delta)...)

	case domain.CommandClosePositions:
		snapshot := e.state.Snapshot()
		var opens []domain.OrderRequest
		var cancelIDs []domain.ClientOrderID

		if e.closePos != nil {
			cancelIDs, opens = e.closePos.Close(snapshot, cmd.Filter)
		} else {
			opens = e.defaultClosePositions(cmd.Filter)
		}

		for _, inst := range e.state.matchingInstruments(cmd.Filter) {
			om, err := e.state.OrderManager(inst)
			if err != nil {
				continue
			}
			for _, id := range cancelIDs {
				if _, ok := om.Order(id); !ok {
					continue
				}
				req, err := om.RequestCancel(id, now)
				if err != nil {
					delta.Errors = append(delta.Errors, err)
					continue
				}
				outputs = append(outputs, req)
			}
		}

		outputs = append(outputs, e.proposeOpens(snapshot, opens, cmd.Force, delta)...)
	}

	return outputs
}

// defaultClosePositions is the fallback used when no ClosePositionsStrategy
// is configured: flatten every matching instrument's open position with
// an opposite-side market order sized to the full position quantity.
func (e *Engine) defaultClosePositions(filter domain.Filter) []domain.OrderRequest {
	var opens []domain.OrderRequest
	for _, inst := range e.state.matchingInstruments(filter) {
		pos := e.state.Position(inst)
		if pos == nil || pos.Quantity.IsZero() {
			continue
		}
		opens = append(opens, domain.OrderRequest{
			Instrument: inst,
			Side:       pos.Side.Opposite(),
			Kind:       domain.OrderMarket,
			Quantity:   pos.Quantity,
		})
	}
	return opens
}
