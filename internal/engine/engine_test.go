package engine

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/enginecore/internal/clock"
	"github.com/aristath/enginecore/internal/domain"
	"github.com/aristath/enginecore/internal/engine/audit"
	"github.com/aristath/enginecore/internal/engine/execution"
	"github.com/aristath/enginecore/internal/enginetest"
)

func newHarness(t *testing.T, opts ...Option) (*Engine, *execution.Manager, *audit.Stream) {
	t.Helper()
	reg := enginetest.NewRegistry()
	clk := clock.NewManual(0)
	state := NewEngineState(reg, clk, domain.TradingDisabled, nil)
	execMgr := execution.New(zerolog.Nop(), []domain.ExchangeIndex{enginetest.Exchange}, 1024)
	auditStream := audit.New(zerolog.Nop(), 64)
	e := New(zerolog.Nop(), state, clk, execMgr, auditStream, opts...)
	return e, execMgr, auditStream
}

// TestEngine_Scenario1_OpenFillCloseRealizesNetPnL drives the canonical
// open -> fill -> ClosePositions -> fill lifecycle and asserts the closed
// position realizes +80 (100 price delta, 20 fees), with the default
// close fallback synthesizing a single opposite-side market order sized
// to the full position quantity.
func TestEngine_Scenario1_OpenFillCloseRealizesNetPnL(t *testing.T) {
	e, execMgr, auditStream := newHarness(t)
	sub := auditStream.Subscribe()
	defer sub.Close()

	outbound, err := execMgr.Outbound(enginetest.Exchange)
	require.NoError(t, err)

	open := domain.SendOpenRequests([]domain.OrderRequest{{
		Instrument: enginetest.Instrument,
		Side:       domain.SideBuy,
		Kind:       domain.OrderMarket,
		Quantity:   enginetest.Dec("1.0"),
	}})
	e.processEvent(domain.CommandEngineEvent(open))

	openReq := <-outbound
	require.Equal(t, domain.ExecutionOpen, openReq.Kind)
	assert.Equal(t, domain.ClientOrderID(1), openReq.Order.ClientOrderID)

	e.processEvent(domain.AccountEngineEvent(domain.AccountEvent{
		Kind:     domain.AccountTrade,
		Exchange: enginetest.Exchange,
		Trade: domain.Trade{
			ClientOrderID: 1,
			Instrument:    enginetest.Instrument,
			Side:          domain.SideBuy,
			Price:         enginetest.Dec("20000"),
			Quantity:      enginetest.Dec("1.0"),
			Fee:           enginetest.Dec("10"),
		},
	}))

	pos := e.State().Position(enginetest.Instrument)
	require.NotNil(t, pos)
	assert.True(t, pos.Quantity.Equal(enginetest.Dec("1.0")))

	close := domain.ClosePositionsCommand(domain.NoFilter())
	e.processEvent(domain.CommandEngineEvent(close))

	closeReq := <-outbound
	require.Equal(t, domain.ExecutionOpen, closeReq.Kind)
	assert.Equal(t, domain.SideSell, closeReq.Order.Side)
	assert.True(t, closeReq.Order.Quantity.Equal(enginetest.Dec("1.0")))

	e.processEvent(domain.AccountEngineEvent(domain.AccountEvent{
		Kind:     domain.AccountTrade,
		Exchange: enginetest.Exchange,
		Trade: domain.Trade{
			ClientOrderID: closeReq.Order.ClientOrderID,
			Instrument:    enginetest.Instrument,
			Side:          domain.SideSell,
			Price:         enginetest.Dec("20100"),
			Quantity:      enginetest.Dec("1.0"),
			Fee:           enginetest.Dec("10"),
		},
	}))

	closed := e.State().ClosedPositions()
	require.Len(t, closed, 1)
	assert.True(t, closed[0].RealizedPnL.Equal(enginetest.Dec("80")), "want net realized pnl of 80, got %s", closed[0].RealizedPnL)
	assert.Nil(t, e.State().Position(enginetest.Instrument))
}

// TestEngine_Scenario2_RepeatedOpenRequestsGetDistinctClientOrderIDs is
// the Engine-level counterpart of the ordermanager duplicate-id test: the
// Engine issues ids itself, so two identical OrderRequests in one command
// are both opened, each under a fresh, distinct client_order_id.
func TestEngine_Scenario2_RepeatedOpenRequestsGetDistinctClientOrderIDs(t *testing.T) {
	e, execMgr, _ := newHarness(t)
	outbound, err := execMgr.Outbound(enginetest.Exchange)
	require.NoError(t, err)

	req := domain.OrderRequest{Instrument: enginetest.Instrument, Side: domain.SideBuy, Kind: domain.OrderMarket, Quantity: enginetest.Dec("1.0")}
	e.processEvent(domain.CommandEngineEvent(domain.SendOpenRequests([]domain.OrderRequest{req, req})))

	first := <-outbound
	second := <-outbound
	assert.NotEqual(t, first.Order.ClientOrderID, second.Order.ClientOrderID)
}

// TestEngine_Scenario3_ReconnectSnapshotReconciliation matches the
// Reconnecting -> Snapshot sequence: orders absent from the snapshot are
// cancelled MissingFromSnapshot, and an order present only on the
// exchange is adopted.
func TestEngine_Scenario3_ReconnectSnapshotReconciliation(t *testing.T) {
	e, execMgr, _ := newHarness(t)
	outbound, err := execMgr.Outbound(enginetest.Exchange)
	require.NoError(t, err)

	e.processEvent(domain.CommandEngineEvent(domain.SendOpenRequests([]domain.OrderRequest{
		{Instrument: enginetest.Instrument, Side: domain.SideBuy, Kind: domain.OrderMarket, Quantity: enginetest.Dec("1.0")},
	})))
	opened := <-outbound
	e.processEvent(domain.AccountEngineEvent(domain.AccountEvent{
		Kind: domain.AccountOrderUpdate, Exchange: enginetest.Exchange,
		OrderUpdate: domain.OrderUpdate{ClientOrderID: opened.Order.ClientOrderID, Instrument: enginetest.Instrument, State: domain.StateOpen},
	}))

	e.processEvent(domain.AccountEngineEvent(domain.AccountEvent{
		Kind: domain.AccountConnectivity, Exchange: enginetest.Exchange, Connectivity: domain.Reconnecting,
	}))

	e.processEvent(domain.AccountEngineEvent(domain.AccountEvent{
		Kind:     domain.AccountSnapshot,
		Exchange: enginetest.Exchange,
		SnapshotOrders: []domain.OpenOrderSnapshotEntry{
			{ClientOrderID: 999, Instrument: enginetest.Instrument, Side: domain.SideSell, Kind: domain.OrderLimit, Price: enginetest.Dec("21000"), Quantity: enginetest.Dec("0.5")},
		},
	}))

	om, err := e.State().OrderManager(enginetest.Instrument)
	require.NoError(t, err)

	cancelled, ok := om.Order(opened.Order.ClientOrderID)
	require.True(t, ok)
	assert.Equal(t, domain.StateCancelled, cancelled.State)
	assert.Equal(t, domain.CancelReasonMissingFromSnapshot, cancelled.CancelReason)

	adopted, ok := om.Order(999)
	require.True(t, ok)
	assert.Equal(t, domain.StateOpen, adopted.State)
	assert.Equal(t, domain.OriginAdopted, adopted.Origin)
}

// TestEngine_Scenario4_FlipOnOverfillMatchesPositionPackage exercises the
// same flip-on-overfill path through the full Engine, confirming position
// accounting flows unchanged from the package-level test.
func TestEngine_Scenario4_FlipOnOverfillMatchesPositionPackage(t *testing.T) {
	e, execMgr, _ := newHarness(t)
	outbound, err := execMgr.Outbound(enginetest.Exchange)
	require.NoError(t, err)

	e.processEvent(domain.CommandEngineEvent(domain.SendOpenRequests([]domain.OrderRequest{
		{Instrument: enginetest.Instrument, Side: domain.SideBuy, Kind: domain.OrderMarket, Quantity: enginetest.Dec("1.0")},
	})))
	opened := <-outbound

	e.processEvent(domain.AccountEngineEvent(domain.AccountEvent{
		Kind: domain.AccountTrade, Exchange: enginetest.Exchange,
		Trade: domain.Trade{ClientOrderID: opened.Order.ClientOrderID, Instrument: enginetest.Instrument, Side: domain.SideBuy, Price: enginetest.Dec("20000"), Quantity: enginetest.Dec("1.0")},
	}))

	e.processEvent(domain.CommandEngineEvent(domain.SendOpenRequests([]domain.OrderRequest{
		{Instrument: enginetest.Instrument, Side: domain.SideSell, Kind: domain.OrderMarket, Quantity: enginetest.Dec("1.5")},
	})))
	flipReq := <-outbound

	e.processEvent(domain.AccountEngineEvent(domain.AccountEvent{
		Kind: domain.AccountTrade, Exchange: enginetest.Exchange,
		Trade: domain.Trade{ClientOrderID: flipReq.Order.ClientOrderID, Instrument: enginetest.Instrument, Side: domain.SideSell, Price: enginetest.Dec("20050"), Quantity: enginetest.Dec("1.5")},
	}))

	closed := e.State().ClosedPositions()
	require.Len(t, closed, 1)
	assert.True(t, closed[0].RealizedPnL.Equal(enginetest.Dec("50")))

	residual := e.State().Position(enginetest.Instrument)
	require.NotNil(t, residual)
	assert.Equal(t, domain.SideSell, residual.Side)
	assert.True(t, residual.Quantity.Equal(enginetest.Dec("0.5")))
}

// TestEngine_Scenario5_AuditReplicaMatchesEngineState drives a handful of
// events through the Engine while a Replica consumes the audit stream,
// and asserts the replica's reconstructed position and order state match
// EngineState exactly.
func TestEngine_Scenario5_AuditReplicaMatchesEngineState(t *testing.T) {
	e, execMgr, auditStream := newHarness(t)
	sub := auditStream.Subscribe()
	defer sub.Close()
	outbound, err := execMgr.Outbound(enginetest.Exchange)
	require.NoError(t, err)

	events := []domain.EngineEvent{
		domain.MarketEngineEvent(domain.MarketEvent{Instrument: enginetest.Instrument, BestBid: enginetest.Dec("19999"), BestAsk: enginetest.Dec("20001"), TimeExchange: 1}),
		domain.CommandEngineEvent(domain.SendOpenRequests([]domain.OrderRequest{
			{Instrument: enginetest.Instrument, Side: domain.SideBuy, Kind: domain.OrderMarket, Quantity: enginetest.Dec("1.0")},
		})),
	}
	for _, ev := range events {
		e.processEvent(ev)
	}
	opened := <-outbound
	e.processEvent(domain.AccountEngineEvent(domain.AccountEvent{
		Kind: domain.AccountTrade, Exchange: enginetest.Exchange,
		Trade: domain.Trade{ClientOrderID: opened.Order.ClientOrderID, Instrument: enginetest.Instrument, Side: domain.SideBuy, Price: enginetest.Dec("20000"), Quantity: enginetest.Dec("1.0")},
	}))

	replica := audit.NewReplica(sub)
	for i := 0; i < 3; i++ {
		d := <-sub.C
		if d.Tick != nil {
			replica.Apply(*d.Tick)
		}
	}

	engineSnapshot := e.State().Snapshot()
	replicaSnapshot := replica.State()

	assert.Equal(t, engineSnapshot.Instruments[enginetest.Instrument].Position.Quantity.String(),
		replicaSnapshot.Instruments[enginetest.Instrument].Position.Quantity.String())
	assert.Equal(t, engineSnapshot.Instruments[enginetest.Instrument].MarketData.LastUpdateTimeExchange,
		replicaSnapshot.Instruments[enginetest.Instrument].MarketData.LastUpdateTimeExchange)
}

// TestEngine_Scenario6_ShutdownDrainsAndEmitsFinalTick fires 100 command
// events through the Engine followed by Shutdown, and asserts every
// execution request reached the outbound channel before CloseAll and the
// final audit tick is flagged Shutdown.
func TestEngine_Scenario6_ShutdownDrainsAndEmitsFinalTick(t *testing.T) {
	e, execMgr, auditStream := newHarness(t)
	sub := auditStream.Subscribe()
	defer sub.Close()
	outbound, err := execMgr.Outbound(enginetest.Exchange)
	require.NoError(t, err)

	const n = 100
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < n; i++ {
			e.processEvent(domain.CommandEngineEvent(domain.SendOpenRequests([]domain.OrderRequest{
				{Instrument: enginetest.Instrument, Side: domain.SideBuy, Kind: domain.OrderMarket, Quantity: enginetest.Dec("0.01")},
			})))
		}
		e.processEvent(domain.ShutdownEngineEvent())
	}()

	received := 0
	var sawShutdown bool
	pending := outbound
	for !sawShutdown {
		select {
		case req, ok := <-pending:
			if !ok {
				pending = nil // CloseAll happened; stop selecting this case
				continue
			}
			_ = req
			received++
		case d := <-sub.C:
			if d.Tick != nil && d.Tick.Shutdown {
				sawShutdown = true
			}
		}
	}
	// The shutdown tick can be read before every buffered request; drain
	// the rest until CloseAll closes the channel.
	if pending != nil {
		for range pending {
			received++
		}
	}
	<-done

	assert.Equal(t, n, received)
	assert.True(t, sawShutdown)
}
