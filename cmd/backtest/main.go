// Command backtest drives the engine core over a hardcoded scripted
// event sequence through Iterator feed mode: open a position, let it
// fill, close it, print every audit tick to stdout, then dump the
// closed-position ledger and summary analytics. It is a demonstration
// harness, not a configurable backtest runner — a real one would read
// its event sequence from a historical market-data source instead of
// a literal slice.
package main

import (
	"fmt"

	"github.com/aristath/enginecore/internal/analytics"
	"github.com/aristath/enginecore/internal/clock"
	"github.com/aristath/enginecore/internal/decimalx"
	"github.com/aristath/enginecore/internal/domain"
	"github.com/aristath/enginecore/internal/engine"
	"github.com/aristath/enginecore/internal/engine/audit"
	"github.com/aristath/enginecore/internal/engine/execution"
	"github.com/aristath/enginecore/internal/registry"
	"github.com/aristath/enginecore/pkg/logger"
)

func buildRegistry() *registry.Registry {
	reg, err := registry.Build(
		[]registry.ExchangeSpec{{Name: "sim"}},
		[]registry.AssetSpec{
			{Exchange: "sim", Symbol: "BTC"},
			{Exchange: "sim", Symbol: "USD"},
		},
		[]registry.InstrumentSpec{
			{
				Exchange:     "sim",
				Base:         "BTC",
				Quote:        "USD",
				Kind:         domain.SpotKind(),
				PriceTick:    decimalx.NewFromFloat(0.01),
				QuantityTick: decimalx.NewFromFloat(0.0001),
			},
		},
	)
	if err != nil {
		panic(err)
	}
	return reg
}

func dec(s string) decimalx.Decimal {
	d, err := decimalx.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func main() {
	log := logger.New(logger.Config{Level: "info", Pretty: true})

	reg := buildRegistry()
	clk := clock.NewManual(0)
	inst := domain.InstrumentIndex(0)
	exch := domain.ExchangeIndex(0)

	state := engine.NewEngineState(reg, clk, domain.TradingDisabled, nil)
	execMgr := execution.New(log, []domain.ExchangeIndex{exch}, 1024)
	auditStream := audit.New(log, 256)

	eng := engine.New(log, state, clk, execMgr, auditStream)

	sub := auditStream.Subscribe()
	defer sub.Close()

	// The outbound channel is large enough to absorb this script's two
	// requests without a draining consumer; a live paper.Worker would
	// normally drain it and produce the fills this script supplies
	// directly instead.
	_, err := execMgr.Outbound(exch)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to wire outbound channel")
	}

	go printTicks(sub.C)

	script := scriptedEvents(inst, exch)

	for _, step := range script {
		eng.RunIterator(engine.NewSliceIterator([]domain.EngineEvent{step}))
	}

	fmt.Println("\n--- closed positions ---")
	for _, cp := range state.ClosedPositions() {
		fmt.Printf("instrument=%d side=%s qty=%s avg=%s exit=%s pnl=%s fees=%s\n",
			cp.Instrument, cp.Side, cp.Quantity, cp.AveragePrice, cp.ExitPrice, cp.RealizedPnL, cp.Fees)
	}

	report := analytics.Summarize(state.ClosedPositions(), 0)
	fmt.Println("\n--- summary ---")
	fmt.Printf("trades=%d wins=%d losses=%d win_rate=%.2f net_pnl=%.2f sharpe=%.4f\n",
		report.TradeCount, report.WinCount, report.LossCount, report.WinRate, report.NetPnL, report.SharpeRatio)
}

func scriptedEvents(inst domain.InstrumentIndex, exch domain.ExchangeIndex) []domain.EngineEvent {
	open := domain.SendOpenRequests([]domain.OrderRequest{{
		Instrument: inst,
		Side:       domain.SideBuy,
		Kind:       domain.OrderMarket,
		Quantity:   dec("1.0"),
	}})

	fillOpen := domain.AccountEvent{
		Kind:     domain.AccountTrade,
		Exchange: exch,
		Trade: domain.Trade{
			ClientOrderID: 1,
			Instrument:    inst,
			Side:          domain.SideBuy,
			Price:         dec("20000"),
			Quantity:      dec("1.0"),
			Fee:           dec("10"),
		},
	}

	closeCmd := domain.ClosePositionsCommand(domain.NoFilter())

	fillClose := domain.AccountEvent{
		Kind:     domain.AccountTrade,
		Exchange: exch,
		Trade: domain.Trade{
			ClientOrderID: 2,
			Instrument:    inst,
			Side:          domain.SideSell,
			Price:         dec("20100"),
			Quantity:      dec("1.0"),
			Fee:           dec("10"),
		},
	}

	return []domain.EngineEvent{
		domain.CommandEngineEvent(open),
		domain.AccountEngineEvent(fillOpen),
		domain.CommandEngineEvent(closeCmd),
		domain.AccountEngineEvent(fillClose),
		domain.ShutdownEngineEvent(),
	}
}

func printTicks(c <-chan audit.Delivery) {
	for d := range c {
		if d.Tick != nil {
			fmt.Printf("tick seq=%d kind=%d shutdown=%v errors=%d orders=%d\n",
				d.Tick.Seq, d.Tick.Event.Kind, d.Tick.Shutdown, len(d.Tick.Delta.Errors), len(d.Tick.Delta.OrderUpserts))
		} else if d.Lag != nil {
			fmt.Printf("lagged by %d\n", d.Lag.N)
		}
	}
}
