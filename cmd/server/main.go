package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/enginecore/internal/analytics"
	"github.com/aristath/enginecore/internal/clock"
	"github.com/aristath/enginecore/internal/config"
	"github.com/aristath/enginecore/internal/decimalx"
	"github.com/aristath/enginecore/internal/domain"
	"github.com/aristath/enginecore/internal/engine"
	"github.com/aristath/enginecore/internal/engine/audit"
	"github.com/aristath/enginecore/internal/engine/execution"
	"github.com/aristath/enginecore/internal/exchange/paper"
	"github.com/aristath/enginecore/internal/maintenance"
	"github.com/aristath/enginecore/internal/registry"
	"github.com/aristath/enginecore/internal/server"
	"github.com/aristath/enginecore/pkg/logger"
)

// defaultRegistry describes the instrument universe this process trades
// when no richer configuration source is wired in. A real deployment
// would load exchanges/assets/instruments from its settings store, the
// way the teacher's universe module does; the engine core only needs a
// built Registry, not an opinion about where it comes from.
func defaultRegistry() *registry.Registry {
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

func main() {
	log := logger.New(logger.Config{Level: "info", Pretty: true})
	log.Info().Msg("starting engine core")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	log = logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	reg := defaultRegistry()
	clk := clock.Real{}

	state := engine.NewEngineState(reg, clk, cfg.TradingStateInitial, nil)
	execMgr := execution.New(log, exchangeIndices(reg), cfg.ExecBackpressureHighWater)
	auditStream := audit.New(log, cfg.AuditChannelCapacity)

	eng := engine.New(log, state, clk, execMgr, auditStream,
		engine.WithCommandPriority(cfg.CommandPriority),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	marketCh := make(chan domain.MarketEvent, 4096)
	accountCh := make(chan domain.AccountEvent, 4096)
	commandCh := make(chan domain.Command, 256)
	tradingCh := make(chan domain.TradingState, 8)

	markPrice := func(inst domain.InstrumentIndex) decimalx.Decimal {
		snap := state.Snapshot()
		md, ok := snap.Instruments[inst]
		if !ok {
			return decimalx.Zero
		}
		sum, overflowed := md.MarketData.BestBid.Add(md.MarketData.BestAsk)
		if overflowed {
			return decimalx.Zero
		}
		mid, _ := sum.Div(decimalx.NewFromInt(2))
		return mid
	}

	for _, ex := range exchangeIndices(reg) {
		outbound, err := execMgr.Outbound(ex)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to wire paper exchange outbound channel")
		}
		worker := paper.New(log, clk, ex, markPrice)
		go worker.Run(ctx, outbound, accountCh)
	}

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		eng.RunChannel(ctx, marketCh, accountCh, commandCh, tradingCh)
	}()

	sched := maintenance.NewScheduler(log)
	sweep := maintenance.NewGhostSweepJob(log, state, clk, cfg.OrderReconcileTimeout.Nanoseconds())
	if err := sched.AddJob(fmt.Sprintf("@every %s", cfg.GhostSweepInterval), sweep); err != nil {
		log.Fatal().Err(err).Msg("failed to register ghost sweep job")
	}
	sched.Start()
	defer sched.Stop()

	httpServer := server.New(server.Config{
		Log:   log,
		Port:  cfg.HTTPPort,
		Audit: auditStream,
	})
	go func() {
		if err := httpServer.ListenAndServe(); err != nil {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()
	log.Info().Int("port", cfg.HTTPPort).Msg("http server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel() // RunChannel observes ctx.Done() and processes a Shutdown event itself
	<-engineDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server forced to shutdown")
	}

	report := analytics.Summarize(state.ClosedPositions(), cfg.RiskFreeReturn)
	log.Info().
		Int("trades", report.TradeCount).
		Float64("net_pnl", report.NetPnL).
		Float64("sharpe", report.SharpeRatio).
		Msg("session summary")

	log.Info().Msg("stopped")
}

func exchangeIndices(reg *registry.Registry) []domain.ExchangeIndex {
	out := make([]domain.ExchangeIndex, reg.NumExchanges())
	for i := range out {
		out[i] = domain.ExchangeIndex(i)
	}
	return out
}
