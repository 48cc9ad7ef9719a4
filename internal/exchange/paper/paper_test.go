package paper

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/enginecore/internal/clock"
	"github.com/aristath/enginecore/internal/decimalx"
	"github.com/aristath/enginecore/internal/domain"
)

const testExchange = domain.ExchangeIndex(0)
const testInstrument = domain.InstrumentIndex(0)

func dec(s string) decimalx.Decimal {
	d, err := decimalx.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func recvEvent(t *testing.T, out <-chan domain.AccountEvent) domain.AccountEvent {
	t.Helper()
	select {
	case e := <-out:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for account event")
		return domain.AccountEvent{}
	}
}

func TestRun_LimitOrderOpensThenFillsAtOrderPrice(t *testing.T) {
	w := New(zerolog.Nop(), clock.NewManual(0), testExchange, nil)
	in := make(chan domain.ExecutionRequest, 2)
	out := make(chan domain.AccountEvent, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Run(ctx, in, out)

	in <- domain.NewOpenRequest(testExchange, domain.Order{
		ClientOrderID: 1,
		Instrument:    testInstrument,
		Side:          domain.SideBuy,
		Kind:          domain.OrderLimit,
		Price:         dec("20000"),
		Quantity:      dec("1.0"),
	})

	opened := recvEvent(t, out)
	require.Equal(t, domain.AccountOrderUpdate, opened.Kind)
	assert.Equal(t, domain.StateOpen, opened.OrderUpdate.State)

	filled := recvEvent(t, out)
	require.Equal(t, domain.AccountTrade, filled.Kind)
	assert.True(t, filled.Trade.Price.Equal(dec("20000")))
	assert.True(t, filled.Trade.Quantity.Equal(dec("1.0")))
}

func TestRun_MarketOrderFillsAtMarkPrice(t *testing.T) {
	mark := func(domain.InstrumentIndex) decimalx.Decimal { return dec("20500") }
	w := New(zerolog.Nop(), clock.NewManual(0), testExchange, mark)
	in := make(chan domain.ExecutionRequest, 2)
	out := make(chan domain.AccountEvent, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Run(ctx, in, out)

	in <- domain.NewOpenRequest(testExchange, domain.Order{
		ClientOrderID: 2,
		Instrument:    testInstrument,
		Side:          domain.SideSell,
		Kind:          domain.OrderMarket,
		Quantity:      dec("0.5"),
	})

	recvEvent(t, out) // open confirmation
	filled := recvEvent(t, out)
	require.Equal(t, domain.AccountTrade, filled.Kind)
	assert.True(t, filled.Trade.Price.Equal(dec("20500")))
}

func TestRun_CancelRequestConfirmsImmediately(t *testing.T) {
	w := New(zerolog.Nop(), clock.NewManual(0), testExchange, nil)
	in := make(chan domain.ExecutionRequest, 1)
	out := make(chan domain.AccountEvent, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Run(ctx, in, out)

	in <- domain.NewCancelRequest(testExchange, domain.ClientOrderID(7))

	cancelled := recvEvent(t, out)
	require.Equal(t, domain.AccountOrderUpdate, cancelled.Kind)
	assert.Equal(t, domain.StateCancelled, cancelled.OrderUpdate.State)
	assert.Equal(t, domain.ClientOrderID(7), cancelled.OrderUpdate.ClientOrderID)
}
