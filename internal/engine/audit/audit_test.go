package audit

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/enginecore/internal/domain"
)

func newStream(backlog int) *Stream {
	return New(zerolog.Nop(), backlog)
}

func TestNextSeq_IsMonotonicAndGapFree(t *testing.T) {
	s := newStream(4)
	var seqs []uint64
	for i := 0; i < 5; i++ {
		seqs = append(seqs, s.NextSeq())
	}
	for i, seq := range seqs {
		assert.Equal(t, uint64(i), seq)
	}
}

func TestPublish_DeliversToSubscriber(t *testing.T) {
	s := newStream(4)
	sub := s.Subscribe()
	defer sub.Close()

	tick := domain.AuditTick{Seq: 0}
	s.Publish(tick, domain.EngineStateSnapshot{})

	delivery := <-sub.C
	require.NotNil(t, delivery.Tick)
	assert.Equal(t, uint64(0), delivery.Tick.Seq)
}

func TestPublish_LaggingSubscriberGetsLaggedByNotice(t *testing.T) {
	s := newStream(1)
	sub := s.Subscribe()
	defer sub.Close()

	// Fill the backlog (capacity 1), then push two more without draining:
	// both are dropped since the consumer never frees a slot.
	s.Publish(domain.AuditTick{Seq: 0}, domain.EngineStateSnapshot{})
	s.Publish(domain.AuditTick{Seq: 1}, domain.EngineStateSnapshot{})
	s.Publish(domain.AuditTick{Seq: 2}, domain.EngineStateSnapshot{})

	first := <-sub.C
	require.NotNil(t, first.Tick)
	assert.Equal(t, uint64(0), first.Tick.Seq)

	// Now that a slot is free, the next publish delivers the lag notice
	// (not the new tick) before any further ticks.
	s.Publish(domain.AuditTick{Seq: 3}, domain.EngineStateSnapshot{})

	second := <-sub.C
	require.NotNil(t, second.Lag, "subscriber fell behind and should receive LaggedBy before further ticks")
	assert.Equal(t, uint64(2), second.Lag.N)
}

func TestSubscribe_BootstrapsFromLatestSnapshot(t *testing.T) {
	s := newStream(4)

	snap := domain.EngineStateSnapshot{Trading: domain.TradingEnabled}
	s.Publish(domain.AuditTick{Seq: 5}, snap)

	sub := s.Subscribe()
	defer sub.Close()

	assert.Equal(t, uint64(5), sub.SnapshotSeq)
	assert.Equal(t, domain.TradingEnabled, sub.Snapshot.Trading)
}

func TestReplica_AppliesDeltasAndMatchesEngineState(t *testing.T) {
	s := newStream(16)
	sub := s.Subscribe()
	defer sub.Close()

	instrument := domain.InstrumentIndex(0)
	s.Publish(domain.AuditTick{
		Seq: 0,
		Delta: domain.StateDelta{
			MarketUpdated: &instrument,
			Market:        domain.MarketData{LastUpdateTimeExchange: 100},
		},
	}, domain.EngineStateSnapshot{})

	closed := domain.ClosedPosition{Instrument: instrument}
	s.Publish(domain.AuditTick{
		Seq: 1,
		Delta: domain.StateDelta{
			ClosedPositions: []domain.ClosedPosition{closed},
		},
	}, domain.EngineStateSnapshot{})

	replica := NewReplica(sub)
	for i := 0; i < 2; i++ {
		d := <-sub.C
		require.NotNil(t, d.Tick)
		replica.Apply(*d.Tick)
	}

	assert.Equal(t, uint64(1), replica.Seq())
	assert.Len(t, replica.State().ClosedPositions, 1)
	assert.Equal(t, int64(100), replica.State().Instruments[instrument].MarketData.LastUpdateTimeExchange)
}
