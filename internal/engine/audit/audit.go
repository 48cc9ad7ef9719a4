// Package audit implements the audit pipeline of §4.9: a broadcast MPMC
// queue with a bounded per-consumer backlog. Slow consumers that fall
// behind are dropped and notified with LaggedBy(n); the Engine never
// blocks on a publish.
package audit

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/aristath/enginecore/internal/domain"
)

// DefaultBacklog is the default bounded backlog per subscriber.
const DefaultBacklog = 1024

// Delivery is one message handed to an audit consumer: either a tick or a
// lag notice, never both.
type Delivery struct {
	Tick *domain.AuditTick
	Lag  *domain.LaggedBy
}

type subscriber struct {
	id      uint64
	ch      chan Delivery
	dropped uint64
}

// Subscription is a live audit consumer's handle: C delivers ticks and lag
// notices; Snapshot/SnapshotSeq are the bootstrap state captured at
// Subscribe time (§4.9: "requesting the current seq and full snapshot via
// a side channel on startup").
type Subscription struct {
	id            uint64
	stream        *Stream
	C             <-chan Delivery
	Snapshot      domain.EngineStateSnapshot
	SnapshotSeq   uint64
}

// Close unsubscribes, releasing the consumer's backlog channel.
func (s *Subscription) Close() {
	s.stream.unsubscribe(s.id)
}

// Stream is the audit broadcast pipeline. The Engine is its only writer
// (NextSeq, then Publish); any number of consumers may Subscribe.
type Stream struct {
	log zerolog.Logger

	backlog int

	mu          sync.Mutex
	subscribers map[uint64]*subscriber
	nextSubID   uint64
	nextSeq     uint64

	latestSnapshot domain.EngineStateSnapshot
	latestSeq      uint64
	haveSnapshot   bool
}

// New builds a Stream with the given bounded per-subscriber backlog.
func New(log zerolog.Logger, backlog int) *Stream {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	return &Stream{
		log:         log.With().Str("component", "audit_stream").Logger(),
		backlog:     backlog,
		subscribers: make(map[uint64]*subscriber),
	}
}

// NextSeq allocates the next monotonic sequence number, consumed by the
// Engine when building an AuditTick.
func (s *Stream) NextSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.nextSeq
	s.nextSeq++
	return seq
}

// Publish broadcasts tick to every subscriber and records snapshot as the
// latest bootstrap point for subscribers that join afterward. It never
// blocks: a tick that does not fit a subscriber's full backlog is dropped
// and counted, and once the subscriber has room again it receives a
// LaggedBy notice with that count ahead of the next tick (which is itself
// dropped if the notice took the last free slot).
func (s *Stream) Publish(tick domain.AuditTick, snapshot domain.EngineStateSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latestSnapshot = snapshot
	s.latestSeq = tick.Seq
	s.haveSnapshot = true

	for _, sub := range s.subscribers {
		s.deliver(sub, tick)
	}
}

func (s *Stream) deliver(sub *subscriber, tick domain.AuditTick) {
	if sub.dropped > 0 {
		select {
		case sub.ch <- Delivery{Lag: &domain.LaggedBy{N: sub.dropped}}:
			sub.dropped = 0
		default:
			sub.dropped++
			s.log.Warn().Uint64("subscriber", sub.id).Uint64("dropped", sub.dropped).Msg("audit consumer still lagging, tick dropped")
			return
		}
	}

	tickCopy := tick
	select {
	case sub.ch <- Delivery{Tick: &tickCopy}:
	default:
		sub.dropped++
		s.log.Warn().Uint64("subscriber", sub.id).Msg("audit consumer backlog full, tick dropped")
	}
}

// Subscribe registers a new consumer and returns its bootstrap snapshot
// (§4.9) alongside the live delivery channel.
func (s *Stream) Subscribe() *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	sub := &subscriber{id: id, ch: make(chan Delivery, s.backlog)}
	s.subscribers[id] = sub

	return &Subscription{
		id:          id,
		stream:      s,
		C:           sub.ch,
		Snapshot:    s.latestSnapshot,
		SnapshotSeq: s.latestSeq,
	}
}

func (s *Stream) unsubscribe(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subscribers[id]; ok {
		close(sub.ch)
		delete(s.subscribers, id)
	}
}

// SubscriberCount reports the number of live consumers, for diagnostics.
func (s *Stream) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}
