// Package bus implements the Coordination Bus (C9): an in-process
// publish/subscribe mechanism with a durable outbox, built so that a
// full subscriber queue never drops an event — the durable outbox is
// the authoritative log and in-memory channels are a low-latency
// overlay on top of it.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/neikan-bsn/ares/pkg/config"
	"github.com/neikan-bsn/ares/pkg/model"
	"github.com/neikan-bsn/ares/pkg/store"
)

const defaultSubscriberQueue = 10000

// Subscription is a live handle returned by Subscribe. Events arrives in
// publish order for the kinds requested (an empty kinds list matches
// everything). A subscriber that falls behind never loses events: it can
// always resume from Offset() via the Bus's ReadFrom-backed replay.
type Subscription struct {
	id     string
	kinds  map[model.EventKind]bool
	ch     chan model.BusEvent
	mu     sync.Mutex
	offset uint64
}

func (s *Subscription) Events() <-chan model.BusEvent { return s.ch }

func (s *Subscription) matches(kind model.EventKind) bool {
	if len(s.kinds) == 0 {
		return true
	}
	return s.kinds[kind]
}

// Ack records the highest offset the subscriber has durably processed,
// used to resume reads after a reconnect without losing events.
func (s *Subscription) Ack(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq > s.offset {
		s.offset = seq
	}
}

func (s *Subscription) Offset() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

// Bus is C9.
type Bus struct {
	mu          sync.Mutex
	seq         uint64
	subscribers map[string]*Subscription
	outbox      store.OutboxStore
	cfg         *config.Config
	log         *slog.Logger
	overloaded  bool
}

// New constructs a Bus, fencing its sequence counter from the stored
// high-water mark so a process restart never reuses a sequence number.
func New(ctx context.Context, outbox store.OutboxStore, cfg *config.Config, log *slog.Logger) (*Bus, error) {
	if log == nil {
		log = slog.Default()
	}
	hwm, err := outbox.HighWaterMark(ctx)
	if err != nil {
		return nil, fmt.Errorf("bus: loading high-water mark: %w", err)
	}
	return &Bus{
		seq:         hwm,
		subscribers: make(map[string]*Subscription),
		outbox:      outbox,
		cfg:         cfg,
		log:         log,
	}, nil
}

// Publish assigns the next sequence number, persists the event to the
// durable outbox, and fans it out to every matching subscriber's bounded
// channel on a best-effort (non-blocking) basis.
func (b *Bus) Publish(ctx context.Context, ev model.BusEvent) (model.BusEvent, error) {
	b.mu.Lock()
	b.seq++
	ev.Seq = b.seq
	seq := b.seq
	b.mu.Unlock()

	if err := b.outbox.AppendOutbox(ctx, []model.BusEvent{ev}); err != nil {
		return model.BusEvent{}, fmt.Errorf("bus: append outbox: %w", err)
	}
	if err := b.outbox.AdvanceHighWaterMark(ctx, seq); err != nil {
		return model.BusEvent{}, fmt.Errorf("bus: advance high-water mark: %w", err)
	}

	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		if !sub.matches(ev.Kind) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			b.log.Warn("bus: subscriber queue full, event remains available from outbox", "subscriber", sub.id, "seq", ev.Seq)
		}
	}

	b.updateOverloadState(ctx)
	return ev, nil
}

// Subscribe registers a live subscriber for the given event kinds
// (empty = all). Only events published after registration reach
// Events(); earlier ones are read from the outbox with Replay, called
// after Subscribe so that nothing published in between is missed (an
// event published in that gap may then arrive both ways).
func (b *Bus) Subscribe(id string, kinds []model.EventKind) *Subscription {
	kindSet := make(map[model.EventKind]bool, len(kinds))
	for _, k := range kinds {
		kindSet[k] = true
	}
	sub := &Subscription{id: id, kinds: kindSet, ch: make(chan model.BusEvent, defaultSubscriberQueue)}

	b.mu.Lock()
	b.subscribers[id] = sub
	b.mu.Unlock()
	return sub
}

func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, id)
}

// Replay returns durable outbox events after fromOffset, for a
// subscriber catching up from its last-acked offset.
func (b *Bus) Replay(ctx context.Context, fromOffset uint64, limit int) ([]model.BusEvent, error) {
	return b.outbox.ReadFrom(ctx, fromOffset, limit)
}

// updateOverloadState applies backpressure hysteresis: latches
// overloaded=true once depth exceeds outbox_high_water, clears it only
// once depth falls below outbox_low_water.
func (b *Bus) updateOverloadState(ctx context.Context) {
	depth, err := b.outbox.Depth(ctx)
	if err != nil {
		b.log.Error("bus: reading outbox depth", "error", err)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if depth > b.cfg.OutboxHighWater {
		b.overloaded = true
	} else if depth < b.cfg.OutboxLowWater {
		b.overloaded = false
	}
}

// IsOverloaded reports whether new collect/verify calls should be
// throttled. The Ledger and Checkpoint paths are never throttled and
// must not consult this.
func (b *Bus) IsOverloaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.overloaded
}
