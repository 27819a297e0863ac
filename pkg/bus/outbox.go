package bus

import (
	"context"
	"time"

	"github.com/neikan-bsn/ares/pkg/model"
)

// NewEvent builds an envelope ready for Publish; Seq is assigned by the
// Bus itself.
func NewEvent(kind model.EventKind, taskID model.TaskId, agentID model.AgentId, payload map[string]any, now time.Time) model.BusEvent {
	if payload == nil {
		payload = map[string]any{}
	}
	return model.BusEvent{Kind: kind, TaskID: taskID, AgentID: agentID, TS: now, Payload: payload}
}

// Drain replays every durable event after fromOffset in batches of
// limit, invoking handle for each in order, and returns the last offset
// seen — the resume-from-outbox path for a subscriber recovering after
// a disconnect.
func (b *Bus) Drain(ctx context.Context, fromOffset uint64, limit int, handle func(model.BusEvent) error) (uint64, error) {
	offset := fromOffset
	for {
		events, err := b.Replay(ctx, offset, limit)
		if err != nil {
			return offset, err
		}
		if len(events) == 0 {
			return offset, nil
		}
		for _, ev := range events {
			if err := handle(ev); err != nil {
				return offset, err
			}
			offset = ev.Seq
		}
		if len(events) < limit {
			return offset, nil
		}
	}
}
