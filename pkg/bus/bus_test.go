package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/neikan-bsn/ares/pkg/config"
	"github.com/neikan-bsn/ares/pkg/model"
	"github.com/neikan-bsn/ares/pkg/store"
)

func testCfg() *config.Config {
	cfg := config.Default()
	cfg.OutboxHighWater = 5
	cfg.OutboxLowWater = 2
	return cfg
}

func TestPublishAssignsIncreasingSequenceNumbers(t *testing.T) {
	st := store.NewMemoryStore()
	b, err := New(context.Background(), st, testCfg(), nil)
	require.NoError(t, err)

	ev1, err := b.Publish(context.Background(), NewEvent(model.EventToolCallRecorded, "task-1", "agent-1", nil, time.Now()))
	require.NoError(t, err)
	ev2, err := b.Publish(context.Background(), NewEvent(model.EventEvidenceCollected, "task-1", "agent-1", nil, time.Now()))
	require.NoError(t, err)

	require.Equal(t, uint64(1), ev1.Seq)
	require.Equal(t, uint64(2), ev2.Seq)
}

func TestNewFencesSequenceFromStoredHighWaterMark(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.AdvanceHighWaterMark(context.Background(), 41))

	b, err := New(context.Background(), st, testCfg(), nil)
	require.NoError(t, err)

	ev, err := b.Publish(context.Background(), NewEvent(model.EventToolCallRecorded, "task-1", "agent-1", nil, time.Now()))
	require.NoError(t, err)
	require.Equal(t, uint64(42), ev.Seq)
}

func TestSubscribeOnlyReceivesMatchingKinds(t *testing.T) {
	st := store.NewMemoryStore()
	b, err := New(context.Background(), st, testCfg(), nil)
	require.NoError(t, err)

	sub := b.Subscribe("sub-1", []model.EventKind{model.EventVerificationDone})

	_, err = b.Publish(context.Background(), NewEvent(model.EventToolCallRecorded, "task-1", "agent-1", nil, time.Now()))
	require.NoError(t, err)
	_, err = b.Publish(context.Background(), NewEvent(model.EventVerificationDone, "task-1", "agent-1", nil, time.Now()))
	require.NoError(t, err)

	select {
	case ev := <-sub.Events():
		require.Equal(t, model.EventVerificationDone, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected a matching event")
	}

	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected second event: %+v", ev)
	default:
	}
}

func TestSubscribeWithNoKindsMatchesEverything(t *testing.T) {
	st := store.NewMemoryStore()
	b, err := New(context.Background(), st, testCfg(), nil)
	require.NoError(t, err)

	sub := b.Subscribe("sub-1", nil)
	_, err = b.Publish(context.Background(), NewEvent(model.EventAnomalyDetected, "task-1", "agent-1", nil, time.Now()))
	require.NoError(t, err)

	select {
	case ev := <-sub.Events():
		require.Equal(t, model.EventAnomalyDetected, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected event on wildcard subscription")
	}
}

func TestUnsubscribeStopsFanOut(t *testing.T) {
	st := store.NewMemoryStore()
	b, err := New(context.Background(), st, testCfg(), nil)
	require.NoError(t, err)

	sub := b.Subscribe("sub-1", nil)
	b.Unsubscribe("sub-1")

	_, err = b.Publish(context.Background(), NewEvent(model.EventToolCallRecorded, "task-1", "agent-1", nil, time.Now()))
	require.NoError(t, err)

	select {
	case ev, ok := <-sub.Events():
		if ok {
			t.Fatalf("unexpected event after unsubscribe: %+v", ev)
		}
	default:
	}
}

func TestReplayReturnsEventsAfterOffset(t *testing.T) {
	st := store.NewMemoryStore()
	b, err := New(context.Background(), st, testCfg(), nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := b.Publish(context.Background(), NewEvent(model.EventToolCallRecorded, "task-1", "agent-1", nil, time.Now()))
		require.NoError(t, err)
	}

	events, err := b.Replay(context.Background(), 1, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, uint64(2), events[0].Seq)
	require.Equal(t, uint64(3), events[1].Seq)
}

func TestAckTracksHighestOffset(t *testing.T) {
	st := store.NewMemoryStore()
	b, err := New(context.Background(), st, testCfg(), nil)
	require.NoError(t, err)

	sub := b.Subscribe("sub-1", nil)
	require.Zero(t, sub.Offset())
	sub.Ack(5)
	sub.Ack(3)
	require.EqualValues(t, 5, sub.Offset())
}

func TestOverloadLatchesAndClearsWithHysteresis(t *testing.T) {
	st := store.NewMemoryStore()
	cfg := testCfg()
	b, err := New(context.Background(), st, cfg, nil)
	require.NoError(t, err)

	require.False(t, b.IsOverloaded())

	for i := int64(0); i < cfg.OutboxHighWater+1; i++ {
		_, err := b.Publish(context.Background(), NewEvent(model.EventToolCallRecorded, "task-1", "agent-1", nil, time.Now()))
		require.NoError(t, err)
	}
	require.True(t, b.IsOverloaded())

	// Depth is still above the low-water mark, so overload must stay
	// latched even though it's now under the high-water mark.
	st.SetOutboxDepthForTest(cfg.OutboxLowWater + 1)
	_, err = b.Publish(context.Background(), NewEvent(model.EventToolCallRecorded, "task-1", "agent-1", nil, time.Now()))
	require.NoError(t, err)
	require.True(t, b.IsOverloaded())

	st.SetOutboxDepthForTest(0)
	_, err = b.Publish(context.Background(), NewEvent(model.EventToolCallRecorded, "task-1", "agent-1", nil, time.Now()))
	require.NoError(t, err)
	require.False(t, b.IsOverloaded())
}

func TestDrainInvokesHandlerInOrderAndReturnsLastOffset(t *testing.T) {
	st := store.NewMemoryStore()
	b, err := New(context.Background(), st, testCfg(), nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := b.Publish(context.Background(), NewEvent(model.EventToolCallRecorded, "task-1", "agent-1", nil, time.Now()))
		require.NoError(t, err)
	}

	var seen []uint64
	last, err := b.Drain(context.Background(), 0, 2, func(ev model.BusEvent) error {
		seen = append(seen, ev.Seq)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, uint64(3), last)
	require.Equal(t, []uint64{1, 2, 3}, seen)
}
