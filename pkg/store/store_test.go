package store

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/neikan-bsn/ares/pkg/model"
)

// newStoresUnderTest returns one of each Store implementation so the
// shared behavior suite below runs against both the memory and SQL
// backends side by side.
func newStoresUnderTest(t *testing.T) map[string]Store {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sqlStore, err := NewSQLStore(db, "sqlite3", slog.Default())
	require.NoError(t, err)

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sql":    sqlStore,
	}
}

func TestStoreSchemaVersionMatchesCurrent(t *testing.T) {
	for name, st := range newStoresUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			major, err := st.SchemaVersion(context.Background())
			require.NoError(t, err)
			require.Equal(t, CurrentSchemaMajor, major)
		})
	}
}

func TestStoreAgentRoundTripAndStateTransition(t *testing.T) {
	for name, st := range newStoresUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := model.Agent{
				ID:           model.AgentId("agent-1"),
				DisplayName:  "builder",
				Capabilities: []string{"filesystem", "network"},
				RegisteredAt: time.Now().UTC().Truncate(time.Second),
				State:        model.AgentActive,
			}
			require.NoError(t, st.PutAgent(ctx, a))

			got, err := st.GetAgent(ctx, a.ID)
			require.NoError(t, err)
			require.NotNil(t, got)
			require.Equal(t, a.DisplayName, got.DisplayName)
			require.ElementsMatch(t, a.Capabilities, got.Capabilities)
			require.Equal(t, model.AgentActive, got.State)

			hb := time.Now().UTC().Truncate(time.Second)
			require.NoError(t, st.SetAgentState(ctx, a.ID, model.AgentSuspended, hb))
			got, err = st.GetAgent(ctx, a.ID)
			require.NoError(t, err)
			require.Equal(t, model.AgentSuspended, got.State)

			_, err = st.GetAgent(ctx, model.AgentId("missing"))
			require.NoError(t, err)
		})
	}
}

func TestStoreSetAgentStateRejectsUnknownAgent(t *testing.T) {
	for name, st := range newStoresUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			err := st.SetAgentState(context.Background(), model.AgentId("ghost"), model.AgentSuspended, time.Now())
			require.Error(t, err)
		})
	}
}

func TestStoreTaskRoundTripAndStatusTransition(t *testing.T) {
	for name, st := range newStoresUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			task := model.Task{
				ID:          model.TaskId("task-1"),
				AgentID:     model.AgentId("agent-1"),
				Description: "write a file",
				CreatedAt:   time.Now().UTC().Truncate(time.Second),
				Status:      model.TaskOpen,
			}
			require.NoError(t, st.PutTask(ctx, task))

			got, err := st.GetTask(ctx, task.ID)
			require.NoError(t, err)
			require.NotNil(t, got)
			require.Equal(t, task.Description, got.Description)

			require.NoError(t, st.SetTaskStatus(ctx, task.ID, model.TaskPartial))
			got, err = st.GetTask(ctx, task.ID)
			require.NoError(t, err)
			require.Equal(t, model.TaskPartial, got.Status)
		})
	}
}

func TestStoreSetTaskStatusRejectsUnknownTask(t *testing.T) {
	for name, st := range newStoresUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			err := st.SetTaskStatus(context.Background(), model.TaskId("ghost"), model.TaskPartial)
			require.Error(t, err)
		})
	}
}

func TestStoreEvidenceAppendIsOrderedAndSummarized(t *testing.T) {
	for name, st := range newStoresUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			taskID := model.TaskId("task-evidence")
			items := []model.EvidenceItem{
				{ID: model.NewEvidenceId(), TaskID: taskID, Source: model.SourceOutput, Payload: map[string]any{"k": "v"}, Confidence: 0.9, CollectedAt: time.Now().UTC()},
				{ID: model.NewEvidenceId(), TaskID: taskID, Source: model.SourceSecurity, Payload: map[string]any{"k": "v"}, Confidence: 0.4, CollectedAt: time.Now().UTC()},
			}
			require.NoError(t, st.AppendEvidence(ctx, items))

			got, err := st.GetEvidence(ctx, taskID)
			require.NoError(t, err)
			require.Len(t, got, 2)

			summary, err := st.Summarize(ctx, taskID)
			require.NoError(t, err)
			require.Equal(t, 2, summary.Total)
			require.Equal(t, 0.4, summary.MinConfidence)
			require.Equal(t, 0.9, summary.MaxConfidence)
			require.InDelta(t, 0.65, summary.MeanConfidence, 0.001)
			require.Equal(t, 1, summary.CountBySource[model.SourceOutput])
			require.Equal(t, 1, summary.CountBySource[model.SourceSecurity])
		})
	}
}

func TestStoreSummarizeEmptyEvidenceIsZeroValue(t *testing.T) {
	for name, st := range newStoresUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			summary, err := st.Summarize(context.Background(), model.TaskId("no-evidence"))
			require.NoError(t, err)
			require.Equal(t, 0, summary.Total)
		})
	}
}

func TestStoreVerificationPutIfAbsentIsTerminal(t *testing.T) {
	for name, st := range newStoresUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			taskID := model.TaskId("task-verify")
			first := model.VerificationResult{
				ID: model.NewVerificationId(), TaskID: taskID, AgentID: "agent-1",
				Verdict: model.VerdictCompleted, OverallScore: 0.9, RecordedAt: time.Now().UTC(),
			}
			written, wrote, err := st.PutIfAbsent(ctx, first)
			require.NoError(t, err)
			require.True(t, wrote)
			require.Equal(t, first.ID, written.ID)

			second := first
			second.ID = model.NewVerificationId()
			second.Verdict = model.VerdictFailed
			written, wrote, err = st.PutIfAbsent(ctx, second)
			require.NoError(t, err)
			require.False(t, wrote)
			require.Equal(t, first.ID, written.ID, "terminal result must not be overwritten")

			got, err := st.GetVerification(ctx, taskID)
			require.NoError(t, err)
			require.Equal(t, model.VerdictCompleted, got.Verdict)
		})
	}
}

func TestStoreVerificationPutIfAbsentAllowsOverwriteOfNonTerminal(t *testing.T) {
	for name, st := range newStoresUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			taskID := model.TaskId("task-partial")
			partial := model.VerificationResult{
				ID: model.NewVerificationId(), TaskID: taskID, AgentID: "agent-1",
				Verdict: model.VerdictPartial, OverallScore: 0.5, RecordedAt: time.Now().UTC(),
			}
			_, wrote, err := st.PutIfAbsent(ctx, partial)
			require.NoError(t, err)
			require.True(t, wrote)

			completed := partial
			completed.ID = model.NewVerificationId()
			completed.Verdict = model.VerdictCompleted
			written, wrote, err := st.PutIfAbsent(ctx, completed)
			require.NoError(t, err)
			require.True(t, wrote)
			require.Equal(t, completed.ID, written.ID)
		})
	}
}

func TestStoreCheckpointGetOrCreateIsStableAndSavePersists(t *testing.T) {
	for name, st := range newStoresUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			taskID := model.TaskId("task-checkpoint")

			cp, err := st.GetOrCreate(ctx, taskID, "digest-1")
			require.NoError(t, err)
			require.Equal(t, taskID, cp.TaskID)

			again, err := st.GetOrCreate(ctx, taskID, "digest-2")
			require.NoError(t, err)
			require.Equal(t, cp.ID, again.ID, "GetOrCreate must not replace an existing checkpoint")

			cp.Append(model.CompensatingAction{Kind: model.ActionDeleteFile, Params: map[string]any{"path": "a.txt"}})
			require.NoError(t, st.Save(ctx, cp))

			reloaded, err := st.Get(ctx, taskID)
			require.NoError(t, err)
			require.Len(t, reloaded.Actions, 1)
		})
	}
}

func TestStoreReliabilityDefaultsThenPersists(t *testing.T) {
	for name, st := range newStoresUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			agentID := model.AgentId("agent-reliability")

			m, err := st.GetReliability(ctx, agentID)
			require.NoError(t, err)
			require.Equal(t, agentID, m.AgentID)
			require.Zero(t, m.SuccessRate)

			m.SuccessRate = 0.75
			m.WindowSize = 10
			m.LastUpdated = time.Now().UTC()
			require.NoError(t, st.PutReliability(ctx, m))

			got, err := st.GetReliability(ctx, agentID)
			require.NoError(t, err)
			require.Equal(t, 0.75, got.SuccessRate)
		})
	}
}

func TestStoreOutboxReadFromAndHighWaterMark(t *testing.T) {
	for name, st := range newStoresUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			events := []model.BusEvent{
				{Seq: 1, Kind: model.EventToolCallRecorded, TaskID: "t1", AgentID: "a1", TS: time.Now().UTC()},
				{Seq: 2, Kind: model.EventEvidenceCollected, TaskID: "t1", AgentID: "a1", TS: time.Now().UTC()},
				{Seq: 3, Kind: model.EventVerificationDone, TaskID: "t1", AgentID: "a1", TS: time.Now().UTC()},
			}
			require.NoError(t, st.AppendOutbox(ctx, events))

			depth, err := st.Depth(ctx)
			require.NoError(t, err)
			require.Equal(t, int64(3), depth)

			got, err := st.ReadFrom(ctx, 1, 10)
			require.NoError(t, err)
			require.Len(t, got, 2)
			require.Equal(t, uint64(2), got[0].Seq)
			require.Equal(t, uint64(3), got[1].Seq)

			limited, err := st.ReadFrom(ctx, 0, 2)
			require.NoError(t, err)
			require.Len(t, limited, 2)

			hwm, err := st.HighWaterMark(ctx)
			require.NoError(t, err)
			require.Equal(t, uint64(0), hwm)

			require.NoError(t, st.AdvanceHighWaterMark(ctx, 5))
			hwm, err = st.HighWaterMark(ctx)
			require.NoError(t, err)
			require.Equal(t, uint64(5), hwm)

			// advancing backwards must not regress the fence
			require.NoError(t, st.AdvanceHighWaterMark(ctx, 2))
			hwm, err = st.HighWaterMark(ctx)
			require.NoError(t, err)
			require.Equal(t, uint64(5), hwm)
		})
	}
}

func TestNewSQLStoreRejectsUnsupportedDialect(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = NewSQLStore(db, "mssql", slog.Default())
	require.ErrorContains(t, err, "unsupported dialect")
}
