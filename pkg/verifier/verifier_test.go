package verifier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/neikan-bsn/ares/pkg/config"
	"github.com/neikan-bsn/ares/pkg/model"
	"github.com/neikan-bsn/ares/pkg/store"
)

// requirementsDescription and the file paths seedFullEvidence attaches
// share the substrings "test" and "readme" so the Requirements-Match
// strategy's evidence-haystack check (which matches against OUTPUT/
// CODE_ARTIFACT file paths, not the description text itself) finds both.
const requirementsDescription = "the agent must add a test and a readme"

func fullEvidenceCfg() *config.Config {
	cfg := config.Default()
	cfg.RequirementsVocabulary = []string{"test", "readme"}
	return cfg
}

func seedFullEvidence(t *testing.T, st *store.MemoryStore, taskID model.TaskId) {
	t.Helper()
	completeness, accuracy, errHandling := 0.9, 0.95, 0.9
	formatOK := true
	execTime, memUsage, errRate := 100.0, 50.0, 0.0

	items := []model.EvidenceItem{
		{
			ID: model.NewEvidenceId(), TaskID: taskID, Source: model.SourceOutput, Confidence: 1,
			Payload: &model.OutputPayload{
				FilesCreated:       []string{"main_test.go", "readme.md"},
				CompletenessScore:  &completeness,
				AccuracyScore:      &accuracy,
				FormatCompliance:   &formatOK,
				ErrorHandlingScore: &errHandling,
			},
			CollectedAt: time.Now().UTC(),
		},
		{
			ID: model.NewEvidenceId(), TaskID: taskID, Source: model.SourcePerformance, Confidence: 1,
			Payload: &model.PerformancePayload{
				ExecutionTimeMs: &execTime,
				MemoryUsageMB:   &memUsage,
				ErrorRate:       &errRate,
			},
			CollectedAt: time.Now().UTC(),
		},
	}
	require.NoError(t, st.AppendEvidence(context.Background(), items))
}

func TestPipelineRunReturnsResultsInStrategyDeclarationOrder(t *testing.T) {
	p := NewPipeline(DefaultStrategies(), 4)
	in := Input{TaskDescription: "", Evidence: nil, Summary: model.EvidenceSummary{}, Cfg: config.Default()}
	details, err := p.Run(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, details, 4)
	require.Equal(t, "output_quality", details[0].Name)
	require.Equal(t, "requirements_match", details[1].Name)
	require.Equal(t, "performance", details[2].Name)
	require.Equal(t, "security", details[3].Name)
}

func TestVerifyCompletedWhenAllStrategiesPassAboveCompletionMin(t *testing.T) {
	cfg := fullEvidenceCfg()
	st := store.NewMemoryStore()
	taskID := model.TaskId("task-1")
	seedFullEvidence(t, st, taskID)

	v := New(st, st, cfg, 4)
	res, err := v.Verify(context.Background(), taskID, "agent-1", requirementsDescription)
	require.NoError(t, err)
	require.Equal(t, model.VerdictCompleted, res.Verdict)
	require.NotZero(t, res.OverallScore)
	require.Len(t, res.Strategies, 4)
}

func TestVerifyWithNoEvidenceFailsImmediately(t *testing.T) {
	cfg := config.Default()
	st := store.NewMemoryStore()
	v := New(st, st, cfg, 4)

	res, err := v.Verify(context.Background(), "task-empty", "agent-1", "")
	require.NoError(t, err)
	require.Equal(t, model.VerdictFailed, res.Verdict)
	require.Equal(t, "no evidence", res.Reason)
}

func TestVerifySecurityHardFailOverridesOtherwisePassingScores(t *testing.T) {
	cfg := fullEvidenceCfg()
	st := store.NewMemoryStore()
	taskID := model.TaskId("task-security")
	seedFullEvidence(t, st, taskID)

	require.NoError(t, st.AppendEvidence(context.Background(), []model.EvidenceItem{
		{
			ID: model.NewEvidenceId(), TaskID: taskID, Source: model.SourceSecurity,
			Confidence: cfg.SecurityAlarmMin + 0.01,
			Payload:    &model.SecurityPayload{Matched: "sk-test", Location: "tool_calls[0]", Severity: 1},
			CollectedAt: time.Now().UTC(),
		},
	}))

	v := New(st, st, cfg, 4)
	res, err := v.Verify(context.Background(), taskID, "agent-1", requirementsDescription)
	require.NoError(t, err)
	require.Equal(t, model.VerdictFailed, res.Verdict)
	require.Equal(t, "security dimension failed", res.Reason)
}

func TestVerifyDuplicateCallOnTerminalResultReturnsSameResultUnchanged(t *testing.T) {
	cfg := fullEvidenceCfg()
	st := store.NewMemoryStore()
	taskID := model.TaskId("task-dup")
	seedFullEvidence(t, st, taskID)

	v := New(st, st, cfg, 4)
	first, err := v.Verify(context.Background(), taskID, "agent-1", requirementsDescription)
	require.NoError(t, err)
	require.Equal(t, model.VerdictCompleted, first.Verdict)

	second, err := v.Verify(context.Background(), taskID, "agent-1", requirementsDescription)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID, "a terminal result must not be recomputed")
}

func TestVerifyWithZeroDeadlineReturnsErrorVerdict(t *testing.T) {
	cfg := fullEvidenceCfg()
	cfg.VerificationDeadlineMs = 0
	st := store.NewMemoryStore()
	taskID := model.TaskId("task-deadline")
	seedFullEvidence(t, st, taskID)

	v := New(st, st, cfg, 4)
	res, err := v.Verify(context.Background(), taskID, "agent-1", "write unit tests")
	require.NoError(t, err)
	require.Equal(t, model.VerdictError, res.Verdict)
	require.Equal(t, "deadline", res.Reason)
}

func TestExtractRequirementTagsLongestMatchWins(t *testing.T) {
	vocab := []string{"test", "unit test", "unit testing"}
	tags := ExtractRequirementTags("we need unit testing here", vocab)
	require.Equal(t, []string{"unit testing"}, tags)
}

func TestExtractRequirementTagsKeepsDisjointTags(t *testing.T) {
	vocab := []string{"unit tests", "documentation"}
	tags := ExtractRequirementTags("ship unit tests and documentation", vocab)
	require.ElementsMatch(t, []string{"unit tests", "documentation"}, tags)
}

func TestAxisScoreLinearInterpolation(t *testing.T) {
	require.Equal(t, 1.0, axisScore(0, 100))
	require.Equal(t, 0.5, axisScore(50, 100))
	require.Equal(t, 0.0, axisScore(150, 100))
	require.Equal(t, 1.0, axisScore(10, 0))
}
