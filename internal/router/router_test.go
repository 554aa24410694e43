package router

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"patrol/internal/matcher"
	"patrol/internal/store"
	"patrol/internal/workflow"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// writeScript drops an executable shell script into the test's temp dir.
func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "patterns.db"), store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// seedRoutedPattern registers a tool for the given script and binds it to
// an active, high-confidence pattern with known cost averages.
func seedRoutedPattern(t *testing.T, st *store.Store, script string) int64 {
	t.Helper()

	require.NoError(t, st.RegisterTool(store.RegisteredTool{
		ToolName:          "pytest-runner",
		ScriptReference:   script,
		TriggerVocabulary: []string{"pytest", "test"},
		Status:            store.ToolActive,
	}))

	id, _, _, err := st.RecordOccurrence("test:pytest:backend",
		workflow.Record{WorkflowID: "wf-seed"}, "{}")
	require.NoError(t, err)

	_, err = st.DB().Exec(`
		UPDATE operation_patterns
		SET automation_status = ?, confidence_score = 90, bound_tool_name = 'pytest-runner',
		    avg_tokens_generic = 1000, avg_tokens_tool = 50,
		    avg_cost_generic = 2.0, avg_cost_tool = 0.1
		WHERE id = ?`, string(store.StatusActive), id)
	require.NoError(t, err)
	return id
}

func TestSubprocessInvokerSuccess(t *testing.T) {
	script := writeScript(t, "ok.sh", `echo '{"status":"ok","tests":12}'`)
	inv := NewSubprocessInvoker(0, nil)

	result := inv.Execute(context.Background(), script, InvokeContext{
		WorkflowID: "wf-1", ToolName: "pytest-runner",
	}, 10*time.Second)

	assert.True(t, result.Success)
	assert.Equal(t, 0, result.ExitCode)
	assert.False(t, result.TimedOut)
	assert.JSONEq(t, `{"status":"ok","tests":12}`, string(result.Payload))
	assert.Empty(t, result.RawPayload)
}

func TestSubprocessInvokerEnvAndStdin(t *testing.T) {
	script := writeScript(t, "env.sh", `printf '%s %s %s' "$PATROL_WORKFLOW_ID" "$PATROL_TOOL_NAME" "$(cat)"`)
	inv := NewSubprocessInvoker(0, nil)

	result := inv.Execute(context.Background(), script, InvokeContext{
		WorkflowID: "wf-42", ToolName: "fmt", Input: "run gofmt",
	}, 10*time.Second)

	require.True(t, result.Success)
	// Plain text output lands in the raw payload.
	assert.Equal(t, "wf-42 fmt run gofmt", result.RawPayload)
	assert.Equal(t, "wf-42 fmt run gofmt", result.PayloadString())
}

func TestSubprocessInvokerNonZeroExit(t *testing.T) {
	script := writeScript(t, "fail.sh", "echo 'collection failed' >&2\nexit 3")
	inv := NewSubprocessInvoker(0, nil)

	result := inv.Execute(context.Background(), script, InvokeContext{}, 10*time.Second)

	assert.False(t, result.Success)
	assert.Equal(t, 3, result.ExitCode)
	assert.Contains(t, result.Error, "code 3")
	assert.Contains(t, result.Error, "collection failed")
}

func TestSubprocessInvokerTimeout(t *testing.T) {
	script := writeScript(t, "slow.sh", "sleep 5")
	inv := NewSubprocessInvoker(0, nil)

	result := inv.Execute(context.Background(), script, InvokeContext{}, 100*time.Millisecond)

	assert.False(t, result.Success)
	assert.True(t, result.TimedOut)
	assert.Contains(t, result.Error, "timed out")
}

func TestSubprocessInvokerLaunchFailure(t *testing.T) {
	inv := NewSubprocessInvoker(0, nil)

	result := inv.Execute(context.Background(),
		filepath.Join(t.TempDir(), "missing.sh"), InvokeContext{}, time.Second)

	assert.False(t, result.Success)
	assert.Equal(t, -1, result.ExitCode)
	assert.Contains(t, result.Error, "failed to launch")
}

func TestSubprocessInvokerOutputCap(t *testing.T) {
	script := writeScript(t, "noisy.sh", `i=0; while [ $i -lt 100 ]; do echo 'xxxxxxxxxxxxxxxx'; i=$((i+1)); done`)
	inv := NewSubprocessInvoker(64, nil)

	result := inv.Execute(context.Background(), script, InvokeContext{}, 10*time.Second)

	require.True(t, result.Success)
	assert.LessOrEqual(t, len(result.Stdout), 64)
}

func TestRouteGenericWhenNoMatch(t *testing.T) {
	st := newTestStore(t)
	r := NewRouter(st, matcher.NewMatcher(st, nil), Options{})

	decision, err := r.Route(context.Background(), "run pytest", "wf-1")
	require.NoError(t, err)

	assert.Equal(t, RoutedGeneric, decision.RoutedTo)
	assert.True(t, decision.UseGenericPath)
	assert.Empty(t, decision.ToolCallID)
}

func TestRouteToolSuccess(t *testing.T) {
	st := newTestStore(t)
	script := writeScript(t, "ok.sh", `echo '{"status":"ok"}'`)
	patternID := seedRoutedPattern(t, st, script)

	r := NewRouter(st, matcher.NewMatcher(st, nil), Options{ToolTimeout: 10 * time.Second})
	decision, err := r.Route(context.Background(), "run the pytest suite", "wf-1")
	require.NoError(t, err)

	assert.Equal(t, RoutedTool, decision.RoutedTo)
	assert.False(t, decision.UseGenericPath)
	assert.Equal(t, "test:pytest:backend", decision.MatchedSignature)
	assert.Equal(t, "pytest-runner", decision.ToolName)
	require.NotNil(t, decision.ToolOutcome)
	assert.True(t, decision.ToolOutcome.Success)
	assert.InDelta(t, 950, decision.TokensSaved, 1e-9)
	assert.InDelta(t, 1.9, decision.CostSaved, 1e-9)

	call, err := st.GetToolCall(decision.ToolCallID)
	require.NoError(t, err)
	assert.True(t, call.Success)
	assert.Equal(t, "wf-1", call.WorkflowID)
	assert.JSONEq(t, `{"status":"ok"}`, call.ResultPayload)

	entries, err := st.ListSavings(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, OptimizationKindToolRouting, entries[0].OptimizationKind)
	assert.Equal(t, patternID, entries[0].PatternID)
	assert.Equal(t, decision.ToolCallID, entries[0].ToolCallID)
	assert.InDelta(t, 1.9, entries[0].CostSaved, 1e-9)
}

func TestRouteToolFailureFallsBack(t *testing.T) {
	st := newTestStore(t)
	script := writeScript(t, "fail.sh", "echo 'boom' >&2\nexit 2")
	seedRoutedPattern(t, st, script)

	r := NewRouter(st, matcher.NewMatcher(st, nil), Options{ToolTimeout: 10 * time.Second})
	decision, err := r.Route(context.Background(), "run the pytest suite", "wf-1")
	require.NoError(t, err)

	assert.Equal(t, RoutedToolThenGeneric, decision.RoutedTo)
	assert.True(t, decision.UseGenericPath)
	require.NotNil(t, decision.ToolOutcome)
	assert.Equal(t, 2, decision.ToolOutcome.ExitCode)
	assert.Zero(t, decision.CostSaved)

	// The attempt is on record as a failure.
	call, err := st.GetToolCall(decision.ToolCallID)
	require.NoError(t, err)
	assert.False(t, call.Success)
	assert.Contains(t, call.ErrorMessage, "boom")

	// No savings are claimed for a failed route.
	entries, err := st.ListSavings(10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRouteTimeoutFallsBack(t *testing.T) {
	st := newTestStore(t)
	script := writeScript(t, "slow.sh", "sleep 5")
	seedRoutedPattern(t, st, script)

	r := NewRouter(st, matcher.NewMatcher(st, nil), Options{ToolTimeout: 100 * time.Millisecond})
	decision, err := r.Route(context.Background(), "run the pytest suite", "wf-1")
	require.NoError(t, err)

	assert.Equal(t, RoutedToolThenGeneric, decision.RoutedTo)
	assert.True(t, decision.UseGenericPath)
	require.NotNil(t, decision.ToolOutcome)
	assert.True(t, decision.ToolOutcome.TimedOut)
}
