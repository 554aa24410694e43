package matcher

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patrol/internal/store"
	"patrol/internal/workflow"
)

func TestCalculateSimilarity(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		triggers []string
		want     float64
	}{
		{name: "no triggers", text: "run tests", triggers: nil, want: 0},
		{name: "no hits", text: "deploy the service", triggers: []string{"pytest", "unittest"}, want: 0},
		{name: "single hit of two", text: "run pytest now", triggers: []string{"pytest", "unittest"}, want: 50},
		{name: "case insensitive", text: "Run PyTest now", triggers: []string{"pytest"}, want: 100},
		// 2/3 present: 66.67 * 1.1.
		{name: "double hit boost", text: "run pytest with coverage", triggers: []string{"pytest", "coverage", "unittest"}, want: 73.333333},
		// 3/4 present: 75 * 1.2.
		{name: "triple hit boost", text: "pytest coverage for the backend", triggers: []string{"pytest", "coverage", "backend", "jest"}, want: 90},
		{name: "boost capped at 100", text: "pytest unittest coverage", triggers: []string{"pytest", "unittest", "coverage"}, want: 100},
		{name: "blank triggers skipped", text: "anything", triggers: []string{"", "  "}, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CalculateSimilarity(tc.text, tc.triggers)
			assert.InDelta(t, tc.want, got, 1e-4)
		})
	}
}

// seedCandidate creates an active pattern bound to an active tool with a
// fixed confidence score. Confidence is seeded directly because reaching
// routing eligibility organically takes a long occurrence history.
func seedCandidate(t *testing.T, st *store.Store, sig, tool string, triggers []string, confidence float64) int64 {
	t.Helper()

	require.NoError(t, st.RegisterTool(store.RegisteredTool{
		ToolName:          tool,
		ScriptReference:   tool + ".sh",
		TriggerVocabulary: triggers,
		Status:            store.ToolActive,
	}))

	id, _, _, err := st.RecordOccurrence(sig, workflow.Record{WorkflowID: "wf-" + sig}, "{}")
	require.NoError(t, err)

	_, err = st.DB().Exec(`
		UPDATE operation_patterns
		SET automation_status = ?, confidence_score = ?, bound_tool_name = ?
		WHERE id = ?`, string(store.StatusActive), confidence, tool, id)
	require.NoError(t, err)
	return id
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "patterns.db"), store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestMatchSelectsBestCandidate(t *testing.T) {
	st := newTestStore(t)
	seedCandidate(t, st, "test:pytest:backend", "pytest-runner", []string{"pytest", "test"}, 90)
	seedCandidate(t, st, "build:docker:all", "docker-builder", []string{"docker", "image"}, 90)

	m := NewMatcher(st, nil)
	match, err := m.Match("build the docker image", DefaultMinConfidence)
	require.NoError(t, err)
	require.NotNil(t, match)

	assert.Equal(t, "build:docker:all", match.Signature)
	assert.Equal(t, "docker-builder", match.Tool.ToolName)
	assert.Equal(t, 90.0, match.Confidence)
	assert.Equal(t, 100.0, match.Similarity) // both triggers, x1.1, capped
	assert.Equal(t, 95.0, match.Combined)
}

func TestMatchBelowThreshold(t *testing.T) {
	st := newTestStore(t)
	seedCandidate(t, st, "test:pytest:backend", "pytest-runner", []string{"pytest", "unittest"}, 80)

	m := NewMatcher(st, nil)

	// One of two triggers: similarity 50, combined (80+50)/2 = 65 < 70.
	match, err := m.Match("run pytest", DefaultMinConfidence)
	require.NoError(t, err)
	assert.Nil(t, match)

	// The caller can lower the gate.
	match, err = m.Match("run pytest", 60)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.InDelta(t, 65.0, match.Combined, 1e-9)
}

func TestMatchThresholdSentinels(t *testing.T) {
	st := newTestStore(t)
	// No trigger overlap with the input: similarity 0, combined 40.
	seedCandidate(t, st, "test:pytest:backend", "pytest-runner", []string{"pytest"}, 80)

	m := NewMatcher(st, nil)

	// Zero is an honored threshold, not a request for the default.
	match, err := m.Match("deploy the service", 0)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.InDelta(t, 40.0, match.Combined, 1e-9)

	// Negative selects the default gate.
	match, err = m.Match("deploy the service", -1)
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestMatchNoCandidates(t *testing.T) {
	st := newTestStore(t)
	m := NewMatcher(st, nil)

	match, err := m.Match("run pytest", 0)
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestMatchTieBreaksOnLowestPatternID(t *testing.T) {
	st := newTestStore(t)

	// Identical confidence and vocabulary: identical combined scores.
	first := seedCandidate(t, st, "test:pytest:backend", "runner-a", []string{"pytest"}, 90)
	seedCandidate(t, st, "test:pytest:frontend", "runner-b", []string{"pytest"}, 90)

	m := NewMatcher(st, nil)
	match, err := m.Match("run pytest everywhere", 0)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, first, match.PatternID)
}
