package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowcanvas/internal/store"
)

func TestTrace_ListsEnvelopes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	recordJournal(t, path, "sess-1")

	out, _, err := execute(t, "trace", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Timeline: 2 envelope(s)")
	assert.Contains(t, out, "✓ WorkflowChangedEvent snapshot=2")
	assert.Contains(t, out, "✗ (unknown)")
	assert.Contains(t, out, "malformed envelope")
	assert.Contains(t, out, "Rejected: 1")
	assert.Contains(t, out, "Journal: 2 envelope(s), 1 snapshot(s), 1 batch(es)")
}

func TestTrace_Filters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	recordJournal(t, path, "sess-1")

	tests := []struct {
		name   string
		args   []string
		listed float64
	}{
		{"by event", []string{"--event", "WorkflowChangedEvent"}, 1},
		{"by session", []string{"--session", "sess-2"}, 0},
		{"limit", []string{"--limit", "1"}, 1},
		{"after", []string{"--after", "1000"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--format", "json", "trace", "--db", path}, tt.args...)
			out, _, err := execute(t, args...)
			require.NoError(t, err)

			data := decodeResponse(t, out).Data.(map[string]any)
			stats := data["stats"].(map[string]any)
			assert.Equal(t, tt.listed, stats["listed"])
			assert.Len(t, data["timeline"], int(tt.listed))
		})
	}
}

func TestTrace_Raw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	recordJournal(t, path, "sess-1")

	out, _, err := execute(t, "--format", "json", "trace", "--db", path, "--raw", "--limit", "1")
	require.NoError(t, err)

	data := decodeResponse(t, out).Data.(map[string]any)
	first := data["timeline"].([]any)[0].(map[string]any)
	assert.Equal(t, movePush, first["raw"])
	assert.Equal(t, "sess-1", first["session_id"])
}

func TestTrace_NegativeLimit(t *testing.T) {
	_, _, err := execute(t, "trace", "--db", "unused.db", "--limit=-1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTrace_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, _, err := execute(t, "trace", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "No envelopes found.")
}

func TestBuildTrace_Stats(t *testing.T) {
	result := buildTrace([]store.EnvelopeRecord{
		{Seq: 1, EventType: "WorkflowChangedEvent", Raw: "{}"},
		{Seq: 2, EventType: "WorkflowChangedEvent"},
		{Seq: 3, Rejected: true, Error: "bad"},
	}, false)

	assert.Equal(t, 3, result.Stats.Listed)
	assert.Equal(t, 1, result.Stats.Rejected)
	assert.Equal(t, map[string]int{"WorkflowChangedEvent": 2, "(unknown)": 1}, result.Stats.ByType)
	assert.Empty(t, result.Timeline[0].Raw)
}
