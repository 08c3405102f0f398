package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/newsroom/internal/protocol"
)

func TestSummarizeWorker_PassesTextThrough(t *testing.T) {
	const summary = "Quantum computing firms are moving from lab to production."
	eng := replying(summary, nil)

	r := NewSummarizeWorker(testDeps(t, eng)).Handle(context.Background(), protocol.Summarize{RunID: "run-1", Topic: "Quantum Tech"})
	require.True(t, r.OK(), "failure: %+v", r.Failure)
	assert.Equal(t, protocol.SummaryData{Topic: "Quantum Tech", Summary: summary}, r.Data)

	require.Len(t, eng.tasks, 1)
	assert.Contains(t, eng.tasks[0].Description, `"Quantum Tech"`)
	assert.Equal(t, "Content Summarizer", eng.tasks[0].Role)
}

func TestSummarizeWorker_Failures(t *testing.T) {
	t.Run("empty topic", func(t *testing.T) {
		eng := replying("unused", nil)
		r := NewSummarizeWorker(testDeps(t, eng)).Handle(context.Background(), protocol.Summarize{RunID: "run-1"})
		require.False(t, r.OK())
		assert.Contains(t, r.Failure.Error, "no topic")
		assert.Empty(t, eng.tasks)
	})

	t.Run("blank engine output", func(t *testing.T) {
		r := NewSummarizeWorker(testDeps(t, replying("  \n", nil))).Handle(context.Background(), protocol.Summarize{RunID: "run-1", Topic: "AI"})
		require.False(t, r.OK())
		assert.Equal(t, protocol.StageSummary, r.Stage)
		assert.Contains(t, r.Failure.Error, "empty summary")
	})

	t.Run("wrong command", func(t *testing.T) {
		r := NewSummarizeWorker(testDeps(t, replying("x", nil))).Handle(context.Background(), protocol.Research{RunID: "run-1"})
		require.False(t, r.OK())
		assert.Contains(t, r.Failure.Error, "cannot handle")
	})
}
