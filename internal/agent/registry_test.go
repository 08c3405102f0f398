package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/newsroom/internal/actor"
	"github.com/dusk-indust/newsroom/internal/protocol"
)

func TestRegister_SpawnEachKind(t *testing.T) {
	sys := actor.NewSystem()
	defer func() { _ = sys.Shutdown(context.Background()) }()

	require.NoError(t, Register(sys, testDeps(t, replying(`{"topic":"t","rationale":"r"}`, nil))))

	for _, kind := range []actor.Kind{KindResearch, KindSummarize} {
		pid, err := sys.Spawn(kind, actor.PID{})
		require.NoError(t, err, "Spawn(%q) should succeed", kind)
		assert.Equal(t, kind, pid.Kind)
	}
}

func TestRegister_FreshWorkerPerSpawn(t *testing.T) {
	sys := actor.NewSystem()
	defer func() { _ = sys.Shutdown(context.Background()) }()
	require.NoError(t, Register(sys, testDeps(t, replying(`{"topic":"t","rationale":"r"}`, nil))))

	in, err := sys.NewInbox()
	require.NoError(t, err)

	// Each spawned worker answers its own single command.
	for i := 0; i < 2; i++ {
		pid, err := sys.Spawn(KindResearch, actor.PID{})
		require.NoError(t, err)
		require.NoError(t, in.Send(pid, protocol.Research{RunID: "run"}))

		env, err := receive(t, in, 2*time.Second)
		require.NoError(t, err)
		assert.Equal(t, pid, env.Sender)
		r := env.Message.(protocol.StageResult)
		assert.True(t, r.OK())
	}
}

func TestRegister_RequiresDeps(t *testing.T) {
	sys := actor.NewSystem()
	assert.Error(t, Register(sys, Deps{}))
	assert.Error(t, Register(sys, Deps{Engine: replying("x", nil)}))
}

func TestKindFor(t *testing.T) {
	k, ok := KindFor(protocol.StageResearch)
	assert.True(t, ok)
	assert.Equal(t, KindResearch, k)

	k, ok = KindFor(protocol.StageSummary)
	assert.True(t, ok)
	assert.Equal(t, KindSummarize, k)

	_, ok = KindFor(protocol.StageEditorial)
	assert.False(t, ok, "editorial runs inside the supervisor")
}
