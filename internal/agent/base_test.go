package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/newsroom/internal/actor"
	"github.com/dusk-indust/newsroom/internal/engine"
	"github.com/dusk-indust/newsroom/internal/protocol"
)

// successProcess returns a ProcessFunc that produces research data.
func successProcess() ProcessFunc {
	return func(ctx context.Context, cmd protocol.WorkerCommand) (protocol.Payload, error) {
		return protocol.ResearchData{Topic: "AI Policy", Rationale: "new rules"}, nil
	}
}

// failProcess returns a ProcessFunc that always fails with a wrapped engine
// error.
func failProcess() ProcessFunc {
	return func(ctx context.Context, cmd protocol.WorkerCommand) (protocol.Payload, error) {
		return nil, fmt.Errorf("call engine: %w", &engine.ExecutionError{StatusCode: 429, Message: "rate limited"})
	}
}

func TestBaseWorker_HandleSuccess(t *testing.T) {
	w := NewBaseWorker(protocol.StageResearch, successProcess())
	assert.Equal(t, protocol.StageResearch, w.Stage())

	r := w.Handle(context.Background(), protocol.Research{RunID: "run-1"})
	require.True(t, r.OK())
	assert.Equal(t, protocol.RunID("run-1"), r.RunID)
	assert.Equal(t, protocol.StageResearch, r.Stage)
	assert.Equal(t, protocol.ResearchData{Topic: "AI Policy", Rationale: "new rules"}, r.Data)
}

func TestBaseWorker_HandleError(t *testing.T) {
	w := NewBaseWorker(protocol.StageResearch, failProcess())

	r := w.Handle(context.Background(), protocol.Research{RunID: "run-1"})
	require.False(t, r.OK())
	assert.Equal(t, protocol.StageResearch, r.Stage)
	assert.Equal(t, "call engine: engine: status 429: rate limited", r.Failure.Error)
	assert.Contains(t, r.Failure.Trace, "*engine.ExecutionError")
	assert.Contains(t, r.Failure.Trace, "goroutine")
}

func TestBaseWorker_HandlePanic(t *testing.T) {
	w := NewBaseWorker(protocol.StageSummary, func(ctx context.Context, cmd protocol.WorkerCommand) (protocol.Payload, error) {
		panic("nil map")
	})

	r := w.Handle(context.Background(), protocol.Summarize{RunID: "run-1", Topic: "x"})
	require.False(t, r.OK())
	assert.Equal(t, protocol.StageSummary, r.Stage)
	assert.Equal(t, "panic: nil map", r.Failure.Error)
	assert.NotEmpty(t, r.Failure.Trace)
}

func TestBaseWorker_HandleRejectsWrongPayload(t *testing.T) {
	w := NewBaseWorker(protocol.StageSummary, successProcess())

	r := w.Handle(context.Background(), protocol.Summarize{RunID: "run-1", Topic: "x"})
	require.False(t, r.OK())
	assert.Contains(t, r.Failure.Error, "produced research data for summary stage")

	nothing := NewBaseWorker(protocol.StageSummary, func(context.Context, protocol.WorkerCommand) (protocol.Payload, error) {
		return nil, nil
	})
	r = nothing.Handle(context.Background(), protocol.Summarize{RunID: "run-1", Topic: "x"})
	require.False(t, r.OK())
	assert.Contains(t, r.Failure.Error, "no data")
}

func TestTrace_ListsErrorChain(t *testing.T) {
	base := errors.New("connection reset")
	err := fmt.Errorf("fetch: %w", base)

	tr := Trace(err)
	assert.Contains(t, tr, "*fmt.wrapError: fetch: connection reset\n")
	assert.Contains(t, tr, "*errors.errorString: connection reset\n")
}

// --------------------------------------------------------------------------
// Actor behavior
// --------------------------------------------------------------------------

func spawnWorker(t *testing.T, w *BaseWorker) (*actor.System, actor.PID, *actor.Inbox) {
	t.Helper()
	sys := actor.NewSystem()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = sys.Shutdown(ctx)
	})
	sys.Register("worker", func() actor.Actor { return w })
	pid, err := sys.Spawn("worker", actor.PID{})
	require.NoError(t, err)
	in, err := sys.NewInbox()
	require.NoError(t, err)
	return sys, pid, in
}

func receive(t *testing.T, in *actor.Inbox, d time.Duration) (actor.Envelope, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return in.Receive(ctx)
}

func TestBaseWorker_RepliesOnceToSender(t *testing.T) {
	var calls int
	w := NewBaseWorker(protocol.StageResearch, func(ctx context.Context, cmd protocol.WorkerCommand) (protocol.Payload, error) {
		calls++
		return protocol.ResearchData{Topic: "Quantum Tech"}, nil
	})
	sys, pid, in := spawnWorker(t, w)

	require.NoError(t, in.Send(pid, "not a command"))
	require.NoError(t, in.Send(pid, protocol.Summarize{RunID: "run-1", Topic: "wrong stage"}))
	require.NoError(t, in.Send(pid, protocol.Research{RunID: "run-1"}))
	require.NoError(t, in.Send(pid, protocol.Research{RunID: "run-1"}))

	env, err := receive(t, in, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, pid, env.Sender)
	result, ok := env.Message.(protocol.StageResult)
	require.True(t, ok, "got %T", env.Message)
	assert.True(t, result.OK())

	_, err = receive(t, in, 100*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "a worker replies exactly once")
	assert.Equal(t, 1, calls)
	assert.True(t, sys.Alive(pid), "the worker idles until its creator terminates it")
}
