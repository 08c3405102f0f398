package actor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

// recv reads one message from in, failing the test on timeout.
func recv(t *testing.T, in *Inbox) Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	env, err := in.Receive(ctx)
	require.NoError(t, err)
	return env
}

func newTestSystem(t *testing.T, opts ...Option) *System {
	t.Helper()
	s := NewSystem(opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

// echo replies to every sender with the message it received.
func echo() Actor {
	return ActorFunc(func(c *Context, env Envelope) {
		c.Send(env.Sender, env.Message)
	})
}

// --------------------------------------------------------------------------
// Spawn / Send
// --------------------------------------------------------------------------

func TestSystem_SpawnUnknownKind(t *testing.T) {
	s := newTestSystem(t)
	pid, err := s.Spawn("ghost", PID{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownKind))
	assert.Contains(t, err.Error(), "ghost")
	assert.True(t, pid.IsZero())
}

func TestSystem_SpawnAssignsDistinctHandles(t *testing.T) {
	s := newTestSystem(t)
	s.Register("echo", echo)

	a, err := s.Spawn("echo", PID{})
	require.NoError(t, err)
	b, err := s.Spawn("echo", PID{})
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, Kind("echo"), a.Kind)
	assert.True(t, s.Alive(a))
	assert.Equal(t, 2, s.Len())
}

func TestSystem_SendPreservesOrder(t *testing.T) {
	s := newTestSystem(t)
	s.Register("echo", echo)

	pid, err := s.Spawn("echo", PID{})
	require.NoError(t, err)
	in, err := s.NewInbox()
	require.NoError(t, err)

	const n = 100
	for i := 0; i < n; i++ {
		require.NoError(t, in.Send(pid, i))
	}
	for i := 0; i < n; i++ {
		env := recv(t, in)
		assert.Equal(t, i, env.Message)
		assert.Equal(t, pid, env.Sender)
	}
}

func TestSystem_ProcessesOneMessageAtATime(t *testing.T) {
	s := newTestSystem(t)

	var active, maxActive atomic.Int32
	s.Register("slow", func() Actor {
		return ActorFunc(func(c *Context, env Envelope) {
			n := active.Add(1)
			for {
				m := maxActive.Load()
				if n <= m || maxActive.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			active.Add(-1)
			c.Send(env.Sender, "done")
		})
	})

	pid, err := s.Spawn("slow", PID{})
	require.NoError(t, err)
	in, err := s.NewInbox()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = in.Send(pid, "work")
		}()
	}
	wg.Wait()
	for i := 0; i < 10; i++ {
		recv(t, in)
	}
	assert.Equal(t, int32(1), maxActive.Load())
}

func TestSystem_SendToUnknownIsDeadLetter(t *testing.T) {
	obs := &countingObserver{}
	s := newTestSystem(t, WithObserver(obs))

	err := s.Send(PID{ID: 42, Kind: "echo"}, PID{}, "hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDeadLetter))
	assert.Equal(t, int32(1), obs.dead.Load())
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

func TestSystem_TerminateCascadesToChildren(t *testing.T) {
	s := newTestSystem(t)
	s.Register("echo", echo)

	var child PID
	spawned := make(chan struct{})
	s.Register("parent", func() Actor {
		return ActorFunc(func(c *Context, env Envelope) {
			pid, err := c.Spawn("echo")
			if err == nil {
				child = pid
			}
			close(spawned)
		})
	})

	parent, err := s.Spawn("parent", PID{})
	require.NoError(t, err)
	require.NoError(t, s.Send(parent, PID{}, "go"))

	select {
	case <-spawned:
	case <-time.After(waitFor):
		t.Fatal("child was never spawned")
	}
	require.False(t, child.IsZero())
	assert.Equal(t, []PID{child}, s.Children(parent))

	assert.True(t, s.Terminate(parent))
	assert.False(t, s.Alive(parent))
	assert.False(t, s.Alive(child))
	assert.False(t, s.Terminate(parent), "second terminate is a no-op")
}

func TestSystem_TerminateChildLeavesParent(t *testing.T) {
	s := newTestSystem(t)
	s.Register("echo", echo)

	parent, err := s.Spawn("echo", PID{})
	require.NoError(t, err)
	child, err := s.Spawn("echo", parent)
	require.NoError(t, err)

	s.Terminate(child)
	assert.True(t, s.Alive(parent))
	assert.Empty(t, s.Children(parent))
}

func TestSystem_SpawnUnderTerminatedParent(t *testing.T) {
	s := newTestSystem(t)
	s.Register("echo", echo)

	parent, err := s.Spawn("echo", PID{})
	require.NoError(t, err)
	s.Terminate(parent)

	_, err = s.Spawn("echo", parent)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParentGone))
}

func TestSystem_TerminateCancelsContext(t *testing.T) {
	s := newTestSystem(t)

	started := make(chan struct{})
	finished := make(chan error, 1)
	s.Register("blocker", func() Actor {
		return ActorFunc(func(c *Context, env Envelope) {
			close(started)
			<-c.Context().Done()
			finished <- c.Context().Err()
		})
	})

	pid, err := s.Spawn("blocker", PID{})
	require.NoError(t, err)
	require.NoError(t, s.Send(pid, PID{}, "block"))
	<-started

	s.Terminate(pid)
	select {
	case err := <-finished:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitFor):
		t.Fatal("blocked receive was not cancelled")
	}
}

func TestSystem_PanicTerminatesUnit(t *testing.T) {
	obs := &countingObserver{}
	s := newTestSystem(t, WithObserver(obs))
	s.Register("bomb", func() Actor {
		return ActorFunc(func(c *Context, env Envelope) {
			panic("boom")
		})
	})

	pid, err := s.Spawn("bomb", PID{})
	require.NoError(t, err)
	require.NoError(t, s.Send(pid, PID{}, "light"))

	require.Eventually(t, func() bool { return !s.Alive(pid) }, waitFor, 5*time.Millisecond)
	assert.Equal(t, int32(1), obs.terminated.Load())
}

func TestSystem_ShutdownStopsEverything(t *testing.T) {
	s := NewSystem()
	s.Register("echo", echo)

	for i := 0; i < 5; i++ {
		_, err := s.Spawn("echo", PID{})
		require.NoError(t, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.Equal(t, 0, s.Len())

	_, err := s.Spawn("echo", PID{})
	assert.ErrorIs(t, err, ErrShutdown)
	_, err = s.NewInbox()
	assert.ErrorIs(t, err, ErrShutdown)
}

// --------------------------------------------------------------------------
// Context helpers
// --------------------------------------------------------------------------

func TestContext_SendAfter(t *testing.T) {
	s := newTestSystem(t)
	in, err := s.NewInbox()
	require.NoError(t, err)

	s.Register("timer", func() Actor {
		return ActorFunc(func(c *Context, env Envelope) {
			switch env.Message {
			case "arm":
				c.SendAfter(10*time.Millisecond, "tick")
			case "arm-and-cancel":
				cancel := c.SendAfter(10*time.Millisecond, "cancelled-tick")
				cancel()
			case "tick":
				assert.Equal(t, c.Self(), env.Sender)
				_ = s.Send(in.PID(), c.Self(), "ticked")
			}
		})
	})

	pid, err := s.Spawn("timer", PID{})
	require.NoError(t, err)
	require.NoError(t, in.Send(pid, "arm-and-cancel"))
	require.NoError(t, in.Send(pid, "arm"))

	env := recv(t, in)
	assert.Equal(t, "ticked", env.Message)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = in.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "cancelled timer must not fire")
}

func TestContext_ParentAndSelf(t *testing.T) {
	s := newTestSystem(t)
	in, err := s.NewInbox()
	require.NoError(t, err)

	s.Register("child", func() Actor {
		return ActorFunc(func(c *Context, env Envelope) {
			_ = s.Send(in.PID(), c.Self(), c.Parent())
		})
	})
	s.Register("parent", func() Actor {
		return ActorFunc(func(c *Context, env Envelope) {
			child, err := c.Spawn("child")
			if err != nil {
				return
			}
			c.Send(child, "who")
		})
	})

	parent, err := s.Spawn("parent", PID{})
	require.NoError(t, err)
	require.NoError(t, in.Send(parent, "start"))

	env := recv(t, in)
	assert.Equal(t, parent, env.Message)
	assert.Equal(t, Kind("child"), env.Sender.Kind)
}

func TestInbox_CloseUnblocksReceive(t *testing.T) {
	s := newTestSystem(t)
	in, err := s.NewInbox()
	require.NoError(t, err)
	assert.Equal(t, KindInbox, in.PID().Kind)

	errc := make(chan error, 1)
	go func() {
		_, err := in.Receive(context.Background())
		errc <- err
	}()
	in.Close()

	select {
	case err := <-errc:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "closed")
	case <-time.After(waitFor):
		t.Fatal("receive did not return after close")
	}
	assert.ErrorIs(t, s.Send(in.PID(), PID{}, "late"), ErrDeadLetter)
}

type countingObserver struct {
	spawned, terminated, dead atomic.Int32
}

func (o *countingObserver) Spawned(Kind)    { o.spawned.Add(1) }
func (o *countingObserver) Terminated(Kind) { o.terminated.Add(1) }
func (o *countingObserver) DeadLetter(Kind) { o.dead.Add(1) }
