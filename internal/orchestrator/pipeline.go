package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dusk-indust/newsroom/internal/actor"
	"github.com/dusk-indust/newsroom/internal/agent"
	"github.com/dusk-indust/newsroom/internal/protocol"
)

// Compile-time interface check.
var _ Orchestrator = (*Pipeline)(nil)

// Pipeline hosts the editorial supervisor and its workers on an actor
// system. Every run gets its own supervisor, so runs started concurrently do
// not share state.
type Pipeline struct {
	sys *actor.System
	log *slog.Logger
}

// NewPipeline creates a Pipeline and registers the supervisor and worker
// kinds.
func NewPipeline(cfg Config, deps agent.Deps) (*Pipeline, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	if deps.Logger == nil {
		deps.Logger = log
	}

	opts := []actor.Option{actor.WithLogger(log)}
	if cfg.Metrics != nil {
		opts = append(opts, actor.WithObserver(cfg.Metrics))
	}
	sys := actor.NewSystem(opts...)

	if err := agent.Register(sys, deps); err != nil {
		return nil, err
	}
	if cfg.Synthesizer == nil {
		cfg.Synthesizer = deps.Engine
	}
	if cfg.Editorial.Name == "" && deps.Prompts != nil {
		cfg.Editorial = deps.Prompts.Editorial
	}
	sys.Register(KindEditorial, func() actor.Actor { return NewSupervisor(cfg) })

	return &Pipeline{sys: sys, log: log}, nil
}

// System returns the underlying actor system.
func (p *Pipeline) System() *actor.System { return p.sys }

// Generate implements Orchestrator.
func (p *Pipeline) Generate(ctx context.Context) (protocol.RunID, <-chan protocol.Notification, error) {
	inbox, err := p.sys.NewInbox()
	if err != nil {
		return "", nil, fmt.Errorf("orchestrator: open inbox: %w", err)
	}
	sup, err := p.sys.Spawn(KindEditorial, actor.PID{})
	if err != nil {
		inbox.Close()
		return "", nil, fmt.Errorf("orchestrator: spawn supervisor: %w", err)
	}

	run := protocol.NewRunID()
	if err := inbox.Send(sup, protocol.Generate{RunID: run}); err != nil {
		p.sys.Terminate(sup)
		inbox.Close()
		return "", nil, fmt.Errorf("orchestrator: start run: %w", err)
	}

	out := make(chan protocol.Notification, len(protocol.Stages))
	go func() {
		defer close(out)
		defer inbox.Close()
		defer p.sys.Terminate(sup)

		for {
			env, err := inbox.Receive(ctx)
			if err != nil {
				if ctx.Err() != nil {
					p.log.Info("run abandoned by caller", "run_id", run.Short(), "error", ctx.Err())
				}
				return
			}
			n, ok := env.Message.(protocol.Notification)
			if !ok || n.Run() != run {
				p.log.Debug("inbox ignoring message", "type", fmt.Sprintf("%T", env.Message))
				continue
			}
			select {
			case out <- n:
			case <-ctx.Done():
				return
			}
			if n.Terminal() {
				return
			}
		}
	}()

	return run, out, nil
}

// Run implements Orchestrator.
func (p *Pipeline) Run(ctx context.Context, onEvent func(protocol.Notification)) (*protocol.EditorialDone, error) {
	_, events, err := p.Generate(ctx)
	if err != nil {
		return nil, err
	}
	return Collect(ctx, events, onEvent)
}

// Collect drains a run's notifications and returns its outcome.
func Collect(ctx context.Context, events <-chan protocol.Notification, onEvent func(protocol.Notification)) (*protocol.EditorialDone, error) {
	for n := range events {
		if onEvent != nil {
			onEvent(n)
		}
		switch v := n.(type) {
		case protocol.EditorialDone:
			return &v, nil
		case protocol.StageFailure:
			return nil, &RunError{Failure: v}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("orchestrator: run interrupted: %w", err)
	}
	return nil, errors.New("orchestrator: run ended without a result")
}

// RunError wraps the terminal failure of a run.
type RunError struct {
	Failure protocol.StageFailure
}

func (e *RunError) Error() string { return e.Failure.Err().Error() }

// Close terminates every supervisor and worker and waits for them to stop.
func (p *Pipeline) Close(ctx context.Context) error {
	return p.sys.Shutdown(ctx)
}
