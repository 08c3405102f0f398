package a2a

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dusk-indust/newsroom/internal/orchestrator"
	"github.com/dusk-indust/newsroom/internal/protocol"
)

// Compile-time interface check.
var _ orchestrator.Orchestrator = (*Remote)(nil)

// Remote runs the pipeline on a newsroom served elsewhere, streaming its
// notifications back over message/stream.
type Remote struct {
	client   Client
	endpoint string
	log      *slog.Logger
}

// NewRemote creates a Remote for the agent at endpoint.
func NewRemote(client Client, endpoint string, log *slog.Logger) *Remote {
	if log == nil {
		log = slog.Default()
	}
	return &Remote{client: client, endpoint: endpoint, log: log}
}

// Generate implements orchestrator.Orchestrator. Stream errors end the
// notification channel early; use Run to observe them.
func (r *Remote) Generate(ctx context.Context) (protocol.RunID, <-chan protocol.Notification, error) {
	run, stream, err := r.open(ctx)
	if err != nil {
		return "", nil, err
	}
	out := make(chan protocol.Notification, len(protocol.Stages))
	go func() {
		defer close(out)
		if err := r.relay(ctx, stream, out); err != nil {
			r.log.Warn("remote stream failed", "run_id", run.Short(), "error", err)
		}
	}()
	return run, out, nil
}

// Run implements orchestrator.Orchestrator.
func (r *Remote) Run(ctx context.Context, onEvent func(protocol.Notification)) (*protocol.EditorialDone, error) {
	_, stream, err := r.open(ctx)
	if err != nil {
		return nil, err
	}
	out := make(chan protocol.Notification, len(protocol.Stages))
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		errc <- r.relay(ctx, stream, out)
	}()

	done, err := orchestrator.Collect(ctx, out, onEvent)
	if err != nil {
		var runErr *orchestrator.RunError
		if !errors.As(err, &runErr) {
			if streamErr := <-errc; streamErr != nil {
				return nil, streamErr
			}
		}
		return nil, err
	}
	return done, nil
}

// open starts a run and waits for the task that names it.
func (r *Remote) open(ctx context.Context) (protocol.RunID, <-chan StreamEvent, error) {
	stream, err := r.client.StreamMessage(ctx, r.endpoint, SendMessageRequest{
		Message: Message{
			MessageID: NewID(),
			Role:      RoleUser,
			Parts:     []Part{TextPart("generate")},
		},
	})
	if err != nil {
		return "", nil, err
	}

	select {
	case ev, ok := <-stream:
		switch {
		case !ok:
			return "", nil, errors.New("a2a: stream closed before the task was created")
		case ev.Err != nil:
			return "", nil, ev.Err
		case ev.Task == nil:
			return "", nil, errors.New("a2a: stream did not start with a task")
		}
		r.log.Debug("remote run started", "task_id", ev.Task.ID, "endpoint", r.endpoint)
		return protocol.RunID(ev.Task.ID), stream, nil
	case <-ctx.Done():
		return "", nil, ctx.Err()
	}
}

// relay forwards the notifications carried by status updates until a final
// update arrives.
func (r *Remote) relay(ctx context.Context, stream <-chan StreamEvent, out chan<- protocol.Notification) error {
	for ev := range stream {
		if ev.Err != nil {
			return ev.Err
		}
		if ev.StatusUpdate == nil {
			continue
		}
		n, ok := NotificationOf(ev.StatusUpdate.Status.Message)
		if !ok {
			if ev.StatusUpdate.Final {
				return fmt.Errorf("a2a: task %s ended %s", ev.StatusUpdate.TaskID, ev.StatusUpdate.Status.State)
			}
			continue
		}
		select {
		case out <- n:
		case <-ctx.Done():
			return ctx.Err()
		}
		if n.Terminal() {
			return nil
		}
	}
	return ctx.Err()
}
