package agent

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dusk-indust/newsroom/internal/actor"
	"github.com/dusk-indust/newsroom/internal/protocol"
)

// Compile-time interface check.
var _ actor.Actor = (*BaseWorker)(nil)

// BaseWorker is the shared single-shot template. Specialist workers provide a
// ProcessFunc; BaseWorker handles dispatch, error capture and the reply.
type BaseWorker struct {
	stage   protocol.Stage
	process ProcessFunc
	tracer  trace.Tracer
	replied bool
}

// NewBaseWorker creates a worker for stage that runs process on its command.
func NewBaseWorker(stage protocol.Stage, process ProcessFunc) *BaseWorker {
	return &BaseWorker{
		stage:   stage,
		process: process,
		tracer:  otel.Tracer("newsroom/agent"),
	}
}

// Stage returns the stage this worker runs.
func (w *BaseWorker) Stage() protocol.Stage { return w.stage }

// Receive handles the worker's single command. Anything else, including a
// second command, is ignored.
func (w *BaseWorker) Receive(c *actor.Context, env actor.Envelope) {
	cmd, ok := env.Message.(protocol.WorkerCommand)
	if !ok || cmd.Stage() != w.stage {
		c.Logger().Debug("ignoring unexpected message", "type", fmt.Sprintf("%T", env.Message))
		return
	}
	if w.replied {
		c.Logger().Debug("ignoring command after reply", "run_id", cmd.Run().Short())
		return
	}
	w.replied = true

	result := w.Handle(c.Context(), cmd)
	if !result.OK() {
		c.Logger().Warn("stage failed", "stage", w.stage, "run_id", cmd.Run().Short(), "error", result.Failure.Error)
	}
	c.Send(env.Sender, result)
}

// Handle runs the ProcessFunc and converts its outcome, including a panic,
// into a StageResult. It never returns an error.
func (w *BaseWorker) Handle(ctx context.Context, cmd protocol.WorkerCommand) (result protocol.StageResult) {
	ctx, span := w.tracer.Start(ctx, "stage."+string(w.stage),
		trace.WithAttributes(attribute.String("run_id", string(cmd.Run()))),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			result = protocol.Failed(cmd.Run(), w.stage, err.Error(), string(debug.Stack()))
		}
	}()

	data, err := w.process(ctx, cmd)
	if err == nil && data == nil {
		err = errors.New("worker produced no data")
	}
	if err == nil && data.PayloadStage() != w.stage {
		err = fmt.Errorf("worker produced %s data for %s stage", data.PayloadStage(), w.stage)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return protocol.Failed(cmd.Run(), w.stage, err.Error(), Trace(err))
	}
	span.SetStatus(codes.Ok, "")
	return protocol.Succeeded(cmd.Run(), data)
}

// Trace renders the diagnostic trace attached to a failure: the chain of
// wrapped errors with their concrete types, followed by the goroutine stack
// at the point of capture.
func Trace(err error) string {
	var b strings.Builder
	for e := err; e != nil; e = errors.Unwrap(e) {
		fmt.Fprintf(&b, "%T: %v\n", e, e)
	}
	b.WriteString("\n")
	b.Write(debug.Stack())
	return b.String()
}
