package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dusk-indust/newsroom/internal/actor"
	"github.com/dusk-indust/newsroom/internal/agent"
	"github.com/dusk-indust/newsroom/internal/protocol"
)

// KindEditorial is the actor kind of the supervisor.
const KindEditorial actor.Kind = "editorial"

// ErrBusy is reported to a caller whose generate command reached a
// supervisor that is already running.
var ErrBusy = errors.New("orchestrator: a run is already in progress")

// Compile-time interface check.
var _ actor.Actor = (*Supervisor)(nil)

// Supervisor owns the state of one pipeline run at a time. It never has more
// than one live worker, and it relays a worker failure to the caller verbatim
// before stopping the run.
type Supervisor struct {
	cfg    Config
	tracer trace.Tracer

	state     State
	run       protocol.RunID
	caller    actor.PID
	worker    actor.PID
	topic     string
	summary   string
	editorial string

	stageStart time.Time
	stopTimer  func()
	span       trace.Span
}

// NewSupervisor creates an idle supervisor.
func NewSupervisor(cfg Config) *Supervisor {
	return &Supervisor{
		cfg:    cfg,
		tracer: otel.Tracer("newsroom/orchestrator"),
	}
}

// State returns the current state. It must only be called from Receive or
// before the supervisor is spawned.
func (s *Supervisor) State() State { return s.state }

// Receive implements actor.Actor.
func (s *Supervisor) Receive(c *actor.Context, env actor.Envelope) {
	switch m := env.Message.(type) {
	case protocol.Generate:
		s.start(c, env.Sender, m)
	case protocol.StageResult:
		s.onResult(c, env.Sender, m)
	case protocol.StageTimeout:
		s.onTimeout(c, m)
	default:
		c.Logger().Debug("ignoring unexpected message", "type", fmt.Sprintf("%T", env.Message), "state", s.state)
	}
}

func (s *Supervisor) start(c *actor.Context, caller actor.PID, m protocol.Generate) {
	run := m.RunID
	if run == "" {
		run = protocol.NewRunID()
	}
	if s.state.Active() {
		c.Logger().Warn("rejecting generate while busy", "run_id", run.Short(), "active_run", s.run.Short())
		c.Send(caller, protocol.StageFailure{
			RunID: run,
			Stage: protocol.StageResearch,
			Error: ErrBusy.Error(),
		})
		return
	}

	*s = Supervisor{cfg: s.cfg, tracer: s.tracer}
	s.run = run
	s.caller = caller
	_, s.span = s.tracer.Start(context.Background(), "editorial.run",
		trace.WithAttributes(attribute.String("run_id", string(run))),
	)
	c.Logger().Info("run started", "run_id", run.Short())

	if s.dispatch(c, protocol.StageResearch, protocol.Research{RunID: run}) {
		s.state = StateAwaitingResearch
	}
}

// dispatch spawns the worker for stage, sends it cmd and arms the stage
// timer. On failure it ends the run and returns false.
func (s *Supervisor) dispatch(c *actor.Context, stage protocol.Stage, cmd protocol.WorkerCommand) bool {
	kind, _ := agent.KindFor(stage)
	pid, err := c.Spawn(kind)
	if err != nil {
		s.fail(c, protocol.StageFailure{
			RunID: s.run,
			Stage: stage,
			Error: fmt.Sprintf("spawn %s worker: %v", kind, err),
			Trace: agent.Trace(err),
		}, "error")
		return false
	}
	s.worker = pid
	s.stageStart = time.Now()
	c.Send(pid, cmd)
	s.stopTimer = c.SendAfter(s.cfg.stageTimeout(), protocol.StageTimeout{RunID: s.run, Stage: stage})
	return true
}

// expectedStage returns the stage whose reply the supervisor is waiting for.
func (s *Supervisor) expectedStage() (protocol.Stage, bool) {
	switch s.state {
	case StateAwaitingResearch:
		return protocol.StageResearch, true
	case StateAwaitingSummary:
		return protocol.StageSummary, true
	}
	return "", false
}

func (s *Supervisor) onResult(c *actor.Context, sender actor.PID, r protocol.StageResult) {
	want, ok := s.expectedStage()
	if !ok || r.RunID != s.run || sender != s.worker || r.Stage != want {
		c.Logger().Debug("ignoring stale or unexpected reply",
			"run_id", r.RunID.Short(),
			"stage", r.Stage,
			"from", sender.String(),
			"state", s.state,
		)
		return
	}

	s.disarm()
	s.cfg.Metrics.StageCompleted(r.Stage, r.Status(), time.Since(s.stageStart))

	if !r.OK() {
		s.fail(c, protocol.FailureFrom(r), "error")
		return
	}

	switch data := r.Data.(type) {
	case protocol.ResearchData:
		s.onResearch(c, data)
	case protocol.SummaryData:
		s.onSummary(c, data)
	default:
		s.fail(c, protocol.StageFailure{
			RunID: s.run,
			Stage: r.Stage,
			Error: fmt.Sprintf("unexpected %T payload", r.Data),
		}, "error")
	}
}

func (s *Supervisor) onResearch(c *actor.Context, data protocol.ResearchData) {
	s.topic = data.Topic
	s.span.AddEvent(protocol.StageResearch.DoneEvent(), trace.WithAttributes(attribute.String("topic", s.topic)))
	c.Send(s.caller, protocol.ResearchDone{RunID: s.run, Topic: s.topic})

	// Retire the research worker before spawning its successor so that at most
	// one worker is ever alive.
	s.retireWorker(c)
	if s.dispatch(c, protocol.StageSummary, protocol.Summarize{RunID: s.run, Topic: s.topic}) {
		s.state = StateAwaitingSummary
	}
}

func (s *Supervisor) onSummary(c *actor.Context, data protocol.SummaryData) {
	s.summary = data.Summary
	s.span.AddEvent(protocol.StageSummary.DoneEvent())
	c.Send(s.caller, protocol.SummaryDone{RunID: s.run, Summary: s.summary})

	s.state = StateSynthesizing
	s.synthesize(c)
}

// synthesize runs the editorial task in-line. The supervisor's mailbox is
// blocked until the engine call returns or the stage timeout elapses.
func (s *Supervisor) synthesize(c *actor.Context) {
	start := time.Now()
	text, err := s.runSynthesis(c.Context())
	if err != nil {
		s.cfg.Metrics.StageCompleted(protocol.StageEditorial, protocol.StatusError, time.Since(start))
		f := protocol.StageFailure{RunID: s.run, Stage: protocol.StageEditorial, Error: err.Error(), Trace: agent.Trace(err)}
		var p *synthesisPanic
		if errors.As(err, &p) {
			f.Trace = p.stack
		}
		s.fail(c, f, "error")
		return
	}
	s.cfg.Metrics.StageCompleted(protocol.StageEditorial, protocol.StatusSuccess, time.Since(start))

	s.editorial = text
	s.finish(c, protocol.EditorialDone{
		RunID:     s.run,
		Topic:     s.topic,
		Summary:   s.summary,
		Editorial: s.editorial,
	}, StateSucceeded, "success")
}

type synthesisPanic struct {
	value any
	stack string
}

func (p *synthesisPanic) Error() string { return fmt.Sprintf("panic: %v", p.value) }

func (s *Supervisor) runSynthesis(parent context.Context) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &synthesisPanic{value: r, stack: string(debug.Stack())}
		}
	}()

	if s.cfg.Synthesizer == nil {
		return "", errors.New("no synthesizer configured")
	}
	task, err := s.cfg.Editorial.Render(map[string]string{
		"topic":   s.topic,
		"summary": s.summary,
	})
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(parent, s.cfg.stageTimeout())
	defer cancel()
	ctx, span := s.tracer.Start(trace.ContextWithSpan(ctx, s.span), "stage.editorial")
	defer span.End()

	text, err = s.cfg.Synthesizer.Execute(ctx, task)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && parent.Err() == nil {
			err = fmt.Errorf("stage timed out after %s: %w", s.cfg.stageTimeout(), err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("engine returned an empty editorial")
	}
	return text, nil
}

func (s *Supervisor) onTimeout(c *actor.Context, m protocol.StageTimeout) {
	want, ok := s.expectedStage()
	if !ok || m.RunID != s.run || m.Stage != want {
		c.Logger().Debug("ignoring stale stage timeout", "run_id", m.RunID.Short(), "stage", m.Stage)
		return
	}
	s.cfg.Metrics.StageCompleted(m.Stage, protocol.StatusError, time.Since(s.stageStart))
	s.fail(c, protocol.StageFailure{
		RunID: s.run,
		Stage: m.Stage,
		Error: fmt.Sprintf("stage timed out after %s", s.cfg.stageTimeout()),
	}, "timeout")
}

// fail relays f to the caller and ends the run. Topic and summary recorded so
// far are kept.
func (s *Supervisor) fail(c *actor.Context, f protocol.StageFailure, outcome string) {
	s.span.RecordError(errors.New(f.Error))
	s.span.SetStatus(codes.Error, f.Error)
	c.Logger().Warn("run failed", "run_id", s.run.Short(), "stage", f.Stage, "error", f.Error)
	s.finish(c, f, StateFailed, outcome)
}

func (s *Supervisor) finish(c *actor.Context, n protocol.Notification, state State, outcome string) {
	s.disarm()
	s.retireWorker(c)
	s.state = state
	c.Send(s.caller, n)
	s.cfg.Metrics.RunFinished(outcome)
	if state == StateSucceeded {
		c.Logger().Info("run completed", "run_id", s.run.Short(), "topic", s.topic)
	}
	if s.span != nil {
		s.span.End()
	}
}

func (s *Supervisor) retireWorker(c *actor.Context) {
	if !s.worker.IsZero() {
		c.Terminate(s.worker)
		s.worker = actor.PID{}
	}
}

func (s *Supervisor) disarm() {
	if s.stopTimer != nil {
		s.stopTimer()
		s.stopTimer = nil
	}
}
