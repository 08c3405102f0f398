package a2a

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dusk-indust/newsroom/internal/orchestrator"
	"github.com/dusk-indust/newsroom/internal/protocol"
)

// SkillGenerateEditorial is the ID of the agent's only skill.
const SkillGenerateEditorial = "generate_editorial"

// Compile-time interface check.
var _ Handler = (*EditorialAgent)(nil)

// Card returns the agent card for a newsroom served at url.
func Card(url, version string) AgentCard {
	return AgentCard{
		Name:        "newsroom",
		Description: "Picks a trending technology topic from the latest headlines, summarizes it and writes an editorial.",
		Version:     version,
		Interfaces: []AgentInterface{
			{URL: url, ProtocolBinding: "JSONRPC", ProtocolVersion: "0.3"},
		},
		Capabilities:       AgentCapabilities{Streaming: true},
		DefaultInputModes:  []string{"text/plain"},
		DefaultOutputModes: []string{"text/markdown", "application/json"},
		Skills: []AgentSkill{
			{
				ID:          SkillGenerateEditorial,
				Name:        "Generate editorial",
				Description: "Runs research, summary and editorial synthesis and returns the editorial as markdown.",
				Tags:        []string{"news", "editorial", "technology"},
				Examples:    []string{"Write today's tech editorial."},
				OutputModes: []string{"text/markdown"},
			},
		},
	}
}

// EditorialAgent serves editorial runs over A2A. Each message starts one run;
// its task ID is the run id and every pipeline notification becomes a status
// update carrying the notification as a data part.
type EditorialAgent struct {
	orch  orchestrator.Orchestrator
	store *TaskStore
	log   *slog.Logger

	// base bounds runs started by non-blocking requests.
	base context.Context
	wg   sync.WaitGroup
}

// NewEditorialAgent creates an agent. Runs started without a waiting caller
// are bound to ctx.
func NewEditorialAgent(ctx context.Context, orch orchestrator.Orchestrator, store *TaskStore, log *slog.Logger) *EditorialAgent {
	if store == nil {
		store = NewTaskStore(0)
	}
	if log == nil {
		log = slog.Default()
	}
	return &EditorialAgent{orch: orch, store: store, log: log, base: ctx}
}

// Wait blocks until every background run has finished.
func (a *EditorialAgent) Wait() { a.wg.Wait() }

// HandleSendMessage implements Handler.
func (a *EditorialAgent) HandleSendMessage(ctx context.Context, req SendMessageRequest) (*Task, error) {
	if !req.blocking() {
		task, events, stop, err := a.start(a.base, req)
		if err != nil {
			return nil, err
		}
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			defer stop()
			a.follow(a.base, task.ID, events, nil)
		}()
		return task, nil
	}

	task, events, stop, err := a.start(ctx, req)
	if err != nil {
		return nil, err
	}
	defer stop()
	if err := a.follow(ctx, task.ID, events, nil); err != nil {
		return nil, err
	}
	return a.store.Get(task.ID, req.historyLength())
}

// HandleStreamMessage implements Handler.
func (a *EditorialAgent) HandleStreamMessage(ctx context.Context, req SendMessageRequest, emit func(StreamEvent) error) error {
	task, events, stop, err := a.start(ctx, req)
	if err != nil {
		return err
	}
	defer stop()
	if err := emit(StreamEvent{Task: task}); err != nil {
		return err
	}
	return a.follow(ctx, task.ID, events, emit)
}

// HandleGetTask implements Handler.
func (a *EditorialAgent) HandleGetTask(_ context.Context, req GetTaskRequest) (*Task, error) {
	return a.store.Get(req.ID, req.HistoryLength)
}

// HandleListTasks implements Handler.
func (a *EditorialAgent) HandleListTasks(_ context.Context, req ListTasksRequest) (*ListTasksResponse, error) {
	return a.store.List(req)
}

// HandleCancelTask implements Handler. Runs cannot be canceled once started.
func (a *EditorialAgent) HandleCancelTask(_ context.Context, req CancelTaskRequest) (*Task, error) {
	if _, err := a.store.Get(req.ID, nil); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("a2a: task %q: %w", req.ID, ErrTaskNotCancelable)
}

func (r SendMessageRequest) historyLength() *int {
	if r.Configuration == nil {
		return nil
	}
	return r.Configuration.HistoryLength
}

// start launches a run and stores its task. The returned stop func ends the
// run early and must be called once the caller is done following it. A run
// whose task cannot be stored is stopped before start returns.
func (a *EditorialAgent) start(ctx context.Context, req SendMessageRequest) (*Task, <-chan protocol.Notification, context.CancelFunc, error) {
	if req.Message.Role != RoleUser {
		return nil, nil, nil, fmt.Errorf("a2a: message role must be %q: %w", RoleUser, ErrInvalidParams)
	}

	runCtx, stop := context.WithCancel(ctx)
	run, events, err := a.orch.Generate(runCtx)
	if err != nil {
		stop()
		return nil, nil, nil, err
	}

	msg := req.Message
	if msg.MessageID == "" {
		msg.MessageID = NewID()
	}
	if msg.ContextID == "" {
		msg.ContextID = NewID()
	}
	msg.TaskID = string(run)

	task := Task{
		ID:        string(run),
		ContextID: msg.ContextID,
		Status:    TaskStatus{State: TaskStateSubmitted, Timestamp: time.Now().UTC()},
		History:   []Message{msg},
	}
	if err := a.store.Create(task); err != nil {
		stop()
		a.log.Warn("a2a task rejected, run stopped", "task_id", run.Short(), "error", err)
		return nil, nil, nil, err
	}
	a.log.Info("a2a task started", "task_id", run.Short(), "context_id", task.ContextID)
	return &task, events, stop, nil
}

// follow records every notification of a run on its task and, when emit is
// set, streams the updates. A run that ends without a terminal notification
// is marked canceled.
func (a *EditorialAgent) follow(ctx context.Context, taskID string, events <-chan protocol.Notification, emit func(StreamEvent) error) error {
	for n := range events {
		task, artifact, err := a.record(taskID, n)
		if err != nil {
			return err
		}
		if emit == nil {
			continue
		}
		if artifact != nil {
			if err := emit(StreamEvent{ArtifactUpdate: &TaskArtifactUpdateEvent{
				TaskID:    task.ID,
				ContextID: task.ContextID,
				Artifact:  *artifact,
				LastChunk: true,
			}}); err != nil {
				return err
			}
		}
		if err := emit(StreamEvent{StatusUpdate: &TaskStatusUpdateEvent{
			TaskID:    task.ID,
			ContextID: task.ContextID,
			Status:    task.Status,
			Final:     task.Status.State.IsTerminal(),
		}}); err != nil {
			return err
		}
	}

	task, err := a.store.Get(taskID, nil)
	if err != nil {
		return err
	}
	if task.Status.State.IsTerminal() {
		return nil
	}
	cause := context.Cause(ctx)
	if cause == nil {
		cause = errors.New("run ended without a result")
	}
	a.log.Warn("a2a task abandoned", "task_id", taskID, "error", cause)
	_, _ = a.store.Update(taskID, func(t *Task) {
		t.Status = TaskStatus{
			State:     TaskStateCanceled,
			Message:   agentMessage(t, TextPart(cause.Error())),
			Timestamp: time.Now().UTC(),
		}
	})
	return cause
}

// record applies n to the task and returns the updated task and the
// artifact it produced, if any.
func (a *EditorialAgent) record(taskID string, n protocol.Notification) (*Task, *Artifact, error) {
	ev := orchestrator.ProgressFor(n)
	data, err := DataPart(n)
	if err != nil {
		return nil, nil, fmt.Errorf("a2a: encode %s: %w", n.Event(), err)
	}
	text := TextPart(fmt.Sprintf("%s %s: %s", ev.Stage, ev.Status, ev.Message))

	state := TaskStateWorking
	var artifact *Artifact
	switch v := n.(type) {
	case protocol.EditorialDone:
		state = TaskStateCompleted
		artifact = &Artifact{
			ArtifactID:  NewID(),
			Name:        "editorial",
			Description: v.Topic,
			Parts:       []Part{MarkdownPart(v.Editorial), data},
		}
	case protocol.StageFailure:
		state = TaskStateFailed
	}

	task, err := a.store.Update(taskID, func(t *Task) {
		msg := agentMessage(t, text, data)
		t.Status = TaskStatus{State: state, Message: msg, Timestamp: time.Now().UTC()}
		t.History = append(t.History, *msg)
		if artifact != nil {
			t.Artifacts = append(t.Artifacts, *artifact)
		}
	})
	if err != nil {
		return nil, nil, err
	}
	a.log.Debug("a2a task updated", "task_id", protocol.RunID(taskID).Short(), "event", n.Event(), "state", state)
	return task, artifact, nil
}

func agentMessage(t *Task, parts ...Part) *Message {
	return &Message{
		MessageID: NewID(),
		ContextID: t.ContextID,
		TaskID:    t.ID,
		Role:      RoleAgent,
		Parts:     parts,
	}
}

// NotificationOf extracts the pipeline notification carried by an agent
// status message.
func NotificationOf(msg *Message) (protocol.Notification, bool) {
	if msg == nil {
		return nil, false
	}
	for _, p := range msg.Parts {
		if len(p.Data) == 0 {
			continue
		}
		if n, err := protocol.DecodeNotification(p.Data); err == nil {
			return n, true
		}
	}
	return nil, false
}
