// Package protocol defines the closed set of messages exchanged between the
// editorial supervisor, its stage workers and the caller that started a run.
//
// Every message carries the RunID of the run it belongs to. Each message kind
// is a distinct Go type; the sealed interfaces below (Command, WorkerCommand,
// Notification) can only be implemented inside this package, so a type switch
// over them is exhaustive.
package protocol

import (
	"fmt"

	"github.com/google/uuid"
)

// Stage identifies a phase of the pipeline.
type Stage string

const (
	StageResearch  Stage = "research"
	StageSummary   Stage = "summary"
	StageEditorial Stage = "editorial"
)

// Stages lists the pipeline stages in execution order.
var Stages = []Stage{StageResearch, StageSummary, StageEditorial}

func (s Stage) String() string { return string(s) }

// Valid reports whether s is one of the known stages.
func (s Stage) Valid() bool {
	switch s {
	case StageResearch, StageSummary, StageEditorial:
		return true
	}
	return false
}

// DoneEvent returns the notification tag emitted when s completes, e.g.
// "research_done".
func (s Stage) DoneEvent() string {
	return string(s) + "_done"
}

// RunID correlates every message belonging to one pipeline run.
type RunID string

// NewRunID returns a fresh random run identifier.
func NewRunID() RunID {
	return RunID(uuid.NewString())
}

// Short returns the first eight characters of the id for log lines.
func (id RunID) Short() string {
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}

// Message is implemented by every protocol message.
type Message interface {
	Run() RunID
	sealed()
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

// Command is a request addressed to the supervisor.
type Command interface {
	Message
	isCommand()
}

// Generate asks the supervisor to start a new run. RunID may be left empty,
// in which case the supervisor assigns one.
type Generate struct {
	RunID RunID
}

// WorkerCommand is a request addressed to a stage worker.
type WorkerCommand interface {
	Message
	Stage() Stage
	isWorkerCommand()
}

// Research asks a research worker to pick a topic.
type Research struct {
	RunID RunID
}

// Summarize asks a summarize worker to summarize news on Topic.
type Summarize struct {
	RunID RunID
	Topic string
}

func (g Generate) Run() RunID { return g.RunID }
func (Generate) sealed() {}
func (Generate) isCommand() {}
func (r Research) Run() RunID { return r.RunID }
func (Research) sealed() {}
func (Research) Stage() Stage { return StageResearch }
func (Research) isWorkerCommand() {}
func (s Summarize) Run() RunID { return s.RunID }
func (Summarize) sealed() {}
func (Summarize) Stage() Stage { return StageSummary }
func (Summarize) isWorkerCommand() {}

// ---------------------------------------------------------------------------
// Replies
// ---------------------------------------------------------------------------

// Status is the outcome tag of a StageResult.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Payload is the typed data carried by a successful StageResult.
type Payload interface {
	PayloadStage() Stage
}

// ResearchData is the payload of a successful research stage.
type ResearchData struct {
	Topic     string `json:"topic"`
	Rationale string `json:"rationale"`
}

// SummaryData is the payload of a successful summarize stage.
type SummaryData struct {
	Topic   string `json:"topic"`
	Summary string `json:"summary"`
}

// EditorialData is the payload of a successful synthesis.
type EditorialData struct {
	Editorial string `json:"editorial"`
}

func (ResearchData) PayloadStage() Stage { return StageResearch }
func (SummaryData) PayloadStage() Stage { return StageSummary }
func (EditorialData) PayloadStage() Stage { return StageEditorial }

// Failure describes why a stage failed.
type Failure struct {
	Error string
	Trace string
}

// StageResult is a worker's single reply. Exactly one of Data and Failure is
// set. Construct it with Succeeded or Failed.
type StageResult struct {
	RunID   RunID
	Stage   Stage
	Data    Payload
	Failure *Failure
}

func (r StageResult) Run() RunID { return r.RunID }
func (StageResult) sealed() {}

// OK reports whether the result is a success.
func (r StageResult) OK() bool { return r.Failure == nil }

// Status returns the wire status tag of the result.
func (r StageResult) Status() Status {
	if r.OK() {
		return StatusSuccess
	}
	return StatusError
}

// Succeeded builds a success result for the stage the payload belongs to.
func Succeeded(run RunID, data Payload) StageResult {
	return StageResult{RunID: run, Stage: data.PayloadStage(), Data: data}
}

// Failed builds a failure result for stage.
func Failed(run RunID, stage Stage, errText, trace string) StageResult {
	return StageResult{
		RunID:   run,
		Stage:   stage,
		Failure: &Failure{Error: errText, Trace: trace},
	}
}

// StageTimeout is delivered by the supervisor to itself when a stage has been
// outstanding for longer than the configured timeout.
type StageTimeout struct {
	RunID RunID
	Stage Stage
}

func (t StageTimeout) Run() RunID { return t.RunID }
func (StageTimeout) sealed() {}

// ---------------------------------------------------------------------------
// Notifications
// ---------------------------------------------------------------------------

// Notification is a message sent from the supervisor to the caller.
type Notification interface {
	Message
	// Terminal reports whether no further notifications follow for the run.
	Terminal() bool
	// Event returns the wire tag ("research_done", ..., or "error").
	Event() string
	isNotification()
}

// ResearchDone reports the topic chosen by the research stage.
type ResearchDone struct {
	RunID RunID
	Topic string
}

// SummaryDone reports the summary produced for the topic.
type SummaryDone struct {
	RunID   RunID
	Summary string
}

// EditorialDone is the final notification of a successful run.
type EditorialDone struct {
	RunID     RunID
	Topic     string
	Summary   string
	Editorial string
}

// StageFailure is the single terminal notification of a failed run.
type StageFailure struct {
	RunID RunID
	Stage Stage
	Error string
	Trace string
}

func (n ResearchDone) Run() RunID { return n.RunID }
func (ResearchDone) sealed() {}
func (ResearchDone) Terminal() bool { return false }
func (ResearchDone) Event() string { return StageResearch.DoneEvent() }
func (ResearchDone) isNotification() {}

func (n SummaryDone) Run() RunID { return n.RunID }
func (SummaryDone) sealed() {}
func (SummaryDone) Terminal() bool { return false }
func (SummaryDone) Event() string { return StageSummary.DoneEvent() }
func (SummaryDone) isNotification() {}

func (n EditorialDone) Run() RunID { return n.RunID }
func (EditorialDone) sealed() {}
func (EditorialDone) Terminal() bool { return true }
func (EditorialDone) Event() string { return StageEditorial.DoneEvent() }
func (EditorialDone) isNotification() {}

func (n StageFailure) Run() RunID { return n.RunID }
func (StageFailure) sealed() {}
func (StageFailure) Terminal() bool { return true }
func (StageFailure) Event() string { return string(StatusError) }
func (StageFailure) isNotification() {}

// Err returns the failure as a Go error.
func (n StageFailure) Err() error {
	return fmt.Errorf("%s stage failed: %s", n.Stage, n.Error)
}

// FailureFrom converts a failed StageResult into the caller notification that
// relays it verbatim.
func FailureFrom(r StageResult) StageFailure {
	f := StageFailure{RunID: r.RunID, Stage: r.Stage}
	if r.Failure != nil {
		f.Error = r.Failure.Error
		f.Trace = r.Failure.Trace
	}
	return f
}
