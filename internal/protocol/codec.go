package protocol

import (
	"encoding/json"
	"fmt"
)

// wireMessage is the flat JSON shape shared by every message on the wire.
// Only the fields relevant to a given message kind are populated.
type wireMessage struct {
	RunID     RunID           `json:"run_id,omitempty"`
	Command   string          `json:"command,omitempty"`
	Stage     string          `json:"stage,omitempty"`
	Status    Status          `json:"status,omitempty"`
	Topic     string          `json:"topic,omitempty"`
	Summary   string          `json:"summary,omitempty"`
	Editorial string          `json:"editorial,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Trace     string          `json:"trace,omitempty"`
}

// errorWire is the error shape. Unlike wireMessage it always carries error
// and trace, even when they are empty.
type errorWire struct {
	RunID  RunID  `json:"run_id,omitempty"`
	Stage  string `json:"stage"`
	Status Status `json:"status"`
	Error  string `json:"error"`
	Trace  string `json:"trace"`
}

func (g Generate) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireMessage{RunID: g.RunID, Command: "generate"})
}

func (r Research) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireMessage{RunID: r.RunID, Command: "research"})
}

func (s Summarize) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireMessage{RunID: s.RunID, Command: "summarize", Topic: s.Topic})
}

func (r StageResult) MarshalJSON() ([]byte, error) {
	if !r.OK() {
		return json.Marshal(errorWire{
			RunID:  r.RunID,
			Stage:  string(r.Stage),
			Status: StatusError,
			Error:  r.Failure.Error,
			Trace:  r.Failure.Trace,
		})
	}
	w := wireMessage{RunID: r.RunID, Stage: string(r.Stage), Status: r.Status()}
	data, err := json.Marshal(r.Data)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal %s payload: %w", r.Stage, err)
	}
	w.Data = data
	return json.Marshal(w)
}

func (n ResearchDone) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireMessage{RunID: n.RunID, Stage: n.Event(), Topic: n.Topic})
}

func (n SummaryDone) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireMessage{RunID: n.RunID, Stage: n.Event(), Summary: n.Summary})
}

func (n EditorialDone) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireMessage{
		RunID:     n.RunID,
		Stage:     n.Event(),
		Topic:     n.Topic,
		Summary:   n.Summary,
		Editorial: n.Editorial,
	})
}

func (n StageFailure) MarshalJSON() ([]byte, error) {
	return json.Marshal(errorWire{
		RunID:  n.RunID,
		Stage:  string(n.Stage),
		Status: StatusError,
		Error:  n.Error,
		Trace:  n.Trace,
	})
}

// DecodeNotification parses a caller notification from its wire form.
func DecodeNotification(data []byte) (Notification, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("protocol: decode notification: %w", err)
	}

	if w.Status == StatusError {
		stage := Stage(w.Stage)
		if !stage.Valid() {
			return nil, fmt.Errorf("protocol: error notification with unknown stage %q", w.Stage)
		}
		return StageFailure{RunID: w.RunID, Stage: stage, Error: w.Error, Trace: w.Trace}, nil
	}

	switch w.Stage {
	case StageResearch.DoneEvent():
		return ResearchDone{RunID: w.RunID, Topic: w.Topic}, nil
	case StageSummary.DoneEvent():
		return SummaryDone{RunID: w.RunID, Summary: w.Summary}, nil
	case StageEditorial.DoneEvent():
		return EditorialDone{RunID: w.RunID, Topic: w.Topic, Summary: w.Summary, Editorial: w.Editorial}, nil
	default:
		return nil, fmt.Errorf("protocol: unknown notification stage %q", w.Stage)
	}
}
