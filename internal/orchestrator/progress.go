package orchestrator

import (
	"fmt"
	"strings"

	"github.com/dusk-indust/newsroom/internal/protocol"
)

// ProgressStatus is the state of a stage within a run.
type ProgressStatus string

const (
	ProgressPending  ProgressStatus = "pending"
	ProgressWorking  ProgressStatus = "working"
	ProgressComplete ProgressStatus = "complete"
	ProgressFailed   ProgressStatus = "failed"
)

// ProgressEvent is a display-oriented view of a notification.
type ProgressEvent struct {
	RunID   protocol.RunID
	Stage   protocol.Stage
	Status  ProgressStatus
	Message string
}

// ProgressFor converts a notification into the progress event of the stage it
// completes or fails.
func ProgressFor(n protocol.Notification) ProgressEvent {
	switch v := n.(type) {
	case protocol.ResearchDone:
		return ProgressEvent{RunID: v.RunID, Stage: protocol.StageResearch, Status: ProgressComplete, Message: "topic: " + v.Topic}
	case protocol.SummaryDone:
		return ProgressEvent{RunID: v.RunID, Stage: protocol.StageSummary, Status: ProgressComplete, Message: firstLine(v.Summary, 80)}
	case protocol.EditorialDone:
		return ProgressEvent{RunID: v.RunID, Stage: protocol.StageEditorial, Status: ProgressComplete, Message: fmt.Sprintf("%d words", len(strings.Fields(v.Editorial)))}
	case protocol.StageFailure:
		return ProgressEvent{RunID: v.RunID, Stage: v.Stage, Status: ProgressFailed, Message: v.Error}
	}
	return ProgressEvent{RunID: n.Run(), Status: ProgressPending}
}

// NextStage returns the stage that starts after n, if any.
func NextStage(n protocol.Notification) (protocol.Stage, bool) {
	switch n.(type) {
	case protocol.ResearchDone:
		return protocol.StageSummary, true
	case protocol.SummaryDone:
		return protocol.StageEditorial, true
	}
	return "", false
}

// FormatProgress formats a ProgressEvent as a human-readable status line.
func FormatProgress(event ProgressEvent) string {
	switch event.Status {
	case ProgressPending:
		return fmt.Sprintf("  ○ %s (pending)", event.Stage)
	case ProgressWorking:
		return fmt.Sprintf("  ● %s...", event.Stage)
	case ProgressComplete:
		if event.Message == "" {
			return fmt.Sprintf("  ✓ %s complete", event.Stage)
		}
		return fmt.Sprintf("  ✓ %s complete (%s)", event.Stage, event.Message)
	case ProgressFailed:
		return fmt.Sprintf("  ✗ %s failed: %s", event.Stage, event.Message)
	default:
		return fmt.Sprintf("  ? %s (unknown status)", event.Stage)
	}
}

func firstLine(s string, max int) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	r := []rune(s)
	if len(r) > max {
		return string(r[:max]) + "..."
	}
	return s
}
