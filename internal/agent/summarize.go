package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dusk-indust/newsroom/internal/protocol"
)

// NewSummarizeWorker creates the summarize stage worker. The engine's text is
// passed through unchanged as the summary.
func NewSummarizeWorker(d Deps) *BaseWorker {
	return NewBaseWorker(protocol.StageSummary, func(ctx context.Context, cmd protocol.WorkerCommand) (protocol.Payload, error) {
		s, ok := cmd.(protocol.Summarize)
		if !ok {
			return nil, fmt.Errorf("summarize worker cannot handle %T", cmd)
		}
		if strings.TrimSpace(s.Topic) == "" {
			return nil, errors.New("summarize command has no topic")
		}

		task, err := d.Prompts.Summarize.Render(map[string]string{"topic": s.Topic})
		if err != nil {
			return nil, err
		}

		text, err := d.Engine.Execute(ctx, task)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(text) == "" {
			return nil, errors.New("engine returned an empty summary")
		}
		return protocol.SummaryData{Topic: s.Topic, Summary: text}, nil
	})
}
