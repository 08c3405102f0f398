// Package agent implements the single-shot stage workers of the editorial
// pipeline. A worker accepts one command, performs one engine call, replies
// once to whoever asked and then idles until its creator terminates it.
package agent

import (
	"context"
	"log/slog"

	"github.com/dusk-indust/newsroom/internal/actor"
	"github.com/dusk-indust/newsroom/internal/engine"
	"github.com/dusk-indust/newsroom/internal/news"
	"github.com/dusk-indust/newsroom/internal/prompts"
	"github.com/dusk-indust/newsroom/internal/protocol"
)

// Worker kinds registered with the actor system.
const (
	KindResearch  actor.Kind = "research"
	KindSummarize actor.Kind = "summarize"
)

// KindFor returns the worker kind that runs stage.
func KindFor(stage protocol.Stage) (actor.Kind, bool) {
	switch stage {
	case protocol.StageResearch:
		return KindResearch, true
	case protocol.StageSummary:
		return KindSummarize, true
	}
	return "", false
}

// Deps are the collaborators shared by every worker. They are read-only and
// safe for concurrent use by several workers.
type Deps struct {
	Engine  engine.Executor
	Prompts *prompts.Set

	// News is optional. When nil the research prompt receives a placeholder
	// instead of live headlines.
	News      news.Fetcher
	NewsQuery news.Query

	Logger *slog.Logger
}

// ProcessFunc performs a worker's single unit of work and returns the stage
// payload to send back.
type ProcessFunc func(ctx context.Context, cmd protocol.WorkerCommand) (protocol.Payload, error)
