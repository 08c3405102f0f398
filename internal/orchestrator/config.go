package orchestrator

import (
	"log/slog"
	"time"

	"github.com/dusk-indust/newsroom/internal/engine"
	"github.com/dusk-indust/newsroom/internal/observability"
	"github.com/dusk-indust/newsroom/internal/prompts"
)

// DefaultStageTimeout bounds each stage when Config.StageTimeout is unset.
const DefaultStageTimeout = 2 * time.Minute

// Config holds what a Supervisor needs. It is built once and shared
// read-only by every supervisor the Pipeline spawns.
type Config struct {
	// StageTimeout bounds how long the supervisor waits for a worker reply
	// and for its own synthesis call.
	StageTimeout time.Duration

	// Synthesizer runs the editorial task in-line.
	Synthesizer engine.Executor

	// Editorial is the synthesis task definition. It must use {{topic}} and
	// {{summary}}.
	Editorial prompts.Definition

	// Metrics is optional.
	Metrics *observability.Metrics

	Logger *slog.Logger
}

func (c Config) stageTimeout() time.Duration {
	if c.StageTimeout <= 0 {
		return DefaultStageTimeout
	}
	return c.StageTimeout
}
