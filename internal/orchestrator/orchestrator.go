// Package orchestrator sequences the editorial pipeline. A Supervisor unit
// drives one run through research, summary and in-line synthesis, spawning
// and retiring one stage worker at a time; Pipeline hosts supervisors on an
// actor system and exposes runs to callers as notification streams.
package orchestrator

import (
	"context"

	"github.com/dusk-indust/newsroom/internal/protocol"
)

// State is the supervisor's position in a run.
type State int

const (
	StateIdle State = iota
	StateAwaitingResearch
	StateAwaitingSummary
	StateSynthesizing
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	names := [...]string{
		"idle",
		"awaiting-research",
		"awaiting-summary",
		"synthesizing",
		"succeeded",
		"failed",
	}
	if int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}

// Active reports whether a run is in progress.
func (s State) Active() bool {
	return s == StateAwaitingResearch || s == StateAwaitingSummary || s == StateSynthesizing
}

// Terminal reports whether the last run has finished.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Orchestrator starts editorial runs.
type Orchestrator interface {
	// Generate starts a run and returns its id and a channel carrying the
	// run's notifications in order. The channel is closed after the terminal
	// notification or when ctx is done.
	Generate(ctx context.Context) (protocol.RunID, <-chan protocol.Notification, error)

	// Run starts a run and waits for it to finish, calling onEvent for each
	// notification. It returns the final result or the stage failure.
	Run(ctx context.Context, onEvent func(protocol.Notification)) (*protocol.EditorialDone, error)
}
