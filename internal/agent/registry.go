package agent

import (
	"fmt"

	"github.com/dusk-indust/newsroom/internal/actor"
)

// Register installs a producer for every worker kind on sys. Each spawn gets
// a fresh worker; workers are never reused across runs.
func Register(sys *actor.System, d Deps) error {
	if d.Engine == nil {
		return fmt.Errorf("agent: register: no engine")
	}
	if d.Prompts == nil {
		return fmt.Errorf("agent: register: no prompt definitions")
	}

	sys.Register(KindResearch, func() actor.Actor { return NewResearchWorker(d) })
	sys.Register(KindSummarize, func() actor.Actor { return NewSummarizeWorker(d) })
	return nil
}
