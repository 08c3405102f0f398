package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dusk-indust/newsroom/internal/a2a"
	"github.com/dusk-indust/newsroom/internal/orchestrator"
)

// GenerateCmd runs the pipeline once.
type GenerateCmd struct {
	Remote  string        `help:"A2A endpoint to run against instead of the local pipeline." placeholder:"URL"`
	JSON    bool          `help:"Print notifications as JSON lines."`
	Output  string        `short:"o" help:"Write the editorial to this markdown file." type:"path"`
	Timeout time.Duration `help:"Overall run timeout (0 = none)." default:"0s"`
}

func (c *GenerateCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cfg, log, err := cli.load()
	if err != nil {
		return err
	}

	var orch orchestrator.Orchestrator
	if c.Remote != "" {
		orch = a2a.NewRemote(a2a.NewHTTPClient(), c.Remote, log)
	} else {
		p, _, err := buildPipeline(cfg, log, nil)
		if err != nil {
			return err
		}
		defer closePipeline(p, log)
		orch = p
	}

	out := newRenderer(os.Stdout, c.JSON)
	out.start()
	done, err := orch.Run(ctx, out.notify)
	if err != nil {
		return err
	}
	out.editorial(done)

	if c.Output != "" {
		if err := writeOutputFile(c.Output, done); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "editorial written to %s\n", c.Output)
	}
	return nil
}
