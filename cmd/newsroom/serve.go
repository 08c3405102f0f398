package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/newsroom/internal/a2a"
	"github.com/dusk-indust/newsroom/internal/mcptools"
	"github.com/dusk-indust/newsroom/internal/observability"
)

// ServeCmd serves the pipeline as an A2A agent.
type ServeCmd struct {
	Addr        string `help:"A2A listen address. Overrides the config file." placeholder:"HOST:PORT"`
	MetricsAddr string `name:"metrics-addr" help:"Separate listen address for /metrics. Empty serves it on the A2A listener." placeholder:"HOST:PORT"`
	URL         string `name:"url" help:"Public URL advertised in the agent card. Defaults to the listen address." placeholder:"URL"`
	MCP         bool   `help:"Also serve the MCP tools over streamable HTTP at /mcp."`
	Tracing     bool   `help:"Write trace spans as JSON to stderr."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log, err := cli.load()
	if err != nil {
		return err
	}
	addr := firstNonEmpty(c.Addr, cfg.Server.Addr)
	metricsAddr := firstNonEmpty(c.MetricsAddr, cfg.Server.MetricsAddr)

	if c.Tracing || cfg.Server.Tracing {
		shutdown, err := observability.InitTracing(os.Stderr, version)
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Warn("tracing shutdown", "error", err)
			}
		}()
	}

	metrics := observability.NewMetrics()
	p, fetcher, err := buildPipeline(cfg, log, metrics)
	if err != nil {
		return err
	}
	defer closePipeline(p, log)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	url := c.URL
	if url == "" {
		url = "http://" + ln.Addr().String()
	}

	editorial := a2a.NewEditorialAgent(ctx, p, a2a.NewTaskStore(a2a.DefaultMaxTasks), log)
	srv := a2a.NewServer(a2a.Card(url, version), editorial, log)

	mux := http.NewServeMux()
	mux.Handle("/", srv.Handler())
	if metricsAddr == "" {
		mux.Handle("/metrics", metrics.Handler())
	}
	if c.MCP {
		svc := mcptools.NewNewsroomService(p, fetcher, newsQuery(cfg), log)
		mux.Handle("/mcp", mcptools.HTTPHandler(mcptools.NewNewsroomMCPServer(svc)))
		log.Info("mcp tools mounted", "path", "/mcp")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx, ln, mux)
	})
	if metricsAddr != "" {
		g.Go(func() error {
			return serveHTTP(gctx, metricsAddr, metrics.Handler(), log)
		})
	}

	err = g.Wait()
	editorial.Wait()
	return err
}

// serveHTTP serves h on addr until ctx is done.
func serveHTTP(ctx context.Context, addr string, h http.Handler, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.Info("metrics listening", "addr", addr)

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// ServeMCPCmd serves the newsroom tools over MCP stdio.
type ServeMCPCmd struct{}

func (c *ServeMCPCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log, err := cli.load()
	if err != nil {
		return err
	}
	p, fetcher, err := buildPipeline(cfg, log, nil)
	if err != nil {
		return err
	}
	defer closePipeline(p, log)

	svc := mcptools.NewNewsroomService(p, fetcher, newsQuery(cfg), log)
	log.Info("serving mcp on stdio")
	return mcptools.RunStdio(ctx, mcptools.NewNewsroomMCPServer(svc))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
