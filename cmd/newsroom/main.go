// Command newsroom runs the editorial pipeline: research a trending
// technology topic, summarize it and write an editorial.
//
// Usage:
//
//	newsroom generate
//	newsroom generate --remote http://localhost:8080 --output today.md
//	newsroom serve --mcp
//	newsroom serve-mcp
//	newsroom news "quantum computing"
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/dusk-indust/newsroom/internal/agent"
	"github.com/dusk-indust/newsroom/internal/config"
	"github.com/dusk-indust/newsroom/internal/engine"
	"github.com/dusk-indust/newsroom/internal/news"
	"github.com/dusk-indust/newsroom/internal/observability"
	"github.com/dusk-indust/newsroom/internal/orchestrator"
	"github.com/dusk-indust/newsroom/internal/prompts"
)

// version is set by goreleaser at build time.
var version = "dev"

// closeTimeout bounds how long the actor system gets to stop on exit.
const closeTimeout = 5 * time.Second

// CLI defines the command-line interface.
type CLI struct {
	Generate GenerateCmd `cmd:"" help:"Run the pipeline once and print the editorial."`
	Serve    ServeCmd    `cmd:"" help:"Serve the pipeline as an A2A agent with Prometheus metrics."`
	ServeMCP ServeMCPCmd `cmd:"" name:"serve-mcp" help:"Serve the newsroom tools over MCP stdio."`
	News     NewsCmd     `cmd:"" help:"Query the news source directly."`
	Version  VersionCmd  `cmd:"" help:"Show version information."`

	Dir       string `short:"C" help:"Directory holding newsroom.yml and .env." default:"." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error). Overrides the config file."`
	LogFormat string `help:"Log format (text or json). Overrides the config file."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("newsroom %s\n", version)
	return nil
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("newsroom"),
		kong.Description("Actor-based editorial pipeline: research, summarize, synthesize."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}

// load reads the configuration and builds the logger. Logs always go to
// stderr so stdout stays free for output and the MCP stdio transport.
func (cli *CLI) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cli.Dir)
	if err != nil {
		return nil, nil, err
	}
	if cli.LogLevel != "" {
		cfg.Log.Level = cli.LogLevel
	}
	if cli.LogFormat != "" {
		cfg.Log.Format = cli.LogFormat
	}
	log, err := observability.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(log)
	return cfg, log, nil
}

// newsFetcher returns the configured news client, or nil when no API key is
// set.
func newsFetcher(cfg *config.Config) news.Fetcher {
	if cfg.News.APIKey == "" {
		return nil
	}
	return news.NewClient(cfg.News.APIKey,
		news.WithBaseURL(cfg.News.BaseURL),
		news.WithMaxArticles(cfg.News.MaxArticles),
	)
}

func newsQuery(cfg *config.Config) news.Query {
	return news.Query{
		Q:        cfg.News.Query,
		Country:  cfg.News.Country,
		Category: cfg.News.Category,
		Language: cfg.News.Language,
	}
}

// buildPipeline wires the engine, prompts and news tool into a local
// pipeline. metrics may be nil.
func buildPipeline(cfg *config.Config, log *slog.Logger, metrics *observability.Metrics) (*orchestrator.Pipeline, news.Fetcher, error) {
	if cfg.LLM.APIKey == "" {
		log.Warn("LLM_API_KEY is not set; requests go out unauthenticated", "base_url", cfg.LLM.BaseURL)
	}
	exec := engine.NewChatClient(engine.Options{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Logger:      log,
	})

	set, err := prompts.Load(cfg.Pipeline.PromptsDir, log)
	if err != nil {
		return nil, nil, err
	}

	fetcher := newsFetcher(cfg)
	if fetcher == nil {
		log.Warn("NEWSDATA_API_KEY is not set; research runs without live headlines")
	}

	p, err := orchestrator.NewPipeline(orchestrator.Config{
		StageTimeout: cfg.Pipeline.StageTimeout,
		Metrics:      metrics,
		Logger:       log,
	}, agent.Deps{
		Engine:    exec,
		Prompts:   set,
		News:      fetcher,
		NewsQuery: newsQuery(cfg),
		Logger:    log,
	})
	if err != nil {
		return nil, nil, err
	}
	log.Debug("pipeline ready", "model", exec.Model(), "stage_timeout", cfg.Pipeline.StageTimeout)
	return p, fetcher, nil
}

func closePipeline(p *orchestrator.Pipeline, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := p.Close(ctx); err != nil {
		log.Warn("pipeline shutdown", "error", err)
	}
}
