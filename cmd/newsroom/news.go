package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dusk-indust/newsroom/internal/news"
)

// NewsCmd queries the news source with the configured defaults.
type NewsCmd struct {
	Query    string `arg:"" optional:"" help:"Search keywords. Defaults to the configured query."`
	Country  string `help:"ISO country code filter."`
	Category string `help:"Category filter."`
	Language string `help:"Language code."`
	JSON     bool   `help:"Print the result as JSON."`
}

func (c *NewsCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, _, err := cli.load()
	if err != nil {
		return err
	}
	fetcher := newsFetcher(cfg)
	if fetcher == nil {
		return news.ErrNoAPIKey
	}

	res, err := fetcher.Fetch(ctx, c.query(newsQuery(cfg)))
	if err != nil {
		return err
	}
	return newRenderer(os.Stdout, c.JSON).articles(res)
}

// query overlays the command's arguments onto defaults.
func (c *NewsCmd) query(defaults news.Query) news.Query {
	q := defaults
	if c.Query != "" {
		q.Q = c.Query
	}
	if c.Country != "" {
		q.Country = c.Country
	}
	if c.Category != "" {
		q.Category = c.Category
	}
	if c.Language != "" {
		q.Language = c.Language
	}
	return q
}
