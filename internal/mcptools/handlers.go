package mcptools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/newsroom/internal/news"
	"github.com/dusk-indust/newsroom/internal/orchestrator"
	"github.com/dusk-indust/newsroom/internal/protocol"
)

// NewsroomService handles MCP tool calls. It wraps an Orchestrator to run the
// pipeline and a news.Fetcher to expose the headline search directly.
type NewsroomService struct {
	pipeline orchestrator.Orchestrator
	fetcher  news.Fetcher
	query    news.Query
	log      *slog.Logger
}

// NewNewsroomService creates a NewsroomService. query supplies the defaults
// for fetch_news; fetcher may be nil, in which case fetch_news fails.
func NewNewsroomService(pipeline orchestrator.Orchestrator, fetcher news.Fetcher, query news.Query, log *slog.Logger) *NewsroomService {
	if log == nil {
		log = slog.Default()
	}
	return &NewsroomService{
		pipeline: pipeline,
		fetcher:  fetcher,
		query:    query,
		log:      log,
	}
}

// GenerateEditorial runs the pipeline once. A stage failure is reported in
// the output with status "error" rather than as a tool error, so the caller
// still sees how far the run got.
func (s *NewsroomService) GenerateEditorial(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ GenerateEditorialInput,
) (*mcp.CallToolResult, GenerateEditorialOutput, error) {
	out := GenerateEditorialOutput{Events: []string{}}

	done, err := s.pipeline.Run(ctx, func(n protocol.Notification) {
		out.RunID = string(n.Run())
		out.Events = append(out.Events, n.Event())
		switch v := n.(type) {
		case protocol.ResearchDone:
			out.Topic = v.Topic
		case protocol.SummaryDone:
			out.Summary = v.Summary
		}
	})

	var runErr *orchestrator.RunError
	switch {
	case errors.As(err, &runErr):
		out.Status = string(protocol.StatusError)
		out.Stage = string(runErr.Failure.Stage)
		out.Error = runErr.Failure.Error
		s.log.Warn("generate_editorial failed", "run_id", runErr.Failure.RunID.Short(), "stage", out.Stage, "error", out.Error)
		return nil, out, nil
	case err != nil:
		return nil, out, fmt.Errorf("generate editorial: %w", err)
	}

	out.Status = string(protocol.StatusSuccess)
	out.RunID = string(done.RunID)
	out.Topic = done.Topic
	out.Summary = done.Summary
	out.Editorial = done.Editorial
	return nil, out, nil
}

// FetchNews queries the news source with the input merged over the
// configured defaults.
func (s *NewsroomService) FetchNews(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input FetchNewsInput,
) (*mcp.CallToolResult, FetchNewsOutput, error) {
	if s.fetcher == nil {
		return nil, FetchNewsOutput{}, news.ErrNoAPIKey
	}

	q := s.query
	if input.Query != "" {
		q.Q = input.Query
	}
	if input.Country != "" {
		q.Country = input.Country
	}
	if input.Category != "" {
		q.Category = input.Category
	}
	if input.Language != "" {
		q.Language = input.Language
	}

	res, err := s.fetcher.Fetch(ctx, q)
	if err != nil {
		return nil, FetchNewsOutput{}, err
	}

	articles := make([]news.Article, len(res.Articles))
	for i, a := range res.Articles {
		if a.Keywords == nil {
			a.Keywords = []string{}
		}
		if a.Category == nil {
			a.Category = []string{}
		}
		articles[i] = a
	}
	return nil, FetchNewsOutput{
		Status:   res.Status,
		Count:    len(articles),
		Articles: articles,
		Query:    res.Query,
	}, nil
}
