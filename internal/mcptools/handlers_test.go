package mcptools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/newsroom/internal/news"
	"github.com/dusk-indust/newsroom/internal/observability"
	"github.com/dusk-indust/newsroom/internal/orchestrator"
	"github.com/dusk-indust/newsroom/internal/protocol"
)

// mockOrchestrator replays notifications through orchestrator.Collect.
type mockOrchestrator struct {
	notes []protocol.Notification
	err   error
}

func (m *mockOrchestrator) Generate(context.Context) (protocol.RunID, <-chan protocol.Notification, error) {
	if m.err != nil {
		return "", nil, m.err
	}
	ch := make(chan protocol.Notification, len(m.notes))
	for _, n := range m.notes {
		ch <- n
	}
	close(ch)
	return "run-1", ch, nil
}

func (m *mockOrchestrator) Run(ctx context.Context, onEvent func(protocol.Notification)) (*protocol.EditorialDone, error) {
	_, events, err := m.Generate(ctx)
	if err != nil {
		return nil, err
	}
	return orchestrator.Collect(ctx, events, onEvent)
}

// mockFetcher records the last query.
type mockFetcher struct {
	last   news.Query
	result *news.Result
	err    error
}

func (m *mockFetcher) Fetch(_ context.Context, q news.Query) (*news.Result, error) {
	m.last = q
	if m.err != nil {
		return nil, m.err
	}
	res := *m.result
	res.Query = q
	return &res, nil
}

func successRun() *mockOrchestrator {
	return &mockOrchestrator{notes: []protocol.Notification{
		protocol.ResearchDone{RunID: "run-1", Topic: "Quantum Tech"},
		protocol.SummaryDone{RunID: "run-1", Summary: "Quantum computing is advancing."},
		protocol.EditorialDone{RunID: "run-1", Topic: "Quantum Tech", Summary: "Quantum computing is advancing.", Editorial: "Quantum is here."},
	}}
}

var defaultQuery = news.Query{Q: "artificial intelligence OR technology", Language: "en"}

func TestNewsroomService_GenerateEditorial(t *testing.T) {
	svc := NewNewsroomService(successRun(), nil, defaultQuery, observability.Discard())

	_, out, err := svc.GenerateEditorial(context.Background(), nil, GenerateEditorialInput{})
	require.NoError(t, err)
	assert.Equal(t, GenerateEditorialOutput{
		RunID:     "run-1",
		Status:    "success",
		Topic:     "Quantum Tech",
		Summary:   "Quantum computing is advancing.",
		Editorial: "Quantum is here.",
		Events:    []string{"research_done", "summary_done", "editorial_done"},
	}, out)
}

func TestNewsroomService_GenerateEditorial_StageFailure(t *testing.T) {
	orch := &mockOrchestrator{notes: []protocol.Notification{
		protocol.ResearchDone{RunID: "run-1", Topic: "Chips"},
		protocol.StageFailure{RunID: "run-1", Stage: protocol.StageSummary, Error: "rate limited"},
	}}
	svc := NewNewsroomService(orch, nil, defaultQuery, observability.Discard())

	_, out, err := svc.GenerateEditorial(context.Background(), nil, GenerateEditorialInput{})
	require.NoError(t, err, "stage failures are reported in the output")
	assert.Equal(t, "error", out.Status)
	assert.Equal(t, "summary", out.Stage)
	assert.Equal(t, "rate limited", out.Error)
	assert.Equal(t, "Chips", out.Topic)
	assert.Equal(t, []string{"research_done", "error"}, out.Events)
	assert.Empty(t, out.Editorial)
}

func TestNewsroomService_GenerateEditorial_StartError(t *testing.T) {
	svc := NewNewsroomService(&mockOrchestrator{err: errors.New("system shut down")}, nil, defaultQuery, observability.Discard())

	_, _, err := svc.GenerateEditorial(context.Background(), nil, GenerateEditorialInput{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "system shut down")
}

func TestNewsroomService_FetchNews_MergesDefaults(t *testing.T) {
	f := &mockFetcher{result: &news.Result{
		Status:   "success",
		Articles: []news.Article{{Title: "Chip news", SourceID: "wire"}},
	}}
	svc := NewNewsroomService(successRun(), f, defaultQuery, observability.Discard())

	_, out, err := svc.FetchNews(context.Background(), nil, FetchNewsInput{Country: "us"})
	require.NoError(t, err)
	assert.Equal(t, news.Query{Q: defaultQuery.Q, Country: "us", Language: "en"}, f.last)
	assert.Equal(t, 1, out.Count)
	assert.Equal(t, "Chip news", out.Articles[0].Title)
	assert.NotNil(t, out.Articles[0].Keywords)
	assert.Equal(t, "us", out.Query.Country)

	_, _, err = svc.FetchNews(context.Background(), nil, FetchNewsInput{Query: "robots", Language: "de", Category: "science"})
	require.NoError(t, err)
	assert.Equal(t, news.Query{Q: "robots", Category: "science", Language: "de"}, f.last)
}

func TestNewsroomService_FetchNews_Errors(t *testing.T) {
	svc := NewNewsroomService(successRun(), nil, defaultQuery, observability.Discard())
	_, _, err := svc.FetchNews(context.Background(), nil, FetchNewsInput{})
	assert.ErrorIs(t, err, news.ErrNoAPIKey)

	f := &mockFetcher{err: errors.New("news: fetch: HTTP 429: rate limit")}
	svc = NewNewsroomService(successRun(), f, defaultQuery, observability.Discard())
	_, _, err = svc.FetchNews(context.Background(), nil, FetchNewsInput{})
	assert.ErrorContains(t, err, "HTTP 429")
}
