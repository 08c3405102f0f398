package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dusk-indust/newsroom/internal/news"
	"github.com/dusk-indust/newsroom/internal/protocol"
)

// UnknownTopic is the topic reported when the research output carries no
// structured object.
const UnknownTopic = "Unknown"

// NewResearchWorker creates the research stage worker. It gathers current
// headlines, asks the engine to pick a topic and shapes the answer into
// ResearchData.
func NewResearchWorker(d Deps) *BaseWorker {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}

	return NewBaseWorker(protocol.StageResearch, func(ctx context.Context, cmd protocol.WorkerCommand) (protocol.Payload, error) {
		if _, ok := cmd.(protocol.Research); !ok {
			return nil, fmt.Errorf("research worker cannot handle %T", cmd)
		}

		task, err := d.Prompts.Research.Render(map[string]string{
			"headlines": headlines(ctx, d, log),
		})
		if err != nil {
			return nil, err
		}

		text, err := d.Engine.Execute(ctx, task)
		if err != nil {
			return nil, err
		}
		return ParseResearch(text)
	})
}

// headlines fetches live headlines for the research prompt. A failed fetch
// degrades to placeholder text.
func headlines(ctx context.Context, d Deps, log *slog.Logger) string {
	if d.News == nil {
		return news.Headlines(nil)
	}
	res, err := d.News.Fetch(ctx, d.NewsQuery)
	if err != nil {
		log.Warn("news fetch failed, researching without headlines", "query", d.NewsQuery.Q, "error", err)
		return news.Headlines(nil)
	}
	log.Debug("headlines fetched", "query", d.NewsQuery.Q, "count", res.Count)
	return news.Headlines(res.Articles)
}

// ParseResearch shapes the engine's research answer. Text containing a JSON
// object is decoded from its first '{' to its last '}' and must name a topic.
// Text without one yields UnknownTopic with the whole text as rationale.
func ParseResearch(text string) (protocol.ResearchData, error) {
	start := strings.Index(text, "{")
	if start < 0 {
		return protocol.ResearchData{Topic: UnknownTopic, Rationale: strings.TrimSpace(text)}, nil
	}
	end := strings.LastIndex(text, "}")
	if end < start {
		return protocol.ResearchData{}, errors.New("research result has an unterminated JSON object")
	}

	var data protocol.ResearchData
	if err := json.Unmarshal([]byte(text[start:end+1]), &data); err != nil {
		return protocol.ResearchData{}, fmt.Errorf("parse research result: %w", err)
	}
	data.Topic = strings.TrimSpace(data.Topic)
	if data.Topic == "" {
		return protocol.ResearchData{}, errors.New("research result has no topic")
	}
	return data, nil
}
