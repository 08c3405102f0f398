package mcptools

import "github.com/dusk-indust/newsroom/internal/news"

// --- MCP tool input and output types ---
// The MCP Go SDK derives each tool's JSON schema from these structs.

// GenerateEditorialInput is the input for the generate_editorial tool. The
// pipeline picks its own topic, so there is nothing to pass.
type GenerateEditorialInput struct{}

// GenerateEditorialOutput is the result of the generate_editorial tool.
type GenerateEditorialOutput struct {
	RunID     string   `json:"runId"`
	Status    string   `json:"status" jsonschema:"success or error"`
	Stage     string   `json:"stage,omitempty" jsonschema:"the stage that failed, when status is error"`
	Topic     string   `json:"topic,omitempty"`
	Summary   string   `json:"summary,omitempty"`
	Editorial string   `json:"editorial,omitempty" jsonschema:"the editorial in markdown"`
	Error     string   `json:"error,omitempty"`
	Events    []string `json:"events" jsonschema:"notification events in the order they were received"`
}

// FetchNewsInput is the input for the fetch_news tool. Empty fields fall
// back to the server's configured query.
type FetchNewsInput struct {
	Query    string `json:"query,omitempty" jsonschema:"search keywords, e.g. artificial intelligence OR technology"`
	Country  string `json:"country,omitempty" jsonschema:"ISO country code filter, e.g. us"`
	Category string `json:"category,omitempty" jsonschema:"category filter, e.g. technology"`
	Language string `json:"language,omitempty" jsonschema:"language code (default: en)"`
}

// FetchNewsOutput is the result of the fetch_news tool.
type FetchNewsOutput struct {
	Status   string         `json:"status"`
	Count    int            `json:"count"`
	Articles []news.Article `json:"articles"`
	Query    news.Query     `json:"query"`
}
