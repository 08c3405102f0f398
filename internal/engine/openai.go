package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultBaseURL   = "https://openrouter.ai/api/v1"
	DefaultModel     = "openai/gpt-4o-mini"
	DefaultMaxTokens = 4096

	defaultTimeout = 120 * time.Second
	tracerName     = "newsroom/engine"
)

// Options configures a ChatClient.
type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// ChatClient executes tasks against an OpenAI-compatible chat completions
// endpoint (OpenRouter, OpenAI, LM Studio, Ollama's /v1 shim, ...).
type ChatClient struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	http        *http.Client
	log         *slog.Logger
	tracer      trace.Tracer
}

var _ Executor = (*ChatClient)(nil)

// NewChatClient creates a ChatClient, filling unset options with defaults.
func NewChatClient(opts Options) *ChatClient {
	c := &ChatClient{
		baseURL:     normalizeBaseURL(opts.BaseURL),
		apiKey:      opts.APIKey,
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		http:        opts.HTTPClient,
		log:         opts.Logger,
		tracer:      otel.Tracer(tracerName),
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.maxTokens <= 0 {
		c.maxTokens = DefaultMaxTokens
	}
	if c.http == nil {
		c.http = &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				ForceAttemptHTTP2:   true,
				MaxIdleConns:        20,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c
}

// Model returns the model name sent with every request.
func (c *ChatClient) Model() string { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Execute sends task as a system/user message pair and returns the first
// choice's content.
func (c *ChatClient) Execute(ctx context.Context, task Task) (string, error) {
	if err := task.Validate(); err != nil {
		return "", err
	}

	ctx, span := c.tracer.Start(ctx, "engine.execute",
		trace.WithAttributes(
			attribute.String("task", task.Name),
			attribute.String("llm.model", c.model),
		),
	)
	defer span.End()

	start := time.Now()
	text, resp, err := c.complete(ctx, task)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.log.Warn("engine call failed", "task", task.Name, "model", c.model, "duration", time.Since(start), "error", err)
		return "", err
	}

	span.SetAttributes(
		attribute.Int("llm.tokens_input", resp.Usage.PromptTokens),
		attribute.Int("llm.tokens_output", resp.Usage.CompletionTokens),
	)
	span.SetStatus(codes.Ok, "")
	c.log.Debug("engine call completed",
		"task", task.Name,
		"model", c.model,
		"duration", time.Since(start),
		"tokens_in", resp.Usage.PromptTokens,
		"tokens_out", resp.Usage.CompletionTokens,
	)
	return text, nil
}

func (c *ChatClient) complete(ctx context.Context, task Task) (string, *chatResponse, error) {
	fail := func(status int, msg string, err error) (string, *chatResponse, error) {
		return "", nil, &ExecutionError{Task: task.Name, StatusCode: status, Message: msg, Err: err}
	}

	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: task.Persona()},
			{Role: "user", Content: task.Prompt()},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return fail(0, "marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return fail(0, "create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fail(0, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fail(resp.StatusCode, upstreamMessage(body, resp.Status), nil)
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fail(resp.StatusCode, "decode response", err)
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return fail(resp.StatusCode, decoded.Error.Message, nil)
	}
	if len(decoded.Choices) == 0 {
		return fail(resp.StatusCode, "response has no choices", nil)
	}
	content := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if content == "" {
		return fail(resp.StatusCode, "empty response", nil)
	}
	return content, &decoded, nil
}

// upstreamMessage extracts a provider error message from body, falling back
// to the HTTP status text.
func upstreamMessage(body []byte, status string) string {
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	if s := strings.TrimSpace(string(body)); s != "" && len(s) < 200 {
		return fmt.Sprintf("%s: %s", status, s)
	}
	return status
}

func normalizeBaseURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	if !strings.Contains(u, "://") {
		u = "http://" + u
	}
	return strings.TrimRight(u, "/")
}
