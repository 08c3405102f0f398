// Package news fetches recent articles from the NewsData.io API and shapes
// them into compact records for the research stage and the MCP tool.
package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the NewsData.io API root.
const DefaultBaseURL = "https://newsdata.io/api/1"

// ErrNoAPIKey is returned when the client has no API key configured.
var ErrNoAPIKey = errors.New("news: NEWSDATA_API_KEY is not set")

// Query selects articles.
type Query struct {
	Q        string `json:"query"`
	Country  string `json:"country,omitempty"`
	Category string `json:"category,omitempty"`
	Language string `json:"language,omitempty"`
}

// Article is one shaped news record.
type Article struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	Link        string   `json:"link"`
	SourceID    string   `json:"source_id"`
	SourceName  string   `json:"source_name"`
	PubDate     string   `json:"pub_date"`
	ImageURL    string   `json:"image_url"`
	Keywords    []string `json:"keywords"`
	Category    []string `json:"category"`
}

// Result is the outcome of one fetch.
type Result struct {
	Status   string    `json:"status"`
	Count    int       `json:"count"`
	Articles []Article `json:"articles"`
	Query    Query     `json:"query_params"`
}

// Fetcher is the news search capability consumed by the pipeline.
type Fetcher interface {
	Fetch(ctx context.Context, q Query) (*Result, error)
}

// Client talks to NewsData.io.
type Client struct {
	baseURL     string
	apiKey      string
	maxArticles int
	http        *http.Client
}

var _ Fetcher = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithMaxArticles caps the number of articles returned per fetch.
func WithMaxArticles(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxArticles = n
		}
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient creates a Client for apiKey.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		apiKey:      apiKey,
		maxArticles: 10,
		http:        &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rawArticle struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	Link        string   `json:"link"`
	SourceID    string   `json:"source_id"`
	SourceName  string   `json:"source_name"`
	PubDate     string   `json:"pubDate"`
	ImageURL    string   `json:"image_url"`
	Keywords    []string `json:"keywords"`
	Category    []string `json:"category"`
}

type apiResponse struct {
	Status  string          `json:"status"`
	Results json.RawMessage `json:"results"`
}

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Fetch queries the /news endpoint.
func (c *Client) Fetch(ctx context.Context, q Query) (*Result, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if strings.TrimSpace(q.Q) == "" {
		return nil, errors.New("news: query is required")
	}
	if q.Language == "" {
		q.Language = "en"
	}

	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("q", q.Q)
	params.Set("language", q.Language)
	if q.Country != "" {
		params.Set("country", q.Country)
	}
	if q.Category != "" {
		params.Set("category", q.Category)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/news?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("news: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("news: fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("news: read response: %w", err)
	}

	var decoded apiResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("news: fetch: HTTP %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("news: decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || decoded.Status != "success" {
		var ae apiError
		_ = json.Unmarshal(decoded.Results, &ae)
		if ae.Message == "" {
			ae.Message = "unexpected status " + decoded.Status
		}
		return nil, fmt.Errorf("news: fetch: HTTP %d: %s", resp.StatusCode, ae.Message)
	}

	var raw []rawArticle
	if err := json.Unmarshal(decoded.Results, &raw); err != nil {
		return nil, fmt.Errorf("news: decode articles: %w", err)
	}
	if len(raw) > c.maxArticles {
		raw = raw[:c.maxArticles]
	}

	out := &Result{Status: "success", Query: q, Articles: make([]Article, 0, len(raw))}
	for _, a := range raw {
		out.Articles = append(out.Articles, Article(a))
	}
	out.Count = len(out.Articles)
	return out, nil
}

// Headlines renders articles as a bullet list of "title (source): description"
// lines for prompt templates.
func Headlines(articles []Article) string {
	if len(articles) == 0 {
		return "(no headlines available)"
	}
	var b strings.Builder
	for i, a := range articles {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(strings.TrimSpace(a.Title))
		if src := firstNonEmpty(a.SourceName, a.SourceID); src != "" {
			fmt.Fprintf(&b, " (%s)", src)
		}
		if d := strings.TrimSpace(a.Description); d != "" {
			b.WriteString(": ")
			b.WriteString(truncate(d, 200))
		}
	}
	return b.String()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
