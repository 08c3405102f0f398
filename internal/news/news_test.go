package news

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResponse = `{
  "status": "success",
  "totalResults": 3,
  "results": [
    {"title": "Qubits leave the lab", "description": "Startups ship quantum hardware.", "content": "Full text",
     "link": "https://example.com/q", "source_id": "example", "source_name": "Example News",
     "pubDate": "2025-11-03 08:00:00", "image_url": "https://example.com/q.png",
     "keywords": ["quantum"], "category": ["technology"]},
    {"title": "AI policy draft", "description": "", "source_id": "wire", "keywords": null, "category": ["politics"]},
    {"title": "Third story", "source_name": "Daily"}
  ]
}`

func TestClient_Fetch(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/1/news", r.URL.Path)
		gotQuery = map[string]string{}
		for k, v := range r.URL.Query() {
			gotQuery[k] = v[0]
		}
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	c := NewClient("nd-key", WithBaseURL(srv.URL+"/api/1/"), WithMaxArticles(2))
	res, err := c.Fetch(context.Background(), Query{Q: "quantum", Country: "us", Category: "technology"})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"apikey":   "nd-key",
		"q":        "quantum",
		"country":  "us",
		"category": "technology",
		"language": "en",
	}, gotQuery)

	assert.Equal(t, "success", res.Status)
	assert.Equal(t, 2, res.Count, "capped at max articles")
	require.Len(t, res.Articles, 2)

	first := res.Articles[0]
	assert.Equal(t, "Qubits leave the lab", first.Title)
	assert.Equal(t, "Example News", first.SourceName)
	assert.Equal(t, "2025-11-03 08:00:00", first.PubDate)
	assert.Equal(t, []string{"quantum"}, first.Keywords)
	assert.Equal(t, []string{"technology"}, first.Category)
	assert.Equal(t, "en", res.Query.Language)
}

func TestClient_FetchErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"api error", http.StatusUnauthorized, `{"status":"error","results":{"message":"API key invalid","code":"Unauthorized"}}`, "API key invalid"},
		{"not json", http.StatusBadGateway, `<html>bad gateway</html>`, "HTTP 502"},
		{"bad results", http.StatusOK, `{"status":"success","results":"nope"}`, "decode articles"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewClient("k", WithBaseURL(srv.URL)).Fetch(context.Background(), Query{Q: "ai"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestClient_FetchValidation(t *testing.T) {
	_, err := NewClient("").Fetch(context.Background(), Query{Q: "ai"})
	assert.True(t, errors.Is(err, ErrNoAPIKey))

	_, err = NewClient("k").Fetch(context.Background(), Query{Q: "  "})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query is required")
}

func TestHeadlines(t *testing.T) {
	assert.Equal(t, "(no headlines available)", Headlines(nil))

	got := Headlines([]Article{
		{Title: "Qubits leave the lab", SourceName: "Example News", Description: "Startups ship quantum hardware."},
		{Title: "AI policy draft", SourceID: "wire"},
	})
	assert.Equal(t, "- Qubits leave the lab (Example News): Startups ship quantum hardware.\n- AI policy draft (wire)", got)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 3))
	assert.Equal(t, "ab...", truncate("abc", 2))
}
