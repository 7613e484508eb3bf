package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoagents-go/internal/signal"
)

func TestParseResponse(t *testing.T) {
	got, err := ParseResponse("a1", `{"label":"POS","score":1.7,"reasoning":"  ETF inflows "}`)
	require.NoError(t, err)
	assert.Equal(t, signal.Positive, got.Label)
	assert.Equal(t, 1.0, got.Score)
	assert.Equal(t, "ETF inflows", got.Reason)
	assert.Equal(t, "a1", got.ArticleID)

	got, err = ParseResponse("a2", `{"label":"neg","score":"-0.4"}`)
	require.NoError(t, err)
	assert.Equal(t, signal.Negative, got.Label)
	assert.InDelta(t, -0.4, got.Score, 1e-12)
	assert.Equal(t, missingReasoning, got.Reason)
}

func TestParseResponseRejectsMalformed(t *testing.T) {
	for _, content := range []string{
		`not json`,
		`{"score":0.2}`,
		`{"label":"bullish","score":0.2}`,
		`{"label":"neutral"}`,
		`{"label":"neutral","score":"high"}`,
	} {
		_, err := ParseResponse("x", content)
		if !errors.Is(err, ErrInvalidResponse) {
			t.Fatalf("%s: expected ErrInvalidResponse, got %v", content, err)
		}
	}
}

func TestOpenAIScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "json_object", req.ResponseFormat["type"])
		require.Len(t, req.Messages, 2)
		assert.True(t, strings.Contains(req.Messages[1].Content, "Symbols: BTC"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"label\":\"positive\",\"score\":0.6,\"reasoning\":\"adoption\"}"}}]}`))
	}))
	defer srv.Close()

	scorer, err := NewOpenAI(OpenAIConfig{BaseURL: srv.URL, APIKey: "sk-test", Model: "gpt-test", Timeout: time.Second})
	require.NoError(t, err)
	got, err := scorer.Score(context.Background(), signal.Article{ID: "n1", Title: "t", Symbols: []string{"BTC"}, PublishedAt: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, signal.Positive, got.Label)
	assert.InDelta(t, 0.6, got.Score, 1e-12)
	assert.Equal(t, "adoption", got.Reason)
}

func TestOpenAIScoreErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Fail") != "" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	scorer, err := NewOpenAI(OpenAIConfig{BaseURL: srv.URL, APIKey: "k"})
	require.NoError(t, err)
	_, err = scorer.Score(context.Background(), signal.Article{ID: "n1"})
	assert.ErrorIs(t, err, ErrInvalidResponse)

	scorer.client.SetHeader("X-Fail", "1")
	_, err = scorer.Score(context.Background(), signal.Article{ID: "n1"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidResponse))

	_, err = NewOpenAI(OpenAIConfig{})
	assert.Error(t, err)
}
