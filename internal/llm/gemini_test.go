package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/devflow/internal/core"
)

func newTestGemini(t *testing.T, handler http.HandlerFunc) (*GeminiClient, *fakeTimer) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewGeminiClient(GeminiConfig{
		APIKey:         "test-key",
		BaseURL:        srv.URL,
		GeneratorModel: "gemini-test",
		EmbedderModel:  "embed-test",
		Temperature:    0.2,
		GenerateRetry:  RetryPolicy{MaxAttempts: 5, BaseDelay: 4 * time.Second, Multiplier: 2},
		EmbedRetry:     RetryPolicy{MaxAttempts: 2, BaseDelay: time.Second, Multiplier: 2},
	}, srv.Client(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	timer := newFakeTimer()
	client.generateTry.newTimer = func() backoff.Timer { return timer }
	client.embedTry.newTimer = func() backoff.Timer { return timer }
	return client, timer
}

func candidateBody(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
		},
	})
	return string(b)
}

func TestGeminiClient_Generate(t *testing.T) {
	client, _ := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Empty(t, r.URL.Query().Get("key"))

		var req generateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "application/json", req.GenerationConfig.ResponseMIMEType)
		assert.InDelta(t, 0.2, req.GenerationConfig.Temperature, 1e-9)
		assert.Equal(t, "review this", req.Contents[0].Parts[0].Text)

		fmt.Fprint(w, candidateBody(`{"issues":[],"summary":"ok","score":8}`))
	})

	text, err := client.Generate(context.Background(), "review this")
	require.NoError(t, err)
	assert.JSONEq(t, `{"issues":[],"summary":"ok","score":8}`, text)
}

func TestGeminiClient_GenerateRetriesOn429(t *testing.T) {
	var calls atomic.Int32
	client, timer := newTestGemini(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, candidateBody("third time lucky"))
	})

	text, err := client.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "third time lucky", text)
	assert.EqualValues(t, 3, calls.Load())
	assert.Equal(t, []time.Duration{4 * time.Second, 8 * time.Second}, timer.waits)
}

func TestGeminiClient_GenerateExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestGemini(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.EqualValues(t, 5, calls.Load())
}

func TestGeminiClient_GenerateFailsFastOnServerError(t *testing.T) {
	var calls atomic.Int32
	client, timer := newTestGemini(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := client.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.NotContains(t, err.Error(), "test-key")
	assert.EqualValues(t, 1, calls.Load())
	assert.Empty(t, timer.waits)
}

func TestGeminiClient_GenerateWithoutCandidate(t *testing.T) {
	client, _ := newTestGemini(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"candidates":[]}`)
	})

	_, err := client.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrNoCandidate)
}

func TestGeminiClient_Embed(t *testing.T) {
	client, _ := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/embed-test:embedContent", r.URL.Path)

		var req embedRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, core.EmbeddingDimensions, req.OutputDimensionality)
		assert.Equal(t, "models/embed-test", req.Model)
		assert.Equal(t, "some code", req.Content.Parts[0].Text)

		values := make([]string, core.EmbeddingDimensions)
		for i := range values {
			values[i] = "0.5"
		}
		fmt.Fprintf(w, `{"embedding":{"values":[%s]}}`, strings.Join(values, ","))
	})

	vec, err := client.Embed(context.Background(), "some code")
	require.NoError(t, err)
	assert.Len(t, vec, core.EmbeddingDimensions)
	assert.InDelta(t, 0.5, vec[0], 1e-6)
}

func TestGeminiClient_EmbedRejectsWrongDimensions(t *testing.T) {
	client, _ := newTestGemini(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"embedding":{"values":[0.1,0.2,0.3]}}`)
	})

	_, err := client.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestGeminiClient_EmbedMalformed(t *testing.T) {
	client, _ := newTestGemini(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"error":"nope"}`)
	})

	_, err := client.Embed(context.Background(), "x")
	assert.Error(t, err)
}

func TestNewGeminiClient_Validation(t *testing.T) {
	_, err := NewGeminiClient(GeminiConfig{GeneratorModel: "g", EmbedderModel: "e"}, nil, slog.Default())
	assert.Error(t, err)

	_, err = NewGeminiClient(GeminiConfig{APIKey: "k"}, nil, slog.Default())
	assert.Error(t, err)
}
