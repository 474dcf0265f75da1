package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/sevigo/devflow/internal/config"
	"github.com/sevigo/devflow/internal/core"
)

var (
	// ErrUnexpectedStatus wraps non-2xx responses other than 429.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrNoCandidate means a 2xx generation response carried no candidate text.
	ErrNoCandidate = errors.New("response has no candidate text")
)

// maxErrorBody bounds how much of an error response ends up in error messages.
const maxErrorBody = 512

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Embedder turns text into a core.EmbeddingDimensions vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GeminiConfig configures a GeminiClient.
type GeminiConfig struct {
	APIKey          string
	BaseURL         string
	GeneratorModel  string
	EmbedderModel   string
	Temperature     float64
	GenerateTimeout time.Duration
	EmbedTimeout    time.Duration
	GenerateRetry   RetryPolicy
	EmbedRetry      RetryPolicy
}

// GeminiConfigFromAI maps the application config onto a GeminiConfig.
func GeminiConfigFromAI(cfg *config.AIConfig) GeminiConfig {
	return GeminiConfig{
		APIKey:          cfg.GeminiAPIKey,
		BaseURL:         cfg.BaseURL,
		GeneratorModel:  cfg.GeneratorModel,
		EmbedderModel:   cfg.EmbedderModel,
		Temperature:     cfg.Temperature,
		GenerateTimeout: cfg.GenerateTimeout,
		EmbedTimeout:    cfg.EmbedTimeout,
		GenerateRetry:   RetryPolicy{MaxAttempts: cfg.MaxAttempts, BaseDelay: cfg.BaseDelay, Multiplier: 2},
		EmbedRetry:      RetryPolicy{MaxAttempts: cfg.EmbedMaxAttempts, BaseDelay: cfg.EmbedBaseDelay, Multiplier: 2},
	}
}

// GeminiClient talks to the Generative Language REST API. It implements both
// Generator and Embedder; each call has its own timeout and 429 retry policy.
type GeminiClient struct {
	cfg         GeminiConfig
	httpClient  *http.Client
	generateTry *Retrier
	embedTry    *Retrier
	logger      *slog.Logger
}

// NewGeminiClient creates a client. A nil httpClient uses http.DefaultClient.
func NewGeminiClient(cfg GeminiConfig, httpClient *http.Client, logger *slog.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if cfg.GeneratorModel == "" || cfg.EmbedderModel == "" {
		return nil, errors.New("gemini generator and embedder models are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GeminiClient{
		cfg:         cfg,
		httpClient:  httpClient,
		generateTry: NewRetrier(cfg.GenerateRetry, "generate", logger),
		embedTry:    NewRetrier(cfg.EmbedRetry, "embed", logger),
		logger:      logger,
	}, nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMIMEType string  `json:"responseMimeType"`
}

type generateRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type embedRequest struct {
	Model                string        `json:"model"`
	Content              geminiContent `json:"content"`
	OutputDimensionality int           `json:"outputDimensionality"`
}

// Generate sends prompt to :generateContent in JSON output mode and returns
// the first candidate's text.
func (g *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:      g.cfg.Temperature,
			ResponseMIMEType: "application/json",
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling generate request: %w", err)
	}

	var body []byte
	err = g.generateTry.Do(ctx, func(ctx context.Context) error {
		body, err = g.post(ctx, g.cfg.GeneratorModel, "generateContent", payload, g.cfg.GenerateTimeout)
		return err
	})
	if err != nil {
		return "", err
	}

	text := gjson.GetBytes(body, "candidates.0.content.parts.0.text")
	if text.Type != gjson.String {
		return "", ErrNoCandidate
	}
	return text.String(), nil
}

// Embed requests a core.EmbeddingDimensions vector for text from :embedContent.
// Vectors of any other length are rejected with core.ErrDimensionMismatch.
func (g *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(embedRequest{
		Model:                "models/" + g.cfg.EmbedderModel,
		Content:              geminiContent{Parts: []geminiPart{{Text: text}}},
		OutputDimensionality: core.EmbeddingDimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling embed request: %w", err)
	}

	var body []byte
	err = g.embedTry.Do(ctx, func(ctx context.Context) error {
		body, err = g.post(ctx, g.cfg.EmbedderModel, "embedContent", payload, g.cfg.EmbedTimeout)
		return err
	})
	if err != nil {
		return nil, err
	}

	values := gjson.GetBytes(body, "embedding.values")
	if !values.IsArray() {
		return nil, errors.New("embedding response has no values")
	}
	vec := make([]float32, 0, core.EmbeddingDimensions)
	for _, v := range values.Array() {
		vec = append(vec, float32(v.Float()))
	}
	if err := core.CheckDimensions(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// post performs one attempt. 429 maps to ErrRateLimited, any other non-2xx
// to ErrUnexpectedStatus.
func (g *GeminiClient) post(ctx context.Context, model, method string, payload []byte, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	url := fmt.Sprintf("%s/models/%s:%s", g.cfg.BaseURL, model, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.cfg.APIKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", method, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%s: %w", method, ErrRateLimited)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%s: %w %d: %s", method, ErrUnexpectedStatus, resp.StatusCode, truncateBytes(body, maxErrorBody))
	}
	return body, nil
}

func truncateBytes(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
