// Package llm provides functionality for interacting with Large Language Models (LLMs),
// including prompt construction and Retrieval-Augmented Generation (RAG) workflows.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sevigo/devflow/internal/core"
	"github.com/sevigo/devflow/internal/metrics"
	"github.com/sevigo/devflow/internal/storage"
	"github.com/sevigo/devflow/internal/util"
)

const (
	// MaxEmbedDiffChars caps the diff prefix used as the retrieval query.
	MaxEmbedDiffChars = 1000
	// DefaultContextSnippets is how many neighbours are pulled into the prompt.
	DefaultContextSnippets = 3
)

// Reasons a retrieval came back empty.
const (
	DegradedEmbedding = "embedding_failed"
	DegradedDimension = "dimension_mismatch"
	DegradedQuery     = "query_failed"
)

// RetrievedContext is the outcome of one retrieval. Text is empty when
// nothing matched or when Degraded names the step that failed.
type RetrievedContext struct {
	Text     string
	Snippets int
	Degraded string
}

// ContextRetriever finds indexed code related to a diff.
type ContextRetriever interface {
	Retrieve(ctx context.Context, diff string) RetrievedContext
}

type ragRetriever struct {
	embedder Embedder
	index    storage.SnippetIndex
	k        int
	logger   *slog.Logger
}

// NewContextRetriever creates a retriever returning up to k snippets.
func NewContextRetriever(embedder Embedder, index storage.SnippetIndex, k int, logger *slog.Logger) ContextRetriever {
	if k <= 0 {
		k = DefaultContextSnippets
	}
	return &ragRetriever{embedder: embedder, index: index, k: k, logger: logger}
}

// Retrieve never fails. Errors are logged and reported through Degraded.
func (r *ragRetriever) Retrieve(ctx context.Context, diff string) RetrievedContext {
	query := util.TruncateRunes(diff, MaxEmbedDiffChars)
	if strings.TrimSpace(query) == "" {
		return RetrievedContext{}
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		reason := DegradedEmbedding
		if errors.Is(err, core.ErrDimensionMismatch) {
			reason = DegradedDimension
			r.logger.Error("embedding dimensionality does not match the snippet index", "error", err)
		} else {
			r.logger.Warn("failed to embed diff for retrieval", "error", err)
		}
		return r.degrade(reason)
	}

	snippets, err := r.index.NearestSnippets(ctx, vec, r.k)
	if err != nil {
		r.logger.Warn("snippet search failed", "error", err)
		return r.degrade(DegradedQuery)
	}
	if len(snippets) == 0 {
		return RetrievedContext{}
	}

	r.logger.Debug("retrieved context snippets", "count", len(snippets))
	return RetrievedContext{Text: formatSnippets(snippets), Snippets: len(snippets)}
}

func (r *ragRetriever) degrade(reason string) RetrievedContext {
	metrics.ObserveDegraded("retriever", reason)
	return RetrievedContext{Degraded: reason}
}

func formatSnippets(snippets []core.CodeSnippet) string {
	var sb strings.Builder
	for i, s := range snippets {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "--- File: %s ---\n%s", s.FilePath, s.Content)
	}
	return sb.String()
}
