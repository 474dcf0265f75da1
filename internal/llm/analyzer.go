package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/sevigo/devflow/internal/core"
	"github.com/sevigo/devflow/internal/metrics"
	"github.com/sevigo/devflow/internal/util"
)

const (
	// MaxPromptDiffChars caps the diff sent for analysis.
	MaxPromptDiffChars = 30000
	// MaxPromptFiles caps the changed-file names listed in the prompt.
	MaxPromptFiles = 10

	unknownFiles = "Unknown"
)

// Degraded summaries, one per failure category.
const (
	SummaryConnectionFailure = "AI analysis unavailable: the model backend could not be reached or rejected the request (connection failure). Please review manually."
	SummaryParseFailure      = "AI analysis unavailable: the model response could not be parsed (parse failure). Please review manually."
	SummaryPromptFailure     = "AI analysis unavailable: the review prompt could not be built. Please review manually."
)

// Analyzer produces a structured verdict for a diff. It never fails: backend
// and parse problems yield a degraded result instead.
type Analyzer interface {
	Analyze(ctx context.Context, diff string, files []string, retrieved string) *core.AnalysisResult
}

type reviewPromptData struct {
	Context string
	Files   string
	Diff    string
}

type codeAnalyzer struct {
	generator Generator
	prompts   *PromptManager
	provider  ModelProvider
	logger    *slog.Logger
}

// NewAnalyzer creates an Analyzer that renders the code_review prompt and
// sends it to generator.
func NewAnalyzer(generator Generator, prompts *PromptManager, logger *slog.Logger) Analyzer {
	return &codeAnalyzer{
		generator: generator,
		prompts:   prompts,
		provider:  GeminiProvider,
		logger:    logger,
	}
}

func (a *codeAnalyzer) Analyze(ctx context.Context, diff string, files []string, retrieved string) *core.AnalysisResult {
	prompt, err := a.prompts.Render(CodeReviewPrompt, a.provider, reviewPromptData{
		Context: retrieved,
		Files:   fileList(files),
		Diff:    util.TruncateRunes(diff, MaxPromptDiffChars),
	})
	if err != nil {
		a.logger.Error("failed to render review prompt", "error", err)
		return a.degrade("prompt", SummaryPromptFailure)
	}

	text, err := a.generator.Generate(ctx, prompt)
	if err != nil {
		if errors.Is(err, ErrNoCandidate) {
			a.logger.Warn("model returned no candidate text", "error", err)
			return a.degrade("parse", SummaryParseFailure)
		}
		a.logger.Error("model call failed", "error", err)
		return a.degrade("connection", SummaryConnectionFailure)
	}

	result, dropped, err := parseAnalysis(text)
	if err != nil {
		a.logger.Warn("failed to parse model output", "error", err, "output_prefix", util.TruncateRunes(text, 200))
		return a.degrade("parse", SummaryParseFailure)
	}
	for _, reason := range dropped {
		a.logger.Warn("dropped invalid issue from model output", "reason", reason)
	}
	return result
}

func (a *codeAnalyzer) degrade(reason, summary string) *core.AnalysisResult {
	metrics.ObserveDegraded("analyzer", reason)
	return core.DegradedResult(summary)
}

func fileList(files []string) string {
	names := make([]string, 0, min(len(files), MaxPromptFiles))
	for _, f := range files {
		if f = strings.TrimSpace(f); f == "" {
			continue
		}
		names = append(names, f)
		if len(names) == MaxPromptFiles {
			break
		}
	}
	if len(names) == 0 {
		return unknownFiles
	}
	return strings.Join(names, ", ")
}
