package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sevigo/devflow/internal/core"
)

// ErrMalformedAnalysis is returned when the model output is not an analysis object.
var ErrMalformedAnalysis = errors.New("malformed analysis")

type rawAnalysis struct {
	Issues  []json.RawMessage `json:"issues"`
	Summary *string           `json:"summary"`
	Score   *float64          `json:"score"`
}

type rawIssue struct {
	Severity   string `json:"severity"`
	Type       string `json:"type"`
	Line       int    `json:"line"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion"`
}

// parseAnalysis decodes model output into an AnalysisResult. Code fences are
// stripped first. Issues that do not fit the schema are dropped and described
// in the returned slice; a missing score becomes core.DefaultScore and any
// score is clamped to [0, 10].
func parseAnalysis(text string) (*core.AnalysisResult, []string, error) {
	body := stripCodeFence(text)
	if !strings.HasPrefix(body, "{") {
		return nil, nil, fmt.Errorf("%w: output is not a JSON object", ErrMalformedAnalysis)
	}

	var raw rawAnalysis
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrMalformedAnalysis, err)
	}

	result := &core.AnalysisResult{
		Issues: make([]core.Issue, 0, len(raw.Issues)),
		Score:  core.DefaultScore,
	}
	if raw.Summary != nil {
		result.Summary = strings.TrimSpace(*raw.Summary)
	}
	if raw.Score != nil {
		result.Score = clampScore(*raw.Score)
	}

	var dropped []string
	for i, msg := range raw.Issues {
		issue, err := decodeIssue(msg)
		if err != nil {
			dropped = append(dropped, fmt.Sprintf("issue %d: %v", i, err))
			continue
		}
		result.Issues = append(result.Issues, issue)
	}

	return result, dropped, nil
}

func decodeIssue(msg json.RawMessage) (core.Issue, error) {
	var ri rawIssue
	if err := json.Unmarshal(msg, &ri); err != nil {
		return core.Issue{}, err
	}

	issue := core.Issue{
		Severity:   core.Severity(strings.ToLower(strings.TrimSpace(ri.Severity))),
		Type:       core.IssueType(strings.ToLower(strings.TrimSpace(ri.Type))),
		Line:       ri.Line,
		Message:    strings.TrimSpace(ri.Message),
		Suggestion: strings.TrimSpace(ri.Suggestion),
	}

	switch {
	case !issue.Severity.Valid():
		return core.Issue{}, fmt.Errorf("invalid severity %q", ri.Severity)
	case !issue.Type.Valid():
		return core.Issue{}, fmt.Errorf("invalid type %q", ri.Type)
	case issue.Line < 0:
		return core.Issue{}, fmt.Errorf("negative line %d", issue.Line)
	case issue.Message == "":
		return core.Issue{}, errors.New("empty message")
	}
	return issue, nil
}

func clampScore(s float64) float64 {
	switch {
	case s < 0:
		return 0
	case s > 10:
		return 10
	default:
		return s
	}
}

// stripCodeFence removes a ```json ... ``` (or bare ```) wrapper some models
// add despite being told not to. Text after the closing fence is discarded.
func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	inner := strings.TrimPrefix(trimmed, "```")
	if nl := strings.Index(inner, "\n"); nl >= 0 {
		inner = inner[nl+1:]
	} else {
		inner = strings.TrimPrefix(inner, "json")
	}
	if end := strings.LastIndex(inner, "```"); end >= 0 {
		inner = inner[:end]
	}
	return strings.TrimSpace(inner)
}
