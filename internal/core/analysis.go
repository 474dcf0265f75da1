package core

import "strings"

// DefaultScore is the quality score reported when no real analysis exists.
const DefaultScore = 5.0

// Severity is the closed set of issue severities.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityHigh, SeverityMedium, SeverityLow:
		return true
	default:
		return false
	}
}

// IssueType is the closed set of issue categories.
type IssueType string

const (
	IssueTypeSecurity    IssueType = "security"
	IssueTypeBug         IssueType = "bug"
	IssueTypeStyle       IssueType = "style"
	IssueTypePerformance IssueType = "performance"
)

// Valid reports whether t is one of the known issue types.
func (t IssueType) Valid() bool {
	switch t {
	case IssueTypeSecurity, IssueTypeBug, IssueTypeStyle, IssueTypePerformance:
		return true
	default:
		return false
	}
}

// Title returns the type with its first letter upper-cased ("Security").
func (t IssueType) Title() string {
	if t == "" {
		return ""
	}
	return strings.ToUpper(string(t[:1])) + string(t[1:])
}

// Issue is a single finding reported by the analysis.
type Issue struct {
	Severity   Severity  `json:"severity"`
	Type       IssueType `json:"type"`
	Line       int       `json:"line"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
}

// AnalysisResult is the structured verdict produced for one diff.
type AnalysisResult struct {
	Issues  []Issue `json:"issues"`
	Summary string  `json:"summary"`
	Score   float64 `json:"score"`

	// Degraded is set when the result is a fallback rather than a real analysis.
	Degraded bool `json:"-"`
}

// CountBySeverity returns how many issues carry the given severity.
func (r *AnalysisResult) CountBySeverity(s Severity) int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Severity == s {
			n++
		}
	}
	return n
}

// IssuesBySeverity returns the issues with the given severity, in order.
func (r *AnalysisResult) IssuesBySeverity(s Severity) []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.Severity == s {
			out = append(out, issue)
		}
	}
	return out
}

// DegradedResult builds the fallback result used when analysis is unavailable.
func DegradedResult(summary string) *AnalysisResult {
	return &AnalysisResult{
		Issues:   []Issue{},
		Summary:  summary,
		Score:    DefaultScore,
		Degraded: true,
	}
}
