package github

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sevigo/devflow/internal/core"
)

// Per-severity display caps.
const (
	maxHighIssues   = 5
	maxMediumIssues = 3
	maxLowIssues    = 3
)

const commentFooter = "\n---\n*Powered by DevFlow | AI Code Review Assistant*"

// FormatReviewComment renders an analysis as a Markdown pull request comment.
// The output depends only on the result, so equal inputs render identically.
func FormatReviewComment(result *core.AnalysisResult) string {
	if result == nil {
		result = core.DegradedResult("No analysis was produced - please review manually")
	}

	var sb strings.Builder
	sb.WriteString("## 🤖 DevFlow AI Code Review\n\n")

	summary := result.Summary
	if strings.TrimSpace(summary) == "" {
		summary = "Code analyzed"
	}
	fmt.Fprintf(&sb, "**Summary:** %s\n\n", summary)
	fmt.Fprintf(&sb, "**Quality Score:** %s/10\n\n", formatScore(result.Score))

	if high := capIssues(result.IssuesBySeverity(core.SeverityHigh), maxHighIssues); len(high) > 0 {
		sb.WriteString("### ⚠️ High Priority Issues\n\n")
		for _, issue := range high {
			fmt.Fprintf(&sb, "- **%s**: %s\n", issue.Type.Title(), issue.Message)
			if issue.Suggestion != "" {
				fmt.Fprintf(&sb, "  - *Suggestion:* %s\n", issue.Suggestion)
			}
			sb.WriteString("\n")
		}
	}

	if medium := capIssues(result.IssuesBySeverity(core.SeverityMedium), maxMediumIssues); len(medium) > 0 {
		sb.WriteString("### 🔸 Medium Priority Issues\n\n")
		for _, issue := range medium {
			fmt.Fprintf(&sb, "- **%s**: %s\n\n", issue.Type.Title(), issue.Message)
		}
	}

	if low := capIssues(result.IssuesBySeverity(core.SeverityLow), maxLowIssues); len(low) > 0 {
		sb.WriteString("### 💡 Suggestions\n\n")
		for _, issue := range low {
			fmt.Fprintf(&sb, "- %s\n", issue.Message)
		}
	}

	if len(result.Issues) == 0 {
		sb.WriteString("### ✅ No Issues Found\n\nGreat job! Code looks good.\n")
	}

	sb.WriteString(commentFooter)
	return sb.String()
}

func capIssues(issues []core.Issue, limit int) []core.Issue {
	if len(issues) > limit {
		return issues[:limit]
	}
	return issues
}

// formatScore prints whole scores without a fraction ("7", not "7.0").
func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}
