package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sevigo/devflow/internal/core"
	"github.com/sevigo/devflow/internal/storage"
)

const maxListLimit = 100

// ReviewsHandler serves stored reviews.
type ReviewsHandler struct {
	store  storage.Store
	logger *slog.Logger
}

// NewReviewsHandler creates a ReviewsHandler.
func NewReviewsHandler(store storage.Store, logger *slog.Logger) *ReviewsHandler {
	return &ReviewsHandler{store: store, logger: logger}
}

// ReviewResponse is the JSON representation of a stored review.
type ReviewResponse struct {
	Repository     string          `json:"repository"`
	Number         int             `json:"number"`
	Title          string          `json:"title"`
	Author         string          `json:"author"`
	State          string          `json:"state"`
	IssuesFound    int             `json:"issues_found"`
	SeverityHigh   int             `json:"severity_high"`
	SeverityMedium int             `json:"severity_medium"`
	Analysis       json.RawMessage `json:"analysis"`
	ReviewedAt     *time.Time      `json:"reviewed_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

func toReviewResponse(s *core.ReviewSummary) ReviewResponse {
	analysis := s.Review.AIResponse
	if !json.Valid(analysis) {
		analysis = json.RawMessage("null")
	}
	return ReviewResponse{
		Repository:     s.PullRequest.RepoFullName,
		Number:         s.PullRequest.Number,
		Title:          s.PullRequest.Title,
		Author:         s.PullRequest.Author,
		State:          s.PullRequest.State,
		IssuesFound:    s.Review.IssuesFound,
		SeverityHigh:   s.Review.SeverityHigh,
		SeverityMedium: s.Review.SeverityMedium,
		Analysis:       analysis,
		ReviewedAt:     s.PullRequest.ReviewedAt,
		CreatedAt:      s.Review.CreatedAt,
	}
}

// GetLatest handles GET /api/v1/reviews/{owner}/{repo}/{number}.
func (h *ReviewsHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	fullName := chi.URLParam(r, "owner") + "/" + chi.URLParam(r, "repo")
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || number <= 0 {
		writeError(w, http.StatusBadRequest, "invalid pull request number")
		return
	}

	summary, err := h.store.GetLatestReview(r.Context(), fullName, number)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "review not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load review", "repo", fullName, "pr", number, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load review")
		return
	}
	writeJSON(w, http.StatusOK, toReviewResponse(summary))
}

// ListRecent handles GET /api/v1/reviews?limit=N.
func (h *ReviewsHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxListLimit)
	}

	summaries, err := h.store.ListRecentReviews(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list reviews", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list reviews")
		return
	}
	out := make([]ReviewResponse, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, toReviewResponse(s))
	}
	writeJSON(w, http.StatusOK, out)
}
