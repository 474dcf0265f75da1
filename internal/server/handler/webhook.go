// Package handler provides HTTP handlers for the DevFlow server.
package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	gogithub "github.com/google/go-github/v73/github"
	"github.com/google/uuid"

	"github.com/sevigo/devflow/internal/core"
	"github.com/sevigo/devflow/internal/github"
	"github.com/sevigo/devflow/internal/jobs"
	"github.com/sevigo/devflow/internal/metrics"
	"github.com/sevigo/devflow/internal/util"
)

// MaxPayloadBytes is the largest webhook body accepted; GitHub caps deliveries at 25 MB.
const MaxPayloadBytes = 25 << 20

// ackGrace is added to the job timeout when extending the write deadline of
// an inline review's response.
const ackGrace = 10 * time.Second

// unverifiedEvent labels deliveries rejected before the signature matched.
const unverifiedEvent = "unverified"

// WebhookHandler verifies GitHub deliveries and starts reviews for opened
// pull requests, inline or through a dispatcher.
type WebhookHandler struct {
	secret     string
	job        core.Job
	dispatcher core.JobDispatcher
	jobTimeout time.Duration
	logger     *slog.Logger
	redact     []string
}

// NewWebhookHandler creates a webhook handler. When dispatcher is nil reviews
// run inside the request, detached from its cancellation and bounded by
// jobTimeout when positive. redact lists credentials scrubbed from responses.
func NewWebhookHandler(secret string, job core.Job, dispatcher core.JobDispatcher, jobTimeout time.Duration, logger *slog.Logger, redact ...string) *WebhookHandler {
	return &WebhookHandler{
		secret:     secret,
		job:        job,
		dispatcher: dispatcher,
		jobTimeout: jobTimeout,
		logger:     logger,
		redact:     redact,
	}
}

// Handle processes GitHub webhook requests.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	eventType := gogithub.WebHookType(r)
	deliveryID := gogithub.DeliveryID(r)
	if deliveryID == "" {
		deliveryID = uuid.NewString()
	}
	log := h.logger.With("event", eventType, "delivery", deliveryID)

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxPayloadBytes+1))
	if err != nil {
		log.Error("failed to read webhook body", "error", err)
		metrics.ObserveWebhook(unverifiedEvent, "unreadable")
		writeJSON(w, http.StatusBadRequest, ackResponse{Status: "error", Message: "could not read body", DeliveryID: deliveryID})
		return
	}
	if len(body) > MaxPayloadBytes {
		metrics.ObserveWebhook(unverifiedEvent, "too_large")
		writeJSON(w, http.StatusRequestEntityTooLarge, ackResponse{Status: "error", Message: "payload too large", DeliveryID: deliveryID})
		return
	}

	// Nothing about the body is trusted until the signature matches.
	if !github.VerifySignature(body, r.Header.Get(github.SignatureHeader), h.secret) {
		log.Warn("invalid webhook signature")
		metrics.ObserveWebhook(unverifiedEvent, "unauthorized")
		writeJSON(w, http.StatusUnauthorized, ackResponse{Status: "error", Message: "invalid signature"})
		return
	}

	switch eventType {
	case "ping":
		metrics.ObserveWebhook(eventType, "pong")
		writeJSON(w, http.StatusOK, ackResponse{Status: "pong"})
	case "pull_request":
		h.handlePullRequest(w, r, log, eventType, deliveryID, body)
	default:
		log.Debug("ignoring unhandled webhook event type")
		metrics.ObserveWebhook(eventType, "ignored")
		writeJSON(w, http.StatusOK, ackResponse{Status: "event ignored"})
	}
}

func (h *WebhookHandler) handlePullRequest(w http.ResponseWriter, r *http.Request, log *slog.Logger, eventType, deliveryID string, body []byte) {
	parsed, err := gogithub.ParseWebHook(eventType, body)
	if err != nil {
		log.Error("could not parse webhook", "error", err)
		metrics.ObserveWebhook(eventType, "malformed")
		writeJSON(w, http.StatusBadRequest, ackResponse{Status: "error", Message: "could not parse webhook", DeliveryID: deliveryID})
		return
	}
	prEvent, ok := parsed.(*gogithub.PullRequestEvent)
	if !ok {
		metrics.ObserveWebhook(eventType, "malformed")
		writeJSON(w, http.StatusBadRequest, ackResponse{Status: "error", Message: "unexpected payload", DeliveryID: deliveryID})
		return
	}

	event, err := core.EventFromPullRequest(prEvent)
	if errors.Is(err, core.ErrEventIgnored) {
		log.Debug("ignoring pull request event", "reason", err.Error())
		metrics.ObserveWebhook(eventType, "ignored")
		writeJSON(w, http.StatusOK, ackResponse{Status: "event ignored"})
		return
	}
	if err != nil {
		log.Warn("rejecting pull request event", "error", err)
		metrics.ObserveWebhook(eventType, "malformed")
		writeJSON(w, http.StatusBadRequest, ackResponse{Status: "error", Message: err.Error(), DeliveryID: deliveryID})
		return
	}
	event.DeliveryID = deliveryID

	if h.dispatcher != nil {
		if err := h.dispatcher.Dispatch(r.Context(), event); err != nil {
			log.Error("failed to dispatch review job", "repo", event.RepoFullName, "pr", event.PRNumber, "error", err)
			metrics.ObserveWebhook(eventType, "rejected")
			writeJSON(w, http.StatusServiceUnavailable, ackResponse{Status: "error", Message: "failed to queue review", DeliveryID: deliveryID})
			return
		}
		metrics.ObserveWebhook(eventType, "queued")
		writeJSON(w, http.StatusAccepted, ackResponse{
			Status:     "queued",
			Message:    fmt.Sprintf("PR #%d queued for review", event.PRNumber),
			DeliveryID: deliveryID,
		})
		return
	}

	// GitHub closes a delivery after 10s; the review keeps going without it.
	ctx := context.WithoutCancel(r.Context())
	if h.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.jobTimeout)
		defer cancel()
		h.extendWriteDeadline(w, log)
	}

	if _, err := h.job.Run(ctx, event); err != nil {
		resp := ackResponse{Status: "error", Stage: string(jobs.StageFailed), DeliveryID: deliveryID}
		var se *jobs.StageError
		if errors.As(err, &se) {
			resp.Stage = string(se.Stage)
		}
		resp.Message = util.Redact(err.Error(), h.redact...)
		metrics.ObserveWebhook(eventType, "failed")
		writeJSON(w, http.StatusOK, resp)
		return
	}

	metrics.ObserveWebhook(eventType, "reviewed")
	writeJSON(w, http.StatusOK, ackResponse{
		Status:     "received",
		Message:    fmt.Sprintf("PR #%d will be reviewed", event.PRNumber),
		DeliveryID: deliveryID,
	})
}

func (h *WebhookHandler) extendWriteDeadline(w http.ResponseWriter, log *slog.Logger) {
	err := http.NewResponseController(w).SetWriteDeadline(time.Now().Add(h.jobTimeout + ackGrace))
	if err != nil && !errors.Is(err, http.ErrNotSupported) {
		log.Debug("could not extend write deadline", "error", err)
	}
}
