// Package core defines the essential interfaces and data structures that form the
// backbone of the application. These components are designed to be abstract,
// allowing for flexible and decoupled implementations of the application's logic.
package core

import (
	"context"
)

// JobDispatcher defines the contract for a system that can accept and queue
// background jobs for asynchronous processing. This interface decouples the
// event source (e.g., a webhook handler) from the job execution mechanism.
type JobDispatcher interface {
	// Dispatch accepts a PullRequestEvent and queues it for processing.
	// It returns an error if the job cannot be queued, for example, if the
	// queue is full, providing a mechanism for backpressure.
	Dispatch(ctx context.Context, event *PullRequestEvent) error
}

// Job represents a single, executable review of one pull request. Each run
// is triggered by a PullRequestEvent and returns the analysis that was
// persisted and posted.
type Job interface {
	// Run executes the review pipeline. A non-nil result may accompany a
	// non-nil error when the failure happened after persistence.
	Run(ctx context.Context, event *PullRequestEvent) (*AnalysisResult, error)
}
