package metrics

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveWebhook(t *testing.T) {
	before := testutil.ToFloat64(webhookDeliveries.WithLabelValues("ping", "pong"))
	ObserveWebhook("ping", "pong")
	assert.Equal(t, before+1, testutil.ToFloat64(webhookDeliveries.WithLabelValues("ping", "pong")))
}

func TestObserveWebhook_UnknownEventsShareOneSeries(t *testing.T) {
	ObserveWebhook("ping", "pong")
	ObserveWebhook("pull_request", "reviewed")
	ObserveWebhook("unverified", "unauthorized")
	before := testutil.CollectAndCount(webhookDeliveries)
	otherBefore := testutil.ToFloat64(webhookDeliveries.WithLabelValues("other", "ignored"))

	for i := range 200 {
		ObserveWebhook(fmt.Sprintf("random-event-%d", i), "ignored")
	}

	assert.LessOrEqual(t, testutil.CollectAndCount(webhookDeliveries), before+1)
	assert.Equal(t, otherBefore+200, testutil.ToFloat64(webhookDeliveries.WithLabelValues("other", "ignored")))
}

func TestObserveRetryAndDegraded(t *testing.T) {
	before := testutil.ToFloat64(llmRetries.WithLabelValues("generate"))
	ObserveRetry("generate")
	ObserveRetry("generate")
	assert.Equal(t, before+2, testutil.ToFloat64(llmRetries.WithLabelValues("generate")))

	ObserveDegraded("analyzer", "parse")
	assert.GreaterOrEqual(t, testutil.ToFloat64(degraded.WithLabelValues("analyzer", "parse")), 1.0)
}

func TestHandlerExposesCollectors(t *testing.T) {
	ObserveReview("DONE", 1.5)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "devflow_reviews_total")
	assert.Contains(t, string(body), "devflow_review_duration_seconds")
}
