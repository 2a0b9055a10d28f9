package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordProviderAttempt(t *testing.T) {
	before := testutil.ToFloat64(providerAttempts.WithLabelValues("text", "metrics-test", "success"))
	RecordProviderAttempt("text", "metrics-test", "success", 0.2)
	RecordProviderAttempt("text", "metrics-test", "success", 0.3)
	assert.Equal(t, before+2, testutil.ToFloat64(providerAttempts.WithLabelValues("text", "metrics-test", "success")))
}

func TestQueueAndNetworkGauges(t *testing.T) {
	SetQueueDepth(4)
	assert.Equal(t, 4.0, testutil.ToFloat64(queueDepth))
	SetQueueDepth(0)
	assert.Equal(t, 0.0, testutil.ToFloat64(queueDepth))

	SetOnline(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(networkOnline))
	SetOnline(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(networkOnline))
}

func TestRecordQueueSettled(t *testing.T) {
	before := testutil.ToFloat64(queueOutcomes.WithLabelValues("rejected"))
	RecordQueueSettled(false)
	assert.Equal(t, before+1, testutil.ToFloat64(queueOutcomes.WithLabelValues("rejected")))
}
