package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveLedger(t *testing.T) {
	before := testutil.ToFloat64(LedgerEventsTotal.WithLabelValues("EXAM", "applied"))

	done := ObserveLedger("EXAM")
	done("applied")

	after := testutil.ToFloat64(LedgerEventsTotal.WithLabelValues("EXAM", "applied"))
	assert.Equal(t, before+1, after)
}

func TestStatusBucket(t *testing.T) {
	assert.Equal(t, "1xx", statusBucket(101))
	assert.Equal(t, "2xx", statusBucket(204))
	assert.Equal(t, "3xx", statusBucket(302))
	assert.Equal(t, "4xx", statusBucket(404))
	assert.Equal(t, "5xx", statusBucket(503))
}
