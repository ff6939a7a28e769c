package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestAddSeatsReserved(t *testing.T) {
	before := testutil.ToFloat64(seatsReserved)
	AddSeatsReserved(3)
	AddSeatsReserved(0)
	AddSeatsReserved(-1)
	assert.Equal(t, before+3, testutil.ToFloat64(seatsReserved))
}

func TestOutboxCounters(t *testing.T) {
	sentBefore := testutil.ToFloat64(outboxSent)
	failedBefore := testutil.ToFloat64(outboxFailed)
	retriesBefore := testutil.ToFloat64(outboxRetries)

	IncOutboxSent()
	IncOutboxFailed()
	IncOutboxRetry()
	IncOutboxRetry()

	assert.Equal(t, sentBefore+1, testutil.ToFloat64(outboxSent))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(outboxFailed))
	assert.Equal(t, retriesBefore+2, testutil.ToFloat64(outboxRetries))
}
