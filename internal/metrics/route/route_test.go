package route

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRouteMetrics_Singleton(t *testing.T) {
	m1 := GetRouteMetrics()
	m2 := GetRouteMetrics()

	require.NotNil(t, m1)
	assert.Same(t, m1, m2, "should return same instance")
}

func TestRouteMetrics_RecordRequest(t *testing.T) {
	m := GetRouteMetrics()

	before := testutil.ToFloat64(m.requestsTotal.WithLabelValues("route-test", "GET", "200"))
	m.RecordRequest("route-test", "GET", 200, 10*time.Millisecond, 128, 256)
	after := testutil.ToFloat64(m.requestsTotal.WithLabelValues("route-test", "GET", "200"))

	assert.Equal(t, before+1, after, "requestsTotal should increment by 1")
}
