package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/ufflow/oats/pkg/events"
	"github.com/ufflow/oats/pkg/services"
)

// The collectors back both stats interfaces of the control plane.
var (
	_ services.Stats = (*Metrics)(nil)
	_ events.Stats   = (*Metrics)(nil)
)

func TestMetrics_Lifecycle(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.InvestigationStarted()
	m.InvestigationStarted()
	assert.Equal(t, float64(2), testutil.ToFloat64(m.StartedTotal))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Running))

	m.InvestigationTerminal("succeeded", 90*time.Second)
	m.InvestigationTerminal("failed", 10*time.Second)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.Running))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TerminalTotal.WithLabelValues("succeeded")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TerminalTotal.WithLabelValues("failed")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Duration))
}

func TestMetrics_Subscribers(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SubscriberAdded()
	m.SubscriberAdded()
	m.SubscriberRemoved()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Subscribers))
}
