package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterLockMetrics(t *testing.T) {
	reg := NewRegistry()
	RegisterLockMetrics(reg)

	before := testutil.ToFloat64(AttemptCounter)
	AttemptCounter.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(AttemptCounter))

	OutcomeCounter.WithLabelValues(OutcomeHeld).Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, family := range families {
		names[family.GetName()] = true
	}
	assert.True(t, names["nxlock_attempts_total"])
	assert.True(t, names["nxlock_acquisitions_total"])
	assert.True(t, names["nxlock_held"])
}

func TestRegisterLockMetrics_PanicsOnDoubleRegistration(t *testing.T) {
	reg := NewRegistry()
	RegisterLockMetrics(reg)

	assert.Panics(t, func() { RegisterLockMetrics(reg) })
}
