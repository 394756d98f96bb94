package utils

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQPSCounter(t *testing.T) {
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_counter"})
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_gauge"})

	counter.Add(5)
	value, err := GetCounterValue(counter)
	require.NoError(t, err)
	assert.Equal(t, int64(5), value)

	old_interval := QPSInterval
	QPSInterval = 20 * time.Millisecond
	defer func() { QPSInterval = old_interval }()

	ctx, cancel := context.WithCancel(context.Background())
	RegisterQPSCounter(ctx, counter, gauge)

	// Keep the counter moving until a rate shows up.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		counter.Inc()
		rate, _ := GetGaugeValue(gauge)
		if rate > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	rate, err := GetGaugeValue(gauge)
	require.NoError(t, err)
	assert.True(t, rate > 0)

	cancel()
}

func TestIsNil(t *testing.T) {
	var ptr *int

	assert.True(t, IsNil(nil))
	assert.True(t, IsNil(ptr))
	assert.False(t, IsNil(1))
	assert.False(t, IsNil(""))
}
