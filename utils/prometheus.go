package utils

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func GetCounterValue(metric prometheus.Counter) (int64, error) {
	var m = &dto.Metric{}
	if err := metric.Write(m); err != nil {
		return 0, err
	}
	return int64(m.Counter.GetValue()), nil
}

func GetGaugeValue(metric prometheus.Gauge) (float64, error) {
	var m = &dto.Metric{}
	if err := metric.Write(m); err != nil {
		return 0, err
	}
	return m.Gauge.GetValue(), nil
}

// Starts a goroutine that syncs per second rate estimates from a
// counter to a gauge until the context is done.
func RegisterQPSCounter(ctx context.Context,
	metric prometheus.Counter, gauge prometheus.Gauge) {
	interval := QPSInterval

	go func() {
		defer gauge.Set(0)

		for {
			start := GetTime().Now()
			start_value, _ := GetCounterValue(metric)

			SleepWithCtx(ctx, interval)
			if ctx.Err() != nil {
				return
			}

			end_value, _ := GetCounterValue(metric)
			elapsed := GetTime().Now().Sub(start)
			if elapsed <= 0 {
				continue
			}

			rate := float64(end_value-start_value) / elapsed.Seconds()
			gauge.Set(rate)
		}
	}()
}
