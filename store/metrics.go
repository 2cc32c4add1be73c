package store

import (
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

// observe records the outcome and latency of a store operation.
func observe(op string, start time.Time, err error) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`kindstore_requests_total{op=%q}`, op)).Inc()
	metrics.GetOrCreateHistogram(fmt.Sprintf(`kindstore_request_duration_seconds{op=%q}`, op)).UpdateDuration(start)
	if err != nil {
		metrics.GetOrCreateCounter(fmt.Sprintf(`kindstore_errors_total{op=%q}`, op)).Inc()
	}
}
