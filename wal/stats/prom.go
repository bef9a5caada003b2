package stats

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func MilisecondsElapsed(from time.Time) float64 {
	return float64(time.Since(from)) / float64(time.Millisecond)
}

var (
	prometheusMetricsFactory = promauto.With(prometheus.DefaultRegisterer)

	appendedEntries = prometheusMetricsFactory.NewCounter(prometheus.CounterOpts{
		Name: "raftwal_appended_entries_total",
		Help: "The total count of entries appended to the log.",
	})
	appendedBytes = prometheusMetricsFactory.NewCounter(prometheus.CounterOpts{
		Name: "raftwal_appended_bytes_total",
		Help: "The total header and payload bytes appended to the log.",
	})
	readEntries = prometheusMetricsFactory.NewCounter(prometheus.CounterOpts{
		Name: "raftwal_read_entries_total",
		Help: "The total count of entries read back from the log.",
	})
	logSize = prometheusMetricsFactory.NewGauge(prometheus.GaugeOpts{
		Name: "raftwal_log_size_bytes",
		Help: "The current size of the log file.",
	})
	flushTime = prometheusMetricsFactory.NewHistogram(prometheus.HistogramOpts{
		Name:    "raftwal_flush_duration_milliseconds",
		Help:    "The time elapsed flushing the log to stable storage.",
		Buckets: []float64{0.5, 1, 5, 50, 100},
	})
)

func IncAppendedEntries(headerAndPayloadBytes int) {
	appendedEntries.Inc()
	appendedBytes.Add(float64(headerAndPayloadBytes))
}

func IncReadEntries() {
	readEntries.Inc()
}

func SetLogSize(bytes int64) {
	logSize.Set(float64(bytes))
}

func ObserveFlush(start time.Time) {
	flushTime.Observe(MilisecondsElapsed(start))
}
