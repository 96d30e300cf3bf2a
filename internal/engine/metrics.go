package engine

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tuannm99/novamem/internal/record"
	"github.com/tuannm99/novamem/internal/txn"
)

var (
	txnCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "novamem",
			Subsystem: "txn",
			Name:      "txns_count",
			Help:      "Counter of finished transactions.",
		}, []string{"result"})

	txnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "novamem",
			Subsystem: "txn",
			Name:      "handle_txns_duration_seconds",
			Help:      "Bucketed histogram of processing time (s) of transactions, retries included.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 16),
		}, []string{"result"})

	txnAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "novamem",
			Subsystem: "txn",
			Name:      "attempts",
			Help:      "Bucketed histogram of attempts needed per transaction.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
		})

	walAppendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "novamem",
			Subsystem: "wal",
			Name:      "append_duration_seconds",
			Help:      "Bucketed histogram of log append time (s), commit-order wait included.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 16),
		})

	walEntries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "novamem",
			Subsystem: "wal",
			Name:      "entries_total",
			Help:      "Counter of data entries appended to the log.",
		})

	walBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "novamem",
			Subsystem: "wal",
			Name:      "size_bytes",
			Help:      "Size of the log after the last checkpoint.",
		})

	checkpointCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "novamem",
			Subsystem: "checkpoint",
			Name:      "checkpoints_count",
			Help:      "Counter of checkpoints.",
		}, []string{"result"})

	checkpointDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "novamem",
			Subsystem: "checkpoint",
			Name:      "duration_seconds",
			Help:      "Bucketed histogram of checkpoint time (s).",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		})

	snapshotBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "novamem",
			Subsystem: "checkpoint",
			Name:      "snapshot_bytes",
			Help:      "Size of the last snapshot written.",
		})
)

func init() {
	prometheus.MustRegister(txnCounter)
	prometheus.MustRegister(txnDuration)
	prometheus.MustRegister(txnAttempts)
	prometheus.MustRegister(walAppendDuration)
	prometheus.MustRegister(walEntries)
	prometheus.MustRegister(walBytes)
	prometheus.MustRegister(checkpointCounter)
	prometheus.MustRegister(checkpointDuration)
	prometheus.MustRegister(snapshotBytes)
}

func txnResult(c txn.Commit, err error) string {
	switch {
	case err == nil && c.ReadOnly():
		return "read_only"
	case err == nil:
		return "committed"
	case errors.Is(err, record.ErrSchema):
		return "schema_error"
	case errors.Is(err, record.ErrType):
		return "type_error"
	case errors.Is(err, record.ErrValue):
		return "value_error"
	default:
		return "error"
	}
}

func observeTxn(c txn.Commit, err error, took time.Duration) {
	result := txnResult(c, err)
	txnCounter.WithLabelValues(result).Inc()
	txnDuration.WithLabelValues(result).Observe(took.Seconds())
	if c.Attempts > 0 {
		txnAttempts.Observe(float64(c.Attempts))
	}
}
