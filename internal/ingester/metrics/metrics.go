package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/airportmatch/nearestairport/internal/common/ingest/metrics"
	"github.com/airportmatch/nearestairport/internal/common/pipelineerrors"
)

// Nearest airport ingester specific metrics
var locationRequestDurationHist = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    metrics.NearestAirportIngesterMetricsPrefix + "location_request_duration_seconds",
		Help:    "Time taken by individual requests to the location service",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	},
	[]string{"code"},
)

var jobsCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: metrics.NearestAirportIngesterMetricsPrefix + "jobs",
		Help: "Number of user jobs that reached a terminal state",
	},
	[]string{"state"},
)

var batchesCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: metrics.NearestAirportIngesterMetricsPrefix + "batches",
		Help: "Number of batches bulk loaded into the database, by table and result",
	},
	[]string{"table", "result"},
)

var rowsChangedCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: metrics.NearestAirportIngesterMetricsPrefix + "rows_changed",
		Help: "Number of rows changed in the database",
	},
	[]string{"table", "operation"},
)

var avRowChangeTimeHist = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    metrics.NearestAirportIngesterMetricsPrefix + "average_row_change_time",
		Help:    "Average time take in milliseconds to change one database row",
		Buckets: []float64{0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10, 50, 100},
	},
	[]string{"table"},
)

type Metrics struct {
	*metrics.Metrics
}

var m = &Metrics{
	metrics.NewMetrics(metrics.NearestAirportIngesterMetricsPrefix),
}

func Get() *Metrics {
	return m
}

// RecordLocationRequest observes a single request to the location service. statusCode is 0 if no response was
// received.
func (m *Metrics) RecordLocationRequest(statusCode int, duration time.Duration) {
	code := "none"
	if statusCode > 0 {
		code = strconv.Itoa(statusCode)
	}
	locationRequestDurationHist.With(map[string]string{"code": code}).Observe(duration.Seconds())
}

func (m *Metrics) RecordFetchFailure(kind pipelineerrors.FailureKind) {
	switch kind {
	case pipelineerrors.Transient:
		m.RecordFetchError(metrics.FetchErrorTransient)
	default:
		m.RecordFetchError(metrics.FetchErrorPermanent)
	}
}

func (m *Metrics) RecordJob(state string) {
	jobsCounter.With(map[string]string{"state": state}).Inc()
}

func (m *Metrics) RecordBatch(table string, written bool) {
	result := "written"
	if !written {
		result = "dropped"
	}
	batchesCounter.With(map[string]string{"table": table, "result": result}).Inc()
}

func (m *Metrics) RecordRowsChange(table string, operation metrics.DBOperation, numRows int) {
	rowsChangedCounter.
		With(map[string]string{"table": table, "operation": string(operation)}).
		Add(float64(numRows))
}

func (m *Metrics) RecordAvRowChangeTime(table string, numRows int, duration time.Duration) {
	if numRows == 0 {
		return
	}
	avRowChangeTimeHist.
		With(map[string]string{"table": table}).
		Observe(float64(duration.Milliseconds()) / float64(numRows))
}
