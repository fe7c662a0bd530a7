package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type (
	DBOperation string
	FetchError  string
)

const (
	DBOperationRead            DBOperation = "read"
	DBOperationInsert          DBOperation = "insert"
	DBOperationCopy            DBOperation = "copy"
	DBOperationCreateTempTable DBOperation = "create_temp_table"
	DBOperationCreateIndex     DBOperation = "create_index"
	FetchErrorTransient        FetchError  = "transient"
	FetchErrorPermanent        FetchError  = "permanent"
)

const (
	NearestAirportIngesterMetricsPrefix = "nearest_airport_ingester_"
)

// Metrics shared by every stage that talks to Postgres or to the location service.
type Metrics struct {
	dbErrorsCounter    *prometheus.CounterVec
	fetchErrorsCounter *prometheus.CounterVec
}

func NewMetrics(prefix string) *Metrics {
	dbErrorsCounterOpts := prometheus.CounterOpts{
		Name: prefix + "db_errors",
		Help: "Number of database errors grouped by database operation",
	}
	fetchErrorsCounterOpts := prometheus.CounterOpts{
		Name: prefix + "location_fetch_errors",
		Help: "Number of failed location requests grouped by failure kind",
	}
	return &Metrics{
		dbErrorsCounter:    promauto.NewCounterVec(dbErrorsCounterOpts, []string{"operation"}),
		fetchErrorsCounter: promauto.NewCounterVec(fetchErrorsCounterOpts, []string{"kind"}),
	}
}

func (m *Metrics) RecordDBError(operation DBOperation) {
	m.dbErrorsCounter.With(map[string]string{"operation": string(operation)}).Inc()
}

func (m *Metrics) RecordFetchError(kind FetchError) {
	m.fetchErrorsCounter.With(map[string]string{"kind": string(kind)}).Inc()
}
