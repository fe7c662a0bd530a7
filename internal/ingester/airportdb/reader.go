package airportdb

import (
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/airportmatch/nearestairport/internal/common/ctxlog"
	commonmetrics "github.com/airportmatch/nearestairport/internal/common/ingest/metrics"
	"github.com/airportmatch/nearestairport/internal/ingester/metrics"
)

// Reader answers the point lookups of the query service.
type Reader interface {
	NearestAirport(ctx *ctxlog.Context, userId int64) (int64, bool, error)
	WikipediaLink(ctx *ctxlog.Context, airportId int64) (string, bool, error)
}

type PostgresReader struct {
	db      *pgxpool.Pool
	metrics *metrics.Metrics
}

func NewReader(db *pgxpool.Pool, m *metrics.Metrics) *PostgresReader {
	return &PostgresReader{db: db, metrics: m}
}

var dialect = goqu.Dialect("postgres")

// NearestAirport returns the airport assigned to userId. ok is false if the user has no assignment.
func (r *PostgresReader) NearestAirport(ctx *ctxlog.Context, userId int64) (int64, bool, error) {
	query, args, err := lookupQuery(AssignmentTable, "airport_id", "user_id", userId)
	if err != nil {
		return 0, false, err
	}
	var airportId int64
	err = r.db.QueryRow(ctx, query, args...).Scan(&airportId)
	return lookupResult(r.metrics, airportId, err)
}

// WikipediaLink returns the Wikipedia page of airportId. ok is false if the airport has no link.
func (r *PostgresReader) WikipediaLink(ctx *ctxlog.Context, airportId int64) (string, bool, error) {
	query, args, err := lookupQuery(LinkTable, "wikipedia_link", "airport_id", airportId)
	if err != nil {
		return "", false, err
	}
	var link string
	err = r.db.QueryRow(ctx, query, args...).Scan(&link)
	return lookupResult(r.metrics, link, err)
}

func lookupQuery(table string, column string, keyColumn string, key int64) (string, []interface{}, error) {
	query, args, err := dialect.
		From(goqu.T(table)).
		Select(goqu.C(column)).
		Where(goqu.C(keyColumn).Eq(key)).
		Prepared(true).
		ToSQL()
	return query, args, errors.WithStack(err)
}

func lookupResult[T any](m *metrics.Metrics, value T, err error) (T, bool, error) {
	var zero T
	if errors.Is(err, pgx.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		m.RecordDBError(commonmetrics.DBOperationRead)
		return zero, false, errors.WithStack(err)
	}
	return value, true, nil
}
