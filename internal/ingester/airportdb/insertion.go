package airportdb

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/airportmatch/nearestairport/internal/common/ctxlog"
	"github.com/airportmatch/nearestairport/internal/common/database"
	commonmetrics "github.com/airportmatch/nearestairport/internal/common/ingest/metrics"
	"github.com/airportmatch/nearestairport/internal/common/pipelineerrors"
	"github.com/airportmatch/nearestairport/internal/ingester/metrics"
	"github.com/airportmatch/nearestairport/internal/ingester/model"
)

const (
	AssignmentTable = "nearestairport"
	LinkTable       = "airportwikilink"
)

// BulkWriter stores batches of rows. A batch is written entirely or not at all.
type BulkWriter interface {
	WriteAssignments(ctx *ctxlog.Context, assignments []model.NearestAssignment) error
	WriteLinks(ctx *ctxlog.Context, links []model.AirportLink) error
}

// AirportDb writes to Postgres using the copy protocol. Rows already present are overwritten.
type AirportDb struct {
	db          *pgxpool.Pool
	metrics     *metrics.Metrics
	maxAttempts int
	maxBackoff  time.Duration
}

func New(db *pgxpool.Pool, m *metrics.Metrics, maxAttempts int, maxBackoff time.Duration) *AirportDb {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &AirportDb{db: db, metrics: m, maxAttempts: maxAttempts, maxBackoff: maxBackoff}
}

// WriteAssignments upserts the nearest airport of each user. On failure a *pipelineerrors.BatchWriteError is returned
// and none of the rows are stored.
func (a *AirportDb) WriteAssignments(ctx *ctxlog.Context, assignments []model.NearestAssignment) error {
	return a.writeBatch(ctx, AssignmentTable, len(assignments), func(tmpTable string) batchSteps {
		return batchSteps{
			createTmp: fmt.Sprintf(`
				CREATE TEMPORARY TABLE %s
				(
				  user_id    integer,
				  airport_id integer
				) ON COMMIT DROP;`, tmpTable),
			columns: []string{"user_id", "airport_id"},
			rows: pgx.CopyFromSlice(len(assignments), func(i int) ([]interface{}, error) {
				return []interface{}{
					assignments[i].UserId,
					assignments[i].AirportId,
				}, nil
			}),
			copyToDest: fmt.Sprintf(`
				INSERT INTO nearestairport (user_id, airport_id)
				SELECT DISTINCT ON (user_id) user_id, airport_id FROM %s
				ON CONFLICT (user_id) DO UPDATE SET airport_id = EXCLUDED.airport_id`, tmpTable),
		}
	})
}

// WriteLinks upserts the Wikipedia link of each airport.
func (a *AirportDb) WriteLinks(ctx *ctxlog.Context, links []model.AirportLink) error {
	return a.writeBatch(ctx, LinkTable, len(links), func(tmpTable string) batchSteps {
		return batchSteps{
			createTmp: fmt.Sprintf(`
				CREATE TEMPORARY TABLE %s
				(
				  airport_id     integer,
				  wikipedia_link text
				) ON COMMIT DROP;`, tmpTable),
			columns: []string{"airport_id", "wikipedia_link"},
			rows: pgx.CopyFromSlice(len(links), func(i int) ([]interface{}, error) {
				return []interface{}{
					links[i].AirportId,
					links[i].WikipediaLink,
				}, nil
			}),
			copyToDest: fmt.Sprintf(`
				INSERT INTO airportwikilink (airport_id, wikipedia_link)
				SELECT DISTINCT ON (airport_id) airport_id, wikipedia_link FROM %s
				ON CONFLICT (airport_id) DO UPDATE SET wikipedia_link = EXCLUDED.wikipedia_link`, tmpTable),
		}
	})
}

type batchSteps struct {
	createTmp  string
	columns    []string
	rows       pgx.CopyFromSource
	copyToDest string
}

func (a *AirportDb) writeBatch(ctx *ctxlog.Context, table string, numRows int, steps func(tmpTable string) batchSteps) error {
	if numRows == 0 {
		return nil
	}
	start := time.Now()
	err := database.WithDatabaseRetry(ctx, a.maxAttempts, a.maxBackoff, func() error {
		tmpTable := database.UniqueTableName(table)
		return a.batchInsert(ctx, tmpTable, steps(tmpTable))
	})
	if err != nil {
		a.metrics.RecordBatch(table, false)
		return &pipelineerrors.BatchWriteError{Table: table, Rows: numRows, Cause: err}
	}
	taken := time.Since(start)
	a.metrics.RecordBatch(table, true)
	a.metrics.RecordRowsChange(table, commonmetrics.DBOperationInsert, numRows)
	a.metrics.RecordAvRowChangeTime(table, numRows, taken)
	ctx.Log.Debugf("Wrote %d rows to %s in %s", numRows, table, taken)
	return nil
}

// batchInsert stages the rows in a temporary table with the copy protocol and moves them to the destination table,
// all inside one transaction on its own pooled connection.
func (a *AirportDb) batchInsert(ctx *ctxlog.Context, tmpTable string, steps batchSteps) error {
	return pgx.BeginTxFunc(ctx, a.db, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	}, func(tx pgx.Tx) error {
		// Create a temporary table to hold the staging data
		if _, err := tx.Exec(ctx, steps.createTmp); err != nil {
			a.metrics.RecordDBError(commonmetrics.DBOperationCreateTempTable)
			return err
		}

		if _, err := tx.CopyFrom(ctx, pgx.Identifier{tmpTable}, steps.columns, steps.rows); err != nil {
			a.metrics.RecordDBError(commonmetrics.DBOperationCopy)
			return err
		}

		if _, err := tx.Exec(ctx, steps.copyToDest); err != nil {
			a.metrics.RecordDBError(commonmetrics.DBOperationInsert)
			return err
		}
		return nil
	})
}
