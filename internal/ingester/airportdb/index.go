package airportdb

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/airportmatch/nearestairport/internal/common/ctxlog"
	commonmetrics "github.com/airportmatch/nearestairport/internal/common/ingest/metrics"
	"github.com/airportmatch/nearestairport/internal/common/pipelineerrors"
)

// IndexSpec names a single column lookup index.
type IndexSpec struct {
	Table  string `validate:"required"`
	Column string `validate:"required"`
}

func (s IndexSpec) Name() string {
	return fmt.Sprintf("idx_%s_%s", s.Table, s.Column)
}

// DefaultIndexes are the lookups served by the read path. Both duplicate the primary keys.
var DefaultIndexes = []IndexSpec{
	{Table: AssignmentTable, Column: "user_id"},
	{Table: LinkTable, Column: "airport_id"},
}

// EnsureIndex creates a lookup index on table(column) unless one with the same name already exists.
func (a *AirportDb) EnsureIndex(ctx *ctxlog.Context, table string, column string) error {
	spec := IndexSpec{Table: table, Column: column}
	sql := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
		pgx.Identifier{spec.Name()}.Sanitize(),
		pgx.Identifier{table}.Sanitize(),
		pgx.Identifier{column}.Sanitize())

	start := time.Now()
	if _, err := a.db.Exec(ctx, sql); err != nil {
		a.metrics.RecordDBError(commonmetrics.DBOperationCreateIndex)
		return errors.WithMessagef(err, "creating index %s", spec.Name())
	}
	ctx.Log.Infof("Ensured index %s in %s", spec.Name(), time.Since(start))
	return nil
}

// EnsureIndexes creates every index in specs, carrying on past failures. If any fail a *pipelineerrors.IndexError
// holding every failure is returned.
func (a *AirportDb) EnsureIndexes(ctx *ctxlog.Context, specs []IndexSpec) error {
	var result *multierror.Error
	for _, spec := range specs {
		if err := a.EnsureIndex(ctx, spec.Table, spec.Column); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if result == nil {
		return nil
	}
	return &pipelineerrors.IndexError{Errors: result.Errors}
}
