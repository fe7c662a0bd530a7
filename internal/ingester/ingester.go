package ingester

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/airportmatch/nearestairport/internal/common"
	"github.com/airportmatch/nearestairport/internal/common/ctxlog"
	"github.com/airportmatch/nearestairport/internal/common/database"
	"github.com/airportmatch/nearestairport/internal/common/health"
	"github.com/airportmatch/nearestairport/internal/common/pipelineerrors"
	"github.com/airportmatch/nearestairport/internal/ingester/airportdb"
	"github.com/airportmatch/nearestairport/internal/ingester/configuration"
	"github.com/airportmatch/nearestairport/internal/ingester/geo"
	"github.com/airportmatch/nearestairport/internal/ingester/location"
	"github.com/airportmatch/nearestairport/internal/ingester/metrics"
	"github.com/airportmatch/nearestairport/internal/ingester/model"
	"github.com/airportmatch/nearestairport/internal/ingester/reference"
	"github.com/airportmatch/nearestairport/internal/ingester/scheduler"
)

// Summary is what operators need to judge how complete a run was.
type Summary struct {
	Succeeded      int
	Failed         int
	BatchesWritten int
	BatchesDropped int
	RowsWritten    int
	RowsDropped    int
	LinksWritten   int
	LinksDropped   int
	IndexFailures  int
	Duration       time.Duration
}

// Dispatcher emits one outcome per user. *scheduler.Scheduler satisfies it.
type Dispatcher interface {
	Run(ctx *ctxlog.Context, users model.UserRange, out chan<- model.JobOutcome) error
}

type Indexer interface {
	EnsureIndexes(ctx *ctxlog.Context, specs []airportdb.IndexSpec) error
}

// Pipeline ties the stages of a run together once every collaborator has been created.
type Pipeline struct {
	Dispatcher Dispatcher
	Writer     airportdb.BulkWriter
	Indexer    Indexer
	Links      []model.AirportLink
	Users      model.UserRange
	BatchSize  int
	Indexes    []airportdb.IndexSpec
}

// Run writes the link table, processes every user and then builds the indexes. Failed users, dropped batches and
// index failures are counted in the summary rather than returned. An error is returned only if dispatch was cut
// short, in which case whatever was processed has still been written.
func (p *Pipeline) Run(ctx *ctxlog.Context) (Summary, error) {
	start := time.Now()
	summary := Summary{}

	// Storage keeps going after a shutdown signal so the outcomes already received are not lost.
	storeCtx := ctxlog.New(context.WithoutCancel(ctx), ctx.Log)

	accumulator, err := airportdb.NewAccumulator(p.Writer, p.BatchSize)
	if err != nil {
		return summary, err
	}

	if len(p.Links) > 0 {
		if err := p.Writer.WriteLinks(storeCtx, p.Links); err != nil {
			ctx.Log.WithError(err).Errorf("Dropping %d airport links", len(p.Links))
			summary.LinksDropped = len(p.Links)
		} else {
			summary.LinksWritten = len(p.Links)
		}
	}

	outcomes := make(chan model.JobOutcome, p.BatchSize)
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		for outcome := range outcomes {
			if !outcome.Succeeded() {
				summary.Failed++
				continue
			}
			summary.Succeeded++
			accumulator.Add(storeCtx, outcome.Assignment())
		}
	}()

	dispatchErr := p.Dispatcher.Run(ctx, p.Users, outcomes)
	close(outcomes)
	<-consumed

	accumulator.Flush(storeCtx)
	stats := accumulator.Stats()
	summary.BatchesWritten = stats.BatchesWritten
	summary.BatchesDropped = stats.BatchesDropped
	summary.RowsWritten = stats.RowsWritten
	summary.RowsDropped = stats.RowsDropped

	if err := p.Indexer.EnsureIndexes(storeCtx, p.Indexes); err != nil {
		var indexErr *pipelineerrors.IndexError
		if errors.As(err, &indexErr) {
			summary.IndexFailures = len(indexErr.Errors)
		} else {
			summary.IndexFailures = len(p.Indexes)
		}
		ctx.Log.WithError(err).Warn("Lookups will be slower until the indexes are created")
	}

	summary.Duration = time.Since(start)
	ctx.Log.Infof(
		"Run finished in %s: %d users succeeded, %d failed; %d batches written (%d rows), %d batches dropped (%d rows); "+
			"%d links written, %d dropped; %d index failures",
		summary.Duration, summary.Succeeded, summary.Failed,
		summary.BatchesWritten, summary.RowsWritten, summary.BatchesDropped, summary.RowsDropped,
		summary.LinksWritten, summary.LinksDropped, summary.IndexFailures)

	if dispatchErr != nil {
		return summary, errors.WithMessagef(dispatchErr, "dispatch of users %s did not complete", p.Users)
	}
	return summary, nil
}

// Run performs a complete ingestion run as described by config. It fails without dispatching any user if the
// reference data cannot be loaded or the database is unreachable.
func Run(ctx *ctxlog.Context, config configuration.IngesterConfiguration) (Summary, error) {
	ctx = ctxlog.WithLogField(ctx, "runId", uuid.NewString())
	m := metrics.Get()

	airports, err := reference.LoadFile(config.ReferenceDataPath)
	if err != nil {
		return Summary{}, errors.Wrap(pipelineerrors.ErrStartup, err.Error())
	}

	ctx.Log.Infof("Opening connection pool to postgres")
	db, err := database.OpenPgxPool(ctx, config.Postgres)
	if err != nil {
		return Summary{}, errors.Wrap(pipelineerrors.ErrStartup, err.Error())
	}
	defer db.Close()

	migrations, err := airportdb.Migrations()
	if err != nil {
		return Summary{}, errors.Wrap(pipelineerrors.ErrStartup, err.Error())
	}
	if err := database.UpdateDatabase(ctx, db, migrations); err != nil {
		return Summary{}, errors.Wrap(pipelineerrors.ErrStartup, err.Error())
	}

	shutdownMetrics := common.ServeMetrics(config.MetricsPort, health.CheckerFunc(func(ctx context.Context) error {
		return db.Ping(ctx)
	}))
	defer shutdownMetrics()

	client, err := location.NewClient(
		config.LocationService.BaseUrl,
		&http.Client{},
		location.NewGate(config.RateLimit),
		location.NewLimiter(config.RequestsPerSecond),
		config.RetryLimit,
		config.RetryBackoff,
		config.LocationService.RequestTimeout,
		m)
	if err != nil {
		return Summary{}, errors.Wrap(pipelineerrors.ErrStartup, err.Error())
	}
	ctx.Log.Infof("Using %s", client)

	engine := geo.NewEngine(airports, config.EarthRadius)
	ctx.Log.Infof("Distances computed with an earth radius of %.0f km", float64(engine.Radius()))

	airportDb := airportdb.New(db, m, config.Postgres.MaxAttempts, config.Postgres.MaxBackoff)
	pipeline := &Pipeline{
		Dispatcher: scheduler.New(client, engine, config.RateLimit, m),
		Writer:     airportDb,
		Indexer:    airportDb,
		Links:      airports.Links(),
		Users:      config.UserRange.Range(),
		BatchSize:  config.BatchSize,
		Indexes:    config.Indexes,
	}
	return pipeline.Run(ctx)
}
