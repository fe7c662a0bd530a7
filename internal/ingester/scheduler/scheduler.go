package scheduler

import (
	"context"

	"github.com/pkg/errors"

	"github.com/airportmatch/nearestairport/internal/common/ctxlog"
	"github.com/airportmatch/nearestairport/internal/common/pipelineerrors"
	"github.com/airportmatch/nearestairport/internal/ingester/metrics"
	"github.com/airportmatch/nearestairport/internal/ingester/model"
)

// Fetcher resolves the coordinates of a single user. *location.Client satisfies it.
type Fetcher interface {
	Fetch(ctx *ctxlog.Context, userId int64) (model.UserCoordinate, error)
}

// Locator finds the airport nearest to a point. *geo.Engine satisfies it.
type Locator interface {
	Nearest(lat, lon float64) (model.AirportRecord, float64, bool)
}

// Scheduler drives a fixed pool of workers over a range of user ids. Each worker owns a job end to end: it fetches
// the user's coordinates, finds the nearest airport and emits the outcome.
type Scheduler struct {
	fetcher Fetcher
	locator Locator
	workers int
	metrics *metrics.Metrics
}

func New(fetcher Fetcher, locator Locator, workers int, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		fetcher: fetcher,
		locator: locator,
		workers: workers,
		metrics: m,
	}
}

// Run emits exactly one outcome on out for every user in users, in completion order. Failed jobs are logged and
// reported as outcomes; they never stop the run. Run returns once every worker has exited and does not close out.
// If ctx is cancelled no further users are dispatched and the cancellation error is returned. Jobs already dispatched
// are not interrupted: they run to completion and their outcomes are still emitted, so out must be drained until Run
// returns.
func (s *Scheduler) Run(ctx *ctxlog.Context, users model.UserRange, out chan<- model.JobOutcome) error {
	if s.workers < 1 {
		return errors.Errorf("scheduler needs at least one worker, got %d", s.workers)
	}
	ctx.Log.Infof("Dispatching %d users %s across %d workers", users.Len(), users, s.workers)

	g, groupCtx := ctxlog.ErrGroup(ctx)
	jobCtx := ctxlog.New(context.WithoutCancel(ctx), ctx.Log)
	ids := make(chan int64)

	g.Go(func() error {
		defer close(ids)
		for id := users.Start; id < users.End; id++ {
			select {
			case <-groupCtx.Done():
				return errors.WithMessage(groupCtx.Err(), "dispatch stopped")
			case ids <- id:
			}
		}
		return nil
	})

	for i := 0; i < s.workers; i++ {
		g.Go(func() error {
			for id := range ids {
				out <- s.process(jobCtx, id)
			}
			return nil
		})
	}

	return g.Wait()
}

func (s *Scheduler) process(ctx *ctxlog.Context, userId int64) model.JobOutcome {
	ctx = ctxlog.WithLogField(ctx, "userId", userId)
	ctx.Log.Debugf("%s -> %s", model.JobPending, model.JobInFlight)

	outcome := model.JobOutcome{UserId: userId}
	coordinate, err := s.fetcher.Fetch(ctx, userId)
	if err != nil {
		var fetchErr *pipelineerrors.FetchError
		if errors.As(err, &fetchErr) {
			outcome.Attempts = fetchErr.Attempts
		}
		return s.fail(ctx, outcome, err)
	}

	airport, distance, ok := s.locator.Nearest(coordinate.Latitude, coordinate.Longitude)
	if !ok {
		return s.fail(ctx, outcome, errors.New("reference set is empty"))
	}
	outcome.AirportId = airport.Id
	outcome.DistanceKm = distance

	ctx.Log.Debugf("%s: nearest airport %d (%s) at %.3f km", model.JobSuccess, airport.Id, airport.Name, distance)
	s.metrics.RecordJob(model.JobSuccess.String())
	return outcome
}

func (s *Scheduler) fail(ctx *ctxlog.Context, outcome model.JobOutcome, err error) model.JobOutcome {
	outcome.Err = err
	ctx.Log.WithError(err).Warnf("User %d: %s", outcome.UserId, model.JobFailed)
	s.metrics.RecordJob(model.JobFailed.String())
	return outcome
}
