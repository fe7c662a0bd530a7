package scheduler

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airportmatch/nearestairport/internal/common/ctxlog"
	"github.com/airportmatch/nearestairport/internal/common/pipelineerrors"
	"github.com/airportmatch/nearestairport/internal/ingester/geo"
	"github.com/airportmatch/nearestairport/internal/ingester/metrics"
	"github.com/airportmatch/nearestairport/internal/ingester/model"
)

var airports = model.ReferenceSet{
	{Id: 10, Name: "A", Latitude: 0, Longitude: 0},
	{Id: 20, Name: "B", Latitude: 0, Longitude: 1},
	{Id: 30, Name: "C", Latitude: 10, Longitude: 10},
}

// fakeFetcher places every user at (0, userId/10) unless told to fail it.
type fakeFetcher struct {
	failures map[int64]error
	delay    time.Duration

	mu      sync.Mutex
	calls   map[int64]int
	active  int32
	maxSeen int32
}

func newFakeFetcher(failures map[int64]error) *fakeFetcher {
	return &fakeFetcher{failures: failures, calls: map[int64]int{}}
}

func (f *fakeFetcher) Fetch(ctx *ctxlog.Context, userId int64) (model.UserCoordinate, error) {
	n := atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)
	for {
		old := atomic.LoadInt32(&f.maxSeen)
		if n <= old || atomic.CompareAndSwapInt32(&f.maxSeen, old, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls[userId]++
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return model.UserCoordinate{}, pipelineerrors.NewPermanent(userId, ctx.Err())
		case <-time.After(f.delay):
		}
	}
	if err, ok := f.failures[userId]; ok {
		return model.UserCoordinate{}, err
	}
	return model.UserCoordinate{UserId: userId, Latitude: 0, Longitude: float64(userId) / 10}, nil
}

func runToCompletion(t *testing.T, s *Scheduler, users model.UserRange) ([]model.JobOutcome, error) {
	t.Helper()
	out := make(chan model.JobOutcome)
	var outcomes []model.JobOutcome
	done := make(chan struct{})
	go func() {
		defer close(done)
		for o := range out {
			outcomes = append(outcomes, o)
		}
	}()
	err := s.Run(ctxlog.Background(), users, out)
	close(out)
	<-done
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].UserId < outcomes[j].UserId })
	return outcomes, err
}

func TestRun_OneOutcomePerUser(t *testing.T) {
	fetcher := newFakeFetcher(nil)
	s := New(fetcher, geo.NewEngine(airports, geo.MeanEarthRadiusKm), 4, metrics.Get())

	outcomes, err := runToCompletion(t, s, model.UserRange{Start: 0, End: 100})
	require.NoError(t, err)
	require.Len(t, outcomes, 100)
	for i, o := range outcomes {
		assert.Equal(t, int64(i), o.UserId)
		assert.True(t, o.Succeeded())
	}
	for id, calls := range fetcher.calls {
		assert.Equal(t, 1, calls, "user %d fetched more than once", id)
	}
}

func TestRun_ResolvesNearestAirport(t *testing.T) {
	s := New(newFakeFetcher(nil), geo.NewEngine(airports, geo.MeanEarthRadiusKm), 2, metrics.Get())

	// user 9 sits at (0, 0.9), closest to B
	outcomes, err := runToCompletion(t, s, model.UserRange{Start: 9, End: 10})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, int64(20), outcomes[0].AirportId)
	assert.InDelta(t, geo.Haversine(0, 0.9, 0, 1, geo.MeanEarthRadiusKm), outcomes[0].DistanceKm, 1e-9)

	// user 0 sits exactly on A
	outcomes, err = runToCompletion(t, s, model.UserRange{Start: 0, End: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(10), outcomes[0].AirportId)
	assert.Equal(t, 0.0, outcomes[0].DistanceKm)
}

func TestRun_FailuresDoNotAbort(t *testing.T) {
	exhausted := pipelineerrors.NewPermanent(1, errors.New("location service returned 503"))
	exhausted.Exhausted = true
	exhausted.Attempts = 3
	malformed := pipelineerrors.NewPermanent(3, errors.New("malformed location payload"))
	malformed.Attempts = 1

	s := New(
		newFakeFetcher(map[int64]error{1: exhausted, 3: malformed}),
		geo.NewEngine(airports, geo.MeanEarthRadiusKm),
		3,
		metrics.Get())

	outcomes, err := runToCompletion(t, s, model.UserRange{Start: 0, End: 5})
	require.NoError(t, err)
	require.Len(t, outcomes, 5)

	var succeeded []int64
	for _, o := range outcomes {
		if o.Succeeded() {
			succeeded = append(succeeded, o.UserId)
		}
	}
	assert.Equal(t, []int64{0, 2, 4}, succeeded)

	assert.ErrorIs(t, outcomes[1].Err, exhausted)
	assert.Equal(t, uint(3), outcomes[1].Attempts)
	assert.True(t, pipelineerrors.IsPermanent(outcomes[3].Err))
	assert.Equal(t, uint(1), outcomes[3].Attempts)
}

func TestRun_WorkerBound(t *testing.T) {
	const workers = 5
	fetcher := newFakeFetcher(nil)
	fetcher.delay = 5 * time.Millisecond
	s := New(fetcher, geo.NewEngine(airports, geo.MeanEarthRadiusKm), workers, metrics.Get())

	outcomes, err := runToCompletion(t, s, model.UserRange{Start: 0, End: 50})
	require.NoError(t, err)
	assert.Len(t, outcomes, 50)
	assert.LessOrEqual(t, atomic.LoadInt32(&fetcher.maxSeen), int32(workers))
	assert.Greater(t, atomic.LoadInt32(&fetcher.maxSeen), int32(1))
}

func TestRun_EmptyRange(t *testing.T) {
	s := New(newFakeFetcher(nil), geo.NewEngine(airports, geo.MeanEarthRadiusKm), 2, metrics.Get())

	outcomes, err := runToCompletion(t, s, model.UserRange{Start: 5, End: 5})
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}

func TestRun_EmptyReferenceSetFailsJobs(t *testing.T) {
	s := New(newFakeFetcher(nil), geo.NewEngine(nil, geo.MeanEarthRadiusKm), 2, metrics.Get())

	outcomes, err := runToCompletion(t, s, model.UserRange{Start: 0, End: 3})
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	for _, o := range outcomes {
		assert.False(t, o.Succeeded())
	}
}

func TestRun_InvalidWorkers(t *testing.T) {
	s := New(newFakeFetcher(nil), geo.NewEngine(airports, geo.MeanEarthRadiusKm), 0, metrics.Get())
	err := s.Run(ctxlog.Background(), model.UserRange{Start: 0, End: 1}, make(chan model.JobOutcome, 1))
	assert.Error(t, err)
}

func TestRun_CancelStopsDispatch(t *testing.T) {
	fetcher := newFakeFetcher(nil)
	fetcher.delay = 20 * time.Millisecond
	s := New(fetcher, geo.NewEngine(airports, geo.MeanEarthRadiusKm), 2, metrics.Get())

	ctx, cancel := ctxlog.WithCancel(ctxlog.Background())
	out := make(chan model.JobOutcome, 1000)
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	err := s.Run(ctx, model.UserRange{Start: 0, End: 1000}, out)
	close(out)
	assert.Error(t, err)
	assert.Less(t, len(out), 1000)
}

func TestRun_CancelKeepsDispatchedJobs(t *testing.T) {
	fetcher := newFakeFetcher(nil)
	fetcher.delay = 50 * time.Millisecond
	s := New(fetcher, geo.NewEngine(airports, geo.MeanEarthRadiusKm), 20, metrics.Get())

	ctx, cancel := ctxlog.WithCancel(ctxlog.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	var outcomes []model.JobOutcome
	out := make(chan model.JobOutcome)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for o := range out {
			outcomes = append(outcomes, o)
		}
	}()
	err := s.Run(ctx, model.UserRange{Start: 0, End: 1000}, out)
	close(out)
	<-done

	assert.ErrorIs(t, err, context.Canceled)
	fetcher.mu.Lock()
	started := len(fetcher.calls)
	fetcher.mu.Unlock()
	require.Greater(t, started, 0)
	assert.Less(t, started, 1000)
	assert.Len(t, outcomes, started)
	for _, o := range outcomes {
		assert.True(t, o.Succeeded(), "user %d: %v", o.UserId, o.Err)
	}
}
