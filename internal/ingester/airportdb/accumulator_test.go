package airportdb

import (
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airportmatch/nearestairport/internal/common/ctxlog"
	"github.com/airportmatch/nearestairport/internal/ingester/model"
)

// recordingWriter keeps every batch it is asked to write and fails the batches whose (zero based) position is in
// failOn.
type recordingWriter struct {
	mu      sync.Mutex
	batches [][]model.NearestAssignment
	links   []model.AirportLink
	failOn  map[int]bool
}

func (w *recordingWriter) WriteAssignments(_ *ctxlog.Context, assignments []model.NearestAssignment) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := len(w.batches)
	w.batches = append(w.batches, assignments)
	if w.failOn[n] {
		return errors.New("connection reset by peer")
	}
	return nil
}

func (w *recordingWriter) WriteLinks(_ *ctxlog.Context, links []model.AirportLink) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.links = append(w.links, links...)
	return nil
}

func (w *recordingWriter) batchSizes() []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	sizes := make([]int, len(w.batches))
	for i, b := range w.batches {
		sizes[i] = len(b)
	}
	return sizes
}

func assignment(userId int64) model.NearestAssignment {
	return model.NearestAssignment{UserId: userId, AirportId: userId % 7}
}

func TestAccumulator_FlushesFullBatchesAndRemainder(t *testing.T) {
	writer := &recordingWriter{}
	acc, err := NewAccumulator(writer, 1000)
	require.NoError(t, err)

	ctx := ctxlog.Background()
	for i := 0; i < 1500; i++ {
		acc.Add(ctx, assignment(int64(i)))
	}
	assert.Equal(t, []int{1000}, writer.batchSizes())

	acc.Flush(ctx)
	assert.Equal(t, []int{1000, 500}, writer.batchSizes())
	assert.Equal(t, BatchStats{BatchesWritten: 2, RowsWritten: 1500}, acc.Stats())

	// nothing left, so nothing more is written
	acc.Flush(ctx)
	assert.Equal(t, []int{1000, 500}, writer.batchSizes())
}

func TestAccumulator_ExactMultiple(t *testing.T) {
	writer := &recordingWriter{}
	acc, err := NewAccumulator(writer, 3)
	require.NoError(t, err)

	ctx := ctxlog.Background()
	for i := 0; i < 6; i++ {
		acc.Add(ctx, assignment(int64(i)))
	}
	acc.Flush(ctx)
	assert.Equal(t, []int{3, 3}, writer.batchSizes())
}

func TestAccumulator_FailedBatchIsDropped(t *testing.T) {
	writer := &recordingWriter{failOn: map[int]bool{1: true}}
	acc, err := NewAccumulator(writer, 10)
	require.NoError(t, err)

	ctx := ctxlog.Background()
	for i := 0; i < 25; i++ {
		acc.Add(ctx, assignment(int64(i)))
	}
	acc.Flush(ctx)

	assert.Equal(t, []int{10, 10, 5}, writer.batchSizes())
	assert.Equal(t, BatchStats{
		BatchesWritten: 2,
		BatchesDropped: 1,
		RowsWritten:    15,
		RowsDropped:    10,
	}, acc.Stats())
}

func TestAccumulator_ConcurrentAdds(t *testing.T) {
	const (
		producers   = 8
		perProducer = 1250
		batchSize   = 100
	)
	writer := &recordingWriter{}
	acc, err := NewAccumulator(writer, batchSize)
	require.NoError(t, err)

	ctx := ctxlog.Background()
	wg := sync.WaitGroup{}
	for p := 0; p < producers; p++ {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				acc.Add(ctx, assignment(int64(p*perProducer+i)))
			}
		}()
	}
	wg.Wait()
	acc.Flush(ctx)

	seen := map[int64]bool{}
	for _, batch := range writer.batches {
		assert.LessOrEqual(t, len(batch), batchSize)
		for _, a := range batch {
			assert.False(t, seen[a.UserId], "user %d written twice", a.UserId)
			seen[a.UserId] = true
		}
	}
	assert.Len(t, seen, producers*perProducer)
	assert.Equal(t, producers*perProducer, acc.Stats().RowsWritten)
	assert.Equal(t, producers*perProducer/batchSize, acc.Stats().BatchesWritten)
}

func TestAccumulator_FlushEmpty(t *testing.T) {
	writer := &recordingWriter{}
	acc, err := NewAccumulator(writer, 5)
	require.NoError(t, err)

	acc.Flush(ctxlog.Background())
	assert.Empty(t, writer.batches)
	assert.Equal(t, BatchStats{}, acc.Stats())
}

func TestNewAccumulator_InvalidBatchSize(t *testing.T) {
	_, err := NewAccumulator(&recordingWriter{}, 0)
	assert.Error(t, err)
}
