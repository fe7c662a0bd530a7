package airportdb

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/airportmatch/nearestairport/internal/common/ctxlog"
	"github.com/airportmatch/nearestairport/internal/common/logging"
	"github.com/airportmatch/nearestairport/internal/ingester/model"
)

// BatchStats counts what happened to the batches handed to the writer.
type BatchStats struct {
	BatchesWritten int
	BatchesDropped int
	RowsWritten    int
	RowsDropped    int
}

// Accumulator buffers assignments and writes them in batches of batchSize. It is safe for concurrent use.
// A batch that fails to write is logged and dropped; it is never retried.
type Accumulator struct {
	writer    BulkWriter
	batchSize int

	mu     sync.Mutex
	buffer []model.NearestAssignment
	stats  BatchStats
}

func NewAccumulator(writer BulkWriter, batchSize int) (*Accumulator, error) {
	if batchSize < 1 {
		return nil, errors.Errorf("batch size must be at least 1, got %d", batchSize)
	}
	return &Accumulator{
		writer:    writer,
		batchSize: batchSize,
		buffer:    make([]model.NearestAssignment, 0, batchSize),
	}, nil
}

// Add buffers assignment. If this fills the buffer the full batch is written before Add returns.
func (a *Accumulator) Add(ctx *ctxlog.Context, assignment model.NearestAssignment) {
	a.mu.Lock()
	a.buffer = append(a.buffer, assignment)
	var batch []model.NearestAssignment
	if len(a.buffer) >= a.batchSize {
		batch = a.swap()
	}
	a.mu.Unlock()

	if batch != nil {
		a.write(ctx, batch)
	}
}

// Flush writes whatever is left in the buffer.
func (a *Accumulator) Flush(ctx *ctxlog.Context) {
	a.mu.Lock()
	var batch []model.NearestAssignment
	if len(a.buffer) > 0 {
		batch = a.swap()
	}
	a.mu.Unlock()

	if batch != nil {
		a.write(ctx, batch)
	}
}

func (a *Accumulator) Stats() BatchStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// swap must be called with the lock held.
func (a *Accumulator) swap() []model.NearestAssignment {
	batch := a.buffer
	a.buffer = make([]model.NearestAssignment, 0, a.batchSize)
	return batch
}

func (a *Accumulator) write(ctx *ctxlog.Context, batch []model.NearestAssignment) {
	err := a.writer.WriteAssignments(ctx, batch)

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.stats.BatchesDropped++
		a.stats.RowsDropped += len(batch)
		logging.WithStacktrace(ctx.Log, err).Errorf("Dropping batch of %d assignments", len(batch))
		return
	}
	a.stats.BatchesWritten++
	a.stats.RowsWritten += len(batch)
}
