// Package history emits search history records off the query path. Emission
// is fire-and-forget through a bounded queue; when the queue is full the
// record is dropped and counted, never blocking a search.
package history

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/repository/history"
)

// appender persists history records. Implemented by the history repository.
type appender interface {
	Append(ctx context.Context, rec history.Record) error
}

// reader loads recent history records.
type reader interface {
	Recent(ctx context.Context, n int) ([]history.Record, error)
}

// Store combines the persistence contract the emitter consumes.
type Store interface {
	appender
	reader
}

// Emitter drains a bounded queue of history records into the store.
type Emitter struct {
	store     Store
	queue     chan history.Record
	writeTO   time.Duration
	dropped   func()
	emitted   func()
	logger    *zap.Logger
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Config holds emitter settings.
type Config struct {
	// QueueSize bounds the in-flight record queue.
	QueueSize int
	// WriteTimeout bounds each store write.
	WriteTimeout time.Duration
	// OnEmitted and OnDropped are metric hooks, may be nil.
	OnEmitted func()
	OnDropped func()
}

const (
	defaultQueueSize    = 256
	defaultWriteTimeout = 5 * time.Second
)

// NewEmitter creates an emitter. Call Start to begin draining and Close to
// flush and stop.
func NewEmitter(store Store, cfg Config, logger *zap.Logger) *Emitter {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	writeTO := cfg.WriteTimeout
	if writeTO <= 0 {
		writeTO = defaultWriteTimeout
	}

	noop := func() {}
	emitted := cfg.OnEmitted
	if emitted == nil {
		emitted = noop
	}
	dropped := cfg.OnDropped
	if dropped == nil {
		dropped = noop
	}

	return &Emitter{
		store:   store,
		queue:   make(chan history.Record, queueSize),
		writeTO: writeTO,
		emitted: emitted,
		dropped: dropped,
		logger:  logger,
	}
}

// Start launches the drain goroutine.
func (e *Emitter) Start() {
	e.wg.Add(1)
	go e.drain()
}

// Emit enqueues a record without blocking. A full queue drops the record.
func (e *Emitter) Emit(rec history.Record) {
	select {
	case e.queue <- rec:
	default:
		e.dropped()
		e.logger.Debug("History queue full, record dropped", zap.String("query", rec.Query))
	}
}

// Recent returns up to n newest records.
func (e *Emitter) Recent(ctx context.Context, n int) ([]history.Record, error) {
	return e.store.Recent(ctx, n)
}

// Close stops accepting records, flushes the queue, and waits for the drain
// goroutine to exit. Safe to call more than once.
func (e *Emitter) Close() {
	e.closeOnce.Do(func() {
		close(e.queue)
	})
	e.wg.Wait()
}

func (e *Emitter) drain() {
	defer e.wg.Done()

	for rec := range e.queue {
		ctx, cancel := context.WithTimeout(context.Background(), e.writeTO)
		err := e.store.Append(ctx, rec)
		cancel()

		if err != nil {
			e.dropped()
			e.logger.Warn("Failed to persist history record", zap.Error(err))
			continue
		}
		e.emitted()
	}
}
