// Package service provides business logic services for the HKids catalog.
package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hkids/catalog/internal/metrics"
	"github.com/hkids/catalog/internal/storage"
)

// CleanupQueue accepts image references for best-effort deletion after the
// owning record mutation has committed. Failures are observable through
// logs and metrics but never affect the caller's result.
type CleanupQueue interface {
	Enqueue(refs ...string)
}

// Cleaner is the production CleanupQueue: a buffered channel drained by a
// single worker goroutine owned by the composition root.
type Cleaner struct {
	store  storage.ImageStore
	queue  chan string
	stop   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
	logger zerolog.Logger
}

// NewCleaner creates a Cleaner with the given queue capacity.
func NewCleaner(store storage.ImageStore, queueSize int, logger zerolog.Logger) *Cleaner {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Cleaner{
		store:  store,
		queue:  make(chan string, queueSize),
		stop:   make(chan struct{}),
		logger: logger.With().Str("service", "cleanup").Logger(),
	}
}

// Start launches the worker goroutine.
func (c *Cleaner) Start() {
	c.wg.Add(1)
	go c.run()
}

func (c *Cleaner) run() {
	defer c.wg.Done()
	for {
		select {
		case ref := <-c.queue:
			c.deleteRef(ref)
		case <-c.stop:
			// Drain whatever is already queued, then exit.
			for {
				select {
				case ref := <-c.queue:
					c.deleteRef(ref)
				default:
					return
				}
			}
		}
	}
}

func (c *Cleaner) deleteRef(ref string) {
	if err := c.store.Delete(context.Background(), ref); err != nil {
		metrics.CleanupFailures.Inc()
		c.logger.Warn().Err(err).Str("ref", ref).Msg("failed to delete superseded image")
		return
	}
	c.logger.Debug().Str("ref", ref).Msg("deleted superseded image")
}

// Enqueue schedules owned references for deletion. References the store
// does not own (external URLs) are skipped. Never blocks: when the queue
// is full the reference is dropped and the drop is logged and counted.
func (c *Cleaner) Enqueue(refs ...string) {
	for _, ref := range refs {
		if ref == "" || !c.store.Owns(ref) {
			continue
		}
		select {
		case c.queue <- ref:
		default:
			metrics.CleanupDropped.Inc()
			c.logger.Warn().Str("ref", ref).Msg("cleanup queue full, dropping reference")
		}
	}
}

// Close stops the worker after draining queued references, bounded by the
// context deadline.
func (c *Cleaner) Close(ctx context.Context) error {
	c.once.Do(func() { close(c.stop) })

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// noopCleanup discards every request. Used when no image store is configured.
type noopCleanup struct{}

// Enqueue implements CleanupQueue.
func (noopCleanup) Enqueue(refs ...string) {}

// NopCleanup returns a CleanupQueue that does nothing.
func NopCleanup() CleanupQueue {
	return noopCleanup{}
}

var _ CleanupQueue = (*Cleaner)(nil)
