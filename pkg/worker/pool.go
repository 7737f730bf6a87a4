// Package worker provides a fixed-size worker pool for dispatching
// prompt batches. Submission blocks when the queue is full so batch
// items are never dropped; callers coordinate completion with their own
// wait groups.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/probeworks/gauntlet/pkg/logger"
)

var (
	defaultNumWorkers uint = 3
	defaultQueueSize  uint = 256
)

// Job is a unit of work for the pool to execute. Jobs capture their own
// context and deliver their own results.
type Job func()

// Config is the configuration options for the worker pool.
type Config struct {
	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel.
	QueueSize uint

	// Logger defaults to the nop logger.
	Logger *slog.Logger
}

// Pool executes jobs on a fixed set of goroutines.
type Pool struct {
	queue chan Job
	wg    sync.WaitGroup
	log   *slog.Logger
}

// NewPool creates a pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c == nil {
		c = &Config{}
	}
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	log := c.Logger
	if log == nil {
		log = logger.Nop()
	}

	p := &Pool{
		queue: make(chan Job, c.QueueSize),
		log:   log,
	}

	p.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go p.worker(i)
	}

	return p, nil
}

// Submit queues a job, blocking while the queue is full. It returns the
// context error if ctx ends first.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	select {
	case p.queue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close signals workers to stop and waits for queued jobs to drain.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

// worker continuously pulls jobs off the queue.
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.log.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		job()
	}

	p.log.Debug("worker stopped", "worker_id", id)
}
