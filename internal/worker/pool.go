package worker

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var (
	ErrQueueFull   = errors.New("worker queue full")
	ErrPoolStopped = errors.New("worker pool stopped")
)

type Task func()

// Pool runs tasks on a fixed set of goroutines fed by a bounded queue.
// Submit never blocks the caller.
type Pool struct {
	wg    sync.WaitGroup
	mu    sync.RWMutex
	jobs  chan Task
	depth prometheus.Gauge
	log   *zap.Logger

	stopped bool
}

func NewPool(size, queueSize int, depth prometheus.Gauge, log *zap.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	p := &Pool{
		jobs:  make(chan Task, queueSize),
		depth: depth,
		log:   log.With(zap.String("component", "worker_pool")),
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				p.dequeued()
				p.run(job)
			}
		}()
	}
	return p
}

func (p *Pool) Submit(t Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrPoolStopped
	}

	// counted before the send so a fast worker never drives the gauge below zero
	if p.depth != nil {
		p.depth.Inc()
	}
	select {
	case p.jobs <- t:
		return nil
	default:
		p.dequeued()
		return ErrQueueFull
	}
}

// Stop rejects new tasks and waits for the queued ones to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) dequeued() {
	if p.depth != nil {
		p.depth.Dec()
	}
}

func (p *Pool) run(job Task) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("Task panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	job()
}
