package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ggokuldas06/tds-project1/internal/logging"
	"github.com/ggokuldas06/tds-project1/internal/metrics"
	"github.com/ggokuldas06/tds-project1/pkg/models"
)

// ErrQueueFull is returned by Submit when the backlog is at capacity.
var ErrQueueFull = errors.New("task queue is full")

// taskTimeout bounds one round end to end so a wedged deploy cannot
// pin a worker forever.
const taskTimeout = 30 * time.Minute

// Processor runs one accepted request. Implemented by Orchestrator.
type Processor interface {
	Process(ctx context.Context, req *models.TaskRequest)
}

// Pool runs accepted rounds on a fixed set of workers over a bounded
// queue. Submit never blocks the HTTP handler; when the buffer is full
// the caller sheds load instead.
type Pool struct {
	proc Processor
	jobs chan *models.TaskRequest
	wg   sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// NewPool starts workers draining a queue of the given capacity.
func NewPool(proc Processor, workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	p := &Pool{
		proc: proc,
		jobs: make(chan *models.TaskRequest, queueSize),
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker(i)
	}

	logging.L().Info("Task workers started",
		zap.Int("workers", workers),
		zap.Int("queue_size", queueSize))
	return p
}

// Submit enqueues a request without blocking. A full queue or a pool
// that is shutting down returns ErrQueueFull.
func (p *Pool) Submit(req *models.TaskRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrQueueFull
	}

	select {
	case p.jobs <- req:
		metrics.Get().SetQueueDepth(len(p.jobs))
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops intake and waits for in-flight rounds to finish or
// for ctx to expire, whichever comes first.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.L().Info("Task workers drained")
		return nil
	case <-ctx.Done():
		logging.L().Warn("Shutdown deadline passed with tasks still running")
		return ctx.Err()
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for req := range p.jobs {
		metrics.Get().SetQueueDepth(len(p.jobs))
		p.run(id, req)
	}
}

// run executes one round detached from the originating request. The
// fresh context means a closed client connection cannot cancel work
// that was already accepted.
func (p *Pool) run(id int, req *models.TaskRequest) {
	defer func() {
		if r := recover(); r != nil {
			logging.L().Error("Task panicked",
				zap.Int("worker", id),
				zap.String("task", req.Task),
				zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
	defer cancel()

	p.proc.Process(ctx, req)
}
