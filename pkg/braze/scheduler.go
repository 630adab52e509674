package braze

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/brazesync/pkg/errors"
	"github.com/ajitpratap0/brazesync/pkg/metrics"
)

const schedulerQueue = "scheduler"

// Task is an independently retryable unit of work.
type Task func(ctx context.Context) error

// Scheduler runs named tasks asynchronously from their submitter.
type Scheduler interface {
	RunNow(name string, task Task)
}

// SchedulerConfig sizes the async scheduler.
type SchedulerConfig struct {
	Workers       int
	QueueSize     int
	RetryAttempts int
	RetryDelay    time.Duration
}

// DefaultSchedulerConfig returns conservative defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Workers:       4,
		QueueSize:     256,
		RetryAttempts: 3,
		RetryDelay:    time.Second,
	}
}

// AsyncScheduler runs tasks on a fixed worker pool. Submitters never
// wait on completion. Retryable failures back off with doubling delay
// up to the attempt budget, then the task is logged and dropped so one
// bad item cannot stall its siblings.
type AsyncScheduler struct {
	config    SchedulerConfig
	logger    *zap.Logger
	queue     chan scheduledTask
	workers   sync.WaitGroup
	pending   sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

type scheduledTask struct {
	name string
	run  Task
}

// NewAsyncScheduler starts the worker pool immediately.
func NewAsyncScheduler(config SchedulerConfig, logger *zap.Logger) *AsyncScheduler {
	defaults := DefaultSchedulerConfig()
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.RetryAttempts < 0 {
		config.RetryAttempts = defaults.RetryAttempts
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = defaults.RetryDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &AsyncScheduler{
		config: config,
		logger: logger,
		queue:  make(chan scheduledTask, config.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < config.Workers; i++ {
		s.workers.Add(1)
		go s.worker()
	}
	return s
}

// RunNow queues the task for execution. It blocks only when the queue
// is full, and becomes a no-op once the scheduler is closed.
func (s *AsyncScheduler) RunNow(name string, task Task) {
	select {
	case <-s.ctx.Done():
		return
	default:
	}

	s.pending.Add(1)
	metrics.QueueDepth.WithLabelValues(schedulerQueue).Inc()
	select {
	case s.queue <- scheduledTask{name: name, run: task}:
	case <-s.ctx.Done():
		s.pending.Done()
		metrics.QueueDepth.WithLabelValues(schedulerQueue).Dec()
	}
}

// Drain blocks until every queued task has finished or ctx expires.
func (s *AsyncScheduler) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, "scheduler drain interrupted")
	}
}

// Close stops the workers and drops anything still queued. Callers that
// need queued work completed must Drain first.
func (s *AsyncScheduler) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.workers.Wait()
	})
}

func (s *AsyncScheduler) worker() {
	defer s.workers.Done()
	for {
		select {
		case task := <-s.queue:
			s.execute(task)
		case <-s.ctx.Done():
			// Flush the queue so a later Drain cannot hang on tasks
			// that will never run.
			for {
				select {
				case task := <-s.queue:
					s.logger.Warn("dropping queued task", zap.String("task", task.name))
					s.pending.Done()
					metrics.QueueDepth.WithLabelValues(schedulerQueue).Dec()
				default:
					return
				}
			}
		}
	}
}

func (s *AsyncScheduler) execute(task scheduledTask) {
	defer s.pending.Done()
	defer metrics.QueueDepth.WithLabelValues(schedulerQueue).Dec()

	// A worker can race Close for a queued task; closed wins.
	select {
	case <-s.ctx.Done():
		s.logger.Warn("dropping queued task", zap.String("task", task.name))
		return
	default:
	}

	metrics.ActiveJobs.Inc()
	defer metrics.ActiveJobs.Dec()

	delay := s.config.RetryDelay
	for attempt := 0; ; attempt++ {
		err := s.runOne(task)
		if err == nil {
			if attempt > 0 {
				s.logger.Info("task recovered",
					zap.String("task", task.name),
					zap.Int("attempts", attempt+1))
			}
			return
		}
		if attempt >= s.config.RetryAttempts || !errors.IsRetryable(err) {
			s.logger.Error("task failed, dropping",
				zap.String("task", task.name),
				zap.Int("attempts", attempt+1),
				zap.Error(err))
			return
		}

		s.logger.Warn("task failed, retrying",
			zap.String("task", task.name),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err))
		select {
		case <-time.After(delay):
		case <-s.ctx.Done():
			return
		}
		delay *= 2
	}
}

// runOne isolates task panics so a misbehaving item cannot take a
// worker down with it.
func (s *AsyncScheduler) runOne(task scheduledTask) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf(errors.ErrorTypeInternal, "task %s panicked: %v", task.name, r)
		}
	}()
	return task.run(s.ctx)
}
