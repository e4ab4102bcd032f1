package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"hrdesk/internal/platform/metrics"
)

// Task is a periodic housekeeping job. It returns the number of items it
// removed or changed, for logging.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (int, error)
}

type Service struct {
	metrics *metrics.Collector
	queue   chan Task

	mu    sync.Mutex
	tasks []Task
}

func New(collector *metrics.Collector) *Service {
	return &Service{
		metrics: collector,
		queue:   make(chan Task, 32),
	}
}

func (s *Service) Register(task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task)
}

// Start launches the worker and one scheduler per registered task. Everything
// stops when ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	s.mu.Lock()
	tasks := append([]Task(nil), s.tasks...)
	s.mu.Unlock()
	for _, task := range tasks {
		if task.Interval <= 0 {
			continue
		}
		go s.schedule(ctx, task)
	}
}

func (s *Service) Enqueue(task Task) {
	select {
	case s.queue <- task:
	default:
		slog.Warn("job queue full", "job", task.Name)
	}
}

func (s *Service) RunNow(ctx context.Context, task Task) (int, error) {
	return s.runTask(ctx, task)
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-s.queue:
			if _, err := s.runTask(ctx, task); err != nil {
				slog.Warn("job run failed", "job", task.Name, "err", err)
			}
		}
	}
}

func (s *Service) runTask(ctx context.Context, task Task) (int, error) {
	started := time.Now()
	affected, err := task.Run(ctx)
	s.metrics.RecordSweep()
	if err != nil {
		return affected, err
	}
	if affected > 0 {
		slog.Info("job completed", "job", task.Name, "affected", affected, "durationMs", time.Since(started).Milliseconds())
	}
	return affected, nil
}

func (s *Service) schedule(ctx context.Context, task Task) {
	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Enqueue(task)
		}
	}
}
