package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/guest-requests/internal/config"
	"github.com/spec-kit/guest-requests/internal/observability"
	"github.com/spec-kit/guest-requests/internal/service"
)

// Task is one pass of a periodic job. It returns how many tickets it changed.
type Task func(ctx context.Context) (int, error)

// Job is a named task run on a fixed interval.
type Job struct {
	Name     string
	Interval time.Duration
	Run      Task
	// OnResult is called after each pass that changed at least one ticket.
	OnResult func(n int)
}

// Loop runs job every interval until ctx is done. The first pass happens
// after one interval.
func Loop(ctx context.Context, job Job, logger *zap.Logger) {
	if job.Interval <= 0 || job.Run == nil {
		logger.Info("worker disabled", zap.String("worker", job.Name))
		return
	}
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	logger.Info("worker start", zap.String("worker", job.Name), zap.Duration("interval", job.Interval))
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker stop", zap.String("worker", job.Name))
			return
		case <-ticker.C:
			RunOnce(ctx, job, logger)
		}
	}
}

// RunOnce executes a single pass of job and logs its outcome.
func RunOnce(ctx context.Context, job Job, logger *zap.Logger) {
	n, err := job.Run(ctx)
	if n > 0 {
		if job.OnResult != nil {
			job.OnResult(n)
		}
		logger.Info("worker pass", zap.String("worker", job.Name), zap.Int("changed", n))
	}
	if err != nil && ctx.Err() == nil {
		logger.Error("worker pass failed", zap.String("worker", job.Name), zap.Error(err))
	}
}

// Services are the background collaborators started by Start.
type Services struct {
	Assignment    *service.AssignmentService
	SLA           *service.SLAService
	Notifications *service.NotificationService
	Metrics       *observability.Metrics
}

// Jobs builds the periodic jobs for the configured intervals.
func Jobs(svc Services, cfg config.SLAConfig) []Job {
	var jobs []Job
	if svc.SLA != nil {
		jobs = append(jobs,
			Job{
				Name:     "sla_breach_sweep",
				Interval: cfg.BreachSweepInterval,
				Run:      svc.SLA.SweepBreaches,
				OnResult: func(n int) {
					for i := 0; i < n; i++ {
						svc.Metrics.RecordBreach()
					}
				},
			},
			Job{Name: "auto_resume", Interval: cfg.AutoResumeInterval, Run: svc.SLA.AutoResume},
		)
	}
	if svc.Assignment != nil {
		jobs = append(jobs, Job{Name: "auto_assign", Interval: cfg.AutoAssignInterval, Run: svc.Assignment.AutoAssign})
	}
	return jobs
}

// Start registers notification handlers and launches every job in its own
// goroutine. The returned wait function blocks until all of them have
// returned after ctx is cancelled.
func Start(ctx context.Context, svc Services, cfg config.SLAConfig, logger *zap.Logger) (wait func()) {
	var wg sync.WaitGroup
	if svc.Notifications != nil {
		svc.Notifications.RegisterHandlers()
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.Notifications.Run(ctx)
		}()
	}
	for _, job := range Jobs(svc, cfg) {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			Loop(ctx, job, logger)
		}(job)
	}
	return wg.Wait
}
