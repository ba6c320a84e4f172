package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/guest-requests/internal/config"
	"github.com/spec-kit/guest-requests/internal/service"
)

func TestRunOnce_ReportsChanges(t *testing.T) {
	var reported int
	job := Job{
		Name: "test",
		Run:  func(context.Context) (int, error) { return 3, nil },
		OnResult: func(n int) {
			reported += n
		},
	}
	RunOnce(context.Background(), job, zap.NewNop())
	assert.Equal(t, 3, reported)

	job.Run = func(context.Context) (int, error) { return 0, errors.New("boom") }
	RunOnce(context.Background(), job, zap.NewNop())
	assert.Equal(t, 3, reported)
}

func TestLoop_StopsOnCancel(t *testing.T) {
	var passes atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Loop(ctx, Job{
			Name:     "tick",
			Interval: 5 * time.Millisecond,
			Run: func(context.Context) (int, error) {
				passes.Add(1)
				return 0, nil
			},
		}, zap.NewNop())
		close(done)
	}()

	require.Eventually(t, func() bool { return passes.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestLoop_DisabledInterval(t *testing.T) {
	called := false
	Loop(context.Background(), Job{Name: "off", Run: func(context.Context) (int, error) {
		called = true
		return 0, nil
	}}, zap.NewNop())
	assert.False(t, called)
}

func TestJobs(t *testing.T) {
	cfg := config.SLAConfig{
		BreachSweepInterval: time.Second,
		AutoResumeInterval:  time.Minute,
		AutoAssignInterval:  15 * time.Second,
	}
	jobs := Jobs(Services{SLA: &service.SLAService{}, Assignment: &service.AssignmentService{}}, cfg)
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.Name)
	}
	assert.Equal(t, []string{"sla_breach_sweep", "auto_resume", "auto_assign"}, names)
	assert.Equal(t, time.Minute, jobs[1].Interval)

	assert.Empty(t, Jobs(Services{}, cfg))
}

func TestStart_WaitsForJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	wait := Start(ctx, Services{}, config.SLAConfig{}, zap.NewNop())
	cancel()
	wait()
}
