package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubJob struct {
	name string
	runs int
	err  error
}

func (j *stubJob) Name() string        { return j.name }
func (j *stubJob) Description() string { return "stub job for tests" }
func (j *stubJob) Run(ctx context.Context) error {
	j.runs++
	return j.err
}

func TestScheduler_Register(t *testing.T) {
	s := New(DefaultConfig())
	job := &stubJob{name: "daily-delivery"}

	err := s.Register(job, MustParseCronExpression(EveryMinute))
	assert.NoError(t, err)

	t.Run("duplicate name rejected", func(t *testing.T) {
		err := s.Register(&stubJob{name: "daily-delivery"}, MustParseCronExpression(EveryMinute))
		assert.ErrorIs(t, err, ErrJobAlreadyExists)
	})

	t.Run("nil job rejected", func(t *testing.T) {
		err := s.Register(nil, MustParseCronExpression(EveryMinute))
		assert.ErrorIs(t, err, ErrNilJob)
	})

	t.Run("nil schedule rejected", func(t *testing.T) {
		err := s.Register(&stubJob{name: "other"}, nil)
		assert.ErrorIs(t, err, ErrNilSchedule)
	})
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(DefaultConfig())
	job := &stubJob{name: "daily-delivery"}
	assert.NoError(t, s.Register(job, MustParseCronExpression(EveryMinute)))

	result, err := s.RunNow(context.Background(), "daily-delivery")
	assert.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, job.runs)

	t.Run("unknown job", func(t *testing.T) {
		_, err := s.RunNow(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrJobNotFound)
	})
}

func TestScheduler_RunNowRecordsFailure(t *testing.T) {
	s := New(DefaultConfig())
	wantErr := errors.New("generation down")
	job := &stubJob{name: "daily-delivery", err: wantErr}
	assert.NoError(t, s.Register(job, MustParseCronExpression(EveryMinute)))

	result, err := s.RunNow(context.Background(), "daily-delivery")
	assert.ErrorIs(t, err, wantErr)
	assert.False(t, result.Success)

	snap := s.GetMetrics().Snapshot()
	assert.Equal(t, int64(1), snap.TotalExecutions)
	assert.Equal(t, int64(1), snap.TotalFailures)

	history := s.GetHistory(10)
	assert.Len(t, history, 1)
	assert.Equal(t, "daily-delivery", history[0].JobName)
}

func TestScheduler_EnableDisable(t *testing.T) {
	s := New(DefaultConfig())
	assert.NoError(t, s.Register(&stubJob{name: "daily-delivery"}, MustParseCronExpression(EveryMinute)))

	assert.NoError(t, s.DisableJob("daily-delivery"))
	jobs := s.ListJobs()
	assert.Len(t, jobs, 1)
	assert.False(t, jobs[0].Enabled)

	assert.NoError(t, s.EnableJob("daily-delivery"))
	jobs = s.ListJobs()
	assert.True(t, jobs[0].Enabled)

	assert.ErrorIs(t, s.DisableJob("missing"), ErrJobNotFound)
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(DefaultConfig())
	assert.NoError(t, s.Register(&stubJob{name: "daily-delivery"}, MustParseCronExpression(EveryMinute)))

	assert.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	assert.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}
