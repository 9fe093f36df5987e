package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	runs atomic.Int64
	err  error
}

func (j *countingJob) Run() error {
	j.runs.Add(1)
	return j.err
}

func (j *countingJob) Name() string { return "counting" }

func TestAddJob_RejectsBadSchedule(t *testing.T) {
	s := New(zerolog.Nop())

	err := s.AddJob("not a cron expression", &countingJob{})

	assert.Error(t, err)
}

func TestAddJob_AcceptsStandardSchedules(t *testing.T) {
	s := New(zerolog.Nop())

	for _, schedule := range []string{"0 2 * * *", "@hourly", "0 3 * * SUN", "@every 30m"} {
		assert.NoError(t, s.AddJob(schedule, &countingJob{}), schedule)
	}
}

func TestRunNow(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{}

	require.NoError(t, s.RunNow(job))
	assert.Equal(t, int64(1), job.runs.Load())
}

func TestRunNow_PropagatesJobError(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{err: errors.New("boom")}

	assert.Error(t, s.RunNow(job))
}

func TestStartStop(t *testing.T) {
	s := New(zerolog.Nop())
	require.NoError(t, s.AddJob("@every 1h", &countingJob{}))

	s.Start()
	s.Stop()
}
