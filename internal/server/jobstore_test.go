package server

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStore_CreateGetUpdate(t *testing.T) {
	js := NewJobStore(time.Hour)
	defer js.Stop()

	assert.Error(t, js.Create(Job{}))

	require.NoError(t, js.Create(Job{ID: "a", Status: JobPending}))
	job, err := js.Get("a")
	require.NoError(t, err)
	assert.Equal(t, JobPending, job.Status)
	assert.False(t, job.CreatedAt.IsZero())

	require.NoError(t, js.Update("a", func(j *Job) { j.Status = JobRunning }))
	job, err = js.Get("a")
	require.NoError(t, err)
	assert.Equal(t, JobRunning, job.Status)
	assert.False(t, job.UpdatedAt.Before(job.CreatedAt))

	_, err = js.Get("missing")
	assert.Error(t, err)
	assert.Error(t, js.Update("missing", func(*Job) {}))
}

func TestJobStore_GetReturnsCopy(t *testing.T) {
	js := NewJobStore(time.Hour)
	defer js.Stop()

	require.NoError(t, js.Create(Job{ID: "a", Status: JobPending}))
	job, err := js.Get("a")
	require.NoError(t, err)
	job.Status = JobDone

	stored, err := js.Get("a")
	require.NoError(t, err)
	assert.Equal(t, JobPending, stored.Status)
}

func TestJobStore_Active(t *testing.T) {
	js := NewJobStore(time.Hour)
	defer js.Stop()

	_, busy := js.Active()
	assert.False(t, busy)

	require.NoError(t, js.Create(Job{ID: "done", Status: JobDone}))
	_, busy = js.Active()
	assert.False(t, busy)

	require.NoError(t, js.Create(Job{ID: "run", Status: JobRunning}))
	id, busy := js.Active()
	assert.True(t, busy)
	assert.Equal(t, "run", id)
}

func TestJobStore_CreateIfIdle(t *testing.T) {
	js := NewJobStore(time.Hour)
	defer js.Stop()

	_, _, err := js.CreateIfIdle(Job{})
	assert.Error(t, err)

	activeID, created, err := js.CreateIfIdle(Job{ID: "a", Status: JobPending})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Empty(t, activeID)

	activeID, created, err = js.CreateIfIdle(Job{ID: "b", Status: JobPending})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "a", activeID)
	_, err = js.Get("b")
	assert.Error(t, err, "a rejected job is not stored")

	require.NoError(t, js.Update("a", func(j *Job) { j.Status = JobDone }))
	_, created, err = js.CreateIfIdle(Job{ID: "c", Status: JobPending})
	require.NoError(t, err)
	assert.True(t, created)
}

func TestJobStore_CreateIfIdleConcurrent(t *testing.T) {
	js := NewJobStore(time.Hour)
	defer js.Stop()

	const n = 32
	var created atomic.Int32
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, ok, err := js.CreateIfIdle(Job{ID: fmt.Sprintf("job-%d", i), Status: JobPending})
			assert.NoError(t, err)
			if ok {
				created.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
}

func TestJobStore_Sweep(t *testing.T) {
	js := NewJobStore(time.Hour)
	defer js.Stop()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, js.Create(Job{ID: "old-done", Status: JobDone, CreatedAt: base}))
	require.NoError(t, js.Create(Job{ID: "old-failed", Status: JobFailed, CreatedAt: base}))
	require.NoError(t, js.Create(Job{ID: "old-running", Status: JobRunning, CreatedAt: base}))
	require.NoError(t, js.Create(Job{ID: "fresh", Status: JobDone, CreatedAt: base.Add(90 * time.Minute)}))

	js.now = func() time.Time { return base.Add(2 * time.Hour) }
	js.sweep()

	for _, id := range []string{"old-done", "old-failed"} {
		_, err := js.Get(id)
		assert.Error(t, err, id)
	}
	for _, id := range []string{"old-running", "fresh"} {
		_, err := js.Get(id)
		assert.NoError(t, err, id)
	}
}

func TestJobStore_StopIsIdempotent(t *testing.T) {
	js := NewJobStore(time.Minute)
	js.Stop()
	assert.NotPanics(t, js.Stop)
}
