package server

import (
	"fmt"
	"sync"
	"time"
)

// JobStatus is the lifecycle state of an async run.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Job tracks one async batch run started over HTTP.
type Job struct {
	ID        string    `json:"id"`
	Status    JobStatus `json:"status"`
	RunID     string    `json:"run_id,omitempty"`
	Done      int       `json:"done"`
	Total     int       `json:"total"`
	Rows      int       `json:"rows"`
	Failed    int       `json:"failed"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Finished reports whether the job reached a terminal state.
func (j Job) Finished() bool {
	return j.Status == JobDone || j.Status == JobFailed
}

// JobStore manages in-memory async run jobs.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	ttl  time.Duration
	now  func() time.Time
	done chan struct{}
	once sync.Once
}

// NewJobStore creates a new job store with background cleanup.
func NewJobStore(ttl time.Duration) *JobStore {
	js := &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
		now:  time.Now,
		done: make(chan struct{}),
	}
	go js.cleanup()
	return js
}

// Create stores a new job.
func (js *JobStore) Create(job Job) error {
	if job.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	js.mu.Lock()
	defer js.mu.Unlock()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = js.now()
	}
	job.UpdatedAt = job.CreatedAt
	js.jobs[job.ID] = &job
	return nil
}

// Get retrieves a copy of a job by ID.
func (js *JobStore) Get(id string) (Job, error) {
	js.mu.RLock()
	defer js.mu.RUnlock()
	job, ok := js.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("job not found: %s", id)
	}
	return *job, nil
}

// Update applies fn to the stored job.
func (js *JobStore) Update(id string, fn func(*Job)) error {
	js.mu.Lock()
	defer js.mu.Unlock()
	job, ok := js.jobs[id]
	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}
	fn(job)
	job.UpdatedAt = js.now()
	return nil
}

// Active returns the ID of a job that has not finished, if any.
func (js *JobStore) Active() (string, bool) {
	js.mu.RLock()
	defer js.mu.RUnlock()
	return js.activeLocked()
}

// CreateIfIdle stores job only when no other job is unfinished. The check
// and the insert happen under one lock. When another job is unfinished its
// ID is returned and created is false.
func (js *JobStore) CreateIfIdle(job Job) (activeID string, created bool, err error) {
	if job.ID == "" {
		return "", false, fmt.Errorf("job ID is required")
	}
	js.mu.Lock()
	defer js.mu.Unlock()
	if id, busy := js.activeLocked(); busy {
		return id, false, nil
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = js.now()
	}
	job.UpdatedAt = job.CreatedAt
	js.jobs[job.ID] = &job
	return "", true, nil
}

func (js *JobStore) activeLocked() (string, bool) {
	for id, job := range js.jobs {
		if !job.Finished() {
			return id, true
		}
	}
	return "", false
}

// Stop signals the background cleanup goroutine to exit.
func (js *JobStore) Stop() {
	js.once.Do(func() { close(js.done) })
}

func (js *JobStore) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-js.done:
			return
		case <-ticker.C:
			js.sweep()
		}
	}
}

// sweep drops finished jobs older than the TTL. Unfinished jobs are kept so
// a long run stays visible.
func (js *JobStore) sweep() {
	js.mu.Lock()
	defer js.mu.Unlock()
	now := js.now()
	for id, job := range js.jobs {
		if job.Finished() && now.Sub(job.CreatedAt) > js.ttl {
			delete(js.jobs, id)
		}
	}
}
