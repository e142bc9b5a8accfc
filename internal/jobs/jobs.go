// Package jobs tracks asynchronous scans started over HTTP.
package jobs

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/doernaz/brandlift/internal/discovery"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ErrNotFound is returned for unknown job ids.
var ErrNotFound = eris.New("jobs: job not found")

// Job is a snapshot of one scan job.
type Job struct {
	ID        string               `json:"id"`
	RunID     string               `json:"run_id"`
	Status    Status               `json:"status"`
	Request   discovery.RunRequest `json:"request"`
	Progress  discovery.RunState   `json:"progress"`
	Result    *discovery.RunResult `json:"result,omitempty"`
	Error     string               `json:"error,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// Manager is an in-memory job registry safe for concurrent use. Jobs are
// lost on restart; leads are not, since every pivot persists to the sink.
type Manager struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	now  func() time.Time
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{jobs: make(map[string]*Job), now: time.Now}
}

// Create registers a queued job for req. The job's run id is req.RunID, or
// a new uuid when empty; the caller should run the scan with the same id.
func (m *Manager) Create(req discovery.RunRequest) Job {
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	now := m.now().UTC()
	j := &Job{
		ID:        uuid.NewString(),
		RunID:     req.RunID,
		Status:    StatusQueued,
		Request:   req,
		Progress:  discovery.RunState{RunID: req.RunID, Target: req.TargetCount},
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	m.jobs[j.ID] = j
	m.mu.Unlock()
	return *j
}

// Start marks the job running.
func (m *Manager) Start(id string) error {
	return m.update(id, func(j *Job) {
		j.Status = StatusRunning
	})
}

// Progress records the latest run state.
func (m *Manager) Progress(id string, state discovery.RunState) error {
	return m.update(id, func(j *Job) {
		j.Progress = state
	})
}

// Complete stores the run result.
func (m *Manager) Complete(id string, res *discovery.RunResult) error {
	return m.update(id, func(j *Job) {
		j.Status = StatusCompleted
		j.Result = res
	})
}

// Fail records a fatal error. A partial result may accompany it.
func (m *Manager) Fail(id string, err error, res *discovery.RunResult) error {
	return m.update(id, func(j *Job) {
		j.Status = StatusFailed
		j.Result = res
		if err != nil {
			j.Error = err.Error()
		}
	})
}

// Get returns a copy of the job.
func (m *Manager) Get(id string) (Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return Job{}, eris.Wrapf(ErrNotFound, "jobs: get %s", id)
	}
	return *j, nil
}

// List returns copies of all jobs, newest first.
func (m *Manager) List() []Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, *j)
	}
	sort.Slice(out, func(a, b int) bool {
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	return out
}

func (m *Manager) update(id string, fn func(*Job)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return eris.Wrapf(ErrNotFound, "jobs: update %s", id)
	}
	fn(j)
	j.UpdatedAt = m.now().UTC()
	return nil
}
