// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// JobStatus is the outcome of the last execution of a job.
type JobStatus struct {
	Name     string        `json:"name"`
	Schedule string        `json:"schedule,omitempty"`
	LastRun  *time.Time    `json:"last_run,omitempty"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
	Running  bool          `json:"running"`
}

// Scheduler manages background jobs
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu     sync.Mutex
	jobs   map[string]Job
	status map[string]*JobStatus
}

// New creates a new scheduler
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		log:    log.With().Str("component", "scheduler").Logger(),
		jobs:   make(map[string]Job),
		status: make(map[string]*JobStatus),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a new job with cron schedule
// Schedule examples (with seconds field):
//   - "0 */5 * * * *"      - Every 5 minutes
//   - "@hourly"            - Every hour
//   - "0 30 22 * * 1-5"    - 22:30 on weekdays
//   - "@every 30s"         - Every 30 seconds
func (s *Scheduler) AddJob(schedule string, job Job) error {
	s.mu.Lock()
	if _, dup := s.jobs[job.Name()]; dup {
		s.mu.Unlock()
		return fmt.Errorf("job %s already registered", job.Name())
	}
	s.mu.Unlock()

	_, err := s.cron.AddFunc(schedule, func() {
		_ = s.execute(job)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", schedule, job.Name(), err)
	}

	s.mu.Lock()
	s.jobs[job.Name()] = job
	s.status[job.Name()] = &JobStatus{Name: job.Name(), Schedule: schedule}
	s.mu.Unlock()

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow executes a job immediately (outside schedule)
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return s.execute(job)
}

// Trigger runs the registered job called name in the background.
func (s *Scheduler) Trigger(name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %s", name)
	}
	go func() {
		_ = s.RunNow(job)
	}()
	return nil
}

// Status returns the status of every registered job, sorted by name.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobStatus, 0, len(s.status))
	for _, st := range s.status {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) execute(job Job) error {
	s.mu.Lock()
	st, ok := s.status[job.Name()]
	if !ok {
		st = &JobStatus{Name: job.Name()}
		s.status[job.Name()] = st
	}
	st.Running = true
	s.mu.Unlock()

	s.log.Debug().Str("job", job.Name()).Msg("Running job")
	start := time.Now()
	err := job.Run()
	duration := time.Since(start)

	s.mu.Lock()
	st.Running = false
	st.LastRun = &start
	st.Duration = duration
	st.Error = ""
	if err != nil {
		st.Error = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error().
			Err(err).
			Str("job", job.Name()).
			Dur("duration", duration).
			Msg("Job failed")
	} else {
		s.log.Debug().Str("job", job.Name()).Dur("duration", duration).Msg("Job completed")
	}
	return err
}
