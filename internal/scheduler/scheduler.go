// Package scheduler owns the background cron instance. Jobs are keyed by a
// stable string id; adding an id that already exists replaces the old entry.
package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var ErrJobNotFound = errors.New("job not found")

// Job is a snapshot of one registered job. Next stays zero while the job is
// paused and until the scheduler has been started.
type Job struct {
	ID     string
	Paused bool
	Next   time.Time
	Prev   time.Time
}

type job struct {
	entryID cron.EntryID
	trigger cron.Schedule
	cmd     cron.Job
	paused  bool
}

type Scheduler struct {
	mu      sync.Mutex
	c       *cron.Cron
	loc     *time.Location
	jobs    map[string]*job
	log     *zap.Logger
	running bool
}

func New(loc *time.Location, log *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	cl := cronLogger{log: log.Sugar()}
	return &Scheduler{
		c: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		loc:  loc,
		jobs: make(map[string]*job),
		log:  log,
	}
}

// Location is the zone triggers are evaluated in.
func (s *Scheduler) Location() *time.Location { return s.loc }

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.c.Start()
	s.log.Info("scheduler started", zap.String("tz", s.loc.String()), zap.Int("jobs", len(s.jobs)))
}

// Stop halts future firings and waits for running cron callbacks, or for
// ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	done := s.c.Stop()
	s.mu.Unlock()

	select {
	case <-done.Done():
		s.log.Info("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out", zap.Error(ctx.Err()))
	}
}

// AddJob registers cmd under id, removing any previous registration first.
func (s *Scheduler) AddJob(id string, trigger cron.Schedule, cmd cron.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.jobs[id]; ok {
		s.removeLocked(old)
		s.log.Debug("replacing job", zap.String("job_id", id))
	}
	s.jobs[id] = &job{
		entryID: s.c.Schedule(trigger, cmd),
		trigger: trigger,
		cmd:     cmd,
	}
}

// RemoveJob unregisters id. It reports whether a job was present.
func (s *Scheduler) RemoveJob(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return false
	}
	s.removeLocked(j)
	delete(s.jobs, id)
	return true
}

// PauseJob stops future firings of id while keeping its registration.
func (s *Scheduler) PauseJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if j.paused {
		return nil
	}
	s.c.Remove(j.entryID)
	j.entryID = 0
	j.paused = true
	return nil
}

// ResumeJob reinstates a paused job. Its next firing is computed from now.
func (s *Scheduler) ResumeJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if !j.paused {
		return nil
	}
	j.entryID = s.c.Schedule(j.trigger, j.cmd)
	j.paused = false
	return nil
}

func (s *Scheduler) GetJob(id string) (Job, bool) {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return Job{}, false
	}
	out := Job{ID: id, Paused: j.paused}
	entryID := j.entryID
	s.mu.Unlock()

	if !out.Paused {
		e := s.c.Entry(entryID)
		out.Next, out.Prev = e.Next, e.Prev
	}
	return out, true
}

// Jobs lists every registered job sorted by id.
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	sort.Strings(ids)
	out := make([]Job, 0, len(ids))
	for _, id := range ids {
		if j, ok := s.GetJob(id); ok {
			out = append(out, j)
		}
	}
	return out
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *Scheduler) removeLocked(j *job) {
	if !j.paused {
		s.c.Remove(j.entryID)
	}
}

// cronLogger routes robfig/cron logging to zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
