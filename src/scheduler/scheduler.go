// Package scheduler runs the background tasks: nudge dispatch, topic
// analysis, subscription expiry and token cleanup.
package scheduler

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/tunecast/tunecast/src/server/metrics"

	"github.com/robfig/cron/v3"
)

// Task is one scheduled job
type Task struct {
	Name     string
	Schedule string // "0 2 * * *", "@hourly", "@every 5m"
	Fn       func() error
	entryID  cron.EntryID
	enabled  bool
	lastRun  *time.Time
	mu       sync.Mutex
}

// Global tasks run on exactly one node when several share the database
var globalTasks = map[string]bool{
	"lifecycle-nudges":   true,
	"topic-analysis":     true,
	"subscription-sweep": true,
	"token-cleanup":      true,
}

// LockTimeout is how long a task lock is valid before another node may
// steal it
const LockTimeout = 5 * time.Minute

// Scheduler manages the cron tasks with database-backed locks
type Scheduler struct {
	cron   *cron.Cron
	tasks  map[string]*Task
	db     *sql.DB
	nodeID string
	mu     sync.RWMutex
}

// NewScheduler creates a scheduler; tasks are added with AddTask
func NewScheduler(db *sql.DB) *Scheduler {
	nodeID, err := os.Hostname()
	if err != nil || nodeID == "" {
		nodeID = "default"
	}

	c := cron.New(cron.WithParser(cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)))

	return &Scheduler{
		cron:   c,
		tasks:  make(map[string]*Task),
		db:     db,
		nodeID: nodeID,
	}
}

// AddTask registers a task under a cron schedule
func (s *Scheduler) AddTask(name string, schedule string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task := &Task{
		Name:     name,
		Schedule: schedule,
		Fn:       fn,
		enabled:  true,
	}

	entryID, err := s.cron.AddFunc(schedule, func() { s.executeTask(task) })
	if err != nil {
		return fmt.Errorf("failed to add task '%s' with schedule '%s': %w", name, schedule, err)
	}

	task.entryID = entryID
	s.tasks[name] = task
	return nil
}

// Start starts the cron loop
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cron.Start()
	log.Printf("📅 Scheduler started (%d tasks)", len(s.tasks))
}

// Stop stops the loop and waits for running tasks
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	log.Println("🛑 Stopping scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("✅ Scheduler stopped")
}

// SetEnabled toggles a task on or off at runtime
func (s *Scheduler) SetEnabled(name string, enabled bool) error {
	s.mu.RLock()
	task, ok := s.tasks[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown task: %s", name)
	}
	task.mu.Lock()
	task.enabled = enabled
	task.mu.Unlock()
	return nil
}

func isGlobalTask(name string) bool {
	return globalTasks[name]
}

// AcquireTaskLock takes the database lock for a global task. A lock held
// by a dead node is stolen after LockTimeout; a lock we already hold is
// refreshed.
func (s *Scheduler) AcquireTaskLock(taskName string) bool {
	if !isGlobalTask(taskName) {
		return true
	}

	now := time.Now()
	lockExpiry := now.Add(-LockTimeout)

	_, err := s.db.Exec(`
		INSERT INTO scheduler_state (task_name, locked_by, locked_at, enabled)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(task_name) DO UPDATE SET
			locked_by = CASE
				WHEN locked_by IS NULL OR locked_at < ? OR locked_by = ? THEN ?
				ELSE locked_by
			END,
			locked_at = CASE
				WHEN locked_by IS NULL OR locked_at < ? OR locked_by = ? THEN ?
				ELSE locked_at
			END
	`, taskName, s.nodeID, now,
		lockExpiry, s.nodeID, s.nodeID,
		lockExpiry, s.nodeID, now)
	if err != nil {
		log.Printf("⚠️ Failed to acquire lock for task '%s': %v", taskName, err)
		return false
	}

	var lockedBy string
	err = s.db.QueryRow(`SELECT locked_by FROM scheduler_state WHERE task_name = ?`, taskName).Scan(&lockedBy)
	if err != nil || lockedBy != s.nodeID {
		return false
	}
	return true
}

// ReleaseTaskLock frees a lock we hold
func (s *Scheduler) ReleaseTaskLock(taskName string) {
	if !isGlobalTask(taskName) {
		return
	}
	_, err := s.db.Exec(`
		UPDATE scheduler_state
		SET locked_by = NULL, locked_at = NULL
		WHERE task_name = ? AND locked_by = ?
	`, taskName, s.nodeID)
	if err != nil {
		log.Printf("⚠️ Failed to release lock for task '%s': %v", taskName, err)
	}
}

func (s *Scheduler) executeTask(task *Task) {
	task.mu.Lock()
	if !task.enabled {
		task.mu.Unlock()
		return
	}
	task.mu.Unlock()

	if !s.AcquireTaskLock(task.Name) {
		return
	}
	defer s.ReleaseTaskLock(task.Name)

	start := time.Now()
	err := task.Fn()
	end := time.Now()

	task.mu.Lock()
	task.lastRun = &end
	task.mu.Unlock()

	status := "ok"
	if err != nil {
		status = "error"
		log.Printf("❌ Task '%s' failed after %s: %v", task.Name, end.Sub(start).Round(time.Millisecond), err)
	} else {
		log.Printf("✅ Task '%s' completed in %s", task.Name, end.Sub(start).Round(time.Millisecond))
	}
	metrics.SchedulerRuns.WithLabelValues(task.Name, status).Inc()

	if _, dbErr := s.db.Exec(`
		UPDATE scheduler_state SET last_run_at = ?, last_status = ? WHERE task_name = ?
	`, end, status, task.Name); dbErr != nil {
		log.Printf("⚠️ Failed to record run for task '%s': %v", task.Name, dbErr)
	}
}
