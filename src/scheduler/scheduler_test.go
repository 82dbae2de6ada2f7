package scheduler

import (
	"testing"
	"time"

	"github.com/tunecast/tunecast/src/database"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.InitDB(":memory:")
	if err != nil {
		t.Fatalf("failed to init test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestTaskLockAcquisition(t *testing.T) {
	db := setupTestDB(t)

	nodeA := NewScheduler(db.DB)
	nodeA.nodeID = "node-a"
	nodeB := NewScheduler(db.DB)
	nodeB.nodeID = "node-b"

	const task = "lifecycle-nudges"

	if !nodeA.AcquireTaskLock(task) {
		t.Fatal("node-a failed to acquire an uncontested lock")
	}
	// Reacquiring our own lock refreshes it
	if !nodeA.AcquireTaskLock(task) {
		t.Error("node-a failed to refresh its own lock")
	}
	// A second node must not get the held lock
	if nodeB.AcquireTaskLock(task) {
		t.Error("node-b acquired a lock held by node-a")
	}

	nodeA.ReleaseTaskLock(task)
	if !nodeB.AcquireTaskLock(task) {
		t.Error("node-b failed to acquire a released lock")
	}
	nodeB.ReleaseTaskLock(task)
}

func TestStaleLockIsStolen(t *testing.T) {
	db := setupTestDB(t)

	nodeA := NewScheduler(db.DB)
	nodeA.nodeID = "node-a"
	nodeB := NewScheduler(db.DB)
	nodeB.nodeID = "node-b"

	const task = "subscription-sweep"

	if !nodeA.AcquireTaskLock(task) {
		t.Fatal("node-a failed to acquire lock")
	}

	// Backdate the lock past the timeout, simulating a dead node
	if _, err := db.Exec(`
		UPDATE scheduler_state SET locked_at = ? WHERE task_name = ?
	`, time.Now().Add(-2*LockTimeout), task); err != nil {
		t.Fatal(err)
	}

	if !nodeB.AcquireTaskLock(task) {
		t.Error("node-b failed to steal a stale lock")
	}
}

func TestNonGlobalTaskNeedsNoLock(t *testing.T) {
	db := setupTestDB(t)
	s := NewScheduler(db.DB)

	if !s.AcquireTaskLock("local-only-task") {
		t.Error("non-global tasks should always pass lock acquisition")
	}
}
