package database

import (
	"database/sql"
	"sync"
)

// Global database instance for handler access
var (
	globalDB    *DB
	globalMutex sync.RWMutex
)

// SetGlobalDB sets the global database instance
func SetGlobalDB(db *DB) {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	globalDB = db
}

// GetGlobalDB returns the global database instance
func GetGlobalDB() *DB {
	globalMutex.RLock()
	defer globalMutex.RUnlock()
	return globalDB
}

// GetDB returns the raw sql.DB, or nil before initialization
func GetDB() *sql.DB {
	globalMutex.RLock()
	defer globalMutex.RUnlock()
	if globalDB != nil {
		return globalDB.DB
	}
	return nil
}
