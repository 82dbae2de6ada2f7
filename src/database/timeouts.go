// Package database provides database connection and query helpers.
// All multi-statement work runs inside explicit transactions; queries that
// can block carry context timeouts from the constants below.
package database

import (
	"database/sql"
	"time"
)

// Query timeout constants
const (
	TimeoutSimpleSelect  = 5 * time.Second
	TimeoutComplexSelect = 15 * time.Second
	TimeoutWrite         = 10 * time.Second
	TimeoutBulk          = 60 * time.Second
	TimeoutReport        = 2 * time.Minute
	TimeoutTransaction   = 30 * time.Second
	TimeoutPing          = 5 * time.Second
)

// PoolConfig holds connection pool settings
type PoolConfig struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// DefaultPoolConfig returns pool settings for a small deployment
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpen:     25,
		MaxIdle:     5,
		MaxLifetime: 5 * time.Minute,
		MaxIdleTime: 1 * time.Minute,
	}
}

// ApplyPoolConfig applies pool configuration to a database handle
func ApplyPoolConfig(db *sql.DB, cfg PoolConfig) {
	db.SetMaxOpenConns(cfg.MaxOpen)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(cfg.MaxLifetime)
	db.SetConnMaxIdleTime(cfg.MaxIdleTime)
}
