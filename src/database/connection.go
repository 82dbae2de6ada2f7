package database

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"
)

// DB wraps the sql connection pool
type DB struct {
	*sql.DB
	Driver string
}

// Config holds database connection configuration
type Config struct {
	// sqlite, postgres, mysql, mssql
	Type     string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	// For PostgreSQL
	SSLMode string
}

// InitDB opens a SQLite database at the given path (or ":memory:") and
// initializes the schema. This is the standalone/default mode.
func InitDB(path string) (*DB, error) {
	return InitDBWithConfig(&Config{Type: "sqlite", Database: path})
}

// InitDBWithConfig initializes a database connection with explicit configuration
func InitDBWithConfig(config *Config) (*DB, error) {
	var dsn string
	var driver string

	switch strings.ToLower(config.Type) {
	case "", "sqlite":
		driver = "sqlite"
		if config.Database == "" {
			return nil, fmt.Errorf("database path required for SQLite")
		}
		dsn = config.Database

	case "postgres", "postgresql":
		driver = "pgx"
		sslMode := config.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			config.Host, config.Port, config.Username, config.Password, config.Database, sslMode)

	case "mysql", "mariadb":
		driver = "mysql"
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			config.Username, config.Password, config.Host, config.Port, config.Database)

	case "mssql", "sqlserver":
		driver = "mssql"
		dsn = fmt.Sprintf("server=%s;port=%d;database=%s;user id=%s;password=%s;encrypt=disable",
			config.Host, config.Port, config.Database, config.Username, config.Password)

	default:
		return nil, fmt.Errorf("unsupported database type: %s. Supported: sqlite, postgres, mysql, mariadb, mssql", config.Type)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ApplyPoolConfig(db, DefaultPoolConfig())

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == "sqlite" {
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
		if config.Database != ":memory:" {
			if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
				return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
			}
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to check schema version: %w", err)
	}

	if currentVersion == 0 {
		if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", SchemaVersion); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to insert schema version: %w", err)
		}

		for key, value := range DefaultSettings {
			_, err := db.Exec(`
				INSERT INTO settings (key, value) VALUES (?, ?)
				ON CONFLICT(key) DO NOTHING
			`, key, value)
			if err != nil {
				return nil, fmt.Errorf("failed to insert default setting %s: %w", key, err)
			}
		}
	}

	wrapped := &DB{DB: db, Driver: driver}
	SetGlobalDB(wrapped)
	return wrapped, nil
}

// GetSetting reads a settings value, returning fallback when absent
func (db *DB) GetSetting(key, fallback string) string {
	var value string
	err := db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		return fallback
	}
	return value
}

// SetSetting upserts a settings value
func (db *DB) SetSetting(key, value string) error {
	_, err := db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}
