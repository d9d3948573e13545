package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteDSNOptions enables WAL, a busy timeout and foreign keys
const SQLiteDSNOptions = "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"

// SQLite wraps the sqlx handle used by the embedded store
// ⭐ SSOT: SQLite connections are created here only
type SQLite struct {
	DB   *sqlx.DB
	path string
}

// OpenSQLite opens (and creates if needed) a SQLite database file.
// ":memory:" opens a private in-memory database.
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("sqlite mkdir: %w", err)
			}
		}
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}

	db, err := sqlx.Open("sqlite3", path+sep+SQLiteDSNOptions)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// single writer; also keeps one shared connection for :memory:
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}

	return &SQLite{DB: db, path: path}, nil
}

// Close closes the database handle
func (s *SQLite) Close() error {
	return s.DB.Close()
}

// HealthCheck pings the database file
func (s *SQLite) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	status := &HealthStatus{
		Driver:    "sqlite",
		Timestamp: time.Now(),
	}

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	start := time.Now()
	if err := s.DB.PingContext(ctx); err != nil {
		status.Error = err.Error()
		return status, err
	}
	status.ResponseTime = time.Since(start)

	st := s.DB.Stats()
	status.Stats = PoolStats{
		AcquiredConns: int32(st.InUse),
		IdleConns:     int32(st.Idle),
		MaxConns:      int32(st.MaxOpenConnections),
		TotalConns:    int32(st.OpenConnections),
	}
	status.Healthy = true

	return status, nil
}

// Path returns the file path the database was opened with
func (s *SQLite) Path() string {
	return s.path
}
