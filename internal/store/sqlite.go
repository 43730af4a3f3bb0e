package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/cvalchemist/pkg/types"
)

// sqliteFileName is the database file created inside the data directory.
const sqliteFileName = "results.db"

// Pragmas are set through the DSN so every pooled connection gets them;
// several worker processes write the same file concurrently.
const sqliteDSNParams = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate"

const createResults = `CREATE TABLE IF NOT EXISTS results (
    result_id TEXT PRIMARY KEY,
    payload TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    expires_at INTEGER NOT NULL
);`

const createResultsExpiresIndex = `CREATE INDEX IF NOT EXISTS idx_results_expires_at ON results (expires_at);`

// SQLite stores results in a single database file shared by every worker
// on the host.
type SQLite struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	ttl    time.Duration
	now    func() time.Time
	closed bool
}

// OpenSQLite opens (creating if needed) dataDir/results.db and applies the
// schema. An empty dataDir means the current directory.
func OpenSQLite(dataDir string, ttl time.Duration) (*SQLite, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	path := filepath.Join(dataDir, sqliteFileName)
	db, err := sql.Open("sqlite", path+sqliteDSNParams)
	if err != nil {
		return nil, err
	}

	for _, stmt := range []string{createResults, createResultsExpiresIndex} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	return &SQLite{
		db:   db,
		path: path,
		ttl:  ttl,
		now:  time.Now,
	}, nil
}

// Path returns the database file location.
func (s *SQLite) Path() string {
	return s.path
}

// Put inserts a and removes rows that have already expired.
func (s *SQLite) Put(ctx context.Context, a *types.Analysis) (string, error) {
	if a == nil {
		return "", types.ErrNilAnalysis
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", types.ErrStoreClosed
	}

	cp := a.Clone()
	cp.ResultID = ""
	payload, err := json.Marshal(cp)
	if err != nil {
		return "", fmt.Errorf("marshal analysis: %w", err)
	}

	now := s.now()
	id := generateID()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE expires_at <= ?`, now.UnixNano()); err != nil {
		return "", fmt.Errorf("purge expired: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO results (result_id, payload, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		id, string(payload), now.UnixNano(), now.Add(s.ttl).UnixNano(),
	); err != nil {
		return "", fmt.Errorf("insert result: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// Get loads the analysis stored under id.
func (s *SQLite) Get(ctx context.Context, id string) (*types.Analysis, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, types.ErrStoreClosed
	}

	var (
		payload   string
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, expires_at FROM results WHERE result_id = ?`, id,
	).Scan(&payload, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if s.now().UnixNano() >= expiresAt {
		return nil, types.ErrNotFound
	}

	var a types.Analysis
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		return nil, fmt.Errorf("decode result %s: %w", id, err)
	}
	a.ResultID = id
	return &a, nil
}

// Close closes the database. Idempotent.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

var _ types.ResultStore = (*SQLite)(nil)
