// Package store persists update-check state in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vizu-disain/vizu/internal/updater"
)

// ErrNotInitialized is returned when the state table has not been created.
var ErrNotInitialized = errors.New("state database not initialized")

// Store provides SQLite-backed storage for update-check state.
type Store struct {
	db *sql.DB
}

// New opens the database at dbPath.
// Use ":memory:" for in-memory databases (useful for testing).
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only allows one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Init creates the schema. It is safe to call more than once.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Load returns the stored state for packageID, or nil, nil if none exists.
func (s *Store) Load(ctx context.Context, packageID string) (*updater.CheckState, error) {
	query := `
		SELECT state
		FROM check_state
		WHERE package_id = ?
	`

	var raw string
	err := s.db.QueryRowContext(ctx, query, packageID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("failed to load state for %s", packageID), err)
	}

	var st updater.CheckState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("failed to decode state for %s: %w", packageID, err)
	}
	return &st, nil
}

// Save inserts or replaces the state for packageID.
func (s *Store) Save(ctx context.Context, packageID string, st *updater.CheckState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode state for %s: %w", packageID, err)
	}

	query := `
		INSERT OR REPLACE INTO check_state
		(package_id, last_checked_at, remote_version, state)
		VALUES (?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		packageID,
		st.LastCheckedAt.UTC().Format(time.RFC3339),
		st.LastResult.RemoteVersion,
		string(data),
	)
	if err != nil {
		return wrapErr(fmt.Sprintf("failed to save state for %s", packageID), err)
	}
	return nil
}

// Entry is a summary row of the state table.
type Entry struct {
	PackageID     string
	LastCheckedAt time.Time
	RemoteVersion string
}

// List returns a summary of every stored package ordered by identifier.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	query := `
		SELECT package_id, last_checked_at, remote_version
		FROM check_state
		ORDER BY package_id
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, wrapErr("failed to list state", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var checkedAt string
		if err := rows.Scan(&e.PackageID, &checkedAt, &e.RemoteVersion); err != nil {
			return nil, fmt.Errorf("failed to scan state row: %w", err)
		}
		e.LastCheckedAt, err = time.Parse(time.RFC3339, checkedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse last_checked_at for %s: %w", e.PackageID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes the stored state for packageID.
func (s *Store) Delete(ctx context.Context, packageID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM check_state WHERE package_id = ?", packageID); err != nil {
		return wrapErr(fmt.Sprintf("failed to delete state for %s", packageID), err)
	}
	return nil
}

func wrapErr(msg string, err error) error {
	if strings.Contains(err.Error(), "no such table") {
		return fmt.Errorf("%s: %w", msg, ErrNotInitialized)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
