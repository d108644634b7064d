package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hyperengineering/ritual/internal/types"
)

// Collection keys in the state_snapshot table.
const (
	snapshotHabits      = "habits"
	snapshotJournals    = "journal_entries"
	snapshotCurrentDate = "current_date"
)

// Compile-time interface check
var _ Persister = (*SQLitePersister)(nil)

// SQLitePersister stores state snapshots in a local SQLite database so the
// store survives process restarts.
type SQLitePersister struct {
	db *sql.DB
}

// NewSQLitePersister opens (creating if needed) the snapshot database at
// dbPath, applies pragmas, and runs migrations.
func NewSQLitePersister(dbPath string) (*SQLitePersister, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLitePersister{db: db}, nil
}

// enablePragmas sets SQLite pragmas for performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Load restores the most recent snapshot. Returns nil when no snapshot has
// been saved yet.
func (p *SQLitePersister) Load(ctx context.Context) (*Snapshot, error) {
	rows, err := p.db.QueryContext(ctx, "SELECT collection, payload FROM state_snapshot")
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	snap := &Snapshot{}
	found := false
	for rows.Next() {
		var collection, payload string
		if err := rows.Scan(&collection, &payload); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		found = true

		switch collection {
		case snapshotHabits:
			if err := json.Unmarshal([]byte(payload), &snap.Habits); err != nil {
				return nil, fmt.Errorf("decode habits snapshot: %w", err)
			}
		case snapshotJournals:
			if err := json.Unmarshal([]byte(payload), &snap.JournalEntries); err != nil {
				return nil, fmt.Errorf("decode journal snapshot: %w", err)
			}
		case snapshotCurrentDate:
			snap.CurrentDate = payload
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read snapshot rows: %w", err)
	}

	if !found {
		return nil, nil
	}
	return snap, nil
}

// Save writes the snapshot in a single transaction, replacing any previous
// snapshot.
func (p *SQLitePersister) Save(ctx context.Context, snap Snapshot) error {
	habits, err := json.Marshal(orEmptyHabits(snap.Habits))
	if err != nil {
		return fmt.Errorf("encode habits: %w", err)
	}
	journals, err := json.Marshal(orEmptyEntries(snap.JournalEntries))
	if err != nil {
		return fmt.Errorf("encode journal entries: %w", err)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	upsert := `
		INSERT INTO state_snapshot (collection, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(collection) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`
	for _, row := range []struct {
		collection string
		payload    string
	}{
		{snapshotHabits, string(habits)},
		{snapshotJournals, string(journals)},
		{snapshotCurrentDate, snap.CurrentDate},
	} {
		if _, err := tx.ExecContext(ctx, upsert, row.collection, row.payload, now); err != nil {
			return fmt.Errorf("write %s snapshot: %w", row.collection, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (p *SQLitePersister) Close() error {
	if p.db == nil {
		return errors.New("already closed")
	}
	err := p.db.Close()
	p.db = nil
	return err
}

func orEmptyHabits(habits []types.Habit) []types.Habit {
	if habits == nil {
		return []types.Habit{}
	}
	return habits
}

func orEmptyEntries(entries []types.JournalEntry) []types.JournalEntry {
	if entries == nil {
		return []types.JournalEntry{}
	}
	return entries
}
