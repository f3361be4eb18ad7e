// Package history keeps a SQLite ledger of sync runs: one row per run with
// its manifest stamp, plus per-category outcome counts.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/botcsync/internal/engine"
	"github.com/roach88/botcsync/internal/entity"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - no ledger
// 1 - sync_runs, sync_run_stats, content hash index
const currentSchemaVersion = 1

const timeLayout = time.RFC3339Nano

// Ledger is the run history database.
type Ledger struct {
	db    *sql.DB
	newID func() string
}

// Open creates or opens the ledger at path and applies migrations.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect history: %w", err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Ledger{db: db, newID: newRunID}, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// newRunID returns a time-sortable UUIDv7.
func newRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("execute %q: %w", p, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply history schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version < 1 {
		if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_sync_runs_hash ON sync_runs(content_hash)`); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Run is one ledger entry.
type Run struct {
	ID          string                              `json:"id"`
	Started     time.Time                           `json:"started"`
	Finished    time.Time                           `json:"finished"`
	State       string                              `json:"state"`
	Forced      bool                                `json:"forced"`
	Characters  int                                 `json:"characters"`
	Issues      int                                 `json:"issues"`
	ContentHash string                              `json:"contentHash"`
	Version     string                              `json:"version"`
	Stats       map[entity.AuxCategory]engine.Stats `json:"stats"`
}

// Record appends r to the ledger in one transaction.
func (l *Ledger) Record(ctx context.Context, r *engine.Report) error {
	id := l.newID()

	var hash, version string
	if r.Manifest != nil {
		hash, version = r.Manifest.ContentHash, r.Manifest.Version
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sync_runs
		(id, started, finished, state, forced, characters, issues, content_hash, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id,
		r.Started.UTC().Format(timeLayout),
		r.Finished.UTC().Format(timeLayout),
		r.State.String(),
		r.Force,
		r.Characters,
		len(r.Issues),
		hash,
		version,
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	for _, c := range entity.Categories {
		s, ok := r.Stats[c]
		if !ok {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sync_run_stats
			(run_id, category, fetched, preserved, skipped, failed, healed)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, string(c), s.Fetched, s.Preserved, s.Skipped, s.Failed, s.Healed)
		if err != nil {
			return fmt.Errorf("record %s stats: %w", c, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// List returns up to limit runs, newest first. A limit of 0 or less
// returns every run.
func (l *Ledger) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, started, finished, state, forced, characters, issues, content_hash, version
		FROM sync_runs
		ORDER BY seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	index := make(map[string]int)
	for rows.Next() {
		var (
			run               Run
			started, finished string
		)
		if err := rows.Scan(&run.ID, &started, &finished, &run.State, &run.Forced,
			&run.Characters, &run.Issues, &run.ContentHash, &run.Version); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.Started, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("run %s: %w", run.ID, err)
		}
		if run.Finished, err = time.Parse(timeLayout, finished); err != nil {
			return nil, fmt.Errorf("run %s: %w", run.ID, err)
		}
		run.Stats = make(map[entity.AuxCategory]engine.Stats)
		index[run.ID] = len(runs)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	if len(runs) == 0 {
		return runs, nil
	}

	if err := l.loadStats(ctx, limit, runs, index); err != nil {
		return nil, err
	}
	return runs, nil
}

func (l *Ledger) loadStats(ctx context.Context, limit int, runs []Run, index map[string]int) error {
	rows, err := l.db.QueryContext(ctx, `
		SELECT run_id, category, fetched, preserved, skipped, failed, healed
		FROM sync_run_stats
		WHERE run_id IN (SELECT id FROM sync_runs ORDER BY seq DESC LIMIT ?)
	`, limit)
	if err != nil {
		return fmt.Errorf("query run stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, cat string
			s       engine.Stats
		)
		if err := rows.Scan(&id, &cat, &s.Fetched, &s.Preserved, &s.Skipped, &s.Failed, &s.Healed); err != nil {
			return fmt.Errorf("scan run stats: %w", err)
		}
		if i, ok := index[id]; ok {
			runs[i].Stats[entity.AuxCategory(cat)] = s
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate run stats: %w", err)
	}
	return nil
}
