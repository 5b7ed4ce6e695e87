package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "failed to open database", ErrConnectionFailed)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Run Operations
// =============================================================================

// runRow represents a run row in the database.
type runRow struct {
	ID            string `db:"id"`
	Service       string `db:"service"`
	ResourceGroup string `db:"resource_group"`
	Profile       string `db:"profile"`
	Outcome       string `db:"outcome"`
	Detail        string `db:"detail"`
	StartedAt     string `db:"started_at"`
	FinishedAt    string `db:"finished_at"`
}

func toRunRow(run *Run) runRow {
	return runRow{
		ID:            run.ID,
		Service:       run.Service,
		ResourceGroup: run.ResourceGroup,
		Profile:       run.Profile,
		Outcome:       string(run.Outcome),
		Detail:        run.Detail,
		StartedAt:     run.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt:    run.FinishedAt.UTC().Format(time.RFC3339),
	}
}

func fromRunRow(row runRow) (Run, error) {
	startedAt, err := time.Parse(time.RFC3339, row.StartedAt)
	if err != nil {
		return Run{}, fmt.Errorf("invalid started_at: %w", err)
	}
	finishedAt, err := time.Parse(time.RFC3339, row.FinishedAt)
	if err != nil {
		return Run{}, fmt.Errorf("invalid finished_at: %w", err)
	}

	return Run{
		ID:            row.ID,
		Service:       row.Service,
		ResourceGroup: row.ResourceGroup,
		Profile:       row.Profile,
		Outcome:       Outcome(row.Outcome),
		Detail:        row.Detail,
		StartedAt:     startedAt,
		FinishedAt:    finishedAt,
	}, nil
}

// CreateRun records one deployment run.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *Run) error {
	row := toRunRow(run)
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO runs (id, service, resource_group, profile, outcome, detail, started_at, finished_at)
		VALUES (:id, :service, :resource_group, :profile, :outcome, :detail, :started_at, :finished_at)`,
		row)
	if err != nil {
		return NewStoreError("CreateRun", run.ID, err.Error(), err)
	}
	return nil
}

// GetRun fetches a single run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	var row runRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM runs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewStoreError("GetRun", id, "run not found", ErrNotFound)
	}
	if err != nil {
		return nil, NewStoreError("GetRun", id, err.Error(), err)
	}

	run, err := fromRunRow(row)
	if err != nil {
		return nil, NewStoreError("GetRun", id, err.Error(), err)
	}
	return &run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows []runRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, NewStoreError("ListRuns", "", err.Error(), err)
	}

	runs := make([]Run, 0, len(rows))
	for _, row := range rows {
		run, err := fromRunRow(row)
		if err != nil {
			return nil, NewStoreError("ListRuns", row.ID, err.Error(), err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}
