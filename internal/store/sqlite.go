// Package store provides storage backends for routine records.
//
// This file implements an SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/lifekit/routines/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore is a routine store backed by a local SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// CreateRoutine persists a new routine.
func (s *SQLiteStore) CreateRoutine(r models.Routine) error {
	conditions, err := marshalConditions(r.TriggerConditions)
	if err != nil {
		return err
	}
	config, err := marshalActionConfig(r.ActionConfig)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = s.db.Exec(`INSERT INTO routines
		(id, owner_id, name, description, trigger_kind, trigger_conditions, action_kind, action_config, is_active, last_fired_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)`,
		r.ID, r.OwnerID, r.Name, r.Description, r.TriggerKind, conditions, r.ActionKind, config, r.IsActive, now, now)
	if err != nil {
		slog.Error("SQLiteStore CreateRoutine failed", "error", err, "routineID", r.ID)
		return fmt.Errorf("failed to insert routine %s: %w", r.ID, err)
	}
	slog.Debug("SQLiteStore CreateRoutine succeeded", "routineID", r.ID, "owner", r.OwnerID)
	return nil
}

const sqliteRoutineColumns = `id, owner_id, name, description, trigger_kind, trigger_conditions, action_kind, action_config, is_active, last_fired_at, created_at, updated_at`

// GetRoutine retrieves a routine by id.
func (s *SQLiteStore) GetRoutine(id string) (*models.Routine, error) {
	row := s.db.QueryRow(`SELECT `+sqliteRoutineColumns+` FROM routines WHERE id = ?`, id)
	r, err := scanRoutine(row)
	if err == sql.ErrNoRows {
		return nil, ErrRoutineNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore GetRoutine failed", "error", err, "routineID", id)
		return nil, fmt.Errorf("failed to get routine %s: %w", id, err)
	}
	return r, nil
}

// ListRoutinesByOwner returns every routine owned by the given user.
func (s *SQLiteStore) ListRoutinesByOwner(ownerID string) ([]models.Routine, error) {
	rows, err := s.db.Query(`SELECT `+sqliteRoutineColumns+` FROM routines WHERE owner_id = ? ORDER BY created_at ASC, id ASC`, ownerID)
	if err != nil {
		slog.Error("SQLiteStore ListRoutinesByOwner query failed", "error", err, "owner", ownerID)
		return nil, fmt.Errorf("failed to list routines for owner %s: %w", ownerID, err)
	}
	return collectRoutines(rows)
}

// ListRoutinesByOwnerAndKind returns the owner's routines with the given trigger kind.
func (s *SQLiteStore) ListRoutinesByOwnerAndKind(ownerID string, kind models.TriggerKind) ([]models.Routine, error) {
	rows, err := s.db.Query(`SELECT `+sqliteRoutineColumns+` FROM routines WHERE owner_id = ? AND trigger_kind = ? ORDER BY created_at ASC, id ASC`, ownerID, kind)
	if err != nil {
		slog.Error("SQLiteStore ListRoutinesByOwnerAndKind query failed", "error", err, "owner", ownerID, "kind", kind)
		return nil, fmt.Errorf("failed to list routines for owner %s kind %s: %w", ownerID, kind, err)
	}
	return collectRoutines(rows)
}

// ListActiveRoutinesByKind returns every active routine with the given trigger kind.
func (s *SQLiteStore) ListActiveRoutinesByKind(kind models.TriggerKind) ([]models.Routine, error) {
	rows, err := s.db.Query(`SELECT `+sqliteRoutineColumns+` FROM routines WHERE trigger_kind = ? AND is_active = 1 ORDER BY created_at ASC, id ASC`, kind)
	if err != nil {
		slog.Error("SQLiteStore ListActiveRoutinesByKind query failed", "error", err, "kind", kind)
		return nil, fmt.Errorf("failed to list active routines of kind %s: %w", kind, err)
	}
	return collectRoutines(rows)
}

// UpdateRoutine replaces a routine's mutable fields.
func (s *SQLiteStore) UpdateRoutine(r models.Routine) error {
	conditions, err := marshalConditions(r.TriggerConditions)
	if err != nil {
		return err
	}
	config, err := marshalActionConfig(r.ActionConfig)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`UPDATE routines SET
		name = ?, description = ?, trigger_kind = ?, trigger_conditions = ?, action_kind = ?, action_config = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		r.Name, r.Description, r.TriggerKind, conditions, r.ActionKind, config, r.IsActive, time.Now().UTC(), r.ID)
	if err != nil {
		slog.Error("SQLiteStore UpdateRoutine failed", "error", err, "routineID", r.ID)
		return fmt.Errorf("failed to update routine %s: %w", r.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result for routine %s: %w", r.ID, err)
	}
	if affected == 0 {
		return ErrRoutineNotFound
	}
	return nil
}

// MarkRoutineFired records a successful fire; older timestamps are ignored.
// Timestamps are stored in UTC: go-sqlite3 encodes time.Time as text, and the
// <= guard compares those strings, so a mixed-offset write would mis-order.
func (s *SQLiteStore) MarkRoutineFired(id string, firedAt time.Time) error {
	firedAt = firedAt.UTC()
	res, err := s.db.Exec(`UPDATE routines SET last_fired_at = ?, updated_at = ?
		WHERE id = ? AND (last_fired_at IS NULL OR last_fired_at <= ?)`,
		firedAt, time.Now().UTC(), id, firedAt)
	if err != nil {
		slog.Error("SQLiteStore MarkRoutineFired failed", "error", err, "routineID", id)
		return fmt.Errorf("failed to mark routine %s fired: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check fired result for routine %s: %w", id, err)
	}
	if affected == 0 {
		// Either the routine is gone or a newer fire is already recorded.
		var exists bool
		if err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM routines WHERE id = ?)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check routine %s existence: %w", id, err)
		}
		if !exists {
			return ErrRoutineNotFound
		}
	}
	return nil
}

// DeleteRoutine removes a routine by id.
func (s *SQLiteStore) DeleteRoutine(id string) error {
	res, err := s.db.Exec(`DELETE FROM routines WHERE id = ?`, id)
	if err != nil {
		slog.Error("SQLiteStore DeleteRoutine failed", "error", err, "routineID", id)
		return fmt.Errorf("failed to delete routine %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result for routine %s: %w", id, err)
	}
	if affected == 0 {
		return ErrRoutineNotFound
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
