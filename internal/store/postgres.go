// Package store provides storage backends for routine records.
//
// This file implements a PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"
	"github.com/lifekit/routines/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore is a routine store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure the routines table exists
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// CreateRoutine persists a new routine.
func (s *PostgresStore) CreateRoutine(r models.Routine) error {
	conditions, err := marshalConditions(r.TriggerConditions)
	if err != nil {
		return err
	}
	config, err := marshalActionConfig(r.ActionConfig)
	if err != nil {
		return err
	}
	now := time.Now()
	_, err = s.db.Exec(`INSERT INTO routines
		(id, owner_id, name, description, trigger_kind, trigger_conditions, action_kind, action_config, is_active, last_fired_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULL, $10, $11)`,
		r.ID, r.OwnerID, r.Name, r.Description, r.TriggerKind, conditions, r.ActionKind, config, r.IsActive, now, now)
	if err != nil {
		slog.Error("PostgresStore CreateRoutine failed", "error", err, "routineID", r.ID)
		return fmt.Errorf("failed to insert routine %s: %w", r.ID, err)
	}
	slog.Debug("PostgresStore CreateRoutine succeeded", "routineID", r.ID, "owner", r.OwnerID)
	return nil
}

const postgresRoutineColumns = `id, owner_id, name, description, trigger_kind, trigger_conditions, action_kind, action_config, is_active, last_fired_at, created_at, updated_at`

// GetRoutine retrieves a routine by id.
func (s *PostgresStore) GetRoutine(id string) (*models.Routine, error) {
	row := s.db.QueryRow(`SELECT `+postgresRoutineColumns+` FROM routines WHERE id = $1`, id)
	r, err := scanRoutine(row)
	if err == sql.ErrNoRows {
		return nil, ErrRoutineNotFound
	}
	if err != nil {
		slog.Error("PostgresStore GetRoutine failed", "error", err, "routineID", id)
		return nil, fmt.Errorf("failed to get routine %s: %w", id, err)
	}
	return r, nil
}

// ListRoutinesByOwner returns every routine owned by the given user.
func (s *PostgresStore) ListRoutinesByOwner(ownerID string) ([]models.Routine, error) {
	rows, err := s.db.Query(`SELECT `+postgresRoutineColumns+` FROM routines WHERE owner_id = $1 ORDER BY created_at ASC, id ASC`, ownerID)
	if err != nil {
		slog.Error("PostgresStore ListRoutinesByOwner query failed", "error", err, "owner", ownerID)
		return nil, fmt.Errorf("failed to list routines for owner %s: %w", ownerID, err)
	}
	return collectRoutines(rows)
}

// ListRoutinesByOwnerAndKind returns the owner's routines with the given trigger kind.
func (s *PostgresStore) ListRoutinesByOwnerAndKind(ownerID string, kind models.TriggerKind) ([]models.Routine, error) {
	rows, err := s.db.Query(`SELECT `+postgresRoutineColumns+` FROM routines WHERE owner_id = $1 AND trigger_kind = $2 ORDER BY created_at ASC, id ASC`, ownerID, kind)
	if err != nil {
		slog.Error("PostgresStore ListRoutinesByOwnerAndKind query failed", "error", err, "owner", ownerID, "kind", kind)
		return nil, fmt.Errorf("failed to list routines for owner %s kind %s: %w", ownerID, kind, err)
	}
	return collectRoutines(rows)
}

// ListActiveRoutinesByKind returns every active routine with the given trigger kind.
func (s *PostgresStore) ListActiveRoutinesByKind(kind models.TriggerKind) ([]models.Routine, error) {
	rows, err := s.db.Query(`SELECT `+postgresRoutineColumns+` FROM routines WHERE trigger_kind = $1 AND is_active = TRUE ORDER BY created_at ASC, id ASC`, kind)
	if err != nil {
		slog.Error("PostgresStore ListActiveRoutinesByKind query failed", "error", err, "kind", kind)
		return nil, fmt.Errorf("failed to list active routines of kind %s: %w", kind, err)
	}
	return collectRoutines(rows)
}

// UpdateRoutine replaces a routine's mutable fields.
func (s *PostgresStore) UpdateRoutine(r models.Routine) error {
	conditions, err := marshalConditions(r.TriggerConditions)
	if err != nil {
		return err
	}
	config, err := marshalActionConfig(r.ActionConfig)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`UPDATE routines SET
		name = $1, description = $2, trigger_kind = $3, trigger_conditions = $4, action_kind = $5, action_config = $6, is_active = $7, updated_at = $8
		WHERE id = $9`,
		r.Name, r.Description, r.TriggerKind, conditions, r.ActionKind, config, r.IsActive, time.Now(), r.ID)
	if err != nil {
		slog.Error("PostgresStore UpdateRoutine failed", "error", err, "routineID", r.ID)
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
func (s *PostgresStore) MarkRoutineFired(id string, firedAt time.Time) error {
	res, err := s.db.Exec(`UPDATE routines SET last_fired_at = $1, updated_at = $2
		WHERE id = $3 AND (last_fired_at IS NULL OR last_fired_at <= $1)`,
		firedAt, time.Now(), id)
	if err != nil {
		slog.Error("PostgresStore MarkRoutineFired failed", "error", err, "routineID", id)
		return fmt.Errorf("failed to mark routine %s fired: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check fired result for routine %s: %w", id, err)
	}
	if affected == 0 {
		var exists bool
		if err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM routines WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check routine %s existence: %w", id, err)
		}
		if !exists {
			return ErrRoutineNotFound
		}
	}
	return nil
}

// DeleteRoutine removes a routine by id.
func (s *PostgresStore) DeleteRoutine(id string) error {
	res, err := s.db.Exec(`DELETE FROM routines WHERE id = $1`, id)
	if err != nil {
		slog.Error("PostgresStore DeleteRoutine failed", "error", err, "routineID", id)
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
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
