// Package store provides storage backends for routine records.
//
// It includes an in-memory store for tests and development, plus SQLite and
// PostgreSQL backed stores for persistent deployments.
package store

import (
	"errors"
	"time"

	"github.com/lifekit/routines/internal/models"
)

// ErrRoutineNotFound is returned when a referenced routine id does not exist.
var ErrRoutineNotFound = errors.New("routine not found")

// Store defines the persistence operations required by the routines engine.
type Store interface {
	// CreateRoutine persists a new routine. The store owns CreatedAt/UpdatedAt.
	CreateRoutine(r models.Routine) error

	// GetRoutine retrieves a routine by id. Returns ErrRoutineNotFound if absent.
	GetRoutine(id string) (*models.Routine, error)

	// ListRoutinesByOwner returns every routine owned by the given user.
	ListRoutinesByOwner(ownerID string) ([]models.Routine, error)

	// ListRoutinesByOwnerAndKind returns the owner's routines with the given trigger kind.
	ListRoutinesByOwnerAndKind(ownerID string, kind models.TriggerKind) ([]models.Routine, error)

	// ListActiveRoutinesByKind returns every active routine with the given trigger kind.
	ListActiveRoutinesByKind(kind models.TriggerKind) ([]models.Routine, error)

	// UpdateRoutine replaces a routine's mutable fields. CreatedAt is preserved;
	// UpdatedAt is advanced by the store.
	UpdateRoutine(r models.Routine) error

	// MarkRoutineFired records a successful fire-and-dispatch cycle.
	// last_fired_at is monotonically non-decreasing; an older timestamp is ignored.
	MarkRoutineFired(id string, firedAt time.Time) error

	// DeleteRoutine removes a routine by id. Returns ErrRoutineNotFound if absent.
	DeleteRoutine(id string) error

	// Close releases any underlying resources.
	Close() error
}

// Opts holds configuration for persistent store backends.
type Opts struct {
	DSN string
}

// Option configures store construction.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}
