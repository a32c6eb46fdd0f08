// Package store provides storage backends for routine records.
//
// This file contains serialization helpers shared by the SQL backends.
// Trigger conditions and action configs are persisted as JSON text columns.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lifekit/routines/internal/models"
)

// marshalConditions serializes trigger conditions for a JSON text column.
func marshalConditions(c models.TriggerConditions) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal trigger conditions: %w", err)
	}
	return string(data), nil
}

// unmarshalConditions deserializes trigger conditions from a JSON text column.
func unmarshalConditions(data string) (models.TriggerConditions, error) {
	var c models.TriggerConditions
	if data == "" {
		return c, nil
	}
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return c, fmt.Errorf("failed to unmarshal trigger conditions: %w", err)
	}
	return c, nil
}

// marshalActionConfig serializes an action config for a JSON text column.
func marshalActionConfig(c models.ActionConfig) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal action config: %w", err)
	}
	return string(data), nil
}

// unmarshalActionConfig deserializes an action config from a JSON text column.
func unmarshalActionConfig(data string) (models.ActionConfig, error) {
	var c models.ActionConfig
	if data == "" {
		return c, nil
	}
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return c, fmt.Errorf("failed to unmarshal action config: %w", err)
	}
	return c, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning logic.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRoutine reads one routine row in the column order used by both SQL backends:
// id, owner_id, name, description, trigger_kind, trigger_conditions,
// action_kind, action_config, is_active, last_fired_at, created_at, updated_at.
func scanRoutine(row rowScanner) (*models.Routine, error) {
	var (
		r           models.Routine
		conditions  string
		config      string
		lastFiredAt sql.NullTime
	)
	if err := row.Scan(
		&r.ID,
		&r.OwnerID,
		&r.Name,
		&r.Description,
		&r.TriggerKind,
		&conditions,
		&r.ActionKind,
		&config,
		&r.IsActive,
		&lastFiredAt,
		&r.CreatedAt,
		&r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c, err := unmarshalConditions(conditions)
	if err != nil {
		return nil, err
	}
	r.TriggerConditions = c
	a, err := unmarshalActionConfig(config)
	if err != nil {
		return nil, err
	}
	r.ActionConfig = a
	if lastFiredAt.Valid {
		t := lastFiredAt.Time
		r.LastFiredAt = &t
	}
	return &r, nil
}

// collectRoutines drains a result set through scanRoutine.
func collectRoutines(rows *sql.Rows) ([]models.Routine, error) {
	defer rows.Close()
	var routines []models.Routine
	for rows.Next() {
		r, err := scanRoutine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan routine row: %w", err)
		}
		routines = append(routines, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate routine rows: %w", err)
	}
	return routines, nil
}
