package models

import "errors"

// CreateRoutineRequest represents the payload for creating a routine.
type CreateRoutineRequest struct {
	OwnerID           string            `json:"owner_id" validate:"required"`
	Name              string            `json:"name" validate:"required"`
	Description       string            `json:"description,omitempty"`
	TriggerKind       TriggerKind       `json:"trigger_kind" validate:"required"`
	TriggerConditions TriggerConditions `json:"trigger_conditions"`
	ActionKind        ActionKind        `json:"action_kind" validate:"required"`
	ActionConfig      ActionConfig      `json:"action_config"`
	IsActive          *bool             `json:"is_active,omitempty"` // defaults to true
}

// TriggerRoutineRequest represents the payload for reactively evaluating one routine.
type TriggerRoutineRequest struct {
	Payload EventPayload `json:"payload"`
}

// CheckRoutinesRequest represents the payload for the bulk reactive entry point.
type CheckRoutinesRequest struct {
	OwnerID     string       `json:"owner_id" validate:"required"`
	TriggerKind TriggerKind  `json:"trigger_kind" validate:"required"`
	Payload     EventPayload `json:"payload"`
}

// Validate validates a CheckRoutinesRequest.
func (r *CheckRoutinesRequest) Validate() error {
	if r.OwnerID == "" {
		return errors.New("owner_id is required")
	}
	if !IsValidTriggerKind(r.TriggerKind) {
		return ErrInvalidTriggerKind
	}
	return nil
}
