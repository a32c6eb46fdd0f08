// Package api provides HTTP handlers for routine endpoints.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lifekit/routines/internal/engine"
	"github.com/lifekit/routines/internal/models"
)

// healthHandler reports liveness (GET /api/v1/health).
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("healthy", nil))
}

// createRoutineHandler handles routine creation (POST /api/v1/routines).
func (s *Server) createRoutineHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.createRoutineHandler: processing create request", "path", r.URL.Path)

	var req models.CreateRoutineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.createRoutineHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	routine, err := s.eng.CreateRoutine(req)
	if err != nil {
		if models.IsValidationError(err) {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		slog.Error("Server.createRoutineHandler: failed to create routine", "error", err, "owner", req.OwnerID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to create routine"))
		return
	}

	slog.Info("Server.createRoutineHandler: routine created", "routineID", routine.ID, "owner", routine.OwnerID)
	writeJSONResponse(w, http.StatusCreated, models.Success(routine))
}

// listRoutinesHandler lists an owner's routines (GET /api/v1/routines?owner_id=...).
func (s *Server) listRoutinesHandler(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("owner_id query parameter is required"))
		return
	}

	routines, err := s.eng.ListRoutines(ownerID)
	if err != nil {
		slog.Error("Server.listRoutinesHandler: failed to list routines", "error", err, "owner", ownerID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list routines"))
		return
	}
	if routines == nil {
		routines = []models.Routine{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(routines))
}

// getRoutineHandler retrieves one routine (GET /api/v1/routines/{routineID}).
func (s *Server) getRoutineHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "routineID")

	routine, err := s.eng.GetRoutine(id)
	if err != nil {
		if errors.Is(err, engine.ErrRoutineNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Routine not found"))
			return
		}
		slog.Error("Server.getRoutineHandler: failed to get routine", "error", err, "routineID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to get routine"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(routine))
}

// updateRoutineHandler partially updates a routine (PATCH /api/v1/routines/{routineID}).
func (s *Server) updateRoutineHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	id := chi.URLParam(r, "routineID")
	slog.Debug("Server.updateRoutineHandler: processing update request", "routineID", id)

	var upd models.RoutineUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		slog.Warn("Server.updateRoutineHandler: failed to decode JSON", "error", err, "routineID", id)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	routine, err := s.eng.UpdateRoutine(id, upd)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrRoutineNotFound):
			writeJSONResponse(w, http.StatusNotFound, models.Error("Routine not found"))
		case models.IsValidationError(err):
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		default:
			slog.Error("Server.updateRoutineHandler: failed to update routine", "error", err, "routineID", id)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to update routine"))
		}
		return
	}

	slog.Info("Server.updateRoutineHandler: routine updated", "routineID", id)
	writeJSONResponse(w, http.StatusOK, models.Success(routine))
}

// deleteRoutineHandler removes a routine (DELETE /api/v1/routines/{routineID}).
func (s *Server) deleteRoutineHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "routineID")

	if err := s.eng.DeleteRoutine(id); err != nil {
		if errors.Is(err, engine.ErrRoutineNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Routine not found"))
			return
		}
		slog.Error("Server.deleteRoutineHandler: failed to delete routine", "error", err, "routineID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to delete routine"))
		return
	}

	slog.Info("Server.deleteRoutineHandler: routine deleted", "routineID", id)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Routine deleted", nil))
}

// triggerRoutineHandler reactively evaluates one routine
// (POST /api/v1/routines/{routineID}/trigger).
func (s *Server) triggerRoutineHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	id := chi.URLParam(r, "routineID")
	slog.Debug("Server.triggerRoutineHandler: processing trigger request", "routineID", id)

	// An empty body means an empty event payload.
	var req models.TriggerRoutineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		slog.Warn("Server.triggerRoutineHandler: failed to decode JSON", "error", err, "routineID", id)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	result, err := s.eng.EvaluateOne(r.Context(), id, req.Payload)
	if err != nil {
		if errors.Is(err, engine.ErrRoutineNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Routine not found"))
			return
		}
		slog.Error("Server.triggerRoutineHandler: evaluation failed", "error", err, "routineID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to evaluate routine"))
		return
	}

	slog.Info("Server.triggerRoutineHandler: routine evaluated", "routineID", id, "outcome", result.Outcome)
	writeJSONResponse(w, http.StatusOK, models.Evaluated(result))
}

// checkRoutinesHandler is the bulk reactive entry point
// (POST /api/v1/routines/check).
func (s *Server) checkRoutinesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.checkRoutinesHandler: processing check request")

	var req models.CheckRoutinesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.checkRoutinesHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.checkRoutinesHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	results, err := s.eng.CheckRoutinesForOwner(r.Context(), req.OwnerID, req.TriggerKind, req.Payload)
	if err != nil {
		slog.Error("Server.checkRoutinesHandler: evaluation failed", "error", err, "owner", req.OwnerID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to check routines"))
		return
	}

	slog.Info("Server.checkRoutinesHandler: routines evaluated", "owner", req.OwnerID, "kind", req.TriggerKind, "count", len(results))
	writeJSONResponse(w, http.StatusOK, models.Evaluated(results))
}
