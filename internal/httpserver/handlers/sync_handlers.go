package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"fieldsync/internal/apierr"
	"fieldsync/internal/syncengine"
)

// Sync serves POST /api/sync/{entity} — §4.7's sync state machine.
func Sync(engine *syncengine.Engine, entity string, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondErr(w, &apierr.ValidationError{Field: "body", Reason: "invalid JSON"})
			return
		}
		result, err := engine.Sync(r.Context(), entity, body)
		if err != nil {
			if _, ok := err.(*apierr.ConflictError); ok {
				lg.Warnw("sync conflict", "entity", entity)
			} else {
				lg.Errorw("sync failed", "entity", entity, "error", err)
			}
			respondErr(w, err)
			return
		}
		resp := map[string]any{"success": true, "server_id": result.ServerID}
		if result.ResolvedAs != "" {
			resp["resolved_as"] = result.ResolvedAs
		} else {
			resp["created"] = result.Created
		}
		respondJSON(w, http.StatusOK, resp)
	}
}

// ResolveConflict serves POST /api/sync/{entity}/resolve-conflict —
// §4.7's resolve-conflict state machine.
func ResolveConflict(engine *syncengine.Engine, entity string, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PrimaryKey string         `json:"primary_key"`
			Strategy   string         `json:"strategy"`
			ClientData map[string]any `json:"client_data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondErr(w, &apierr.ValidationError{Field: "body", Reason: "invalid JSON"})
			return
		}
		if req.PrimaryKey == "" || req.Strategy == "" {
			respondErr(w, &apierr.ValidationError{Field: "primary_key/strategy", Reason: "required"})
			return
		}
		result, err := engine.ResolveConflict(r.Context(), entity, req.PrimaryKey, req.Strategy, req.ClientData)
		if err != nil {
			lg.Warnw("resolve-conflict failed", "entity", entity, "strategy", req.Strategy, "error", err)
			respondErr(w, err)
			return
		}
		spec, _ := syncengine.SpecFor(entity)
		resp := map[string]any{
			"success":             true,
			"status":              "resolved",
			"message":             fmt.Sprintf("%s resolved via %s", entity, result.ResolutionStrategy),
			spec.PKField:          result.ServerID,
			"resolvedData":        result.ResolvedData,
			"isNew" + entityTitle(entity): result.IsNew,
			"resolution_strategy": result.ResolutionStrategy,
			"allowed_strategies":  result.AllowedStrategies,
			"client_id":           result.ClientID,
			"server_id":           result.ServerID,
		}
		respondJSON(w, http.StatusOK, resp)
	}
}

// entityTitle renders "task-assignment" as "TaskAssignment" for the
// isNew<Entity> response key (§6).
func entityTitle(entity string) string {
	title := make([]byte, 0, len(entity))
	upperNext := true
	for i := 0; i < len(entity); i++ {
		b := entity[i]
		if b == '-' || b == '_' {
			upperNext = true
			continue
		}
		if upperNext && b >= 'a' && b <= 'z' {
			b -= 'a' - 'A'
		}
		upperNext = false
		title = append(title, b)
	}
	return string(title)
}
