package handlers

import (
	"encoding/json"
	"net/http"

	"fieldsync/internal/apierr"
)

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// respondErr maps the apierr taxonomy (§7) to a status code and a JSON
// body, taking care to shape conflicts per §6's richer response.
func respondErr(w http.ResponseWriter, err error) {
	switch e := err.(type) {
	case *apierr.ValidationError:
		respondJSON(w, http.StatusBadRequest, map[string]any{"error": e.Error(), "field": e.Field, "reason": e.Reason})
	case *apierr.AuthError:
		status := http.StatusUnauthorized
		if e.Forbidden {
			status = http.StatusForbidden
		}
		respondJSON(w, status, map[string]any{"error": e.Msg})
	case *apierr.NotFoundError:
		respondJSON(w, http.StatusNotFound, map[string]any{"error": e.Error()})
	case *apierr.ConflictError:
		body := map[string]any{
			"error":              "conflict",
			"latest_data":        e.LatestData,
			"allowed_strategies": e.AllowedStrategies,
		}
		if e.ConflictField != "" {
			body["conflict_field"] = e.ConflictField
		}
		if e.ConflictType != "" {
			body["conflict_type"] = e.ConflictType
		}
		if e.ClientID != "" {
			body["client_id"] = e.ClientID
		}
		if e.ServerID != "" {
			body["server_id"] = e.ServerID
		}
		respondJSON(w, http.StatusConflict, body)
	case *apierr.TransientError:
		respondJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error", "message": e.Msg})
	default:
		respondJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
	}
}
