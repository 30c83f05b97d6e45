package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"fieldsync/internal/docstore"
	"fieldsync/internal/syncengine"
)

// DocReader is the narrow slice of docstore.Store the down-sync route needs.
type DocReader interface {
	WhereEquals(ctx context.Context, collection, field string, value any) ([]docstore.Doc, error)
}

// DownSync serves GET /api/down-sync/{entity}: a read-only fetch, with no
// conflict logic, of the documents whose ?field= equals ?value=. A request
// without a field filter returns an empty list.
func DownSync(docs DocReader, entity string, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		spec, ok := syncengine.SpecFor(entity)
		if !ok {
			http.NotFound(w, r)
			return
		}
		if field := r.URL.Query().Get("field"); field != "" {
			value := r.URL.Query().Get("value")
			docsOut, err := docs.WhereEquals(r.Context(), spec.Collection, field, value)
			if err != nil {
				lg.Errorw("down-sync query failed", "entity", entity, "error", err)
				respondJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
				return
			}
			respondJSON(w, http.StatusOK, toMaps(docsOut))
			return
		}
		respondJSON(w, http.StatusOK, []any{})
	}
}

func toMaps(docs []docstore.Doc) []map[string]any {
	out := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.AsMap())
	}
	return out
}
