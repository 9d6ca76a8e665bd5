package proxy

import (
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/florianilch/nimbridge/internal/anthropicadapter/types"
)

// modelsHandler serves the model list clients use for selection. The alias
// table is authoritative: it names exactly the ids this proxy accepts, so
// the list is derived from it instead of asking the backend, whose catalog
// contains models the proxy has no mapping for.
func modelsHandler(aliases map[string]string) http.HandlerFunc {
	ids := slices.Sorted(maps.Keys(aliases))
	created := time.Now().UTC().Truncate(time.Second)

	list := types.ModelList{Data: []types.ModelInfo{}}
	for _, id := range ids {
		list.Data = append(list.Data, types.ModelInfo{
			Type:        "model",
			ID:          id,
			DisplayName: id,
			CreatedAt:   created,
		})
	}
	if len(list.Data) > 0 {
		list.FirstID = &list.Data[0].ID
		list.LastID = &list.Data[len(list.Data)-1].ID
	}

	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(r.Context(), w, list, http.StatusOK)
	}
}
