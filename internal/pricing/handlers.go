package pricing

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/noah-isme/backend-khana/internal/common"
	"github.com/noah-isme/backend-khana/internal/geo"
	"github.com/noah-isme/backend-khana/internal/store"
)

// BandsHandler manages the delivery charge band table singleton.
type BandsHandler struct {
	Store *store.Store
}

type bandsPayload struct {
	Bands []geo.Band `json:"bands"`
}

// Get returns the configured band table.
func (h *BandsHandler) Get(w http.ResponseWriter, r *http.Request) {
	bands, err := h.Store.GetDeliveryBands(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"bands": bands}})
}

// Upsert replaces the band table.
func (h *BandsHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var payload bandsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid payload", nil)
		return
	}
	if len(payload.Bands) == 0 {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "at least one band is required", nil)
		return
	}
	for i, b := range payload.Bands {
		if b.MinKm < 0 || b.MaxKm <= b.MinKm || b.Price <= 0 {
			common.JSONError(w, http.StatusBadRequest, common.CodeValidation,
				fmt.Sprintf("band %d is invalid: range must be ascending and price positive", i), nil)
			return
		}
	}
	if err := h.Store.UpsertDeliveryBands(r.Context(), payload.Bands); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"bands": payload.Bands}})
}
