package menu

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-khana/internal/common"
	"github.com/noah-isme/backend-khana/internal/store"
)

// Handler exposes dish lookup and administrative price management.
type Handler struct {
	Svc *Service
}

type dishPayload struct {
	HotelID      string `json:"hotelId"`
	Name         string `json:"name"`
	UserPrice    int64  `json:"userPrice"`
	PartnerPrice int64  `json:"partnerPrice"`
}

// Get returns one dish with both price points.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	dish, err := h.Svc.GetDish(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": dish})
}

// Upsert creates or replaces a dish's prices.
func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "dish id is required", nil)
		return
	}
	var payload dishPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid payload", nil)
		return
	}
	dish := store.Dish{
		ID:           id,
		HotelID:      strings.TrimSpace(payload.HotelID),
		Name:         strings.TrimSpace(payload.Name),
		UserPrice:    payload.UserPrice,
		PartnerPrice: payload.PartnerPrice,
	}
	if err := h.Svc.UpsertDish(r.Context(), dish); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": dish})
}
