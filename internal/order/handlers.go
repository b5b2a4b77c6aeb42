package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-khana/internal/common"
	"github.com/noah-isme/backend-khana/internal/geo"
	"github.com/noah-isme/backend-khana/internal/menu"
	"github.com/noah-isme/backend-khana/internal/pricing"
	"github.com/noah-isme/backend-khana/internal/promo"
)

// writeDomainError maps pricing and promo sentinels onto the canonical error
// envelope before falling back to the generic mapping.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pricing.ErrEmptyCart):
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "cart has no items", nil)
	case errors.Is(err, pricing.ErrDistanceUnavailable):
		common.JSONError(w, http.StatusServiceUnavailable, common.CodeExternal, "delivery charge configuration missing", nil)
	case errors.Is(err, promo.ErrPromoNotFound),
		errors.Is(err, promo.ErrPromoExpired),
		errors.Is(err, promo.ErrMinOrderNotMet),
		errors.Is(err, promo.ErrNotFirstOrder),
		errors.Is(err, promo.ErrInvalidPromoKind):
		common.JSONError(w, http.StatusUnprocessableEntity, common.CodeValidation, err.Error(), nil)
	default:
		common.WriteError(w, err)
	}
}

// Handler exposes order placement, lookup, and lifecycle endpoints.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type placeRequest struct {
	AddressID  string      `json:"addressId" validate:"required"`
	Lines      []menu.Line `json:"items" validate:"required,min=1,dive"`
	PromoCode  string      `json:"promoCode"`
	UserCoords geo.Point   `json:"userCoords"`
	ShopCoords geo.Point   `json:"shopCoords"`
	PaymentRef *string     `json:"paymentRef"`
}

type transitionRequest struct {
	Status *int `json:"status" validate:"required"`
}

type assignRequest struct {
	DriverID string `json:"driverId" validate:"required"`
}

func (h *Handler) validate(v any) error {
	if h.Validate == nil {
		return nil
	}
	return h.Validate.Struct(v)
}

// Quote prices a cart without creating an order.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	actor, ok := common.ActorFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing actor identity", nil)
		return
	}
	var req placeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid payload", nil)
		return
	}
	if len(req.Lines) == 0 {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "items are required", nil)
		return
	}
	quote, err := h.Svc.Quote(r.Context(), PlaceInput{
		CustomerID: actor.ID,
		Lines:      req.Lines,
		PromoCode:  strings.TrimSpace(req.PromoCode),
		UserCoords: req.UserCoords,
		ShopCoords: req.ShopCoords,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": quote})
}

// Place creates an order with its frozen price breakdown.
func (h *Handler) Place(w http.ResponseWriter, r *http.Request) {
	actor, ok := common.ActorFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing actor identity", nil)
		return
	}
	var req placeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid payload", nil)
		return
	}
	if err := h.validate(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, err.Error(), nil)
		return
	}
	detail, err := h.Svc.Place(r.Context(), PlaceInput{
		CustomerID: actor.ID,
		AddressID:  strings.TrimSpace(req.AddressID),
		Lines:      req.Lines,
		PromoCode:  strings.TrimSpace(req.PromoCode),
		UserCoords: req.UserCoords,
		ShopCoords: req.ShopCoords,
		PaymentRef: req.PaymentRef,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": detail})
}

// Get returns an order with its items and timeline.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": detail})
}

// Transition moves the order to a new lifecycle state.
func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	actor, ok := common.ActorFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing actor identity", nil)
		return
	}
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "status is required", nil)
		return
	}
	ord, err := h.Svc.Transition(r.Context(), chi.URLParam(r, "id"), Status(*req.Status), actor)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": ord})
}

// Assign records the delivery driver on the order.
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	actor, ok := common.ActorFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing actor identity", nil)
		return
	}
	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid payload", nil)
		return
	}
	if err := h.validate(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, err.Error(), nil)
		return
	}
	ord, err := h.Svc.AssignDriver(r.Context(), chi.URLParam(r, "id"), req.DriverID, actor)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": ord})
}
