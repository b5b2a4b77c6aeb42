package promo

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-khana/internal/common"
	"github.com/noah-isme/backend-khana/internal/store"
)

// Handler exposes administrative promo-code management.
type Handler struct {
	Store *store.Store
}

type promoPayload struct {
	Kind           int       `json:"codeType"`
	DiscountAmount int64     `json:"discountAmount"`
	MinOrderAmount int64     `json:"minOrderAmount"`
	ExpiresAt      time.Time `json:"expiresAt"`
	IsActive       *bool     `json:"isActive"`
}

func (p promoPayload) validate() string {
	switch p.Kind {
	case KindFreeDelivery, KindFlatOff, KindNewUser:
	default:
		return "codeType must be 1, 2 or 3"
	}
	if p.Kind != KindFreeDelivery && p.DiscountAmount <= 0 {
		return "discountAmount must be positive"
	}
	if p.MinOrderAmount < 0 {
		return "minOrderAmount cannot be negative"
	}
	if p.ExpiresAt.IsZero() {
		return "expiresAt is required"
	}
	return ""
}

// Create inserts a new promo code.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Code string `json:"code"`
		promoPayload
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid payload", nil)
		return
	}
	code := strings.ToUpper(strings.TrimSpace(payload.Code))
	if code == "" {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "code is required", nil)
		return
	}
	if msg := payload.validate(); msg != "" {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, msg, nil)
		return
	}
	active := true
	if payload.IsActive != nil {
		active = *payload.IsActive
	}
	rec := store.PromoCode{
		ID:        uuid.NewString(),
		Code:      code,
		Kind:      payload.Kind,
		Discount:  payload.DiscountAmount,
		MinOrder:  payload.MinOrderAmount,
		ExpiresAt: payload.ExpiresAt,
		IsActive:  active,
	}
	if err := h.Store.InsertPromo(r.Context(), rec); err != nil {
		if store.IsUniqueViolation(err, "") {
			common.JSONError(w, http.StatusConflict, common.CodeConflict, "promo code already exists", nil)
			return
		}
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": rec})
}

// Update rewrites a code's rules.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "code")))
	if code == "" {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "code is required", nil)
		return
	}
	var payload promoPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid payload", nil)
		return
	}
	if msg := payload.validate(); msg != "" {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, msg, nil)
		return
	}
	active := true
	if payload.IsActive != nil {
		active = *payload.IsActive
	}
	rec := store.PromoCode{
		Code:      code,
		Kind:      payload.Kind,
		Discount:  payload.DiscountAmount,
		MinOrder:  payload.MinOrderAmount,
		ExpiresAt: payload.ExpiresAt,
		IsActive:  active,
	}
	ok, err := h.Store.UpdatePromo(r.Context(), rec)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if !ok {
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "promo code not found", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rec})
}

// Delete removes a code.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "code")))
	ok, err := h.Store.DeletePromo(r.Context(), code)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if !ok {
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "promo code not found", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"deleted": code}})
}

// List returns one page of codes, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := common.ParsePagination(r, 20)
	promos, err := h.Store.ListPromos(r.Context(), page.Limit(), page.Offset())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": promos, "pagination": page})
}
