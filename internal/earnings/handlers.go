package earnings

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-khana/internal/common"
	"github.com/noah-isme/backend-khana/internal/store"
)

// Handler exposes the driver earnings endpoints.
type Handler struct {
	Svc *Service
}

type createEarningRequest struct {
	OrderID string `json:"orderId"`
}

// Create credits the driver for an order. Retried calls return the existing
// earning with 200 instead of 201.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	driverID := strings.TrimSpace(chi.URLParam(r, "id"))
	if driverID == "" {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "driver id is required", nil)
		return
	}
	actor, ok := common.ActorFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing actor identity", nil)
		return
	}
	if actor.Role != common.RoleAdmin && actor.ID != driverID {
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "earnings can only be recorded for the delivering driver", nil)
		return
	}
	var req createEarningRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.OrderID) == "" {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "orderId is required", nil)
		return
	}
	earning, err := h.Svc.Create(r.Context(), driverID, strings.TrimSpace(req.OrderID))
	if err != nil {
		switch {
		case errors.Is(err, ErrSettingsNotConfigured):
			common.JSONError(w, http.StatusConflict, common.CodeConflict, err.Error(), nil)
		case errors.Is(err, ErrOrderNotFound):
			common.JSONError(w, http.StatusNotFound, common.CodeNotFound, err.Error(), nil)
		case errors.Is(err, ErrOrderNotDelivered):
			common.JSONError(w, http.StatusConflict, common.CodeConflict, err.Error(), nil)
		case errors.Is(err, ErrDriverMismatch):
			common.JSONError(w, http.StatusConflict, common.CodeConflict, err.Error(), nil)
		default:
			common.WriteError(w, err)
		}
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": earning})
}

// Get serves the driver's earnings views: the headline summary by default, a
// monthly statistics report with ?month=&year=, and the latest rows with
// ?recent=N.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	driverID := strings.TrimSpace(chi.URLParam(r, "id"))
	if driverID == "" {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "driver id is required", nil)
		return
	}
	query := r.URL.Query()

	if query.Get("from") != "" || query.Get("to") != "" {
		from, err := time.ParseInLocation("2006-01-02", query.Get("from"), time.Local)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "from must be YYYY-MM-DD", nil)
			return
		}
		to, err := time.ParseInLocation("2006-01-02", query.Get("to"), time.Local)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "to must be YYYY-MM-DD", nil)
			return
		}
		if to.Before(from) {
			common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "to must not precede from", nil)
			return
		}
		stats, err := h.Svc.StatisticsRange(r.Context(), driverID, from, to)
		if err != nil {
			common.WriteError(w, err)
			return
		}
		common.JSON(w, http.StatusOK, map[string]any{"data": stats})
		return
	}

	if query.Get("month") != "" || query.Get("year") != "" {
		month, err := strconv.Atoi(query.Get("month"))
		if err != nil || month < 1 || month > 12 {
			common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "month must be 1-12", nil)
			return
		}
		year, err := strconv.Atoi(query.Get("year"))
		if err != nil || year < 2000 {
			common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "year is invalid", nil)
			return
		}
		stats, err := h.Svc.Statistics(r.Context(), driverID, time.Month(month), year)
		if err != nil {
			common.WriteError(w, err)
			return
		}
		common.JSON(w, http.StatusOK, map[string]any{"data": stats})
		return
	}

	if raw := query.Get("recent"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "recent must be a positive integer", nil)
			return
		}
		rows, err := h.Svc.Recent(r.Context(), driverID, int32(n))
		if err != nil {
			common.WriteError(w, err)
			return
		}
		common.JSON(w, http.StatusOK, map[string]any{"data": rows})
		return
	}

	summary, err := h.Svc.Summary(r.Context(), driverID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": summary})
}

// SettingsHandler manages the DriverSettings singleton.
type SettingsHandler struct {
	Store *store.Store
}

type settingsPayload struct {
	PerDeliveryAmount int64 `json:"perDeliveryAmount"`
	Bonus16th         int64 `json:"bonus16thDelivery"`
	Bonus21st         int64 `json:"bonus21stDelivery"`
}

// Upsert writes the global per-delivery compensation rules.
func (h *SettingsHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var payload settingsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid payload", nil)
		return
	}
	if payload.PerDeliveryAmount <= 0 || payload.Bonus16th < 0 || payload.Bonus21st < 0 {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "amounts must be positive", nil)
		return
	}
	settings := store.DriverSettings{
		PerDeliveryAmount: payload.PerDeliveryAmount,
		Bonus16th:         payload.Bonus16th,
		Bonus21st:         payload.Bonus21st,
	}
	if err := h.Store.UpsertDriverSettings(r.Context(), settings); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": settings})
}
