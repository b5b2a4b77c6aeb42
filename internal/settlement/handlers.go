package settlement

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-khana/internal/common"
)

// Handler exposes the admin payout endpoints.
type Handler struct {
	Svc *Service
}

type settleRequest struct {
	EarningIDs []string `json:"earningIds"`
	Note       *string  `json:"note"`
}

// Settle pays out a batch of earnings to the driver.
func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	driverID := strings.TrimSpace(chi.URLParam(r, "id"))
	if driverID == "" {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "driver id is required", nil)
		return
	}
	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid payload", nil)
		return
	}
	batch, err := h.Svc.SettleDriver(r.Context(), driverID, req.EarningIDs, req.Note)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": batch})
}

// History lists the driver's payout batches.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	driverID := strings.TrimSpace(chi.URLParam(r, "id"))
	if driverID == "" {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "driver id is required", nil)
		return
	}
	page := common.ParsePagination(r, 20)
	batches, total, err := h.Svc.History(r.Context(), driverID, page.Limit(), page.Offset())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"settlements": batches,
		"totalPaid":   total,
		"pagination":  page,
	}})
}
