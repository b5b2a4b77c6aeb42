package partner

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-khana/internal/common"
)

// Handler exposes the admin-facing partner settlement endpoints.
type Handler struct {
	Svc *Service
}

type markSettledRequest struct {
	SettlementIDs []string `json:"settlementIds"`
}

// MarkSettled bulk-settles the named ledger rows.
func (h *Handler) MarkSettled(w http.ResponseWriter, r *http.Request) {
	var req markSettledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid payload", nil)
		return
	}
	affected, err := h.Svc.MarkSettled(r.Context(), req.SettlementIDs)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"settledCount": affected}})
}

// ListForHotel returns one hotel's settlement rows and pending total.
func (h *Handler) ListForHotel(w http.ResponseWriter, r *http.Request) {
	hotelID := strings.TrimSpace(chi.URLParam(r, "id"))
	if hotelID == "" {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "hotel id is required", nil)
		return
	}
	onlyUnsettled := r.URL.Query().Get("unsettled") == "true"
	page := common.ParsePagination(r, 20)
	rows, pending, err := h.Svc.ListForHotel(r.Context(), hotelID, onlyUnsettled, page.Limit(), page.Offset())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"settlements":   rows,
		"pendingAmount": pending,
		"pagination":    page,
	}})
}
