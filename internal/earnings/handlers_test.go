package earnings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-khana/internal/common"
	"github.com/noah-isme/backend-khana/internal/store"
)

func earningsRouter(svc *Service) http.Handler {
	h := &Handler{Svc: svc}
	r := chi.NewRouter()
	r.Use(common.ActorFromHeaders)
	r.Post("/drivers/{id}/earnings", h.Create)
	r.Get("/drivers/{id}/earnings", h.Get)
	return r
}

func postEarning(t *testing.T, router http.Handler, driverID, orderID, actorID, actorRole string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/drivers/"+driverID+"/earnings", strings.NewReader(`{"orderId":"`+orderID+`"}`))
	if actorID != "" {
		req.Header.Set("X-Actor-Id", actorID)
		req.Header.Set("X-Actor-Role", actorRole)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateEndpointRequiresOwnDriverOrAdmin(t *testing.T) {
	m := newMemStore(testSettings())
	m.orders["o1"] = deliveredOrder("o1", "d1")
	router := earningsRouter(&Service{Store: m, Log: zerolog.Nop()})

	rec := postEarning(t, router, "d1", "o1", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postEarning(t, router, "d1", "o1", "d2", common.RoleDriver)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Empty(t, m.rows)

	rec = postEarning(t, router, "d1", "o1", "d1", common.RoleDriver)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, m.rows, 1)
}

func TestCreateEndpointRejectsForeignOrder(t *testing.T) {
	m := newMemStore(testSettings())
	m.orders["o1"] = deliveredOrder("o1", "d1")
	router := earningsRouter(&Service{Store: m, Log: zerolog.Nop()})

	// even an admin cannot credit a driver the order was not assigned to
	rec := postEarning(t, router, "d2", "o1", "admin-1", common.RoleAdmin)
	require.Equal(t, http.StatusConflict, rec.Code)

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, common.CodeConflict, body.Error.Code)
	require.Empty(t, m.rows)
}

// dailyStore serves a canned per-day breakdown, recording the window asked for.
type dailyStore struct {
	*memStore
	from, until time.Time
	rows        []store.DailyEarningsRow
}

func (d *dailyStore) DailyEarnings(ctx context.Context, driverID string, from, until time.Time) ([]store.DailyEarningsRow, error) {
	d.from, d.until = from, until
	return d.rows, nil
}

func TestGetEndpointRangeBreakdown(t *testing.T) {
	ds := &dailyStore{
		memStore: newMemStore(testSettings()),
		rows: []store.DailyEarningsRow{
			{Day: time.Date(2026, 8, 1, 0, 0, 0, 0, time.Local), Deliveries: 2, Amount: 6000},
			{Day: time.Date(2026, 8, 3, 0, 0, 0, 0, time.Local), Deliveries: 1, Amount: 13000},
		},
	}
	router := earningsRouter(&Service{Store: ds, Log: zerolog.Nop()})

	req := httptest.NewRequest(http.MethodGet, "/drivers/d1/earnings?from=2026-08-01&to=2026-08-07", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data RangeStatistics `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "2026-08-01", body.Data.From)
	require.Equal(t, "2026-08-07", body.Data.To)
	require.Equal(t, int64(19000), body.Data.Total)
	require.Equal(t, int64(3), body.Data.Deliveries)
	require.Len(t, body.Data.Daily, 2)

	// the upper bound is exclusive of the day after the requested end
	require.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.Local), ds.from)
	require.Equal(t, time.Date(2026, 8, 8, 0, 0, 0, 0, time.Local), ds.until)
}

func TestGetEndpointRangeValidation(t *testing.T) {
	router := earningsRouter(&Service{Store: newMemStore(testSettings()), Log: zerolog.Nop()})

	for _, query := range []string{
		"?from=2026-08-01",
		"?from=not-a-date&to=2026-08-07",
		"?from=2026-08-07&to=2026-08-01",
	} {
		req := httptest.NewRequest(http.MethodGet, "/drivers/d1/earnings"+query, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}
