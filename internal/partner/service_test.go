package partner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-khana/internal/store"
)

func TestSettlementRowsSplitEarnings(t *testing.T) {
	order := store.Order{ID: "o1", HotelID: "h1"}
	items := []store.OrderItem{
		{DishID: "d1", Qty: 2, UserPrice: 25000, PartnerPrice: 20000},
		{DishID: "d2", Qty: 1, UserPrice: 5000, PartnerPrice: 4000},
	}

	rows := SettlementRows(order, items)
	require.Len(t, rows, 2)

	require.Equal(t, "h1", rows[0].HotelID)
	require.Equal(t, "o1", rows[0].OrderID)
	require.Equal(t, int64(40000), rows[0].PartnerEarning)
	require.Equal(t, int64(10000), rows[0].AdminEarning)

	require.Equal(t, int64(4000), rows[1].PartnerEarning)
	require.Equal(t, int64(1000), rows[1].AdminEarning)

	// partner share plus platform margin always reconstructs the sale amount
	for i, row := range rows {
		require.Equal(t, items[i].UserPrice*int64(items[i].Qty), row.PartnerEarning+row.AdminEarning)
	}
}

func TestSettlementRowsEmptyOrder(t *testing.T) {
	rows := SettlementRows(store.Order{ID: "o1", HotelID: "h1"}, nil)
	require.Empty(t, rows)
}
