// Package menu resolves dish prices for cart lines, with a redis
// read-through cache in front of postgres.
package menu

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-khana/internal/common"
	"github.com/noah-isme/backend-khana/internal/pricing"
	"github.com/noah-isme/backend-khana/internal/store"
)

type queryProvider interface {
	GetDish(ctx context.Context, id string) (store.Dish, error)
	UpsertDish(ctx context.Context, d store.Dish) error
}

// Line is one unresolved cart line as submitted by the client.
type Line struct {
	DishID string `json:"dishId" validate:"required"`
	Qty    int64  `json:"qty" validate:"required,gt=0"`
}

// Service resolves dishes and keeps the price cache coherent.
type Service struct {
	queries queryProvider
	cache   *Cache
}

// NewService constructs a menu service.
func NewService(queries queryProvider, cache *Cache) (*Service, error) {
	if queries == nil {
		return nil, errors.New("menu: queries provider is required")
	}
	return &Service{queries: queries, cache: cache}, nil
}

// GetDish returns one dish, serving from cache when possible.
func (s *Service) GetDish(ctx context.Context, id string) (store.Dish, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return store.Dish{}, common.Validation("dish id is required", nil)
	}
	key := dishCacheKey(id)
	var cached store.Dish
	ok, err := s.cache.GetJSON(ctx, key, &cached)
	if err == nil && ok {
		return cached, nil
	}
	dish, err := s.queries.GetDish(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Dish{}, common.NotFound("dish not found", err).WithDetails(map[string]any{"dishId": id})
		}
		return store.Dish{}, fmt.Errorf("get dish: %w", err)
	}
	_ = s.cache.SetJSON(ctx, key, dish)
	return dish, nil
}

// Resolve turns cart lines into priced items, looking up each dish once.
func (s *Service) Resolve(ctx context.Context, lines []Line) ([]pricing.Item, string, error) {
	if len(lines) == 0 {
		return nil, "", common.Validation("cart has no items", pricing.ErrEmptyCart)
	}
	items := make([]pricing.Item, 0, len(lines))
	seen := make(map[string]store.Dish, len(lines))
	hotelID := ""
	for _, line := range lines {
		if line.Qty <= 0 {
			return nil, "", common.Validation("quantity must be positive", nil).WithDetails(map[string]any{"dishId": line.DishID})
		}
		dish, ok := seen[line.DishID]
		if !ok {
			var err error
			dish, err = s.GetDish(ctx, line.DishID)
			if err != nil {
				return nil, "", err
			}
			seen[line.DishID] = dish
		}
		if hotelID == "" {
			hotelID = dish.HotelID
		} else if dish.HotelID != hotelID {
			return nil, "", common.Validation("all cart items must belong to one hotel", nil).WithDetails(map[string]any{"dishId": line.DishID})
		}
		items = append(items, pricing.Item{
			DishID:       dish.ID,
			Name:         dish.Name,
			Qty:          line.Qty,
			UnitPrice:    dish.UserPrice,
			PartnerPrice: dish.PartnerPrice,
		})
	}
	return items, hotelID, nil
}

// UpsertDish writes the dish and invalidates its cache entry.
func (s *Service) UpsertDish(ctx context.Context, d store.Dish) error {
	if strings.TrimSpace(d.ID) == "" || strings.TrimSpace(d.HotelID) == "" {
		return common.Validation("dish id and hotel id are required", nil)
	}
	if d.UserPrice <= 0 || d.PartnerPrice <= 0 {
		return common.Validation("dish prices must be positive", nil)
	}
	if d.PartnerPrice > d.UserPrice {
		return &common.AppError{
			Code:       common.CodeValidation,
			Message:    "partner price cannot exceed user price",
			HTTPStatus: http.StatusBadRequest,
		}
	}
	if err := s.queries.UpsertDish(ctx, d); err != nil {
		return fmt.Errorf("upsert dish: %w", err)
	}
	return s.cache.Delete(ctx, dishCacheKey(d.ID))
}

func dishCacheKey(id string) string {
	return "menu:dish:" + id
}
