package earnings

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jinzhu/now"
	"github.com/redis/go-redis/v9"
)

// Summary aggregates a driver's ledger into the figures the driver app shows.
type Summary struct {
	TotalAllTime int64 `json:"totalAllTime"`
	CurrentMonth int64 `json:"currentMonth"`
	Today        int64 `json:"today"`
	Pending      int64 `json:"pending"`
	Settled      int64 `json:"settled"`
}

// DailyStat is one day of the statistics breakdown.
type DailyStat struct {
	Date       string `json:"date"`
	Deliveries int64  `json:"deliveries"`
	Amount     int64  `json:"amount"`
}

// Statistics is the per-month earnings report.
type Statistics struct {
	Month      int         `json:"month"`
	Year       int         `json:"year"`
	Total      int64       `json:"total"`
	Deliveries int64       `json:"deliveries"`
	Daily      []DailyStat `json:"daily"`
}

// RecentEarning is one ledger row with order context for display.
type RecentEarning struct {
	ID             string    `json:"id"`
	OrderID        string    `json:"orderId"`
	OrderCode      string    `json:"orderCode"`
	HotelID        string    `json:"hotelId"`
	Amount         int64     `json:"amount"`
	Bonus          int64     `json:"bonus"`
	DeliveryNumber int64     `json:"deliveryNumber"`
	IsSettled      bool      `json:"isSettled"`
	EarnedOn       time.Time `json:"earnedOn"`
}

// Summary computes the driver's headline figures, serving a short-lived
// cached copy when available.
func (s *Service) Summary(ctx context.Context, driverID string) (Summary, error) {
	if cached, ok := s.Cache.Get(ctx, driverID); ok {
		return cached, nil
	}

	nowTime := time.Now()
	monthStart := now.With(nowTime).BeginningOfMonth()
	dayStart := now.With(nowTime).BeginningOfDay()

	var (
		sum     Summary
		err     error
		settled = true
		pending = false
	)
	if sum.TotalAllTime, err = s.Store.SumEarnings(ctx, driverID, time.Time{}, time.Time{}, nil); err != nil {
		return Summary{}, fmt.Errorf("sum all-time: %w", err)
	}
	if sum.CurrentMonth, err = s.Store.SumEarnings(ctx, driverID, monthStart, time.Time{}, nil); err != nil {
		return Summary{}, fmt.Errorf("sum month: %w", err)
	}
	if sum.Today, err = s.Store.SumEarnings(ctx, driverID, dayStart, time.Time{}, nil); err != nil {
		return Summary{}, fmt.Errorf("sum today: %w", err)
	}
	if sum.Pending, err = s.Store.SumEarnings(ctx, driverID, time.Time{}, time.Time{}, &pending); err != nil {
		return Summary{}, fmt.Errorf("sum pending: %w", err)
	}
	if sum.Settled, err = s.Store.SumEarnings(ctx, driverID, time.Time{}, time.Time{}, &settled); err != nil {
		return Summary{}, fmt.Errorf("sum settled: %w", err)
	}

	s.Cache.Set(ctx, driverID, sum)
	return sum, nil
}

// Statistics returns the daily breakdown for one calendar month.
func (s *Service) Statistics(ctx context.Context, driverID string, month time.Month, year int) (Statistics, error) {
	monthStart := time.Date(year, month, 1, 0, 0, 0, 0, time.Local)
	monthEnd := now.With(monthStart).EndOfMonth().Add(time.Nanosecond)

	rows, err := s.Store.DailyEarnings(ctx, driverID, monthStart, monthEnd)
	if err != nil {
		return Statistics{}, fmt.Errorf("daily earnings: %w", err)
	}
	stats := Statistics{Month: int(month), Year: year, Daily: make([]DailyStat, 0, len(rows))}
	for _, row := range rows {
		stats.Total += row.Amount
		stats.Deliveries += row.Deliveries
		stats.Daily = append(stats.Daily, DailyStat{
			Date:       row.Day.Format("2006-01-02"),
			Deliveries: row.Deliveries,
			Amount:     row.Amount,
		})
	}
	return stats, nil
}

// RangeStatistics is the daily breakdown over an arbitrary date range.
type RangeStatistics struct {
	From       string      `json:"from"`
	To         string      `json:"to"`
	Total      int64       `json:"total"`
	Deliveries int64       `json:"deliveries"`
	Daily      []DailyStat `json:"daily"`
}

// StatisticsRange returns the per-day breakdown for the inclusive date range
// [from, to], bucketed by calendar day.
func (s *Service) StatisticsRange(ctx context.Context, driverID string, from, to time.Time) (RangeStatistics, error) {
	from = now.With(from).BeginningOfDay()
	until := now.With(to).BeginningOfDay().AddDate(0, 0, 1)

	rows, err := s.Store.DailyEarnings(ctx, driverID, from, until)
	if err != nil {
		return RangeStatistics{}, fmt.Errorf("daily earnings: %w", err)
	}
	stats := RangeStatistics{
		From:  from.Format("2006-01-02"),
		To:    to.Format("2006-01-02"),
		Daily: make([]DailyStat, 0, len(rows)),
	}
	for _, row := range rows {
		stats.Total += row.Amount
		stats.Deliveries += row.Deliveries
		stats.Daily = append(stats.Daily, DailyStat{
			Date:       row.Day.Format("2006-01-02"),
			Deliveries: row.Deliveries,
			Amount:     row.Amount,
		})
	}
	return stats, nil
}

// Recent returns the driver's latest earnings with order context joined in.
func (s *Service) Recent(ctx context.Context, driverID string, limit int32) ([]RecentEarning, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.Store.RecentEarnings(ctx, driverID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent earnings: %w", err)
	}
	out := make([]RecentEarning, 0, len(rows))
	for _, row := range rows {
		out = append(out, RecentEarning{
			ID:             row.Earning.ID,
			OrderID:        row.Earning.OrderID,
			OrderCode:      row.OrderCode,
			HotelID:        row.HotelID,
			Amount:         row.Earning.Amount,
			Bonus:          row.Earning.Bonus,
			DeliveryNumber: row.Earning.DeliveryNumber,
			IsSettled:      row.Earning.IsSettled,
			EarnedOn:       row.Earning.EarnedOn,
		})
	}
	return out, nil
}

// SummaryCache keeps recently computed summaries in redis so the driver app
// polling the dashboard does not hammer the ledger.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSummaryCache constructs the cache. A nil client disables caching.
func NewSummaryCache(client *redis.Client, ttl time.Duration) *SummaryCache {
	return &SummaryCache{client: client, ttl: ttl}
}

func (c *SummaryCache) Get(ctx context.Context, driverID string) (Summary, bool) {
	if c == nil || c.client == nil {
		return Summary{}, false
	}
	data, err := c.client.Get(ctx, summaryKey(driverID)).Bytes()
	if err != nil {
		return Summary{}, false
	}
	var sum Summary
	if err := json.Unmarshal(data, &sum); err != nil {
		return Summary{}, false
	}
	return sum, true
}

func (c *SummaryCache) Set(ctx context.Context, driverID string, sum Summary) {
	if c == nil || c.client == nil {
		return
	}
	data, err := json.Marshal(sum)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, summaryKey(driverID), data, c.ttl).Err()
}

// Invalidate drops the cached summary after the ledger changes.
func (c *SummaryCache) Invalidate(ctx context.Context, driverID string) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, summaryKey(driverID)).Err()
}

func summaryKey(driverID string) string {
	return "earnings:summary:" + driverID
}
