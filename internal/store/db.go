// Package store provides hand-written persistence for the pricing and
// settlement core on top of pgx.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/noah-isme/backend-khana/internal/geo"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DBTX abstracts a pool or transaction so queries run in either.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Querier is the full query surface of the store. Services depend on this (or
// a slice of it) instead of the concrete Queries so tests can stub the
// persistence layer.
type Querier interface {
	AppendTimeline(ctx context.Context, orderID, title string, status int) error
	AssignDriverIfUnassigned(ctx context.Context, id, driverID string) (bool, error)
	ClaimHotelSettlement(ctx context.Context, orderID string) (bool, error)
	CountOrdersByCustomer(ctx context.Context, customerID string) (int64, error)
	DailyEarnings(ctx context.Context, driverID string, from, until time.Time) ([]DailyEarningsRow, error)
	DeletePromo(ctx context.Context, code string) (bool, error)
	GetActivePromoByCode(ctx context.Context, code string) (PromoCode, error)
	GetDeliveryBands(ctx context.Context) ([]geo.Band, error)
	GetDish(ctx context.Context, id string) (Dish, error)
	GetDriverSettings(ctx context.Context) (DriverSettings, error)
	GetEarningByDriverOrder(ctx context.Context, driverID, orderID string) (DriverEarning, error)
	GetOrder(ctx context.Context, id string) (Order, error)
	InsertDomainEvent(ctx context.Context, topic, aggregateID string, payload []byte) (DomainEvent, error)
	InsertDriverEarning(ctx context.Context, e DriverEarning) error
	InsertDriverSettlement(ctx context.Context, s DriverSettlement) error
	InsertOrder(ctx context.Context, o Order) error
	InsertOrderItem(ctx context.Context, it OrderItem) error
	InsertPartnerSettlement(ctx context.Context, s PartnerSettlement) error
	InsertPromo(ctx context.Context, p PromoCode) error
	ListDriverSettlements(ctx context.Context, driverID string, limit, offset int32) ([]DriverSettlement, error)
	ListOrderItems(ctx context.Context, orderID string) ([]OrderItem, error)
	ListPartnerSettlementsByHotel(ctx context.Context, hotelID string, onlyUnsettled bool, limit, offset int32) ([]PartnerSettlement, error)
	ListPartnerSettlementsByOrder(ctx context.Context, orderID string) ([]PartnerSettlement, error)
	ListPromos(ctx context.Context, limit, offset int32) ([]PromoCode, error)
	ListTimeline(ctx context.Context, orderID string) ([]TimelineEntry, error)
	LockEarningsForSettlement(ctx context.Context, driverID string, ids []string) ([]DriverEarning, error)
	MarkEarningsSettled(ctx context.Context, ids []string) (int64, error)
	MarkPartnerSettlementsSettled(ctx context.Context, ids []string) (int64, error)
	NextDeliveryNumber(ctx context.Context, driverID string) (int64, error)
	RecentEarnings(ctx context.Context, driverID string, limit int32) ([]RecentEarningRow, error)
	SetDriverPaid(ctx context.Context, orderID string) error
	SumDriverSettlements(ctx context.Context, driverID string) (int64, error)
	SumEarnings(ctx context.Context, driverID string, from, until time.Time, settled *bool) (int64, error)
	SumUnsettledPartnerEarnings(ctx context.Context, hotelID string) (int64, error)
	UpdateOrderStatusIf(ctx context.Context, id string, from, to int) (bool, error)
	UpdatePromo(ctx context.Context, p PromoCode) (bool, error)
	UpsertDeliveryBands(ctx context.Context, bands []geo.Band) error
	UpsertDish(ctx context.Context, d Dish) error
	UpsertDriverSettings(ctx context.Context, s DriverSettings) error
}

var _ Querier = (*Queries)(nil)

// Queries bundles all persistence operations of the core.
type Queries struct {
	db DBTX
}

// New constructs Queries over a pool or transaction.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns Queries bound to the provided transaction.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

// Store couples the pool with its query set and transaction helper.
type Store struct {
	Pool *pgxpool.Pool
	*Queries
}

// NewStore wraps an existing pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool, Queries: New(pool)}
}

// WithTx runs fn inside a transaction, rolling back on error. The Querier
// handed to fn is bound to the transaction.
func (s *Store) WithTx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(s.Queries.WithTx(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Migrate applies embedded schema migrations against the database.
func Migrate(databaseURL string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()
	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("init migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx", driver)
	if err != nil {
		return fmt.Errorf("init migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether the error is a PostgreSQL unique
// constraint violation, optionally matching a specific constraint name.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
