package store

import "time"

// Order status wire codes as persisted and exchanged with clients.
const (
	StatusPlaced          = 0
	StatusPreparing       = 1
	StatusAssigned        = 2
	StatusDelivered       = 3
	StatusAccepted        = 4
	StatusRejected        = 5
	StatusPickupConfirmed = 6
	StatusCancelled       = 7
)

// Order is one purchase transaction with its frozen price breakdown.
type Order struct {
	ID                 string
	Code               string
	CustomerID         string
	HotelID            string
	AddressID          string
	DriverID           *string
	PromoCodeID        *string
	Status             int
	Subtotal           int64
	GSTAmount          int64
	DeliveryCharge     int64
	DriverCompensation int64
	PlatformFee        int64
	Discount           int64
	TotalPayable       int64
	RoundOff           int64
	PaymentRef         *string
	DriverPaid         bool
	HotelSettled       bool
	PlacedAt           time.Time
	UpdatedAt          time.Time
}

// OrderItem is one cart line frozen at placement time.
type OrderItem struct {
	ID           int64
	OrderID      string
	DishID       string
	Name         string
	Qty          int32
	UserPrice    int64
	PartnerPrice int64
}

// TimelineEntry is one immutable lifecycle record.
type TimelineEntry struct {
	ID        int64
	OrderID   string
	Title     string
	Status    int
	CreatedAt time.Time
}

// PromoCode is an admin-managed discount rule.
type PromoCode struct {
	ID        string
	Code      string
	Kind      int
	Discount  int64
	MinOrder  int64
	ExpiresAt time.Time
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Dish is a menu entry with its customer and partner prices.
type Dish struct {
	ID           string
	HotelID      string
	Name         string
	UserPrice    int64
	PartnerPrice int64
	CreatedAt    time.Time
}

// PartnerSettlement credits a hotel partner for one order line.
type PartnerSettlement struct {
	ID             string
	HotelID        string
	OrderID        string
	DishID         string
	Qty            int32
	PartnerPrice   int64
	PartnerEarning int64
	AdminEarning   int64
	IsSettled      bool
	SettledAt      *time.Time
	CreatedAt      time.Time
}

// DriverEarning credits a delivery actor for one delivered order.
type DriverEarning struct {
	ID             string
	DriverID       string
	OrderID        string
	EarnedOn       time.Time
	Amount         int64
	Bonus          int64
	DeliveryNumber int64
	IsSettled      bool
	CreatedAt      time.Time
}

// DriverSettlement is one payout batch to a driver.
type DriverSettlement struct {
	ID         string
	DriverID   string
	SettledAt  time.Time
	AmountPaid int64
	EarningIDs []string
	Note       *string
}

// DriverSettings is the global singleton of per-delivery compensation rules.
type DriverSettings struct {
	PerDeliveryAmount int64
	Bonus16th         int64
	Bonus21st         int64
	UpdatedAt         time.Time
}

// DomainEvent is one persisted event emitted by the core.
type DomainEvent struct {
	ID          int64
	Topic       string
	AggregateID string
	Payload     []byte
	OccurredAt  time.Time
}
