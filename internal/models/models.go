package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const (
	RoleCustomer = "CUSTOMER"
	RoleAdmin    = "ADMIN"
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name,omitempty"`
	Role         string    `json:"role"`
	Image        string    `json:"image,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Version      int       `json:"version"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type Category struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	Description  string `json:"description,omitempty"`
	ProductCount int64  `json:"product_count,omitempty"`
}

type Product struct {
	ID              int64               `json:"id"`
	SKU             string              `json:"sku"`
	Slug            string              `json:"slug"`
	Name            string              `json:"name"`
	Description     string              `json:"description,omitempty"`
	FullDescription string              `json:"full_description,omitempty"`
	Price           decimal.Decimal     `json:"price"`
	CompareAtPrice  decimal.NullDecimal `json:"compare_at_price,omitempty"`
	Stock           int                 `json:"stock"`
	IsActive        bool                `json:"is_active"`
	CategoryID      int64               `json:"category_id"`
	Category        *Category           `json:"category,omitempty"`
	Images          pq.StringArray      `json:"images"`
	Colors          pq.StringArray      `json:"colors"`
	Sizes           pq.StringArray      `json:"sizes"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	Version         int                 `json:"version"`
}

type Address struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Name       string    `json:"name"`
	Street     string    `json:"street"`
	City       string    `json:"city"`
	State      string    `json:"state"`
	PostalCode string    `json:"postal_code"`
	Country    string    `json:"country"`
	Phone      string    `json:"phone"`
	IsDefault  bool      `json:"is_default"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type CartItem struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ProductID int64     `json:"product_id"`
	SetType   string    `json:"set_type"`
	Quantity  int       `json:"quantity"`
	Product   *Product  `json:"product,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Order struct {
	ID                int64           `json:"id"`
	OrderNumber       string          `json:"order_number"`
	UserID            int64           `json:"user_id"`
	ShippingAddressID int64           `json:"shipping_address_id"`
	BillingAddressID  int64           `json:"billing_address_id"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	Tax               decimal.Decimal `json:"tax"`
	Shipping          decimal.Decimal `json:"shipping"`
	Total             decimal.Decimal `json:"total"`
	Status            string          `json:"status"`
	PaymentStatus     string          `json:"payment_status"`
	Notes             string          `json:"notes,omitempty"`
	Items             []OrderItem     `json:"items,omitempty"`
	ShippingAddress   *Address        `json:"shipping_address,omitempty"`
	BillingAddress    *Address        `json:"billing_address,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Version           int             `json:"version"`
}

type OrderItem struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	SetType   string          `json:"set_type"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	CreatedAt time.Time       `json:"created_at"`
}

const (
	OrderStatusPending    = "PENDING"
	OrderStatusProcessing = "PROCESSING"
	OrderStatusShipped    = "SHIPPED"
	OrderStatusDelivered  = "DELIVERED"
	OrderStatusCancelled  = "CANCELLED"
)

const (
	PaymentStatusPending  = "PENDING"
	PaymentStatusPaid     = "PAID"
	PaymentStatusFailed   = "FAILED"
	PaymentStatusRefunded = "REFUNDED"
)

// orderTransitions holds the forward edges of the status machine.
// CANCELLED is reachable from every non-terminal state; DELIVERED and
// CANCELLED have no outgoing edges.
var orderTransitions = map[string][]string{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

func ValidOrderStatus(status string) bool {
	_, ok := orderTransitions[status]
	return ok
}

// CanTransitionOrderStatus reports whether an order may move from one
// status to another.
func CanTransitionOrderStatus(from, to string) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
