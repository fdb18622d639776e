package model

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus int

const (
	OrderPending   OrderStatus = 1
	OrderConfirmed OrderStatus = 2
	OrderShipping  OrderStatus = 3
	OrderDelivered OrderStatus = 4
	OrderCancelled OrderStatus = 5
	OrderReturned  OrderStatus = 6
)

var AllOrderStatuses = []OrderStatus{
	OrderPending, OrderConfirmed, OrderShipping, OrderDelivered, OrderCancelled, OrderReturned,
}

var orderStatusNames = map[OrderStatus]string{
	OrderPending:   "pending",
	OrderConfirmed: "confirmed",
	OrderShipping:  "shipping",
	OrderDelivered: "delivered",
	OrderCancelled: "cancelled",
	OrderReturned:  "returned",
}

func (s OrderStatus) String() string {
	if name, ok := orderStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("order_status(%d)", int(s))
}

func ParseOrderStatus(name string) (OrderStatus, error) {
	for status, n := range orderStatusNames {
		if n == name {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown order status %q", name)
}

type Order struct {
	ID             int64           `db:"id"`
	OrderCode      string          `db:"order_code"`
	UserID         string          `db:"user_id"`
	Status         OrderStatus     `db:"status"`
	PaymentStatus  PaymentStatus   `db:"payment_status"`
	PaymentMethod  PaymentMethod   `db:"payment_method"`
	CustomerName   string          `db:"customer_name"`
	CustomerPhone  string          `db:"customer_phone"`
	CustomerEmail  string          `db:"customer_email"`
	Note           string          `db:"note"`
	SubTotal       decimal.Decimal `db:"sub_total"`
	ShippingFee    decimal.Decimal `db:"shipping_fee"`
	DiscountAmount decimal.Decimal `db:"discount_amount"`
	TotalAmount    decimal.Decimal `db:"total_amount"`
	Version        int64           `db:"version"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`

	Lines   []OrderLine          `db:"-"`
	Address OrderAddress         `db:"-"`
	History []OrderStatusHistory `db:"-"`
	Invoice *Invoice             `db:"-"`
}

// HasReached reports whether the order has ever been moved to status.
func (o Order) HasReached(status OrderStatus) bool {
	for _, h := range o.History {
		if h.Status == status {
			return true
		}
	}
	return false
}

// OrderLine is copied from the catalog when the order is built and never changes afterwards.
type OrderLine struct {
	ID           int64           `db:"id"`
	OrderID      int64           `db:"order_id"`
	VariantID    int64           `db:"variant_id"`
	ProductID    int64           `db:"product_id"`
	ProductName  string          `db:"product_name"`
	SKU          string          `db:"sku"`
	ColorName    string          `db:"color_name"`
	SizeName     string          `db:"size_name"`
	ThumbnailURL string          `db:"thumbnail_url"`
	Quantity     int             `db:"quantity"`
	UnitPrice    decimal.Decimal `db:"unit_price"`
	LineTotal    decimal.Decimal `db:"line_total"`
}

type OrderAddress struct {
	OrderID       int64  `db:"order_id"`
	ReceiverName  string `db:"receiver_name"`
	ReceiverPhone string `db:"receiver_phone"`
	AddressLine   string `db:"address_line"`
	Ward          string `db:"ward"`
	District      string `db:"district"`
	City          string `db:"city"`
	PostalCode    string `db:"postal_code"`
}

type OrderStatusHistory struct {
	ID        int64        `db:"id"`
	OrderID   int64        `db:"order_id"`
	Status    OrderStatus  `db:"status"`
	Note      string       `db:"note"`
	ChangedBy string       `db:"changed_by"`
	CreatedAt sql.NullTime `db:"created_at"`
}
