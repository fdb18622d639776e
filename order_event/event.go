package order_event

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TypeOrderPlaced        = "order.placed"
	TypeOrderStatusChanged = "order.status_changed"
)

type OrderLineEvent struct {
	VariantID int64           `json:"variant_id"`
	ProductID int64           `json:"product_id"`
	SKU       string          `json:"sku"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type OrderPlacedEvent struct {
	EventID     string           `json:"event_id"`
	Type        string           `json:"type"`
	OrderID     int64            `json:"order_id"`
	OrderCode   string           `json:"order_code"`
	UserID      string           `json:"user_id"`
	TotalAmount decimal.Decimal  `json:"total_amount"`
	Lines       []OrderLineEvent `json:"lines"`
	OccurredAt  time.Time        `json:"occurred_at"`
}

type OrderStatusChangedEvent struct {
	EventID        string    `json:"event_id"`
	Type           string    `json:"type"`
	OrderID        int64     `json:"order_id"`
	OrderCode      string    `json:"order_code"`
	PreviousStatus string    `json:"previous_status"`
	CurrentStatus  string    `json:"current_status"`
	InvoiceNumber  string    `json:"invoice_number,omitempty"`
	ChangedBy      string    `json:"changed_by"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// PaymentStatusEvent is the payment gateway outcome for an order; the status is one of the
// model.PaymentStatus names.
type PaymentStatusEvent struct {
	OrderCode     string `json:"order_code"`
	PaymentStatus string `json:"payment_status"`
}
