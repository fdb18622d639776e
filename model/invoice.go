package model

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
)

type InvoiceStatus int

const (
	InvoiceUnpaid  InvoiceStatus = 1
	InvoicePaid    InvoiceStatus = 2
	InvoiceVoid    InvoiceStatus = 3
	InvoiceOverdue InvoiceStatus = 4
)

func (s InvoiceStatus) String() string {
	switch s {
	case InvoiceUnpaid:
		return "unpaid"
	case InvoicePaid:
		return "paid"
	case InvoiceVoid:
		return "void"
	case InvoiceOverdue:
		return "overdue"
	}
	return fmt.Sprintf("invoice_status(%d)", int(s))
}

type Invoice struct {
	ID            int64           `db:"id"`
	OrderID       int64           `db:"order_id"`
	InvoiceNumber string          `db:"invoice_number"`
	SubTotal      decimal.Decimal `db:"sub_total"`
	TaxAmount     decimal.Decimal `db:"tax_amount"`
	TotalAmount   decimal.Decimal `db:"total_amount"`
	Status        InvoiceStatus   `db:"status"`
	IssuedAt      sql.NullTime    `db:"issued_at"`
	PaidAt        sql.NullTime    `db:"paid_at"`
	CreatedAt     sql.NullTime    `db:"created_at"`
	UpdatedAt     sql.NullTime    `db:"updated_at"`
}
