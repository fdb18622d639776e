package invoice

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rafata1/storefront-orders/database"
	"github.com/rafata1/storefront-orders/model"
)

type IRepo interface {
	Transact(ctx context.Context, fn func(ctx context.Context) error) error
	GetByOrderID(ctx context.Context, orderID int64) (model.Invoice, error)
	CreateInvoice(ctx context.Context, invoice model.Invoice) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status model.InvoiceStatus, paidAt time.Time) error
}

type repo struct {
	db *sqlx.DB
}

func NewRepo(db *sqlx.DB) IRepo {
	return &repo{
		db: db,
	}
}

func (r repo) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	return database.Transact(ctx, r.db, fn)
}

var getByOrderIDQuery = "SELECT * FROM invoices WHERE order_id = ?"

func (r repo) GetByOrderID(ctx context.Context, orderID int64) (model.Invoice, error) {
	var res model.Invoice
	err := database.Conn(ctx, r.db).GetContext(ctx, &res, getByOrderIDQuery, orderID)
	return res, err
}

var createInvoiceQuery = `INSERT INTO invoices
    (order_id, invoice_number, sub_total, tax_amount, total_amount, status, issued_at, paid_at)
VALUES (:order_id, :invoice_number, :sub_total, :tax_amount, :total_amount, :status, :issued_at, :paid_at)`

func (r repo) CreateInvoice(ctx context.Context, invoice model.Invoice) (int64, error) {
	res, err := database.Conn(ctx, r.db).NamedExecContext(ctx, createInvoiceQuery, invoice)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

var updateStatusQuery = "UPDATE invoices SET status = ?, paid_at = COALESCE(paid_at, ?) WHERE id = ?"

func (r repo) UpdateStatus(ctx context.Context, id int64, status model.InvoiceStatus, paidAt time.Time) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, updateStatusQuery, status, paidAt, id)
	return err
}
