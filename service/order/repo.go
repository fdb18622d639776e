package order

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rafata1/storefront-orders/database"
	"github.com/rafata1/storefront-orders/model"
)

type IRepo interface {
	Transact(ctx context.Context, fn func(ctx context.Context) error) error
	CreateOrder(ctx context.Context, order model.Order) (int64, error)
	CreateLines(ctx context.Context, lines []model.OrderLine) error
	CreateAddress(ctx context.Context, address model.OrderAddress) error
	AppendHistory(ctx context.Context, history model.OrderStatusHistory) (int64, error)
	GetOrderByCode(ctx context.Context, code string) (model.Order, error)
	LockOrderForUpdate(ctx context.Context, code string) (model.Order, error)
	GetLines(ctx context.Context, orderID int64) ([]model.OrderLine, error)
	GetAddress(ctx context.Context, orderID int64) (model.OrderAddress, error)
	GetHistory(ctx context.Context, orderID int64) ([]model.OrderStatusHistory, error)
	UpdateStatus(ctx context.Context, update StatusUpdate) (bool, error)
	UpdatePaymentStatus(ctx context.Context, id int64, status model.PaymentStatus, updatedAt time.Time) error
	CreateOutbox(ctx context.Context, outbox model.Outbox) error
	GetPendingOutbox(ctx context.Context, limit int) ([]model.Outbox, error)
	MarkDoneOutboxes(ctx context.Context, ids []int64) error
}

// StatusUpdate moves an order to Status only if it is still at ExpectedVersion.
type StatusUpdate struct {
	OrderID         int64               `db:"id"`
	Status          model.OrderStatus   `db:"status"`
	PaymentStatus   model.PaymentStatus `db:"payment_status"`
	ExpectedVersion int64               `db:"expected_version"`
	UpdatedAt       time.Time           `db:"updated_at"`
}

func NewRepo(db *sqlx.DB) IRepo {
	return &repo{
		db: db,
	}
}

type repo struct {
	db *sqlx.DB
}

func (r repo) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	return database.Transact(ctx, r.db, fn)
}

var createOrderQuery = `INSERT INTO orders
    (order_code, user_id, status, payment_status, payment_method, customer_name, customer_phone, customer_email,
     note, sub_total, shipping_fee, discount_amount, total_amount, version, created_at, updated_at)
VALUES (:order_code, :user_id, :status, :payment_status, :payment_method, :customer_name, :customer_phone,
        :customer_email, :note, :sub_total, :shipping_fee, :discount_amount, :total_amount, :version,
        :created_at, :updated_at)`

func (r repo) CreateOrder(ctx context.Context, order model.Order) (int64, error) {
	res, err := database.Conn(ctx, r.db).NamedExecContext(ctx, createOrderQuery, order)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

var createLinesQuery = `INSERT INTO order_lines
    (order_id, variant_id, product_id, product_name, sku, color_name, size_name, thumbnail_url, quantity,
     unit_price, line_total)
VALUES (:order_id, :variant_id, :product_id, :product_name, :sku, :color_name, :size_name, :thumbnail_url,
        :quantity, :unit_price, :line_total)`

func (r repo) CreateLines(ctx context.Context, lines []model.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}
	_, err := database.Conn(ctx, r.db).NamedExecContext(ctx, createLinesQuery, lines)
	return err
}

var createAddressQuery = `INSERT INTO order_addresses
    (order_id, receiver_name, receiver_phone, address_line, ward, district, city, postal_code)
VALUES (:order_id, :receiver_name, :receiver_phone, :address_line, :ward, :district, :city, :postal_code)`

func (r repo) CreateAddress(ctx context.Context, address model.OrderAddress) error {
	_, err := database.Conn(ctx, r.db).NamedExecContext(ctx, createAddressQuery, address)
	return err
}

var appendHistoryQuery = `INSERT INTO order_status_histories (order_id, status, note, changed_by, created_at)
VALUES (:order_id, :status, :note, :changed_by, :created_at)`

func (r repo) AppendHistory(ctx context.Context, history model.OrderStatusHistory) (int64, error) {
	res, err := database.Conn(ctx, r.db).NamedExecContext(ctx, appendHistoryQuery, history)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

var getOrderByCodeQuery = "SELECT * FROM orders WHERE order_code = ?"

func (r repo) GetOrderByCode(ctx context.Context, code string) (model.Order, error) {
	var res model.Order
	err := database.Conn(ctx, r.db).GetContext(ctx, &res, getOrderByCodeQuery, code)
	return res, err
}

var lockOrderForUpdateQuery = "SELECT * FROM orders WHERE order_code = ? FOR UPDATE"

func (r repo) LockOrderForUpdate(ctx context.Context, code string) (model.Order, error) {
	var res model.Order
	err := database.Conn(ctx, r.db).GetContext(ctx, &res, lockOrderForUpdateQuery, code)
	return res, err
}

var getLinesQuery = "SELECT * FROM order_lines WHERE order_id = ? ORDER BY id"

func (r repo) GetLines(ctx context.Context, orderID int64) ([]model.OrderLine, error) {
	var res []model.OrderLine
	err := database.Conn(ctx, r.db).SelectContext(ctx, &res, getLinesQuery, orderID)
	return res, err
}

var getAddressQuery = "SELECT * FROM order_addresses WHERE order_id = ?"

func (r repo) GetAddress(ctx context.Context, orderID int64) (model.OrderAddress, error) {
	var res model.OrderAddress
	err := database.Conn(ctx, r.db).GetContext(ctx, &res, getAddressQuery, orderID)
	return res, err
}

var getHistoryQuery = "SELECT * FROM order_status_histories WHERE order_id = ? ORDER BY id"

func (r repo) GetHistory(ctx context.Context, orderID int64) ([]model.OrderStatusHistory, error) {
	var res []model.OrderStatusHistory
	err := database.Conn(ctx, r.db).SelectContext(ctx, &res, getHistoryQuery, orderID)
	return res, err
}

var updateStatusQuery = `UPDATE orders
SET status = :status, payment_status = :payment_status, version = version + 1, updated_at = :updated_at
WHERE id = :id AND version = :expected_version`

func (r repo) UpdateStatus(ctx context.Context, update StatusUpdate) (bool, error) {
	res, err := database.Conn(ctx, r.db).NamedExecContext(ctx, updateStatusQuery, update)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

var updatePaymentStatusQuery = "UPDATE orders SET payment_status = ?, updated_at = ? WHERE id = ?"

func (r repo) UpdatePaymentStatus(ctx context.Context, id int64, status model.PaymentStatus, updatedAt time.Time) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, updatePaymentStatusQuery, status, updatedAt, id)
	return err
}

var createOutboxQuery = "INSERT INTO order_outboxes (event_type, message_key, content) VALUES (:event_type, :message_key, :content)"

func (r repo) CreateOutbox(ctx context.Context, outbox model.Outbox) error {
	_, err := database.Conn(ctx, r.db).NamedExecContext(ctx, createOutboxQuery, outbox)
	return err
}

var getPendingOutboxQuery = "SELECT * FROM order_outboxes WHERE status = ? ORDER BY id LIMIT ?"

func (r repo) GetPendingOutbox(ctx context.Context, limit int) ([]model.Outbox, error) {
	var res []model.Outbox
	err := database.Conn(ctx, r.db).SelectContext(ctx, &res, getPendingOutboxQuery, model.OutboxPending, limit)
	return res, err
}

var markDoneOutboxesQuery = "UPDATE order_outboxes SET status = ? WHERE id IN (?)"

func (r repo) MarkDoneOutboxes(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In(markDoneOutboxesQuery, model.OutboxCompleted, ids)
	if err != nil {
		return err
	}

	_, err = database.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	return err
}
