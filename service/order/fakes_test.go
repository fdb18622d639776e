package order

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/rafata1/storefront-orders/kafka"
	"github.com/rafata1/storefront-orders/model"
	"github.com/rafata1/storefront-orders/service/stats"
)

type txMarker struct{}

// memStore backs every repository used by the order flow. Transact holds txMu for the whole
// callback so transactions run one at a time, and restores a snapshot when fn fails.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex
	data memData

	// collideCodes makes CreateOrder report a duplicate key for the listed codes.
	collideCodes map[string]bool
}

type memData struct {
	variants     map[int64]model.ProductVariant
	orders       map[int64]model.Order
	lines        map[int64][]model.OrderLine
	addresses    map[int64]model.OrderAddress
	history      map[int64][]model.OrderStatusHistory
	invoices     map[int64]model.Invoice
	dailyRevenue map[string]model.DailyRevenueStats
	productSales map[int64]model.ProductSalesStats
	outboxes     []model.Outbox
	nextID       int64
}

func newMemStore(variants ...model.ProductVariant) *memStore {
	s := &memStore{
		data: memData{
			variants:     map[int64]model.ProductVariant{},
			orders:       map[int64]model.Order{},
			lines:        map[int64][]model.OrderLine{},
			addresses:    map[int64]model.OrderAddress{},
			history:      map[int64][]model.OrderStatusHistory{},
			invoices:     map[int64]model.Invoice{},
			dailyRevenue: map[string]model.DailyRevenueStats{},
			productSales: map[int64]model.ProductSalesStats{},
			nextID:       1000,
		},
		collideCodes: map[string]bool{},
	}
	for _, v := range variants {
		s.data.variants[v.ID] = v
	}
	return s
}

func (d memData) clone() memData {
	c := d
	c.variants = cloneMap(d.variants)
	c.orders = cloneMap(d.orders)
	c.lines = cloneMap(d.lines)
	c.addresses = cloneMap(d.addresses)
	c.history = cloneMap(d.history)
	c.invoices = cloneMap(d.invoices)
	c.dailyRevenue = cloneMap(d.dailyRevenue)
	c.productSales = cloneMap(d.productSales)
	c.outboxes = append([]model.Outbox(nil), d.outboxes...)
	return c
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	c := make(map[K]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func (s *memStore) transact(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txMarker{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) newID() int64 {
	s.data.nextID++
	return s.data.nextID
}

func (s *memStore) stock(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.variants[id].StockQuantity
}

func (s *memStore) renameVariant(id int64, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.data.variants[id]
	v.ProductName = name
	v.Price = v.Price.Add(decimal.NewFromInt(100))
	s.data.variants[id] = v
}

func (s *memStore) deleteVariant(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data.variants, id)
}

func (s *memStore) invoiceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.invoices)
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.orders)
}

func (s *memStore) outboxTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []string
	for _, o := range s.data.outboxes {
		res = append(res, o.EventType)
	}
	return res
}

// bumpVersion simulates a writer that bypassed the row lock.
func (s *memStore) bumpVersion(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, o := range s.data.orders {
		if o.OrderCode == code {
			o.Version++
			s.data.orders[id] = o
		}
	}
}

var duplicateKeyErr = &mysql.MySQLError{Number: 1062, Message: "Duplicate entry for key 'orders.uk_orders_order_code'"}

// inventoryRepo

type memInventoryRepo struct{ s *memStore }

func (r memInventoryRepo) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.s.transact(ctx, fn)
}

func (r memInventoryRepo) GetVariant(_ context.Context, id int64) (model.ProductVariant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.data.variants[id]
	if !ok {
		return model.ProductVariant{}, sql.ErrNoRows
	}
	return v, nil
}

func (r memInventoryRepo) GetVariants(_ context.Context, ids []int64) ([]model.ProductVariant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var res []model.ProductVariant
	for _, id := range ids {
		if v, ok := r.s.data.variants[id]; ok {
			res = append(res, v)
		}
	}
	return res, nil
}

func (r memInventoryRepo) DecrementStock(_ context.Context, id int64, quantity int) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.data.variants[id]
	if !ok || v.StockQuantity < quantity {
		return false, nil
	}
	v.StockQuantity -= quantity
	r.s.data.variants[id] = v
	return true, nil
}

func (r memInventoryRepo) RestoreStock(_ context.Context, id int64, quantity int) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.data.variants[id]
	if !ok {
		return false, nil
	}
	v.StockQuantity += quantity
	r.s.data.variants[id] = v
	return true, nil
}

// orderRepo

type memOrderRepo struct{ s *memStore }

func (r memOrderRepo) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.s.transact(ctx, fn)
}

func (r memOrderRepo) CreateOrder(_ context.Context, order model.Order) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.collideCodes[order.OrderCode] {
		return 0, duplicateKeyErr
	}
	for _, o := range r.s.data.orders {
		if o.OrderCode == order.OrderCode {
			return 0, duplicateKeyErr
		}
	}
	order.ID = r.s.newID()
	order.Lines, order.History, order.Invoice = nil, nil, nil
	order.Address = model.OrderAddress{}
	r.s.data.orders[order.ID] = order
	return order.ID, nil
}

func (r memOrderRepo) CreateLines(_ context.Context, lines []model.OrderLine) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, line := range lines {
		line.ID = r.s.newID()
		r.s.data.lines[line.OrderID] = append(r.s.data.lines[line.OrderID], line)
	}
	return nil
}

func (r memOrderRepo) CreateAddress(_ context.Context, address model.OrderAddress) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.addresses[address.OrderID] = address
	return nil
}

func (r memOrderRepo) AppendHistory(_ context.Context, history model.OrderStatusHistory) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	history.ID = r.s.newID()
	r.s.data.history[history.OrderID] = append(r.s.data.history[history.OrderID], history)
	return history.ID, nil
}

func (r memOrderRepo) GetOrderByCode(_ context.Context, code string) (model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.data.orders {
		if o.OrderCode == code {
			return o, nil
		}
	}
	return model.Order{}, sql.ErrNoRows
}

func (r memOrderRepo) LockOrderForUpdate(ctx context.Context, code string) (model.Order, error) {
	return r.GetOrderByCode(ctx, code)
}

func (r memOrderRepo) GetLines(_ context.Context, orderID int64) ([]model.OrderLine, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]model.OrderLine(nil), r.s.data.lines[orderID]...), nil
}

func (r memOrderRepo) GetAddress(_ context.Context, orderID int64) (model.OrderAddress, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.data.addresses[orderID]
	if !ok {
		return model.OrderAddress{}, sql.ErrNoRows
	}
	return a, nil
}

func (r memOrderRepo) GetHistory(_ context.Context, orderID int64) ([]model.OrderStatusHistory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]model.OrderStatusHistory(nil), r.s.data.history[orderID]...), nil
}

func (r memOrderRepo) UpdateStatus(_ context.Context, update StatusUpdate) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.data.orders[update.OrderID]
	if !ok || o.Version != update.ExpectedVersion {
		return false, nil
	}
	o.Status = update.Status
	o.PaymentStatus = update.PaymentStatus
	o.Version++
	o.UpdatedAt = update.UpdatedAt
	r.s.data.orders[o.ID] = o
	return true, nil
}

func (r memOrderRepo) UpdatePaymentStatus(_ context.Context, id int64, status model.PaymentStatus, updatedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.data.orders[id]
	if !ok {
		return sql.ErrNoRows
	}
	o.PaymentStatus = status
	o.UpdatedAt = updatedAt
	r.s.data.orders[id] = o
	return nil
}

func (r memOrderRepo) CreateOutbox(_ context.Context, outbox model.Outbox) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	outbox.ID = r.s.newID()
	outbox.Status = model.OutboxPending
	r.s.data.outboxes = append(r.s.data.outboxes, outbox)
	return nil
}

func (r memOrderRepo) GetPendingOutbox(_ context.Context, limit int) ([]model.Outbox, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var res []model.Outbox
	for _, o := range r.s.data.outboxes {
		if o.Status == model.OutboxPending && len(res) < limit {
			res = append(res, o)
		}
	}
	return res, nil
}

func (r memOrderRepo) MarkDoneOutboxes(_ context.Context, ids []int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	done := make(map[int64]bool, len(ids))
	for _, id := range ids {
		done[id] = true
	}
	for i, o := range r.s.data.outboxes {
		if done[o.ID] {
			r.s.data.outboxes[i].Status = model.OutboxCompleted
		}
	}
	return nil
}

// invoiceRepo

type memInvoiceRepo struct{ s *memStore }

func (r memInvoiceRepo) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.s.transact(ctx, fn)
}

func (r memInvoiceRepo) GetByOrderID(_ context.Context, orderID int64) (model.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.data.invoices[orderID]
	if !ok {
		return model.Invoice{}, sql.ErrNoRows
	}
	return inv, nil
}

func (r memInvoiceRepo) CreateInvoice(_ context.Context, invoice model.Invoice) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.invoices[invoice.OrderID]; ok {
		return 0, &mysql.MySQLError{Number: 1062, Message: "Duplicate entry for key 'invoices.uk_invoices_order'"}
	}
	invoice.ID = r.s.newID()
	r.s.data.invoices[invoice.OrderID] = invoice
	return invoice.ID, nil
}

func (r memInvoiceRepo) UpdateStatus(_ context.Context, id int64, status model.InvoiceStatus, paidAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for orderID, inv := range r.s.data.invoices {
		if inv.ID == id {
			inv.Status = status
			if !inv.PaidAt.Valid {
				inv.PaidAt.Time, inv.PaidAt.Valid = paidAt, true
			}
			r.s.data.invoices[orderID] = inv
			return nil
		}
	}
	return sql.ErrNoRows
}

// statsRepo

type memStatsRepo struct{ s *memStore }

func (r memStatsRepo) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.s.transact(ctx, fn)
}

func (r memStatsRepo) IncrementDailyRevenue(_ context.Context, date time.Time, orders int64, revenue decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := date.UTC().Format(time.DateOnly)
	row := r.s.data.dailyRevenue[key]
	row.StatDate = date.UTC().Truncate(24 * time.Hour)
	row.TotalOrders += orders
	row.TotalRevenue = row.TotalRevenue.Add(revenue)
	r.s.data.dailyRevenue[key] = row
	return nil
}

func (r memStatsRepo) IncrementProductSales(_ context.Context, sale stats.ProductSale) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row := r.s.data.productSales[sale.ProductID]
	row.ProductID = sale.ProductID
	row.ProductName = sale.ProductName
	row.TotalSoldQuantity += sale.Quantity
	row.TotalRevenue = row.TotalRevenue.Add(sale.Revenue)
	row.LastSoldAt.Time, row.LastSoldAt.Valid = sale.SoldAt, true
	r.s.data.productSales[sale.ProductID] = row
	return nil
}

func (r memStatsRepo) GetDailyRevenue(_ context.Context, date time.Time) (model.DailyRevenueStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.data.dailyRevenue[date.UTC().Format(time.DateOnly)]
	if !ok {
		return model.DailyRevenueStats{}, sql.ErrNoRows
	}
	return row, nil
}

func (r memStatsRepo) GetProductSales(_ context.Context, productID int64) (model.ProductSalesStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.data.productSales[productID]
	if !ok {
		return model.ProductSalesStats{}, sql.ErrNoRows
	}
	return row, nil
}

// fakeProducer records pushed messages, failing while err is set.
type fakeProducer struct {
	mu       sync.Mutex
	err      error
	messages []string
	keys     []string
}

func (p *fakeProducer) Push(messages []kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	for _, m := range messages {
		p.keys = append(p.keys, m.Key)
		p.messages = append(p.messages, string(m.Value))
	}
	return nil
}

func (p *fakeProducer) Close() error { return nil }
