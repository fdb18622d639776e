package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rafata1/storefront-orders/apperr"
	"github.com/rafata1/storefront-orders/database"
	"github.com/rafata1/storefront-orders/logging"
	"github.com/rafata1/storefront-orders/model"
)

type IService interface {
	// UpsertInvoice marks the order's invoice paid, issuing it first when the order has none.
	UpsertInvoice(ctx context.Context, order model.Order) (model.Invoice, error)
	GetByOrderID(ctx context.Context, orderID int64) (*model.Invoice, error)
}

type Options struct {
	TaxRate           decimal.Decimal
	MaxNumberAttempts int
	Clock             func() time.Time
	NumberGenerator   func() string
}

type service struct {
	repo        IRepo
	taxRate     decimal.Decimal
	maxAttempts int
	clock       func() time.Time
	newNumber   func() string
}

func NewService(repo IRepo, opts Options) IService {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	newNumber := opts.NumberGenerator
	if newNumber == nil {
		newNumber = GenerateInvoiceNumber
	}
	attempts := opts.MaxNumberAttempts
	if attempts < 1 {
		attempts = 1
	}

	return &service{
		repo:        repo,
		taxRate:     opts.TaxRate,
		maxAttempts: attempts,
		clock: func() time.Time {
			return clock().UTC()
		},
		newNumber: newNumber,
	}
}

// unique indexes on invoices, see migration/*_init_orders.up.sql
const (
	numberKey = "uk_invoices_invoice_number"
	orderKey  = "uk_invoices_order"
)

func (s service) UpsertInvoice(ctx context.Context, order model.Order) (model.Invoice, error) {
	var res model.Invoice
	err := s.repo.Transact(ctx, func(ctx context.Context) error {
		existing, err := s.existing(ctx, order)
		if err != nil {
			return err
		}
		if existing != nil {
			res, err = s.markPaid(ctx, *existing)
			return err
		}
		res, err = s.issue(ctx, order)
		return err
	})
	if err != nil {
		return model.Invoice{}, err
	}
	return res, nil
}

func (s service) markPaid(ctx context.Context, invoice model.Invoice) (model.Invoice, error) {
	if invoice.Status == model.InvoicePaid {
		return invoice, nil
	}
	now := s.clock()
	if err := s.repo.UpdateStatus(ctx, invoice.ID, model.InvoicePaid, now); err != nil {
		return model.Invoice{}, fmt.Errorf("mark invoice %s paid: %w", invoice.InvoiceNumber, err)
	}
	invoice.Status = model.InvoicePaid
	if !invoice.PaidAt.Valid {
		invoice.PaidAt.Time, invoice.PaidAt.Valid = now, true
	}
	return invoice, nil
}

// issue creates a paid invoice, drawing a new number on every number collision. A collision on
// the order means another writer issued the invoice first; that invoice is used instead.
func (s service) issue(ctx context.Context, order model.Order) (model.Invoice, error) {
	now := s.clock()
	invoice := model.Invoice{
		OrderID:     order.ID,
		SubTotal:    order.SubTotal,
		TotalAmount: order.TotalAmount,
		TaxAmount:   IncludedTax(order.TotalAmount, s.taxRate),
		Status:      model.InvoicePaid,
	}
	invoice.IssuedAt.Time, invoice.IssuedAt.Valid = now, true
	invoice.PaidAt.Time, invoice.PaidAt.Valid = now, true

	for attempt := 1; ; attempt++ {
		invoice.InvoiceNumber = s.newNumber()
		id, err := s.repo.CreateInvoice(ctx, invoice)
		if err == nil {
			invoice.ID = id
			break
		}
		if database.IsDuplicateKeyOn(err, orderKey) {
			return s.issuedConcurrently(ctx, order)
		}
		if !database.IsDuplicateKeyOn(err, numberKey) {
			return model.Invoice{}, fmt.Errorf("create invoice for order %s: %w", order.OrderCode, err)
		}
		if attempt >= s.maxAttempts {
			return model.Invoice{}, fmt.Errorf("%w: invoice number still taken after %d attempts",
				apperr.ErrConflict, attempt)
		}
		logging.FromContext(ctx).Warn("invoice number collision, regenerating",
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.Int("attempt", attempt),
		)
	}

	logging.FromContext(ctx).Info("invoice issued",
		zap.String("order_code", order.OrderCode),
		zap.String("invoice_number", invoice.InvoiceNumber),
	)
	return invoice, nil
}

func (s service) issuedConcurrently(ctx context.Context, order model.Order) (model.Invoice, error) {
	existing, err := s.GetByOrderID(ctx, order.ID)
	if err != nil {
		return model.Invoice{}, err
	}
	if existing == nil {
		return model.Invoice{}, fmt.Errorf("%w: order %s already has an invoice that cannot be read",
			apperr.ErrConflict, order.OrderCode)
	}
	logging.FromContext(ctx).Warn("invoice already issued for order",
		zap.String("order_code", order.OrderCode),
		zap.String("invoice_number", existing.InvoiceNumber),
	)
	return s.markPaid(ctx, *existing)
}

func (s service) GetByOrderID(ctx context.Context, orderID int64) (*model.Invoice, error) {
	invoice, err := s.repo.GetByOrderID(ctx, orderID)
	if database.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load invoice of order %d: %w", orderID, err)
	}
	return &invoice, nil
}

func (s service) existing(ctx context.Context, order model.Order) (*model.Invoice, error) {
	if order.Invoice != nil && order.Invoice.ID != 0 {
		inv := *order.Invoice
		return &inv, nil
	}
	return s.GetByOrderID(ctx, order.ID)
}

// IncludedTax is the tax contained in a tax-inclusive total: total * rate / (1 + rate).
func IncludedTax(total decimal.Decimal, rate decimal.Decimal) decimal.Decimal {
	if rate.IsZero() {
		return decimal.Zero
	}
	return total.Mul(rate).Div(decimal.NewFromInt(1).Add(rate)).Round(2)
}
